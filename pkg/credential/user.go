package credential

import (
	"encoding/json"
	"errors"
)

// User is the record returned by the backend's login and verify endpoints.
// Only Username is interpreted; every other attribute is kept verbatim so
// that the record can be persisted and restored wholesale.
type User struct {
	Username   string
	Attributes map[string]any
}

// NewUser builds a record with only a username.
func NewUser(username string) *User {
	return &User{Username: username, Attributes: map[string]any{"username": username}}
}

// UnmarshalJSON accepts any JSON object with an optional "username" string.
func (u *User) UnmarshalJSON(data []byte) error {
	var attrs map[string]any
	if err := json.Unmarshal(data, &attrs); err != nil {
		return err
	}
	if attrs == nil {
		return errors.New("credential: user record is null")
	}

	u.Attributes = attrs
	u.Username, _ = attrs["username"].(string)
	return nil
}

// MarshalJSON writes the attributes with username set to u.Username.
func (u User) MarshalJSON() ([]byte, error) {
	attrs := make(map[string]any, len(u.Attributes)+1)
	for k, v := range u.Attributes {
		attrs[k] = v
	}
	attrs["username"] = u.Username
	return json.Marshal(attrs)
}
