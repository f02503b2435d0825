package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/funpik/adminconsole/pkg/environment"
)

const pathPopups = "/v3/popups"

// Popup is a promotional popup as the notification service stores it. The
// console does not interpret its fields.
type Popup map[string]any

// PopupsByScreen lists the popups configured for a screen key such as
// "home" or "ranking". token may be empty.
func (c *Client) PopupsByScreen(ctx context.Context, token, screen string) ([]Popup, error) {
	body, err := c.do(ctx, request{
		op:     "list popups",
		method: http.MethodGet,
		port:   environment.PortNotification,
		path:   pathPopups + "?" + url.Values{"screen": {screen}}.Encode(),
		token:  token,
	})
	if err != nil {
		return nil, err
	}

	if len(body) == 0 || string(body) == "null" {
		return nil, nil
	}
	var popups []Popup
	if err := json.Unmarshal(body, &popups); err != nil {
		return nil, fmt.Errorf("%w: list popups: %v", ErrMalformedResponse, err)
	}
	return popups, nil
}

// CreatePopup creates a popup and returns the backend's result body.
func (c *Client) CreatePopup(ctx context.Context, token string, popup Popup) (json.RawMessage, error) {
	return c.do(ctx, request{
		op:     "create popup",
		method: http.MethodPost,
		port:   environment.PortNotification,
		path:   pathPopups,
		token:  token,
		body:   popup,
	})
}
