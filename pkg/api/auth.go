package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/funpik/adminconsole/pkg/credential"
	"github.com/funpik/adminconsole/pkg/environment"
)

// Auth endpoints, all on the user service.
const (
	pathLogin   = "/v3/auth/login"
	pathSignup  = "/v3/auth/signup"
	pathVerify  = "/v3/auth/verify"
	pathRefresh = "/v3/auth/refresh"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is the body of a successful login.
type LoginResult struct {
	AccessToken string           `json:"access_token"`
	User        *credential.User `json:"user"`
}

// VerifyResult is the body of a verify call. User is nil when the backend
// sent none.
type VerifyResult struct {
	Valid bool             `json:"valid"`
	User  *credential.User `json:"user"`
}

type refreshResult struct {
	AccessToken string `json:"access_token"`
}

// Login exchanges username and password for a token and user record.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body, err := c.do(ctx, request{
		op:     "login",
		method: http.MethodPost,
		port:   environment.PortUser,
		path:   pathLogin,
		body:   credentialsRequest{Username: username, Password: c.password(password)},
	})
	if err != nil {
		return nil, err
	}

	var result LoginResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: login: %v", ErrMalformedResponse, err)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("%w: login: no access_token", ErrMalformedResponse)
	}
	if result.User == nil {
		result.User = credential.NewUser(username)
	}
	return &result, nil
}

// Signup registers a new operator account. It does not sign in.
func (c *Client) Signup(ctx context.Context, username, password string) error {
	_, err := c.do(ctx, request{
		op:     "signup",
		method: http.MethodPost,
		port:   environment.PortUser,
		path:   pathSignup,
		body:   credentialsRequest{Username: username, Password: c.password(password)},
	})
	return err
}

// Verify asks the backend whether token is still valid.
func (c *Client) Verify(ctx context.Context, token string) (*VerifyResult, error) {
	body, err := c.do(ctx, request{
		op:     "verify",
		method: http.MethodGet,
		port:   environment.PortUser,
		path:   pathVerify,
		token:  token,
	})
	if err != nil {
		return nil, err
	}

	var result VerifyResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: verify: %v", ErrMalformedResponse, err)
	}
	return &result, nil
}

// Refresh exchanges token for a new one with a later expiry.
func (c *Client) Refresh(ctx context.Context, token string) (string, error) {
	body, err := c.do(ctx, request{
		op:     "refresh",
		method: http.MethodPost,
		port:   environment.PortUser,
		path:   pathRefresh,
		token:  token,
	})
	if err != nil {
		return "", err
	}

	var result refreshResult
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: refresh: %v", ErrMalformedResponse, err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("%w: refresh: no access_token", ErrMalformedResponse)
	}
	return result.AccessToken, nil
}
