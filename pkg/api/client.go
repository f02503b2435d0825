// Package api is the client for the backend REST services.
//
// Every response is wrapped in an envelope {"result": {"code", "message",
// "body"}}. The client unwraps body when code is 200 and otherwise returns
// an *Error carrying the best message the backend offered. Failures to
// reach the backend are returned as *TransportError.
package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/funpik/adminconsole/pkg/environment"
	"github.com/funpik/adminconsole/pkg/shared/logging"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// URLResolver turns a service port and path into a request URL.
// *environment.Selector implements it.
type URLResolver interface {
	ResolveURL(ctx context.Context, port environment.ServicePort, path string) string
}

// Config configures a Client.
type Config struct {
	// Timeout bounds each request. Zero means no client-side limit.
	Timeout time.Duration
	// HashPassword sends the hex SHA-256 of the password instead of the
	// password itself on login and signup.
	HashPassword bool
	// HTTPClient is the underlying client. Nil means a new default client.
	HTTPClient *http.Client
}

// Client talks to the backend services.
type Client struct {
	resolver     URLResolver
	http         *http.Client
	hashPassword bool
	logger       logging.Logger
}

// NewClient creates a Client resolving request URLs through resolver.
func NewClient(resolver URLResolver, cfg Config, logger logging.Logger) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if cfg.Timeout > 0 {
		copied := *hc
		copied.Timeout = cfg.Timeout
		hc = &copied
	}
	return &Client{
		resolver:     resolver,
		http:         hc,
		hashPassword: cfg.HashPassword,
		logger:       logger.WithModule("api"),
	}
}

// request describes one call.
type request struct {
	op     string
	method string
	port   environment.ServicePort
	path   string
	token  string
	body   any
}

// envelope is the response wrapper. Error responses may instead carry a
// flat detail or message field.
type envelope struct {
	Result *struct {
		Code    int             `json:"code"`
		Message json.RawMessage `json:"message"`
		Body    json.RawMessage `json:"body"`
	} `json:"result"`
	Detail  json.RawMessage `json:"detail"`
	Message json.RawMessage `json:"message"`
}

// message picks detail, then result.message, then message.
func (e *envelope) message() string {
	if msg := rawText(e.Detail); msg != "" {
		return msg
	}
	if e.Result != nil {
		if msg := rawText(e.Result.Message); msg != "" {
			return msg
		}
	}
	if msg := rawText(e.Message); msg != "" {
		return msg
	}
	return fallbackMessage
}

// rawText renders a JSON value as text: strings unquoted, anything else
// as compact JSON, null or absent as "".
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// do performs req and returns the unwrapped result body.
func (c *Client) do(ctx context.Context, req request) (json.RawMessage, error) {
	url := c.resolver.ResolveURL(ctx, req.port, req.path)

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("api: %s: failed to encode request: %w", req.op, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, url, body)
	if err != nil {
		return nil, fmt.Errorf("api: %s: failed to build request: %w", req.op, err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client(req.token).Do(httpReq)
	if err != nil {
		c.logger.Debug("Request failed", "op", req.op, "url", url, "request_id", requestID, "error", err)
		return nil, &TransportError{Op: req.op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Op: req.op, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	c.logger.Debug("Request completed",
		"op", req.op,
		"method", req.method,
		"url", url,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start))

	var env envelope
	decodeErr := json.Unmarshal(data, &env)

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &Error{StatusCode: resp.StatusCode, Message: fmt.Sprintf("HTTP error! status: %d", resp.StatusCode)}
		if decodeErr == nil {
			if env.Result != nil {
				apiErr.Code = env.Result.Code
			}
			if msg := env.message(); msg != fallbackMessage {
				apiErr.Message = msg
			}
		}
		return nil, apiErr
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, req.op, decodeErr)
	}
	if env.Result == nil || env.Result.Code != http.StatusOK {
		apiErr := &Error{StatusCode: resp.StatusCode, Message: env.message()}
		if env.Result != nil {
			apiErr.Code = env.Result.Code
		}
		return nil, apiErr
	}
	return env.Result.Body, nil
}

// client returns the HTTP client for a call, adding bearer authentication
// when token is set.
func (c *Client) client(token string) *http.Client {
	if token == "" {
		return c.http
	}
	authed := *c.http
	authed.Transport = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
		Base:   c.http.Transport,
	}
	return &authed
}

// password returns what is sent as the password field.
func (c *Client) password(plain string) string {
	if !c.hashPassword {
		return plain
	}
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
