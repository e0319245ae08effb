// ABOUTME: HTTP JSON client for the remote identity service
// ABOUTME: Request plumbing, bearer-token attachment, and status-to-error mapping

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/idfront/internal/identity"
)

// defaultTimeout bounds a single round trip when no timeout is configured.
const defaultTimeout = 15 * time.Second

// Envelope is the common response shape of the identity service:
// {token?, user?, message?}.
type Envelope struct {
	Token   string             `json:"token,omitempty"`
	User    *identity.Identity `json:"user,omitempty"`
	Message string             `json:"message,omitempty"`
}

// errorBody is the error response shape of the identity service.
type errorBody struct {
	Message           string `json:"message"`
	TwoFactorRequired bool   `json:"twoFactorRequired"`
}

// Client talks to the remote identity service. It holds no session state;
// authenticated calls take the bearer token explicitly, keeping the session
// engine the single owner of the token lifecycle.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a client for the identity service at baseURL (e.g.
// "https://id.example.com/api/auth"). A zero timeout uses the default.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "api"),
	}
}

// call performs one round trip. Method and path address the endpoint, token
// (if non-empty) is attached as a bearer credential, body (if non-nil) is
// JSON-encoded, and the decoded envelope is returned on 2xx. Non-2xx
// responses are mapped through classify; transport failures become
// ServiceError with status 0. No retries.
func (c *Client) call(ctx context.Context, method, path, token string, body any) (*Envelope, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return nil, &ServiceError{Status: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.classify(resp)
	}

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		return nil, &ServiceError{Status: resp.StatusCode, Message: "undecodable response body"}
	}
	return &env, nil
}

// classify maps a non-2xx response to the error taxonomy.
func (c *Client) classify(resp *http.Response) error {
	var body errorBody
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return &ValidationError{Message: body.Message}
	case http.StatusUnauthorized:
		if body.TwoFactorRequired {
			return &SecondFactorRequiredError{Message: body.Message}
		}
		return ErrInvalidCredentials
	case http.StatusConflict:
		return ErrConflict
	default:
		return &ServiceError{Status: resp.StatusCode, Message: body.Message}
	}
}

// callDecoding performs one round trip and decodes the 2xx body into out.
// Used for endpoints whose responses are not the common envelope.
func (c *Client) callDecoding(ctx context.Context, method, path, token string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return &ServiceError{Status: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.classify(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ServiceError{Status: resp.StatusCode, Message: "undecodable response body"}
	}
	return nil
}
