// Package remote is the opaque remote-apply collaborator. The core hands
// it (operation, entity, payload) and only cares about success, failure,
// and which failure class it was.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marcus/taskdock/internal/models"
)

// Sentinel errors for the remote failure classes the drain loop reacts to.
var (
	// ErrUnauthorized means credentials are stale; the host must force
	// re-authentication before retries can succeed.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation means the payload itself was rejected; retrying can
	// never succeed.
	ErrValidation = errors.New("payload rejected")
)

// Applier delivers one pending operation to the remote side. It is the
// only contract the outbox depends on; the HTTP client below is one
// implementation, test stubs are another.
type Applier func(ctx context.Context, op models.Operation, entity models.Entity, payload json.RawMessage) error

// Client is an HTTP client for the remote apply endpoint.
type Client struct {
	BaseURL  string
	Token    string
	DeviceID string
	HTTP     *http.Client
}

// New creates a remote client with a bounded request timeout.
func New(baseURL, token, deviceID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		Token:    token,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

type applyRequest struct {
	Operation models.Operation `json:"operation"`
	Entity    models.Entity    `json:"entity"`
	DeviceID  string           `json:"device_id"`
	Payload   json.RawMessage  `json:"payload"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Apply delivers one operation. 401 maps to ErrUnauthorized, 400/422 to
// ErrValidation; everything else (including transport failures) is
// retryable.
func (c *Client) Apply(ctx context.Context, op models.Operation, entity models.Entity, payload json.RawMessage) error {
	body, err := json.Marshal(applyRequest{
		Operation: op,
		Entity:    entity,
		DeviceID:  c.DeviceID,
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/apply", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 400 {
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)
	msg := string(respBody)
	var apiErr apiError
	if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrValidation, msg)
	default:
		return fmt.Errorf("server error %d: %s", resp.StatusCode, msg)
	}
}

// Healthy reports whether the remote endpoint is reachable. Used by the
// connectivity monitor as its default probe.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}
