// Package authapi is the HTTP client for the authentication provider.
package authapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"checkout-system/internal/status"
)

type Client struct {
	baseURL   string
	deviceKey string
	hc        *http.Client
}

func New(baseURL, deviceKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		deviceKey: deviceKey,
		hc: &http.Client{
			// Interactive login long-polls until the user acts.
			Timeout: 5 * time.Minute,
		},
	}
}

// CheckExistingSession returns the current access token, or
// status.ErrNoSession when the user has never logged in on this device.
func (c *Client) CheckExistingSession(ctx context.Context) (string, error) {
	return c.session(ctx, http.MethodGet, "/v1/session")
}

// InteractiveLogin opens a login prompt on the user's device and blocks
// until it resolves. 204 means the user closed the prompt.
func (c *Client) InteractiveLogin(ctx context.Context) (string, error) {
	return c.session(ctx, http.MethodPost, "/v1/session/interactive")
}

func (c *Client) session(ctx context.Context, method, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Device-Key", c.deviceKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return "", status.ErrNoSession
	case http.StatusOK:
	default:
		return "", fmt.Errorf("auth: %s %s returned %d", method, path, resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", status.ErrNoSession
	}
	return out.AccessToken, nil
}
