package yespay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ClientConfig struct {
	BaseURL   string `json:"baseUrl" mapstructure:"base_url"`
	PartnerID string `json:"partnerId" mapstructure:"partner_id"`
	ClientID  string `json:"clientId" mapstructure:"client_id"`
	ClientKey string `json:"clientKey" mapstructure:"client_key"`
	HMACKey   string `json:"hmacKey" mapstructure:"hmac_key"`
}

type Client struct {
	// baseURL is the base url of the YesPay backend.
	baseURL string

	// partnerID is the partner id of the YesPay backend.
	partnerID string

	// clientID is the client id of the YesPay backend.
	clientID string

	// clientKey is the client key of the YesPay backend.
	clientKey string

	// hmacKey signs every request body.
	hmacKey string

	// accessToken is used to authenticate with the YesPay backend.
	accessToken string

	// mu is used to lock access token.
	mu sync.Mutex

	// toggleTokenRefresher is used to notify token refresher to refresh token.
	toggleTokenRefresher chan struct{}

	// hc is the http client.
	hc *http.Client
}

// newClient creates new instance of YesPay client.
func newClient(_ context.Context, c *ClientConfig) *Client {
	return &Client{
		baseURL:   c.BaseURL,
		partnerID: c.PartnerID,
		clientID:  c.ClientID,
		clientKey: c.ClientKey,
		hmacKey:   c.HMACKey,

		// make a buffered channel to avoid blocking.
		toggleTokenRefresher: make(chan struct{}, 1),

		// set http client with timeout.
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// connect authenticates with the YesPay backend and returns an access token.
func (c *Client) connect(ctx context.Context) (string, error) {
	body := map[string]string{
		"partner_id": c.partnerID,
		"client_id":  c.clientID,
		"client_key": c.clientKey,
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/partner/connect", body, &out, false); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("yespay: connect returned empty access token")
	}
	return out.AccessToken, nil
}

// notifyAccessTokenExpired do infinite loop with period of time
// to perform auto renew token from the YesPay backend with
// exponential backOff strategy.
func (c *Client) notifyAccessTokenExpired(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	for {
		select {
		case <-ctx.Done():
			ticker.Stop()
			return

		case <-ticker.C:

		case <-c.toggleTokenRefresher:
			log.Println("notifyAccessTokenExpired: toggleTokenRefresher => token refreshed")
		}

		// reconnect with exponential backOff strategy
		backOff := time.Second

	Retry:
		for {
			token, err := c.connect(ctx)
			switch err {
			case nil:
				c.setAccessToken(token)

				break Retry

			default:
				log.Printf("notifyAccessTokenExpired: %v", err)
				select {
				case <-ctx.Done():
					return

				case <-time.After(backOff):
					backOff *= 2
				}
			}
		}
	}
}

func (c *Client) setAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func (c *Client) getAccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// createSession registers a payment sized to the quote and returns the
// provider-side session id.
func (c *Client) createSession(ctx context.Context, amount decimal.Decimal, currency, reference string) (string, error) {
	body := map[string]any{
		"partner_order_id": uuid.NewString(),
		"amount":           amount,
		"currency":         currency,
		"reference":        reference,
	}

	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", body, &out, true); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", errors.New("yespay: empty session id")
	}
	return out.SessionID, nil
}

// capability asks whether express pay can fulfill the session.
func (c *Client) capability(ctx context.Context, sessionID string) (bool, error) {
	var out struct {
		Capable bool `json:"capable"`
	}
	path := fmt.Sprintf("/v1/sessions/%s/capability", sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return false, err
	}
	return out.Capable, nil
}

// completeSession reports the checkout outcome back to the provider UI.
func (c *Client) completeSession(ctx context.Context, sessionID string, success bool) error {
	body := map[string]any{"success": success}
	path := fmt.Sprintf("/v1/sessions/%s/complete", sessionID)
	return c.do(ctx, http.MethodPost, path, body, nil, true)
}

// createToken tokenizes manually entered card details.
func (c *Client) createToken(ctx context.Context, body map[string]any) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/tokens", body, &out, true); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("yespay: empty token")
	}
	return out.Token, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", Hmac256(buf.Bytes(), []byte(c.hmacKey)))
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.getAccessToken())
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Nudge the refresher; non-blocking because the channel is buffered.
		select {
		case c.toggleTokenRefresher <- struct{}{}:
		default:
		}
		return fmt.Errorf("yespay: unauthorized (%s %s)", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("yespay: %s %s returned %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
