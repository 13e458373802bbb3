// Package commerce is the HTTP client for the pricing/promo backend.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"checkout-system/models"
)

type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Quote prices a selection snapshot.
func (c *Client) Quote(ctx context.Context, eventID string, sel models.Selection) (*models.OrderQuote, error) {
	body := map[string]any{
		"event_id":  eventID,
		"selection": sel,
	}

	var quote models.OrderQuote
	if err := c.do(ctx, http.MethodPost, "/v1/quotes", body, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// Resolve exchanges a promo code for the replacement ticket-type list.
func (c *Client) Resolve(ctx context.Context, code, eventID string) ([]models.TicketType, error) {
	body := map[string]any{
		"code":     code,
		"event_id": eventID,
	}

	var out struct {
		TicketTypes []models.TicketType `json:"ticket_types"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/promos/resolve", body, &out); err != nil {
		return nil, err
	}
	return out.TicketTypes, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
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
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		var apiErr struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("%s", apiErr.Message)
		}
		return fmt.Errorf("commerce: %s %s rejected", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("commerce: %s %s returned %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
