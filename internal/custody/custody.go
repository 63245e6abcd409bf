package custody

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hiiliketocode/polycopy-sub003/internal/clob"
)

// The custody service holds the per-user wallet keys and performs all
// signing. This package is a client for it and nothing more; key material
// never enters this process.

// Signer describes a user's custodial wallet as reported by the custody
// service. SignatureType follows the exchange convention: 0 EOA, 1 email
// wallet proxy, 2 browser wallet proxy.
type Signer struct {
	Address       string `json:"address"`
	SignatureType int    `json:"signature_type"`
	// APIKey is the exchange API key registered for this wallet; the
	// exchange wants it as the order owner.
	APIKey string `json:"api_key"`
}

type signResponse struct {
	Signature string `json:"signature"`
	Address   string `json:"address"`
}

// Client talks to the custody service over HTTP.
type Client struct {
	http *resty.Client
}

// NewClient builds a custody client for the given service endpoint.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)
	if apiKey != "" {
		httpClient.SetHeader("X-Api-Key", apiKey)
	}
	return &Client{http: httpClient}
}

// Signer resolves the custodial wallet for a user.
func (c *Client) Signer(ctx context.Context, userID string) (*Signer, error) {
	var out Signer
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/signers/" + userID)
	if err != nil {
		return nil, fmt.Errorf("custody signer lookup: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("custody signer lookup failed: %d %s", resp.StatusCode(), resp.Body())
	}
	if out.Address == "" {
		return nil, fmt.Errorf("custody service returned no wallet for user %s", userID)
	}
	return &out, nil
}

// SignOrder has the custody service sign the order with the user's key and
// writes the signature into the order in place.
func (c *Client) SignOrder(ctx context.Context, userID string, order *clob.Order) error {
	var out signResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(order).
		SetResult(&out).
		Post("/signers/" + userID + "/sign-order")
	if err != nil {
		return fmt.Errorf("custody sign order: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("custody sign order failed: %d %s", resp.StatusCode(), resp.Body())
	}
	if out.Signature == "" {
		return fmt.Errorf("custody service returned empty signature for user %s", userID)
	}
	order.Signature = out.Signature
	return nil
}
