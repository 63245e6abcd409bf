package clob

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Client is a thin HTTP client for the Polymarket CLOB. It never interprets
// order-post responses beyond transport concerns; classification of the
// upstream payload is the caller's job, because the exchange answers with
// JSON on the happy path and arbitrary HTML when an edge proxy steps in.
type Client struct {
	http     *resty.Client
	baseURL  string
	proxyURL string
}

// Order is a signed order in the format expected by the CLOB API. The
// signature fields are filled in by the custody service; this package never
// sees a private key.
type Order struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// OrderSubmission wraps a signed order with submission metadata.
type OrderSubmission struct {
	Order     Order  `json:"order"`
	Owner     string `json:"owner"`
	OrderType string `json:"orderType"`
}

// OrderResponse is the JSON body the exchange returns from POST /order.
type OrderResponse struct {
	Success     bool     `json:"success"`
	ErrorMsg    string   `json:"errorMsg"`
	Error       string   `json:"error"`
	OrderID     string   `json:"orderId"`
	OrderHashes []string `json:"orderHashes"`
	Status      string   `json:"status"` // matched, live, delayed, unmatched
}

// OrderStatus is the JSON body of GET /data/order/{id}, used by the
// reconciliation refresh path.
type OrderStatus struct {
	OrderID      string `json:"id"`
	Status       string `json:"status"`
	Price        string `json:"price"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Outcome      string `json:"outcome"`
}

// RawResponse carries an order-post response back to the caller untouched.
type RawResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type tickSizeResponse struct {
	MinimumTickSize float64 `json:"minimum_tick_size"`
}

// NewClient builds a CLOB client. proxyURL may be empty; whether an empty
// proxy is acceptable is decided by the submitter, not here.
func NewClient(baseURL, proxyURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://clob.polymarket.com"
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Origin", "https://polymarket.com").
		SetHeader("Referer", "https://polymarket.com/").
		SetHeader("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	if proxyURL != "" {
		httpClient.SetProxy(proxyURL)
	}

	return &Client{
		http:     httpClient,
		baseURL:  baseURL,
		proxyURL: proxyURL,
	}
}

// ProxyURL reports the outbound proxy this client is configured with.
func (c *Client) ProxyURL() string {
	return c.proxyURL
}

// TickSize fetches the minimum price increment for a token.
func (c *Client) TickSize(ctx context.Context, tokenID string) (float64, error) {
	var out tickSizeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&out).
		Get("/tick-size")
	if err != nil {
		return 0, err
	}
	if resp.StatusCode() != 200 {
		return 0, fmt.Errorf("get tick size failed: %d %s", resp.StatusCode(), resp.Body())
	}
	if out.MinimumTickSize <= 0 {
		return 0, fmt.Errorf("exchange returned tick size %v for token %s", out.MinimumTickSize, tokenID)
	}
	return out.MinimumTickSize, nil
}

// PostOrder submits a signed order. The response body is returned raw for
// classification regardless of status code; only transport failures (DNS,
// connect, timeout) come back as an error.
func (c *Client) PostOrder(ctx context.Context, submission *OrderSubmission) (*RawResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(submission).
		Post("/order")
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("status", resp.StatusCode()).
		Str("content_type", resp.Header().Get("Content-Type")).
		Msg("order post response received")

	return &RawResponse{
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}, nil
}

// GetOrder fetches the current state of an order by its exchange id.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*OrderStatus, error) {
	var out OrderStatus
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/data/order/" + orderID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == 404 {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("get order failed: %d %s", resp.StatusCode(), resp.Body())
	}
	return &out, nil
}
