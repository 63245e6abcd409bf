package orders

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/hiiliketocode/polycopy-sub003/internal/clob"
)

// OutcomeKind tags the classification of an upstream order-post response.
type OutcomeKind string

const (
	OutcomeSuccess      OutcomeKind = "success"
	OutcomeRejection    OutcomeKind = "rejection"
	OutcomeEdgeBlock    OutcomeKind = "edge_block"
	OutcomeNetworkError OutcomeKind = "network_error"
)

// Error-type tags surfaced to callers alongside rejections.
const (
	ErrTypeInsufficientBalance = "insufficient_balance"
	ErrTypeInvalidOrder        = "invalid_order"
	ErrTypeMarketClosed        = "market_closed"
	ErrTypeExchangeRejection   = "exchange_rejection"
	ErrTypeUnexpectedResponse  = "unexpected_response"
	ErrTypeBlockedByCloudflare = "blocked_by_cloudflare"
	ErrTypeNetwork             = "network_error"
)

const (
	maxMessageLen = 300
	maxRawLen     = 2048
)

// Outcome is the interpreted form of one upstream response. Exactly one of
// the four kinds applies to any input.
type Outcome struct {
	Kind           OutcomeKind
	OrderID        string
	ExchangeStatus string // matched, live, delayed, unmatched
	Message        string
	ErrorType      string
	UpstreamStatus int
	RayID          string
	Raw            string
}

var rayIDPattern = regexp.MustCompile(`(?i)(?:ray id|cf-ray)[^0-9a-f]{0,20}([0-9a-f]{8,})`)

// Interpret classifies a raw order-post response into exactly one outcome.
// It is total: it never panics and never returns an error, whatever shape
// the upstream handed back. resp may be nil only when callErr is non-nil.
func Interpret(resp *clob.RawResponse, callErr error) Outcome {
	if callErr != nil || resp == nil {
		msg := "no response from exchange"
		if callErr != nil {
			// Flatten to a plain string; upstream error values can carry
			// circular or unserializable structure.
			msg = callErr.Error()
		}
		return Outcome{
			Kind:      OutcomeNetworkError,
			Message:   truncate(msg, maxMessageLen),
			ErrorType: ErrTypeNetwork,
		}
	}

	body := string(resp.Body)

	if isHTML(resp.ContentType, body) {
		if isCloudflareBlock(body) {
			return Outcome{
				Kind:           OutcomeEdgeBlock,
				Message:        "request blocked at the network edge before reaching the exchange",
				ErrorType:      ErrTypeBlockedByCloudflare,
				UpstreamStatus: resp.StatusCode,
				RayID:          extractRayID(body),
				Raw:            truncate(body, maxRawLen),
			}
		}
		return Outcome{
			Kind:           OutcomeRejection,
			Message:        "exchange returned an unexpected non-JSON response",
			ErrorType:      ErrTypeUnexpectedResponse,
			UpstreamStatus: resp.StatusCode,
			Raw:            truncate(body, maxRawLen),
		}
	}

	var parsed clob.OrderResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return Outcome{
			Kind:           OutcomeRejection,
			Message:        "exchange returned an unparseable response",
			ErrorType:      ErrTypeUnexpectedResponse,
			UpstreamStatus: resp.StatusCode,
			Raw:            truncate(body, maxRawLen),
		}
	}

	if parsed.OrderID != "" && (parsed.Success || resp.StatusCode == 200) {
		return Outcome{
			Kind:           OutcomeSuccess,
			OrderID:        parsed.OrderID,
			ExchangeStatus: parsed.Status,
			UpstreamStatus: resp.StatusCode,
		}
	}

	msg := parsed.ErrorMsg
	if msg == "" {
		msg = parsed.Error
	}
	if msg == "" {
		msg = "order rejected by exchange"
	}
	return Outcome{
		Kind:           OutcomeRejection,
		Message:        truncate(msg, maxMessageLen),
		ErrorType:      classifyRejection(msg),
		UpstreamStatus: resp.StatusCode,
		Raw:            truncate(body, maxRawLen),
	}
}

func classifyRejection(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "not enough balance"), strings.Contains(lower, "insufficient"):
		return ErrTypeInsufficientBalance
	case strings.Contains(lower, "closed"), strings.Contains(lower, "resolved"):
		return ErrTypeMarketClosed
	case strings.Contains(lower, "invalid"):
		return ErrTypeInvalidOrder
	default:
		return ErrTypeExchangeRejection
	}
}

func isHTML(contentType, body string) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	trimmed := strings.TrimSpace(body)
	return strings.HasPrefix(trimmed, "<!DOCTYPE") || strings.HasPrefix(trimmed, "<html")
}

func isCloudflareBlock(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "cloudflare") ||
		strings.Contains(lower, "attention required") ||
		strings.Contains(lower, "cf-ray")
}

func extractRayID(body string) string {
	if m := rayIDPattern.FindStringSubmatch(body); len(m) == 2 {
		return m[1]
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
