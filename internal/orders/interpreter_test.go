package orders

import (
	"errors"
	"strings"
	"testing"

	"github.com/hiiliketocode/polycopy-sub003/internal/clob"
	"github.com/stretchr/testify/assert"
)

const cloudflareHTML = `<!DOCTYPE html>
<html>
<head><title>Attention Required! | Cloudflare</title></head>
<body>
<h1>Sorry, you have been blocked</h1>
<p>Cloudflare Ray ID: 8c9a1b2c3d4e5f60</p>
</body>
</html>`

func TestInterpret_Success(t *testing.T) {
	outcome := Interpret(&clob.RawResponse{
		StatusCode:  200,
		ContentType: "application/json",
		Body:        []byte(`{"success":true,"orderId":"0xabc123","status":"live"}`),
	}, nil)

	assert.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Equal(t, "0xabc123", outcome.OrderID)
	assert.Equal(t, "live", outcome.ExchangeStatus)
	assert.Equal(t, 200, outcome.UpstreamStatus)
}

func TestInterpret_SuccessWithoutSuccessFlag(t *testing.T) {
	// Some responses omit the success flag; an order id with a 200 is
	// still a placed order.
	outcome := Interpret(&clob.RawResponse{
		StatusCode:  200,
		ContentType: "application/json",
		Body:        []byte(`{"orderId":"0xdef456","status":"matched"}`),
	}, nil)

	assert.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Equal(t, "0xdef456", outcome.OrderID)
}

func TestInterpret_Rejection(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		errorType string
	}{
		{"insufficient balance", `{"success":false,"errorMsg":"not enough balance / allowance"}`, ErrTypeInsufficientBalance},
		{"market closed", `{"success":false,"errorMsg":"market is closed"}`, ErrTypeMarketClosed},
		{"invalid order", `{"success":false,"errorMsg":"invalid order signature"}`, ErrTypeInvalidOrder},
		{"other", `{"success":false,"errorMsg":"something else went wrong"}`, ErrTypeExchangeRejection},
		{"error field fallback", `{"error":"insufficient funds"}`, ErrTypeInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Interpret(&clob.RawResponse{
				StatusCode:  400,
				ContentType: "application/json",
				Body:        []byte(tt.body),
			}, nil)

			assert.Equal(t, OutcomeRejection, outcome.Kind)
			assert.Equal(t, tt.errorType, outcome.ErrorType)
			assert.Empty(t, outcome.OrderID)
		})
	}
}

func TestInterpret_CloudflareBlockNeverSucceeds(t *testing.T) {
	for _, status := range []int{200, 403, 503} {
		outcome := Interpret(&clob.RawResponse{
			StatusCode:  status,
			ContentType: "text/html; charset=UTF-8",
			Body:        []byte(cloudflareHTML),
		}, nil)

		assert.Equal(t, OutcomeEdgeBlock, outcome.Kind, "status %d", status)
		assert.Equal(t, ErrTypeBlockedByCloudflare, outcome.ErrorType)
		assert.Equal(t, "8c9a1b2c3d4e5f60", outcome.RayID)
		assert.Empty(t, outcome.OrderID)
	}
}

func TestInterpret_HTMLWithoutCloudflareMarkers(t *testing.T) {
	outcome := Interpret(&clob.RawResponse{
		StatusCode:  502,
		ContentType: "text/html",
		Body:        []byte("<html><body>Bad gateway</body></html>"),
	}, nil)

	assert.Equal(t, OutcomeRejection, outcome.Kind)
	assert.Equal(t, ErrTypeUnexpectedResponse, outcome.ErrorType)
}

func TestInterpret_HTMLBodyWithJSONContentType(t *testing.T) {
	// Edge blocks sometimes arrive without an html content type; the body
	// shape decides.
	outcome := Interpret(&clob.RawResponse{
		StatusCode:  403,
		ContentType: "application/json",
		Body:        []byte(cloudflareHTML),
	}, nil)

	assert.Equal(t, OutcomeEdgeBlock, outcome.Kind)
}

func TestInterpret_UnparseableBody(t *testing.T) {
	outcome := Interpret(&clob.RawResponse{
		StatusCode:  500,
		ContentType: "application/json",
		Body:        []byte("not json at all"),
	}, nil)

	assert.Equal(t, OutcomeRejection, outcome.Kind)
	assert.Equal(t, ErrTypeUnexpectedResponse, outcome.ErrorType)
}

func TestInterpret_NetworkError(t *testing.T) {
	outcome := Interpret(nil, errors.New("dial tcp: connection refused"))

	assert.Equal(t, OutcomeNetworkError, outcome.Kind)
	assert.Equal(t, ErrTypeNetwork, outcome.ErrorType)
	assert.Contains(t, outcome.Message, "connection refused")
}

func TestInterpret_NilResponseWithoutError(t *testing.T) {
	outcome := Interpret(nil, nil)

	assert.Equal(t, OutcomeNetworkError, outcome.Kind)
	assert.NotEmpty(t, outcome.Message)
}

func TestInterpret_TruncatesLongMessages(t *testing.T) {
	long := strings.Repeat("x", 5000)
	outcome := Interpret(nil, errors.New(long))
	assert.LessOrEqual(t, len(outcome.Message), maxMessageLen+3)

	outcome = Interpret(&clob.RawResponse{
		StatusCode:  400,
		ContentType: "application/json",
		Body:        []byte(`{"errorMsg":"` + long + `"}`),
	}, nil)
	assert.LessOrEqual(t, len(outcome.Message), maxMessageLen+3)
	assert.LessOrEqual(t, len(outcome.Raw), maxRawLen+3)
}
