package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hiiliketocode/polycopy-sub003/internal/clob"
	"github.com/hiiliketocode/polycopy-sub003/internal/custody"
	"github.com/hiiliketocode/polycopy-sub003/internal/types"
	"github.com/rs/zerolog/log"
)

// ErrProxyRequired is returned when no outbound proxy is configured. The
// submitter fails closed: direct traffic risks the exchange flagging the
// whole account, which is worse than a refused order.
var ErrProxyRequired = errors.New("outbound proxy not configured, refusing to submit")

const zeroAddress = "0x0000000000000000000000000000000000000000"

// ExchangeClient is the slice of the CLOB client the pipeline needs.
type ExchangeClient interface {
	TickSize(ctx context.Context, tokenID string) (float64, error)
	PostOrder(ctx context.Context, submission *clob.OrderSubmission) (*clob.RawResponse, error)
	GetOrder(ctx context.Context, orderID string) (*clob.OrderStatus, error)
	ProxyURL() string
}

// CustodyClient resolves and signs with per-user custodial wallets.
type CustodyClient interface {
	Signer(ctx context.Context, userID string) (*custody.Signer, error)
	SignOrder(ctx context.Context, userID string, order *clob.Order) error
}

// SubmissionInfo describes how an order was signed and routed, echoed back
// to the caller on success.
type SubmissionInfo struct {
	Signer        string
	SignatureType int
	Proxy         string
}

// SubmissionResult is the outcome of one submission attempt. CallErr holds
// a transport-level failure from the post itself; Raw holds whatever the
// exchange answered. Exactly one of the two is set.
type SubmissionResult struct {
	Info    SubmissionInfo
	Raw     *clob.RawResponse
	CallErr error
}

// Submitter builds, signs and posts exchange orders. It owns no
// persistence; recording the attempt is the caller's responsibility.
type Submitter struct {
	exchange ExchangeClient
	custody  CustodyClient
	timeout  time.Duration
}

func NewSubmitter(exchange ExchangeClient, custodyClient CustodyClient, timeout time.Duration) *Submitter {
	return &Submitter{
		exchange: exchange,
		custody:  custodyClient,
		timeout:  timeout,
	}
}

// Submit signs and posts one order. A returned error means a precondition
// failed and the exchange was never contacted; once the post happens, the
// result (including transport failure) is reported through
// SubmissionResult for classification.
func (s *Submitter) Submit(ctx context.Context, userID string, req *types.PlaceOrderRequest, norm *NormalizedOrder) (*SubmissionResult, error) {
	if s.exchange.ProxyURL() == "" {
		return nil, ErrProxyRequired
	}

	signer, err := s.custody.Signer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving custodial signer: %w", err)
	}

	order := &clob.Order{
		Salt:          time.Now().UnixNano() % 1_000_000_000,
		Maker:         signer.Address,
		Signer:        signer.Address,
		Taker:         zeroAddress,
		TokenID:       req.TokenID,
		MakerAmount:   norm.MakerAmount(req.Side),
		TakerAmount:   norm.TakerAmount(req.Side),
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          string(req.Side),
		SignatureType: signer.SignatureType,
	}

	if err := s.custody.SignOrder(ctx, userID, order); err != nil {
		return nil, fmt.Errorf("signing order: %w", err)
	}

	submission := &clob.OrderSubmission{
		Order:     *order,
		Owner:     signer.APIKey,
		OrderType: string(req.OrderType.Resolve()),
	}

	log.Debug().
		Str("user_id", userID).
		Str("token_id", req.TokenID).
		Str("side", string(req.Side)).
		Str("order_type", submission.OrderType).
		Str("maker_amount", order.MakerAmount).
		Str("taker_amount", order.TakerAmount).
		Msg("posting order to exchange")

	postCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		postCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result := &SubmissionResult{
		Info: SubmissionInfo{
			Signer:        signer.Address,
			SignatureType: signer.SignatureType,
			Proxy:         s.exchange.ProxyURL(),
		},
	}

	raw, err := s.exchange.PostOrder(postCtx, submission)
	if err != nil {
		result.CallErr = err
		return result, nil
	}
	result.Raw = raw
	return result, nil
}
