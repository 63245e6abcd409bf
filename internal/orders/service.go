package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hiiliketocode/polycopy-sub003/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateInFlight: the same intent is being processed by a
	// concurrent request. The caller should retry shortly; submitting a
	// second order is never an option.
	ErrDuplicateInFlight = errors.New("a request with this intent id is already in progress")

	// ErrIntentConflict: the intent id belongs to another user. Reported
	// as invalid input, not as "found".
	ErrIntentConflict = errors.New("invalid order intent id")
)

// ValidationFailure carries field-level validation errors.
type ValidationFailure struct {
	Errors []types.ValidationError
}

func (v *ValidationFailure) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(v.Errors))
}

// PreconditionFailure is an error raised before the exchange was contacted.
// Unavailable distinguishes "infrastructure not ready" (503) from "these
// inputs cannot produce a valid order" (400).
type PreconditionFailure struct {
	Message     string
	Unavailable bool
}

func (p *PreconditionFailure) Error() string {
	return p.Message
}

// CopyContext describes a successfully placed order for the copy-metadata
// persister.
type CopyContext struct {
	UserID               string
	WalletAddress        string
	OrderID              string
	ConditionID          string
	TokenID              string
	Outcome              string
	MarketTitle          string
	Side                 string
	Price                float64
	Size                 float64
	CopiedTraderWallet   string
	CopiedTraderUsername string
	AutoCloseEnabled     bool
	AutoClosePercent     float64
	RawResult            string
}

// CopyRecorder persists copy-trading metadata for successful orders.
type CopyRecorder interface {
	RecordCopiedOrder(ctx context.Context, cc CopyContext) error
}

// Config holds the pipeline's policy knobs.
type Config struct {
	// IdempotencyFailOpen lets orders proceed unguarded when the
	// idempotency storage check itself fails. Trading availability is
	// favoured over strict dedup: a failed trade gets noticed by the
	// human retrying it, a silently blocked one does not.
	IdempotencyFailOpen bool
	DefaultTickSize     float64
}

// Service runs the order-placement pipeline: validate, claim the intent,
// normalize, submit, interpret, record.
type Service struct {
	db        *Database
	submitter *Submitter
	exchange  ExchangeClient
	copies    CopyRecorder
	cfg       Config
}

// NewService creates the order-placement service. copies may be nil when no
// copy-metadata persistence is wanted (simulation, tests).
func NewService(gormDB *gorm.DB, submitter *Submitter, exchange ExchangeClient, copies CopyRecorder, cfg Config) *Service {
	if cfg.DefaultTickSize <= 0 {
		cfg.DefaultTickSize = DefaultTickSize
	}
	return &Service{
		db:        NewDatabase(gormDB),
		submitter: submitter,
		exchange:  exchange,
		copies:    copies,
		cfg:       cfg,
	}
}

// PlaceOrder runs one request through the full pipeline. Errors are typed:
// *ValidationFailure, ErrDuplicateInFlight, ErrIntentConflict and
// *PreconditionFailure map to client responses; anything else is internal.
func (s *Service) PlaceOrder(ctx context.Context, userID string, req *types.PlaceOrderRequest) (*types.PlaceOrderResult, error) {
	if errs := ValidateOrderRequest(req); len(errs) > 0 {
		return nil, &ValidationFailure{Errors: errs}
	}

	intentID := req.OrderIntentID
	if intentID == "" {
		intentID = uuid.New().String()
	}

	logger := log.With().
		Str("user_id", userID).
		Str("intent_id", intentID).
		Str("token_id", req.TokenID).
		Str("side", string(req.Side)).
		Logger()

	guarded := true
	claim, err := s.db.ClaimIntent(intentID, userID)
	if err != nil {
		if !s.cfg.IdempotencyFailOpen {
			logger.Error().Err(err).Msg("idempotency check failed, failing closed")
			return nil, &PreconditionFailure{
				Message:     "order deduplication is unavailable, not accepting orders",
				Unavailable: true,
			}
		}
		// Availability over strict dedup. The degradation is loud so it
		// cannot go unnoticed.
		logger.Error().Err(err).Msg("idempotency check failed, proceeding unguarded (fail-open policy)")
		guarded = false
	}

	if guarded {
		switch claim.Outcome {
		case ClaimDuplicate:
			return replayIntent(claim.Intent, &logger)
		case ClaimInFlight:
			return nil, ErrDuplicateInFlight
		case ClaimConflict:
			logger.Warn().Msg("intent id claimed by another user")
			return nil, ErrIntentConflict
		}
	}

	norm, err := NormalizeOrder(req.Price, req.Amount, req.Side, s.tickSize(ctx, req.TokenID, &logger))
	if err != nil {
		result := &types.PlaceOrderResult{
			OK:        false,
			Error:     "invalid price or amount after rounding; the market may be near resolution, adjust inputs or wait",
			ErrorType: ErrTypeInvalidOrder,
		}
		s.resolveIntent(guarded, intentID, result, &logger)
		return nil, &PreconditionFailure{Message: result.Error}
	}

	normPrice, _ := norm.Price.Float64()
	normSize, _ := norm.Size.Float64()

	event := &OrderEvent{
		EventID:     uuid.New().String(),
		UserID:      userID,
		IntentID:    intentID,
		RequestID:   requestIDFrom(ctx),
		ConditionID: req.ConditionID,
		TokenID:     req.TokenID,
		Side:        string(req.Side),
		OrderType:   string(req.OrderType.Resolve()),
		LimitPrice:  normPrice,
		Size:        normSize,
		Status:      EventAttempted,
	}
	// Audit logging is best effort: losing a row is acceptable, losing the
	// user's trade is not.
	if err := s.db.CreateEvent(event); err != nil {
		logger.Error().Err(err).Msg("failed to write attempt event")
	}

	subResult, err := s.submitter.Submit(ctx, userID, req, norm)
	if err != nil {
		result := s.failBeforeSubmit(err, event, intentID, guarded, &logger)
		return nil, &PreconditionFailure{Message: result.Error, Unavailable: true}
	}

	outcome := Interpret(subResult.Raw, subResult.CallErr)
	result := buildResult(outcome, subResult.Info)
	s.finalizeEvent(event, outcome, subResult.Info.Signer, &logger)
	s.resolveIntent(guarded, intentID, result, &logger)

	if outcome.Kind == OutcomeSuccess {
		logger.Info().
			Str("order_id", outcome.OrderID).
			Str("exchange_status", outcome.ExchangeStatus).
			Float64("price", normPrice).
			Float64("size", normSize).
			Msg("order submitted")
		s.recordCopyMetadata(ctx, userID, req, result, subResult.Info, normPrice, normSize, &logger)
	} else {
		logger.Warn().
			Str("kind", string(outcome.Kind)).
			Str("error_type", outcome.ErrorType).
			Int("upstream_status", outcome.UpstreamStatus).
			Msg("order not submitted")
	}

	return result, nil
}

// GetIntent returns an intent and its audit event for the owning user.
func (s *Service) GetIntent(intentID, userID string) (*OrderIntent, *OrderEvent, error) {
	intent, err := s.db.GetIntentForUser(intentID, userID)
	if err != nil || intent == nil {
		return nil, nil, err
	}
	event, err := s.db.GetEventByIntent(intentID)
	if err != nil {
		return intent, nil, nil
	}
	return intent, event, nil
}

func replayIntent(intent *OrderIntent, logger *zerolog.Logger) (*types.PlaceOrderResult, error) {
	var result types.PlaceOrderResult
	if err := json.Unmarshal([]byte(intent.Result), &result); err != nil {
		logger.Error().Err(err).Msg("cached intent result is unreadable")
		return nil, fmt.Errorf("cached result for intent %s is unreadable: %w", intent.IntentID, err)
	}
	result.Idempotent = true
	result.Cached = true
	logger.Info().Msg("replaying cached intent result")
	return &result, nil
}

func (s *Service) tickSize(ctx context.Context, tokenID string, logger *zerolog.Logger) float64 {
	tick, err := s.exchange.TickSize(ctx, tokenID)
	if err != nil {
		logger.Warn().Err(err).Float64("fallback", s.cfg.DefaultTickSize).Msg("tick size unavailable, using fallback")
		return s.cfg.DefaultTickSize
	}
	return tick
}

func (s *Service) failBeforeSubmit(err error, event *OrderEvent, intentID string, guarded bool, logger *zerolog.Logger) *types.PlaceOrderResult {
	errorType := "precondition_failed"
	message := "order could not be submitted"
	if errors.Is(err, ErrProxyRequired) {
		errorType = "proxy_unavailable"
		message = "outbound proxy unavailable, order not submitted"
	} else {
		message = truncate(err.Error(), maxMessageLen)
	}
	logger.Error().Err(err).Str("error_type", errorType).Msg("submission precondition failed")

	if ferr := s.db.FinalizeEvent(event.EventID, EventRejected, 0, errorType, message, ""); ferr != nil {
		logger.Error().Err(ferr).Msg("failed to finalize event after precondition failure")
	}

	result := &types.PlaceOrderResult{OK: false, Error: message, ErrorType: errorType}
	s.resolveIntent(guarded, intentID, result, logger)
	return result
}

func (s *Service) finalizeEvent(event *OrderEvent, outcome Outcome, wallet string, logger *zerolog.Logger) {
	status := EventRejected
	if outcome.Kind == OutcomeSuccess {
		status = EventSubmitted
	}
	if err := s.db.FinalizeEvent(event.EventID, status, outcome.UpstreamStatus, outcome.ErrorType, outcome.Message, wallet); err != nil {
		logger.Error().Err(err).Msg("failed to finalize order event")
	}
}

func (s *Service) resolveIntent(guarded bool, intentID string, result *types.PlaceOrderResult, logger *zerolog.Logger) {
	if !guarded {
		return
	}
	status := IntentFailed
	if result.OK {
		status = IntentSucceeded
	}
	payload, err := json.Marshal(result)
	if err != nil {
		logger.Error().Err(err).Msg("failed to serialize intent result")
		payload = []byte(`{"ok":false,"error":"result serialization failed"}`)
	}
	if err := s.db.ResolveIntent(intentID, status, string(payload)); err != nil {
		// The next identical request will be treated as in-flight until
		// this row resolves, so this failure is worth shouting about.
		logger.Error().Err(err).Msg("failed to resolve intent to terminal state")
	}
}

func (s *Service) recordCopyMetadata(ctx context.Context, userID string, req *types.PlaceOrderRequest, result *types.PlaceOrderResult, info SubmissionInfo, price, size float64, logger *zerolog.Logger) {
	if s.copies == nil {
		return
	}
	raw, _ := json.Marshal(result)
	cc := CopyContext{
		UserID:               userID,
		WalletAddress:        info.Signer,
		OrderID:              result.OrderID,
		ConditionID:          req.ConditionID,
		TokenID:              req.TokenID,
		Outcome:              req.Outcome,
		MarketTitle:          req.MarketTitle,
		Side:                 string(req.Side),
		Price:                price,
		Size:                 size,
		CopiedTraderWallet:   req.CopiedTraderWallet,
		CopiedTraderUsername: req.CopiedTraderUsername,
		AutoCloseEnabled:     req.AutoCloseEnabled,
		AutoClosePercent:     req.AutoClosePercent,
		RawResult:            string(raw),
	}
	if err := s.copies.RecordCopiedOrder(ctx, cc); err != nil {
		logger.Error().Err(err).Str("order_id", result.OrderID).Msg("failed to persist copy metadata")
	}
}

func buildResult(outcome Outcome, info SubmissionInfo) *types.PlaceOrderResult {
	if outcome.Kind == OutcomeSuccess {
		return &types.PlaceOrderResult{
			OK:             true,
			OrderID:        outcome.OrderID,
			SubmittedAt:    time.Now().UTC(),
			Signer:         info.Signer,
			Proxy:          info.Proxy,
			SignatureType:  info.SignatureType,
			UpstreamStatus: outcome.UpstreamStatus,
		}
	}
	return &types.PlaceOrderResult{
		OK:                  false,
		Error:               outcome.Message,
		ErrorType:           outcome.ErrorType,
		UpstreamStatus:      outcome.UpstreamStatus,
		BlockedByCloudflare: outcome.Kind == OutcomeEdgeBlock,
		Raw:                 outcome.Raw,
	}
}

func requestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID attaches a request id for audit rows.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

type requestIDKey struct{}
