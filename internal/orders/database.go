package orders

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// ClaimOutcome is the result of the atomic check-and-record on an intent.
type ClaimOutcome string

const (
	// ClaimNew: no prior record, the intent is now recorded in-flight.
	ClaimNew ClaimOutcome = "new"
	// ClaimDuplicate: a prior request reached a terminal state; replay it.
	ClaimDuplicate ClaimOutcome = "duplicate"
	// ClaimInFlight: a concurrent request holds the intent; reject with 429.
	ClaimInFlight ClaimOutcome = "in_flight"
	// ClaimConflict: the intent id belongs to a different user.
	ClaimConflict ClaimOutcome = "conflict"
)

// IntentClaim carries the claim outcome plus the existing intent row when
// one was found.
type IntentClaim struct {
	Outcome ClaimOutcome
	Intent  *OrderIntent
}

// ClaimIntent performs the idempotency guard's check-and-record. The unique
// index on intent_id arbitrates between concurrent claimants: whoever
// inserts first wins, everyone else observes the existing row. This is the
// authoritative concurrency boundary for order placement; there is no
// in-process locking because multiple instances may run this code.
func (d *Database) ClaimIntent(intentID, userID string) (*IntentClaim, error) {
	existing, err := d.getIntent(intentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return classifyExisting(existing, userID), nil
	}

	intent := &OrderIntent{
		IntentID: intentID,
		UserID:   userID,
		Status:   IntentInFlight,
	}
	if err := d.db.Create(intent).Error; err != nil {
		if !isDuplicateKey(err) {
			return nil, err
		}
		// Lost the insert race to a concurrent request; re-read and
		// classify against whatever won.
		existing, err := d.getIntent(intentID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, errors.New("intent vanished after duplicate-key insert")
		}
		return classifyExisting(existing, userID), nil
	}

	return &IntentClaim{Outcome: ClaimNew, Intent: intent}, nil
}

func classifyExisting(intent *OrderIntent, userID string) *IntentClaim {
	switch {
	case intent.UserID != userID:
		return &IntentClaim{Outcome: ClaimConflict, Intent: intent}
	case intent.Status == IntentInFlight:
		return &IntentClaim{Outcome: ClaimInFlight, Intent: intent}
	default:
		return &IntentClaim{Outcome: ClaimDuplicate, Intent: intent}
	}
}

// ResolveIntent moves an in-flight intent to its terminal state and caches
// the serialized result for replay. The status guard keeps the transition
// monotonic: a resolved intent is never overwritten.
func (d *Database) ResolveIntent(intentID, status, result string) error {
	return d.db.Model(&OrderIntent{}).
		Where("intent_id = ? AND status = ?", intentID, IntentInFlight).
		Updates(map[string]interface{}{"status": status, "result": result}).Error
}

// GetIntentForUser retrieves an intent owned by the given user.
func (d *Database) GetIntentForUser(intentID, userID string) (*OrderIntent, error) {
	var intent OrderIntent
	if err := d.db.Where("intent_id = ? AND user_id = ?", intentID, userID).First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

func (d *Database) getIntent(intentID string) (*OrderIntent, error) {
	var intent OrderIntent
	if err := d.db.Where("intent_id = ?", intentID).First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

// CreateEvent writes the ATTEMPTED audit row for a submission.
func (d *Database) CreateEvent(event *OrderEvent) error {
	return d.db.Create(event).Error
}

// FinalizeEvent records the terminal state of an attempt, including the
// wallet that signed it once known. Only an ATTEMPTED row can be finalized,
// so the transition happens at most once.
func (d *Database) FinalizeEvent(eventID, status string, upstreamStatus int, errorCode, errorMessage, walletAddress string) error {
	return d.db.Model(&OrderEvent{}).
		Where("event_id = ? AND status = ?", eventID, EventAttempted).
		Updates(map[string]interface{}{
			"status":          status,
			"upstream_status": upstreamStatus,
			"error_code":      errorCode,
			"error_message":   errorMessage,
			"wallet_address":  walletAddress,
		}).Error
}

// GetEventByIntent retrieves the audit row for an intent.
func (d *Database) GetEventByIntent(intentID string) (*OrderEvent, error) {
	var event OrderEvent
	if err := d.db.Where("intent_id = ?", intentID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key")
}
