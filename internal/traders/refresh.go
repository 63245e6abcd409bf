package traders

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hiiliketocode/polycopy-sub003/internal/orders"
	"github.com/rs/zerolog/log"
)

// RefreshSummary reports one reconciliation pass over a user's open copied
// orders.
type RefreshSummary struct {
	Checked   int  `json:"checked"`
	Updated   int  `json:"updated"`
	Failed    int  `json:"failed"`
	Coalesced bool `json:"coalesced"`
}

type refreshEntry struct {
	done    chan struct{}
	summary *RefreshSummary
	err     error
	expires time.Time
}

// Refresher reconciles stored copied orders against the exchange. Refreshes
// are keyed by user: while one pass runs, further requests for the same user
// wait on it and share its result instead of hammering the exchange.
type Refresher struct {
	db       *Database
	exchange orders.ExchangeClient

	mu       sync.Mutex
	inflight map[string]*refreshEntry

	// coalesceWindow keeps a finished pass sharable for a short period so
	// bursts of refresh clicks still collapse onto one pass.
	coalesceWindow time.Duration
}

func NewRefresher(db *Database, exchange orders.ExchangeClient) *Refresher {
	return &Refresher{
		db:             db,
		exchange:       exchange,
		inflight:       make(map[string]*refreshEntry),
		coalesceWindow: 5 * time.Second,
	}
}

// SetCoalesceWindow overrides how long a finished pass keeps answering
// duplicate requests.
func (r *Refresher) SetCoalesceWindow(d time.Duration) {
	r.mu.Lock()
	r.coalesceWindow = d
	r.mu.Unlock()
}

// Refresh runs (or joins) a reconciliation pass for the user.
func (r *Refresher) Refresh(ctx context.Context, userID string) (*RefreshSummary, error) {
	r.mu.Lock()
	if entry, ok := r.inflight[userID]; ok && time.Now().Before(entry.expires) {
		r.mu.Unlock()
		select {
		case <-entry.done:
			if entry.err != nil {
				return nil, entry.err
			}
			shared := *entry.summary
			shared.Coalesced = true
			return &shared, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	entry := &refreshEntry{
		done: make(chan struct{}),
		// Until the pass finishes this entry must stay claimable.
		expires: time.Now().Add(time.Hour),
	}
	r.inflight[userID] = entry
	r.mu.Unlock()

	summary, err := r.refreshPass(ctx, userID)

	r.mu.Lock()
	entry.summary = summary
	entry.err = err
	entry.expires = time.Now().Add(r.coalesceWindow)
	close(entry.done)
	r.mu.Unlock()

	// Drop the entry once its window lapses so the map does not grow with
	// every user ever seen.
	time.AfterFunc(r.coalesceWindow, func() {
		r.mu.Lock()
		if r.inflight[userID] == entry {
			delete(r.inflight, userID)
		}
		r.mu.Unlock()
	})

	return summary, err
}

func (r *Refresher) refreshPass(ctx context.Context, userID string) (*RefreshSummary, error) {
	open, err := r.db.GetOpenCopiedOrders(userID)
	if err != nil {
		return nil, err
	}

	summary := &RefreshSummary{Checked: len(open)}
	for _, record := range open {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		status, err := r.exchange.GetOrder(ctx, record.OrderID)
		if err != nil {
			summary.Failed++
			log.Warn().Err(err).Str("order_id", record.OrderID).Msg("order refresh lookup failed")
			continue
		}

		newStatus := mapExchangeStatus(status.Status)
		sizeMatched := parseSize(status.SizeMatched)
		if newStatus == record.Status && sizeMatched == record.SizeMatched {
			continue
		}
		if err := r.db.UpdateCopiedOrderStatus(record.OrderID, newStatus, sizeMatched); err != nil {
			summary.Failed++
			log.Error().Err(err).Str("order_id", record.OrderID).Msg("failed to store refreshed order state")
			continue
		}
		summary.Updated++
	}
	return summary, nil
}

func mapExchangeStatus(s string) string {
	switch strings.ToLower(s) {
	case "live", "delayed":
		return CopiedOrderOpen
	case "matched":
		return CopiedOrderMatched
	case "cancelled", "canceled", "unmatched":
		return CopiedOrderCancelled
	default:
		return CopiedOrderUnknown
	}
}

func parseSize(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
