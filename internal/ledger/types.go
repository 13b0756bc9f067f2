// Package ledger provides the durable order-history store used to keep
// copy-trade execution idempotent across polling cycles.
package ledger

import "time"

// LedgerVersion is bumped when the on-disk layout changes.
const LedgerVersion = 1

// ProcessedOrder records that an agent entry order has already been acted upon.
// At most one live record exists per (symbol, entry order id) pair.
type ProcessedOrder struct {
	Symbol       string    `json:"symbol"`
	EntryOrderID string    `json:"entry_order_id"`
	Side         string    `json:"side"` // BUY or SELL
	ExecutedQty  float64   `json:"executed_qty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ProfitExit records that the agent closed a position after the configured
// profit target was met, making the symbol eligible for re-following.
type ProfitExit struct {
	Symbol       string    `json:"symbol"`
	EntryOrderID string    `json:"entry_order_id"`
	Reason       string    `json:"reason"`
	DetectedAt   time.Time `json:"detected_at"`
}

// ManualClose records that the operator closed a position directly on the
// exchange while the signal source still reported it open.
type ManualClose struct {
	Symbol       string    `json:"symbol"`
	EntryOrderID string    `json:"entry_order_id"`
	Reason       string    `json:"reason"`
	DetectedAt   time.Time `json:"detected_at"`
}

// Ledger is the aggregate persisted to disk. Processed orders are live state;
// profit exits and manual closes are append-only audit logs.
type Ledger struct {
	Version         int              `json:"version"`
	ProcessedOrders []ProcessedOrder `json:"processed_orders"`
	ProfitExits     []ProfitExit     `json:"profit_exits"`
	ManualCloses    []ManualClose    `json:"manual_closes"`
	CreatedAt       time.Time        `json:"created_at"`
	LastUpdated     time.Time        `json:"last_updated"`
}

// NewLedger returns an empty ledger stamped with the current time.
func NewLedger() *Ledger {
	now := time.Now().UTC()
	return &Ledger{
		Version:         LedgerVersion,
		ProcessedOrders: make([]ProcessedOrder, 0),
		ProfitExits:     make([]ProfitExit, 0),
		ManualCloses:    make([]ManualClose, 0),
		CreatedAt:       now,
		LastUpdated:     now,
	}
}

// HasProcessed reports whether an entry order has already been executed.
func (l *Ledger) HasProcessed(symbol, entryOrderID string) bool {
	for _, rec := range l.ProcessedOrders {
		if rec.Symbol == symbol && rec.EntryOrderID == entryOrderID {
			return true
		}
	}
	return false
}

// ProcessedBySymbol returns all live processed records for a symbol.
func (l *Ledger) ProcessedBySymbol(symbol string) []ProcessedOrder {
	var out []ProcessedOrder
	for _, rec := range l.ProcessedOrders {
		if rec.Symbol == symbol {
			out = append(out, rec)
		}
	}
	return out
}

// ProcessedSymbols returns the distinct symbols with live processed records,
// in first-seen order.
func (l *Ledger) ProcessedSymbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, rec := range l.ProcessedOrders {
		if !seen[rec.Symbol] {
			seen[rec.Symbol] = true
			out = append(out, rec.Symbol)
		}
	}
	return out
}

// HasExited reports whether a (symbol, entry order id) pair appears in the
// profit-exit or manual-close logs. Used to avoid re-executing an entry order
// id that was just reset by the refollow controller.
func (l *Ledger) HasExited(symbol, entryOrderID string) bool {
	for _, rec := range l.ProfitExits {
		if rec.Symbol == symbol && rec.EntryOrderID == entryOrderID {
			return true
		}
	}
	for _, rec := range l.ManualCloses {
		if rec.Symbol == symbol && rec.EntryOrderID == entryOrderID {
			return true
		}
	}
	return false
}

// RecordProcessed appends a processed-order record unless an identical
// (symbol, entry order id) pair is already live.
func (l *Ledger) RecordProcessed(rec ProcessedOrder) {
	if l.HasProcessed(rec.Symbol, rec.EntryOrderID) {
		return
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	l.ProcessedOrders = append(l.ProcessedOrders, rec)
	l.LastUpdated = time.Now().UTC()
}

// RemoveProcessed deletes all processed records for a symbol and returns how
// many were removed. This is the only removal operation on the ledger; it is
// symbol-scoped, never global.
func (l *Ledger) RemoveProcessed(symbol string) int {
	kept := l.ProcessedOrders[:0]
	removed := 0
	for _, rec := range l.ProcessedOrders {
		if rec.Symbol == symbol {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	l.ProcessedOrders = kept
	if removed > 0 {
		l.LastUpdated = time.Now().UTC()
	}
	return removed
}

// RecordProfitExit appends a profit-exit audit record.
func (l *Ledger) RecordProfitExit(rec ProfitExit) {
	if rec.DetectedAt.IsZero() {
		rec.DetectedAt = time.Now().UTC()
	}
	l.ProfitExits = append(l.ProfitExits, rec)
	l.LastUpdated = time.Now().UTC()
}

// RecordManualClose appends a manual-close audit record.
func (l *Ledger) RecordManualClose(rec ManualClose) {
	if rec.DetectedAt.IsZero() {
		rec.DetectedAt = time.Now().UTC()
	}
	l.ManualCloses = append(l.ManualCloses, rec)
	l.LastUpdated = time.Now().UTC()
}
