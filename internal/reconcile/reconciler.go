// Package reconcile classifies the agent's reported positions against the
// order-history ledger and the live broker account. Classification is a pure
// function over immutable snapshots so it stays unit-testable independent of
// network timing.
package reconcile

import (
	"copytrade-bot/internal/exchange"
	"copytrade-bot/internal/ledger"
	"copytrade-bot/internal/logging"
	"copytrade-bot/internal/signal"

	"github.com/rs/zerolog"
)

// Kind is the per-symbol classification for one polling cycle.
type Kind string

const (
	KindNew          Kind = "NEW"           // unseen entry order id, place an order
	KindUnchanged    Kind = "UNCHANGED"     // same entry order id, nothing to do
	KindAgentClosed  Kind = "AGENT_CLOSED"  // agent no longer reports the symbol
	KindManualClosed Kind = "MANUAL_CLOSED" // signal reports it, broker has none
)

// Event is one classified change.
type Event struct {
	Kind         Kind
	Symbol       string
	EntryOrderID string
	Signal       *signal.Position // nil for AGENT_CLOSED
}

// Result is the full classification for one cycle. NewPositions preserves the
// signal source's ordering, which the fixed-amount allocator depends on.
type Result struct {
	NewPositions []signal.Position
	Unchanged    []Event
	AgentClosed  []Event
	ManualClosed []Event

	// ManualCheckSkipped is true when manual-close detection was requested
	// but the broker snapshot was unavailable this cycle.
	ManualCheckSkipped bool
}

// Reconciler classifies signal snapshots. ConvertSymbol maps signal-source
// symbols to the broker's format before comparing the two snapshots.
type Reconciler struct {
	detectManualClose bool
	convertSymbol     func(string) string
	logger            zerolog.Logger
}

// NewReconciler creates a reconciler. convertSymbol may be nil for identity.
func NewReconciler(detectManualClose bool, convertSymbol func(string) string, logger zerolog.Logger) *Reconciler {
	if convertSymbol == nil {
		convertSymbol = func(s string) string { return s }
	}
	return &Reconciler{
		detectManualClose: detectManualClose,
		convertSymbol:     convertSymbol,
		logger:            logging.Component(logger, "Reconciler"),
	}
}

// Classify diffs the current signal snapshot against the ledger and, when
// manual-close detection is enabled, the live broker positions. broker and
// brokerOK come from the caller's (possibly failed) broker query: a failed
// query only disables the manual-close check for this cycle, never the
// NEW/AGENT_CLOSED classification.
func (r *Reconciler) Classify(current []signal.Position, led *ledger.Ledger, broker []exchange.Position, brokerOK bool) Result {
	var res Result

	brokerQty := make(map[string]float64, len(broker))
	for _, pos := range broker {
		brokerQty[pos.Symbol] += pos.Quantity
	}

	manualCheck := r.detectManualClose && brokerOK
	if r.detectManualClose && !brokerOK {
		res.ManualCheckSkipped = true
		r.logger.Warn().Msg("Broker snapshot unavailable, skipping manual-close detection this cycle")
	}

	liveSymbols := make(map[string]bool, len(current))
	for i := range current {
		pos := current[i]
		if !pos.Live() {
			// A zero-quantity or zero-margin entry is treated as not listed,
			// same as the symbol disappearing from the snapshot.
			continue
		}
		liveSymbols[pos.Symbol] = true

		switch {
		case led.HasProcessed(pos.Symbol, pos.EntryOrderID):
			if manualCheck && brokerQty[r.convertSymbol(pos.Symbol)] == 0 {
				res.ManualClosed = append(res.ManualClosed, Event{
					Kind:         KindManualClosed,
					Symbol:       pos.Symbol,
					EntryOrderID: pos.EntryOrderID,
					Signal:       &current[i],
				})
				continue
			}
			res.Unchanged = append(res.Unchanged, Event{
				Kind:         KindUnchanged,
				Symbol:       pos.Symbol,
				EntryOrderID: pos.EntryOrderID,
				Signal:       &current[i],
			})

		case led.HasExited(pos.Symbol, pos.EntryOrderID):
			// A refollow reset only re-arms detection for a future entry order
			// id. The signal source still reporting the reset id is a source
			// defect, not a new position.
			r.logger.Warn().
				Str("symbol", pos.Symbol).
				Str("entry_oid", pos.EntryOrderID).
				Msg("Signal source still reports an entry order id that already exited; holding UNCHANGED")
			res.Unchanged = append(res.Unchanged, Event{
				Kind:         KindUnchanged,
				Symbol:       pos.Symbol,
				EntryOrderID: pos.EntryOrderID,
				Signal:       &current[i],
			})

		default:
			res.NewPositions = append(res.NewPositions, pos)
		}
	}

	for _, symbol := range led.ProcessedSymbols() {
		if liveSymbols[symbol] {
			continue
		}
		records := led.ProcessedBySymbol(symbol)
		entryOID := ""
		if len(records) > 0 {
			entryOID = records[len(records)-1].EntryOrderID
		}
		res.AgentClosed = append(res.AgentClosed, Event{
			Kind:         KindAgentClosed,
			Symbol:       symbol,
			EntryOrderID: entryOID,
		})
	}

	return res
}
