// Package refollow implements the per-symbol lifecycle that re-arms a symbol
// for following after a profit-target exit or a detected manual close:
// FOLLOWING -> {PROFIT_EXITED | MANUAL_CLOSED} -> RESET -> FOLLOWING(new oid).
package refollow

import (
	"fmt"

	"copytrade-bot/internal/ledger"
	"copytrade-bot/internal/logging"
	"copytrade-bot/internal/reconcile"
	"copytrade-bot/internal/signal"

	"github.com/rs/zerolog"
)

// ManualCloseReason is the fixed reason recorded for detected manual closes.
const ManualCloseReason = "signal source shows a position but broker has none"

// Outcome reports what the controller did for one close event.
type Outcome struct {
	Symbol       string
	EntryOrderID string
	Recorded     bool    // an audit record was appended this cycle
	Reset        bool    // processed entries were cleared (refollow armed)
	ProfitPct    float64 // profit at close, percent, trade direction applied
}

// Controller consumes reconciliation close events and mutates the ledger
// value passed to it. This is the only place ledger entries are removed, and
// removal is always symbol-scoped.
type Controller struct {
	profitTargetPct float64 // <=0 disables profit-exit records
	autoRefollow    bool
	logger          zerolog.Logger
}

// NewController creates a refollow controller.
func NewController(profitTargetPct float64, autoRefollow bool, logger zerolog.Logger) *Controller {
	return &Controller{
		profitTargetPct: profitTargetPct,
		autoRefollow:    autoRefollow,
		logger:          logging.Component(logger, "Refollow"),
	}
}

// profitPct returns the price move since entry in the trade's favor, percent.
func profitPct(pos *signal.Position) float64 {
	if pos == nil || pos.EntryPrice <= 0 {
		return 0
	}
	directional := (pos.CurrentPrice - pos.EntryPrice) / pos.EntryPrice * 100
	if pos.Side() == "SELL" {
		return -directional
	}
	return directional
}

// HandleAgentClosed processes an AGENT_CLOSED event. lastSeen is the most
// recent signal snapshot observed for the symbol before it disappeared; nil
// (e.g. after a process restart) means the profit target cannot be confirmed
// and is treated as not met.
func (c *Controller) HandleAgentClosed(led *ledger.Ledger, ev reconcile.Event, lastSeen *signal.Position) Outcome {
	out := Outcome{Symbol: ev.Symbol, EntryOrderID: ev.EntryOrderID}

	if c.profitTargetPct <= 0 {
		c.logger.Debug().Str("symbol", ev.Symbol).Msg("Agent closed position, no profit target configured")
		return out
	}

	out.ProfitPct = profitPct(lastSeen)
	if out.ProfitPct < c.profitTargetPct {
		c.logger.Debug().
			Str("symbol", ev.Symbol).
			Float64("profit_pct", out.ProfitPct).
			Float64("target_pct", c.profitTargetPct).
			Msg("Agent closed position below profit target, ledger kept")
		return out
	}

	if led.HasExited(ev.Symbol, ev.EntryOrderID) {
		return out
	}

	led.RecordProfitExit(ledger.ProfitExit{
		Symbol:       ev.Symbol,
		EntryOrderID: ev.EntryOrderID,
		Reason:       fmt.Sprintf("profit target %.2f%% met with +%.2f%%", c.profitTargetPct, out.ProfitPct),
	})
	out.Recorded = true

	if c.autoRefollow {
		led.RemoveProcessed(ev.Symbol)
		out.Reset = true
	}

	c.logger.Info().
		Str("symbol", ev.Symbol).
		Str("entry_oid", ev.EntryOrderID).
		Float64("profit_pct", out.ProfitPct).
		Bool("reset", out.Reset).
		Msg("Profit exit recorded")
	return out
}

// HandleManualClosed processes a MANUAL_CLOSED event. The audit record and
// the ledger reset happen at most once per (symbol, entry order id) even if
// the condition is re-detected on later cycles.
func (c *Controller) HandleManualClosed(led *ledger.Ledger, ev reconcile.Event) Outcome {
	out := Outcome{Symbol: ev.Symbol, EntryOrderID: ev.EntryOrderID}

	if led.HasExited(ev.Symbol, ev.EntryOrderID) {
		return out
	}

	led.RecordManualClose(ledger.ManualClose{
		Symbol:       ev.Symbol,
		EntryOrderID: ev.EntryOrderID,
		Reason:       ManualCloseReason,
	})
	out.Recorded = true

	if c.autoRefollow {
		led.RemoveProcessed(ev.Symbol)
		out.Reset = true
	}

	c.logger.Info().
		Str("symbol", ev.Symbol).
		Str("entry_oid", ev.EntryOrderID).
		Bool("reset", out.Reset).
		Msg("Manual close recorded")
	return out
}
