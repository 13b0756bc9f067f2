package refollow

import (
	"testing"

	"copytrade-bot/internal/ledger"
	"copytrade-bot/internal/reconcile"
	"copytrade-bot/internal/signal"

	"github.com/rs/zerolog"
)

func closedEvent(symbol, oid string, kind reconcile.Kind) reconcile.Event {
	return reconcile.Event{Kind: kind, Symbol: symbol, EntryOrderID: oid}
}

// TestManualCloseResetsLedger verifies the record + reset path with auto-refollow on
func TestManualCloseResetsLedger(t *testing.T) {
	c := NewController(0, true, zerolog.Nop())
	led := ledger.NewLedger()
	led.RecordProcessed(ledger.ProcessedOrder{Symbol: "BTCUSDT", EntryOrderID: "oid-1", Side: "BUY"})

	out := c.HandleManualClosed(led, closedEvent("BTCUSDT", "oid-1", reconcile.KindManualClosed))

	if !out.Recorded || !out.Reset {
		t.Errorf("Expected recorded and reset, got %+v", out)
	}
	if len(led.ManualCloses) != 1 {
		t.Fatalf("Expected 1 manual close record, got %d", len(led.ManualCloses))
	}
	if led.ManualCloses[0].Reason != ManualCloseReason {
		t.Errorf("Unexpected reason: %q", led.ManualCloses[0].Reason)
	}
	if led.HasProcessed("BTCUSDT", "oid-1") {
		t.Error("Processed entries should be cleared after reset")
	}
}

// TestManualCloseResetHappensOnce verifies re-detection on later cycles is a no-op
func TestManualCloseResetHappensOnce(t *testing.T) {
	c := NewController(0, true, zerolog.Nop())
	led := ledger.NewLedger()
	led.RecordProcessed(ledger.ProcessedOrder{Symbol: "BTCUSDT", EntryOrderID: "oid-1", Side: "BUY"})

	first := c.HandleManualClosed(led, closedEvent("BTCUSDT", "oid-1", reconcile.KindManualClosed))
	second := c.HandleManualClosed(led, closedEvent("BTCUSDT", "oid-1", reconcile.KindManualClosed))

	if !first.Recorded {
		t.Error("First detection should record")
	}
	if second.Recorded || second.Reset {
		t.Errorf("Second detection should be a no-op, got %+v", second)
	}
	if len(led.ManualCloses) != 1 {
		t.Errorf("Expected exactly 1 manual close record, got %d", len(led.ManualCloses))
	}
}

// TestManualCloseAuditOnlyWhenRefollowDisabled verifies the record is kept but the ledger is not cleared
func TestManualCloseAuditOnlyWhenRefollowDisabled(t *testing.T) {
	c := NewController(0, false, zerolog.Nop())
	led := ledger.NewLedger()
	led.RecordProcessed(ledger.ProcessedOrder{Symbol: "BTCUSDT", EntryOrderID: "oid-1", Side: "BUY"})

	out := c.HandleManualClosed(led, closedEvent("BTCUSDT", "oid-1", reconcile.KindManualClosed))

	if !out.Recorded {
		t.Error("Audit record should be appended even with refollow disabled")
	}
	if out.Reset {
		t.Error("Ledger must not be reset with refollow disabled")
	}
	if !led.HasProcessed("BTCUSDT", "oid-1") {
		t.Error("Processed entry should survive with refollow disabled")
	}
}

// TestRefollowAfterManualClose verifies a changed oid is NEW again after the reset
func TestRefollowAfterManualClose(t *testing.T) {
	c := NewController(0, true, zerolog.Nop())
	r := reconcile.NewReconciler(false, nil, zerolog.Nop())
	led := ledger.NewLedger()
	led.RecordProcessed(ledger.ProcessedOrder{Symbol: "BTCUSDT", EntryOrderID: "oid-1", Side: "BUY"})

	c.HandleManualClosed(led, closedEvent("BTCUSDT", "oid-1", reconcile.KindManualClosed))

	next := []signal.Position{{
		Symbol: "BTCUSDT", EntryOrderID: "oid-2", Quantity: 0.5,
		Leverage: 10, Margin: 100, EntryPrice: 100, CurrentPrice: 100,
	}}
	res := r.Classify(next, led, nil, false)

	if len(res.NewPositions) != 1 {
		t.Errorf("Changed entry order id should be NEW after refollow reset, got %+v", res)
	}
}

// TestAgentClosedProfitTargetMet verifies the profit-exit record and reset
func TestAgentClosedProfitTargetMet(t *testing.T) {
	c := NewController(5.0, true, zerolog.Nop())
	led := ledger.NewLedger()
	led.RecordProcessed(ledger.ProcessedOrder{Symbol: "BTCUSDT", EntryOrderID: "oid-1", Side: "BUY"})

	lastSeen := &signal.Position{
		Symbol: "BTCUSDT", EntryOrderID: "oid-1", Quantity: 0.5,
		EntryPrice: 100, CurrentPrice: 106, // +6% long
	}
	out := c.HandleAgentClosed(led, closedEvent("BTCUSDT", "oid-1", reconcile.KindAgentClosed), lastSeen)

	if !out.Recorded || !out.Reset {
		t.Errorf("Expected profit exit recorded and reset, got %+v", out)
	}
	if len(led.ProfitExits) != 1 {
		t.Errorf("Expected 1 profit exit record, got %d", len(led.ProfitExits))
	}
	if led.HasProcessed("BTCUSDT", "oid-1") {
		t.Error("Processed entries should be cleared after profit exit")
	}
}

// TestAgentClosedBelowProfitTarget verifies no record or reset below target
func TestAgentClosedBelowProfitTarget(t *testing.T) {
	c := NewController(5.0, true, zerolog.Nop())
	led := ledger.NewLedger()
	led.RecordProcessed(ledger.ProcessedOrder{Symbol: "BTCUSDT", EntryOrderID: "oid-1", Side: "BUY"})

	lastSeen := &signal.Position{
		Symbol: "BTCUSDT", EntryOrderID: "oid-1", Quantity: 0.5,
		EntryPrice: 100, CurrentPrice: 102, // +2% long, target is 5%
	}
	out := c.HandleAgentClosed(led, closedEvent("BTCUSDT", "oid-1", reconcile.KindAgentClosed), lastSeen)

	if out.Recorded || out.Reset {
		t.Errorf("Below-target close should not record or reset, got %+v", out)
	}
	if !led.HasProcessed("BTCUSDT", "oid-1") {
		t.Error("Processed entry should be kept below target")
	}
}

// TestAgentClosedShortProfitDirection verifies profit is measured in the trade's favor
func TestAgentClosedShortProfitDirection(t *testing.T) {
	c := NewController(5.0, true, zerolog.Nop())
	led := ledger.NewLedger()
	led.RecordProcessed(ledger.ProcessedOrder{Symbol: "ETHUSDT", EntryOrderID: "oid-1", Side: "SELL"})

	lastSeen := &signal.Position{
		Symbol: "ETHUSDT", EntryOrderID: "oid-1", Quantity: -2,
		EntryPrice: 100, CurrentPrice: 93, // price fell 7%, short is +7%
	}
	out := c.HandleAgentClosed(led, closedEvent("ETHUSDT", "oid-1", reconcile.KindAgentClosed), lastSeen)

	if !out.Recorded {
		t.Errorf("Short position profit should count toward the target, got %+v", out)
	}
	if out.ProfitPct < 6.9 || out.ProfitPct > 7.1 {
		t.Errorf("Expected ~7%% profit, got %v", out.ProfitPct)
	}
}

// TestAgentClosedWithoutSnapshot verifies an unknown closing price never meets the target
func TestAgentClosedWithoutSnapshot(t *testing.T) {
	c := NewController(5.0, true, zerolog.Nop())
	led := ledger.NewLedger()
	led.RecordProcessed(ledger.ProcessedOrder{Symbol: "BTCUSDT", EntryOrderID: "oid-1", Side: "BUY"})

	out := c.HandleAgentClosed(led, closedEvent("BTCUSDT", "oid-1", reconcile.KindAgentClosed), nil)

	if out.Recorded || out.Reset {
		t.Errorf("Missing snapshot should be treated as target not met, got %+v", out)
	}
}
