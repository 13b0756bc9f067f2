package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	return NewFileStore(filepath.Join(dir, "ledger.json"), zerolog.Nop())
}

// TestLoadMissingFile verifies a missing ledger file yields an empty ledger
func TestLoadMissingFile(t *testing.T) {
	store := newTestStore(t)

	led := store.Load()

	if led == nil {
		t.Fatal("Load returned nil ledger")
	}
	if len(led.ProcessedOrders) != 0 {
		t.Errorf("Expected empty processed orders, got %d", len(led.ProcessedOrders))
	}
	if led.Version != LedgerVersion {
		t.Errorf("Expected version %d, got %d", LedgerVersion, led.Version)
	}
	if led.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set on a fresh ledger")
	}
}

// TestLoadCorruptFile verifies corrupt ledger content is treated as empty, never fatal
func TestLoadCorruptFile(t *testing.T) {
	store := newTestStore(t)
	if err := os.WriteFile(store.Path(), []byte("{not valid json"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}

	led := store.Load()

	if led == nil {
		t.Fatal("Load returned nil for corrupt file")
	}
	if len(led.ProcessedOrders) != 0 {
		t.Errorf("Expected empty ledger from corrupt file, got %d records", len(led.ProcessedOrders))
	}
}

// TestSaveLoadRoundtrip verifies a saved ledger loads back with the same records
func TestSaveLoadRoundtrip(t *testing.T) {
	store := newTestStore(t)

	led := NewLedger()
	led.RecordProcessed(ProcessedOrder{Symbol: "BTCUSDT", EntryOrderID: "oid-1", Side: "BUY", ExecutedQty: 0.004})
	led.RecordProcessed(ProcessedOrder{Symbol: "ETHUSDT", EntryOrderID: "oid-2", Side: "SELL", ExecutedQty: 0.12})
	led.RecordManualClose(ManualClose{Symbol: "BTCUSDT", EntryOrderID: "oid-1", Reason: "test"})

	if err := store.Save(led); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := store.Load()
	if len(loaded.ProcessedOrders) != 2 {
		t.Fatalf("Expected 2 processed orders, got %d", len(loaded.ProcessedOrders))
	}
	if !loaded.HasProcessed("BTCUSDT", "oid-1") {
		t.Error("BTCUSDT oid-1 should be processed after reload")
	}
	if !loaded.HasProcessed("ETHUSDT", "oid-2") {
		t.Error("ETHUSDT oid-2 should be processed after reload")
	}
	if len(loaded.ManualCloses) != 1 {
		t.Errorf("Expected 1 manual close record, got %d", len(loaded.ManualCloses))
	}
	if loaded.LastUpdated.IsZero() {
		t.Error("LastUpdated should be set after save")
	}
}

// TestSaveIsAtomic verifies no temp files are left behind after a save
func TestSaveIsAtomic(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save(NewLedger()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only the ledger file, found %v", names)
	}
}

// TestRecordProcessedIsIdempotent verifies duplicate (symbol, oid) pairs are not stored twice
func TestRecordProcessedIsIdempotent(t *testing.T) {
	led := NewLedger()

	led.RecordProcessed(ProcessedOrder{Symbol: "BTCUSDT", EntryOrderID: "oid-1", Side: "BUY"})
	led.RecordProcessed(ProcessedOrder{Symbol: "BTCUSDT", EntryOrderID: "oid-1", Side: "BUY"})

	if len(led.ProcessedOrders) != 1 {
		t.Errorf("Expected 1 record after duplicate insert, got %d", len(led.ProcessedOrders))
	}
}

// TestRemoveProcessedIsSymbolScoped verifies removal only touches the given symbol
func TestRemoveProcessedIsSymbolScoped(t *testing.T) {
	led := NewLedger()
	led.RecordProcessed(ProcessedOrder{Symbol: "BTCUSDT", EntryOrderID: "oid-1", Side: "BUY"})
	led.RecordProcessed(ProcessedOrder{Symbol: "BTCUSDT", EntryOrderID: "oid-2", Side: "BUY"})
	led.RecordProcessed(ProcessedOrder{Symbol: "ETHUSDT", EntryOrderID: "oid-3", Side: "SELL"})

	removed := led.RemoveProcessed("BTCUSDT")

	if removed != 2 {
		t.Errorf("Expected 2 removed, got %d", removed)
	}
	if led.HasProcessed("BTCUSDT", "oid-1") || led.HasProcessed("BTCUSDT", "oid-2") {
		t.Error("BTCUSDT records should be gone")
	}
	if !led.HasProcessed("ETHUSDT", "oid-3") {
		t.Error("ETHUSDT record should survive removal of BTCUSDT")
	}
}

// TestHasExited verifies exit logs are consulted for both record kinds
func TestHasExited(t *testing.T) {
	led := NewLedger()
	led.RecordProfitExit(ProfitExit{Symbol: "BTCUSDT", EntryOrderID: "oid-1", Reason: "profit target met"})
	led.RecordManualClose(ManualClose{Symbol: "ETHUSDT", EntryOrderID: "oid-2", Reason: "manual"})

	if !led.HasExited("BTCUSDT", "oid-1") {
		t.Error("Profit exit should count as exited")
	}
	if !led.HasExited("ETHUSDT", "oid-2") {
		t.Error("Manual close should count as exited")
	}
	if led.HasExited("BTCUSDT", "oid-9") {
		t.Error("Unknown oid should not count as exited")
	}
}

// TestProcessedSymbols verifies distinct symbols come back in first-seen order
func TestProcessedSymbols(t *testing.T) {
	led := NewLedger()
	led.RecordProcessed(ProcessedOrder{Symbol: "BTCUSDT", EntryOrderID: "a", Side: "BUY"})
	led.RecordProcessed(ProcessedOrder{Symbol: "ETHUSDT", EntryOrderID: "b", Side: "BUY"})
	led.RecordProcessed(ProcessedOrder{Symbol: "BTCUSDT", EntryOrderID: "c", Side: "BUY"})

	symbols := led.ProcessedSymbols()

	if len(symbols) != 2 {
		t.Fatalf("Expected 2 distinct symbols, got %d", len(symbols))
	}
	if symbols[0] != "BTCUSDT" || symbols[1] != "ETHUSDT" {
		t.Errorf("Expected [BTCUSDT ETHUSDT], got %v", symbols)
	}
}
