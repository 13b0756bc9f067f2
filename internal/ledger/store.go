package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"copytrade-bot/internal/logging"
)

// FileStore persists the ledger to a single JSON file. Writes go to a
// temporary file in the same directory followed by a rename, so a crash
// mid-write never leaves a partial ledger behind.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore creates a store backed by the given file path.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logging.Component(logger, "LedgerStore"),
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the ledger from disk. A missing or corrupt file yields a fresh
// empty ledger rather than an error: losing idempotency history is recoverable
// (duplicate detection re-arms on the next poll), whereas refusing to start is
// not.
func (s *FileStore) Load() *Ledger {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to read ledger file, starting empty")
		}
		return NewLedger()
	}

	var led Ledger
	if err := json.Unmarshal(data, &led); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Ledger file corrupt, starting empty")
		return NewLedger()
	}

	if led.ProcessedOrders == nil {
		led.ProcessedOrders = make([]ProcessedOrder, 0)
	}
	if led.ProfitExits == nil {
		led.ProfitExits = make([]ProfitExit, 0)
	}
	if led.ManualCloses == nil {
		led.ManualCloses = make([]ManualClose, 0)
	}
	if led.Version == 0 {
		led.Version = LedgerVersion
	}
	if led.CreatedAt.IsZero() {
		led.CreatedAt = time.Now().UTC()
	}
	return &led
}

// Save atomically rewrites the ledger file. Errors are returned to the caller
// so the cycle can retry on the next poll instead of silently losing state.
func (s *FileStore) Save(led *Ledger) error {
	led.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(led, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp ledger file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}

	s.logger.Debug().
		Int("processed", len(led.ProcessedOrders)).
		Int("profit_exits", len(led.ProfitExits)).
		Int("manual_closes", len(led.ManualCloses)).
		Msg("Ledger saved")
	return nil
}
