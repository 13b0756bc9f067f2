package risk

import (
	"fmt"
	"sync"
)

// Manager tracks account-level execution limits across polling cycles.
// Position sizing itself is the allocator's job; the manager only answers
// whether another mirrored position may be opened at all.
type Manager struct {
	config         *ManagerConfig
	openPositions  int
	accountBalance float64
	mu             sync.RWMutex
}

// ManagerConfig holds account-level limits.
type ManagerConfig struct {
	MaxOpenPositions int     // maximum concurrent mirrored positions, 0 disables the check
	MinFreeBalance   float64 // stop opening when available balance falls below this
}

// NewManager creates a manager with the given limits.
func NewManager(config *ManagerConfig) *Manager {
	return &Manager{config: config}
}

// UpdateAccountBalance updates the available balance snapshot.
func (m *Manager) UpdateAccountBalance(balance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountBalance = balance
}

// GetAccountBalance returns the last balance snapshot.
func (m *Manager) GetAccountBalance() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accountBalance
}

// SetOpenPositions records how many mirrored positions are currently live.
func (m *Manager) SetOpenPositions(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openPositions = n
}

// RegisterPositionOpened bumps the open-position count after an entry fill.
func (m *Manager) RegisterPositionOpened() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openPositions++
}

// RegisterPositionClosed drops the open-position count after an exit.
func (m *Manager) RegisterPositionClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openPositions > 0 {
		m.openPositions--
	}
}

// CanOpenPosition checks if a new position can be opened. The returned
// string carries the reason when the answer is no.
func (m *Manager) CanOpenPosition() (bool, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config.MaxOpenPositions > 0 && m.openPositions >= m.config.MaxOpenPositions {
		return false, fmt.Sprintf("max positions reached (%d/%d)", m.openPositions, m.config.MaxOpenPositions)
	}

	if m.config.MinFreeBalance > 0 && m.accountBalance > 0 && m.accountBalance < m.config.MinFreeBalance {
		return false, fmt.Sprintf("available balance %.2f below minimum %.2f", m.accountBalance, m.config.MinFreeBalance)
	}

	return true, ""
}
