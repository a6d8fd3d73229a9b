package credits

import (
	"context"
	"sync"
)

// MemoryLedger keeps balances in process memory.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int
	starting int
}

func NewMemoryLedger(starting int) *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]int), starting: starting}
}

func (m *MemoryLedger) balanceLocked(userID string) int {
	b, ok := m.balances[userID]
	if !ok {
		b = m.starting
		m.balances[userID] = b
	}
	return b
}

func (m *MemoryLedger) Balance(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceLocked(userID), nil
}

func (m *MemoryLedger) Debit(_ context.Context, userID string, amount int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.balanceLocked(userID)
	if b < amount {
		return b, false, nil
	}
	b -= amount
	m.balances[userID] = b
	return b, true, nil
}

func (m *MemoryLedger) Credit(_ context.Context, userID string, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.balanceLocked(userID) + amount
	m.balances[userID] = b
	return b, nil
}
