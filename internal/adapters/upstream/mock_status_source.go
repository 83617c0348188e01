package upstream

import (
	"context"
	"sync"

	"github.com/Endgame-Tech/choma-sub014/internal/ports"
)

// MockStatusSource serves fixed signals per subscription.
// Used for local runs without an order-processing service and in tests.
type MockStatusSource struct {
	mu      sync.RWMutex
	signals map[string][]ports.SlotSignals
}

func NewMockStatusSource() *MockStatusSource {
	return &MockStatusSource{signals: make(map[string][]ports.SlotSignals)}
}

// Set replaces the signals reported for a subscription.
func (m *MockStatusSource) Set(subscriptionID string, signals []ports.SlotSignals) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[subscriptionID] = signals
}

func (m *MockStatusSource) FetchSignals(_ context.Context, subscriptionID string) ([]ports.SlotSignals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ports.SlotSignals, len(m.signals[subscriptionID]))
	copy(out, m.signals[subscriptionID])
	return out, nil
}
