package archive

import (
	"context"
	"sync"

	"github.com/victornm/qrally/internal/domain"
)

// HistoryStore persists completed sessions. Save is idempotent by session id:
// archiving the same session twice writes one record.
type HistoryStore interface {
	Save(ctx context.Context, snap domain.Snapshot) error
}

// MemoryHistory collects snapshots in memory, for tests and local runs.
type MemoryHistory struct {
	mu        sync.RWMutex
	snapshots map[string]domain.Snapshot
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{snapshots: make(map[string]domain.Snapshot)}
}

func (h *MemoryHistory) Save(_ context.Context, snap domain.Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.snapshots[snap.SessionID]; ok {
		return nil
	}
	h.snapshots[snap.SessionID] = snap
	return nil
}

func (h *MemoryHistory) Get(sessionID string) (domain.Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snap, ok := h.snapshots[sessionID]
	return snap, ok
}

func (h *MemoryHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.snapshots)
}
