package pin

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRegistry is an in-process Registry for tests and single-node runs.
type MemoryRegistry struct {
	mu    sync.Mutex
	codes map[string]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{codes: make(map[string]struct{})}
}

func (r *MemoryRegistry) ListActive(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	codes := make([]string, 0, len(r.codes))
	for c := range r.codes {
		codes = append(codes, c)
	}
	return codes, nil
}

func (r *MemoryRegistry) Reserve(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.codes[code]; ok {
		return fmt.Errorf("code %s: %w", code, ErrCodeTaken)
	}
	r.codes[code] = struct{}{}
	return nil
}

func (r *MemoryRegistry) Release(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.codes, code)
	return nil
}
