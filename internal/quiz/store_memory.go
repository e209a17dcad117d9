package quiz

import (
	"context"
	"sync"

	"github.com/victornm/qrally/internal/domain"
	"github.com/victornm/qrally/internal/errors"
)

// MemoryStore serves quiz definitions from memory, for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewMemoryStore(quizzes ...domain.Quiz) *MemoryStore {
	s := &MemoryStore{quizzes: make(map[string]domain.Quiz)}
	for _, q := range quizzes {
		s.quizzes[q.QuizID] = q
	}
	return s
}

func (s *MemoryStore) FindByID(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, errors.New(errors.CodeNotFound,
			errors.WithMessagef("quiz %s not found", quizID))
	}
	return q, nil
}
