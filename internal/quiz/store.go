package quiz

import (
	"context"

	"github.com/victornm/qrally/internal/domain"
)

// Store is the read-only quiz port. The session engine never mutates quiz
// content; authoring lives elsewhere.
type Store interface {
	FindByID(ctx context.Context, quizID string) (domain.Quiz, error)
}
