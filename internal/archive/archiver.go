package archive

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/victornm/qrally/internal/directory"
	"github.com/victornm/qrally/internal/domain"
	"github.com/victornm/qrally/internal/pin"
)

type Config struct {
	History   HistoryStore
	Directory *directory.Directory
	Pins      *pin.Allocator
}

// Archiver moves completed sessions from the live directory into durable
// history. Validation failures and persistence errors both leave the session
// live and addressable; only a successful archive evicts it.
type Archiver struct {
	history HistoryStore
	dir     *directory.Directory
	pins    *pin.Allocator
}

func NewArchiver(c Config) *Archiver {
	return &Archiver{
		history: c.History,
		dir:     c.Directory,
		pins:    c.Pins,
	}
}

func (a *Archiver) Archive(ctx context.Context, s *domain.Session) error {
	if err := s.ValidateCompletion(); err != nil {
		return fmt.Errorf("archive: validate completion: %w", err)
	}

	snap := s.Snapshot()
	if err := a.history.Save(ctx, snap); err != nil {
		return fmt.Errorf("archive: save history: %w", err)
	}

	a.dir.Remove(snap.JoinCode)

	if a.pins != nil {
		if err := a.pins.Release(ctx, snap.JoinCode); err != nil {
			// The session is archived either way; a leaked code ages out of
			// the registry operationally.
			slog.ErrorContext(ctx, "archive: release join code failed",
				"join_code", snap.JoinCode,
				"error", err,
			)
		}
	}

	slog.InfoContext(ctx, "archive: session archived",
		"session_id", snap.SessionID,
		"join_code", snap.JoinCode,
		"players", len(snap.Players),
	)
	return nil
}
