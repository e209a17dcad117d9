package archive

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/qrally/internal/domain"
)

// PostgresHistory writes completed sessions to the history database.
type PostgresHistory struct {
	db *pgxpool.Pool
}

func NewPostgresHistory(db *pgxpool.Pool) *PostgresHistory {
	return &PostgresHistory{db: db}
}

func (h *PostgresHistory) Save(ctx context.Context, snap domain.Snapshot) (err error) {
	tx, err := h.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const insSessionStmt = `
INSERT INTO session_history (session_id, quiz_id, host_id, join_code, started_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (session_id) DO NOTHING;`

	tag, err := tx.Exec(ctx, insSessionStmt,
		snap.SessionID, snap.QuizID, snap.HostID, snap.JoinCode, snap.StartedAt, snap.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already archived, keep the first record.
		return tx.Commit(ctx)
	}

	const insPlayerStmt = `
INSERT INTO session_history_players (session_id, player_id, nickname, score, streak, guest, rank)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

	ranks := make(map[string]int, len(snap.FinalStanding))
	for _, e := range snap.FinalStanding {
		ranks[e.PlayerID] = e.Rank
	}
	for _, p := range snap.Players { // TODO: batch insert
		_, err = tx.Exec(ctx, insPlayerStmt,
			snap.SessionID, p.PlayerID, p.Nickname, p.Score, p.Streak, p.Guest, ranks[p.PlayerID])
		if err != nil {
			return fmt.Errorf("insert player: %w", err)
		}
	}

	const insAnswerStmt = `
INSERT INTO session_history_answers (session_id, question_id, player_id, selected, correct, points, response_time_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

	for _, a := range snap.Answers {
		_, err = tx.Exec(ctx, insAnswerStmt,
			snap.SessionID, a.QuestionID, a.PlayerID, a.Selected, a.Correct, a.Points, a.ResponseTime.Milliseconds())
		if err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
	}

	return tx.Commit(ctx)
}
