package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/qrally/internal/domain"
	"github.com/victornm/qrally/internal/errors"
)

// PostgresStore reads quiz definitions from the authoring database.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByID(ctx context.Context, quizID string) (domain.Quiz, error) {
	const quizStmt = `SELECT quiz_id, title FROM quizzes WHERE quiz_id = $1;`

	var q domain.Quiz
	err := s.db.QueryRow(ctx, quizStmt, quizID).Scan(&q.QuizID, &q.Title)
	if err == pgx.ErrNoRows {
		return domain.Quiz{}, errors.New(errors.CodeNotFound,
			errors.WithMessagef("quiz %s not found", quizID))
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("select quiz: %w", err)
	}

	questions, err := s.listQuestions(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	q.Questions = questions

	return q, nil
}

func (s *PostgresStore) listQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	const questionStmt = `
SELECT question_id, prompt, question_type, base_points, time_limit_seconds
FROM questions
WHERE quiz_id = $1
ORDER BY position;`

	rows, err := s.db.Query(ctx, questionStmt, quizID)
	if err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}

	questions, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Question, error) {
		var (
			q       domain.Question
			seconds int
		)
		if err := r.Scan(&q.QuestionID, &q.Prompt, &q.Type, &q.BasePoints, &seconds); err != nil {
			return domain.Question{}, err
		}
		q.TimeLimit = time.Duration(seconds) * time.Second
		return q, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect questions: %w", err)
	}

	for i := range questions {
		options, correct, err := s.listOptions(ctx, questions[i].QuestionID)
		if err != nil {
			return nil, err
		}
		questions[i].Options = options
		questions[i].CorrectIndices = correct
	}

	return questions, nil
}

func (s *PostgresStore) listOptions(ctx context.Context, questionID string) ([]domain.Option, []int, error) {
	const optionStmt = `
SELECT option_id, option_text, is_correct
FROM options
WHERE question_id = $1
ORDER BY position;`

	rows, err := s.db.Query(ctx, optionStmt, questionID)
	if err != nil {
		return nil, nil, fmt.Errorf("select options: %w", err)
	}

	defer rows.Close()

	var (
		options []domain.Option
		correct []int
	)
	for rows.Next() {
		var (
			o  domain.Option
			ok bool
		)
		if err := rows.Scan(&o.OptionID, &o.OptionText, &ok); err != nil {
			return nil, nil, fmt.Errorf("scan option: %w", err)
		}
		if ok {
			correct = append(correct, len(options))
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate options: %w", err)
	}

	return options, correct, nil
}
