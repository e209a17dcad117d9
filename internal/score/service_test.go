package score_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/qrally/internal/domain"
	"github.com/victornm/qrally/internal/score"
)

func singleChoice() domain.Question {
	return domain.Question{
		QuestionID:     "q1",
		Type:           domain.QuestionTypeSingle,
		Options:        options(4),
		CorrectIndices: []int{2},
		BasePoints:     1000,
		TimeLimit:      20 * time.Second,
	}
}

func multiChoice() domain.Question {
	return domain.Question{
		QuestionID:     "q2",
		Type:           domain.QuestionTypeMulti,
		Options:        options(5),
		CorrectIndices: []int{0, 2, 3},
		BasePoints:     1000,
		TimeLimit:      20 * time.Second,
	}
}

func options(n int) []domain.Option {
	out := make([]domain.Option, n)
	for i := range out {
		out[i] = domain.Option{OptionID: string(rune('a' + i))}
	}
	return out
}

func TestService_Evaluate_Correctness(t *testing.T) {
	tests := map[string]struct {
		question domain.Question
		selected []int
		want     bool
	}{
		"single: correct option selected": {
			question: singleChoice(),
			selected: []int{2},
			want:     true,
		},
		"single: wrong option selected": {
			question: singleChoice(),
			selected: []int{1},
			want:     false,
		},
		"single: more than one option selected": {
			question: singleChoice(),
			selected: []int{1, 2},
			want:     false,
		},
		"single: no selection": {
			question: singleChoice(),
			selected: nil,
			want:     false,
		},
		"multi: exact set, any order": {
			question: multiChoice(),
			selected: []int{3, 0, 2},
			want:     true,
		},
		"multi: subset is incorrect": {
			question: multiChoice(),
			selected: []int{0, 2},
			want:     false,
		},
		"multi: superset is incorrect": {
			question: multiChoice(),
			selected: []int{0, 1, 2, 3},
			want:     false,
		},
		"multi: disjoint set is incorrect": {
			question: multiChoice(),
			selected: []int{1, 4},
			want:     false,
		},
		"multi: duplicated indices do not fake the full set": {
			question: multiChoice(),
			selected: []int{0, 0, 2},
			want:     false,
		},
		"multi: no selection": {
			question: multiChoice(),
			selected: []int{},
			want:     false,
		},
	}

	s := score.NewService()

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			resp := s.Evaluate(score.EvaluateRequest{
				Question:     tt.question,
				Selected:     tt.selected,
				ResponseTime: time.Second,
			})
			assert.Equal(t, tt.want, resp.Correct)
			if !tt.want {
				assert.Zero(t, resp.Points, "incorrect answers never earn points")
			}
		})
	}
}

func TestService_Evaluate_Points(t *testing.T) {
	tests := map[string]struct {
		responseTime time.Duration
		want         int
	}{
		// 1000 * (1 + (15/20)^1.5 * 0.8) rounded to tens.
		"answer at 5s of 20s": {
			responseTime: 5 * time.Second,
			want:         1520,
		},
		"instant answer earns the full bonus": {
			responseTime: 0,
			want:         1800,
		},
		"answer exactly at the limit earns base points": {
			responseTime: 20 * time.Second,
			want:         1000,
		},
		"late answer clamps to base points": {
			responseTime: 45 * time.Second,
			want:         1000,
		},
	}

	s := score.NewService()

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			resp := s.Evaluate(score.EvaluateRequest{
				Question:     singleChoice(),
				Selected:     []int{2},
				ResponseTime: tt.responseTime,
			})
			assert.True(t, resp.Correct)
			assert.Equal(t, tt.want, resp.Points)
		})
	}
}

func TestService_Evaluate_Deterministic(t *testing.T) {
	s := score.NewService()

	req := score.EvaluateRequest{
		Question:     multiChoice(),
		Selected:     []int{0, 2, 3},
		ResponseTime: 7 * time.Second,
	}

	first := s.Evaluate(req)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Evaluate(req))
	}
}
