package score

import (
	"math"
	"time"

	"github.com/victornm/qrally/internal/domain"
)

const (
	// speedWeight caps how much of the base points fast answers can add.
	speedWeight = 0.8
	// speedCurve makes the bonus fall off faster than linearly.
	speedCurve = 1.5
	// pointsStep rounds earned points to friendly multiples.
	pointsStep = 10
)

// Service evaluates answers. It holds no state; the same inputs always yield
// the same result.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

type EvaluateRequest struct {
	Question     domain.Question
	Selected     []int
	ResponseTime time.Duration
}

type EvaluateResponse struct {
	Correct bool
	Points  int
}

// Evaluate judges a submission against the question's correct index set and
// scores it by response time. Incorrect answers always earn 0 regardless of
// timing.
func (s *Service) Evaluate(req EvaluateRequest) EvaluateResponse {
	if !isCorrect(req.Question, req.Selected) {
		return EvaluateResponse{Correct: false}
	}

	return EvaluateResponse{
		Correct: true,
		Points:  points(req.Question, req.ResponseTime),
	}
}

func isCorrect(q domain.Question, selected []int) bool {
	if len(selected) == 0 {
		return false
	}

	switch q.Type {
	case domain.QuestionTypeSingle:
		return len(selected) == 1 && contains(q.CorrectIndices, selected[0])

	case domain.QuestionTypeMulti:
		// The selected set must equal the correct set exactly, order aside.
		if len(unique(selected)) != len(q.CorrectIndices) {
			return false
		}
		for _, i := range selected {
			if !contains(q.CorrectIndices, i) {
				return false
			}
		}
		return true
	}

	return false
}

// points scores a correct answer: the faster the response relative to the
// question's time limit, the closer the multiplier gets to 1+speedWeight.
// Responses past the limit clamp to the base multiplier of 1.
func points(q domain.Question, responseTime time.Duration) int {
	limit := q.TimeLimit.Seconds()
	if limit <= 0 {
		return roundToStep(float64(q.BasePoints))
	}

	ratio := (limit - responseTime.Seconds()) / limit
	ratio = math.Max(0, math.Min(1, ratio))

	multiplier := 1 + math.Pow(ratio, speedCurve)*speedWeight
	return roundToStep(float64(q.BasePoints) * multiplier)
}

func roundToStep(points float64) int {
	return int(math.Round(points/pointsStep)) * pointsStep
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func unique(xs []int) []int {
	seen := make(map[int]struct{}, len(xs))
	out := xs[:0:0]
	for _, x := range xs {
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	return out
}
