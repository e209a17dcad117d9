package domain

import "time"

// QuestionType distinguishes how a question's answer is judged.
type QuestionType string

const (
	// QuestionTypeSingle is correct iff the one selected option is the correct one.
	QuestionTypeSingle QuestionType = "single"
	// QuestionTypeMulti is correct iff the selected set equals the correct set exactly.
	QuestionTypeMulti QuestionType = "multi"
)

// Quiz is an immutable quiz definition. The session engine only reads it.
type Quiz struct {
	QuizID    string
	Title     string
	Questions []Question
}

type Question struct {
	QuestionID     string
	Prompt         string
	Type           QuestionType
	Options        []Option
	CorrectIndices []int
	BasePoints     int
	TimeLimit      time.Duration
}

type Option struct {
	OptionID   string
	OptionText string
}

// CorrectOptionIDs resolves the correct index set to option ids for the
// results projection.
func (q Question) CorrectOptionIDs() []string {
	ids := make([]string, 0, len(q.CorrectIndices))
	for _, i := range q.CorrectIndices {
		if i >= 0 && i < len(q.Options) {
			ids = append(ids, q.Options[i].OptionID)
		}
	}
	return ids
}
