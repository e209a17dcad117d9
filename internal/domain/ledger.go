package domain

import "time"

// AnswerRecord is a player's answer to one question. Immutable once recorded;
// at most one exists per (player, question).
type AnswerRecord struct {
	PlayerID     string
	QuestionID   string
	Selected     []int
	Correct      bool
	Points       int
	ResponseTime time.Duration
}

// answerLedger stores answer records per question. A question's bucket is
// opened when its phase begins; submissions against an unopened question are
// rejected.
type answerLedger struct {
	byQuestion map[string]map[string]AnswerRecord
}

func newAnswerLedger() answerLedger {
	return answerLedger{byQuestion: make(map[string]map[string]AnswerRecord)}
}

func (l answerLedger) open(questionID string) {
	if _, ok := l.byQuestion[questionID]; !ok {
		l.byQuestion[questionID] = make(map[string]AnswerRecord)
	}
}

func (l answerLedger) isOpen(questionID string) bool {
	_, ok := l.byQuestion[questionID]
	return ok
}

func (l answerLedger) record(questionID string, r AnswerRecord) bool {
	q, ok := l.byQuestion[questionID]
	if !ok {
		return false
	}
	if _, dup := q[r.PlayerID]; dup {
		return false
	}
	q[r.PlayerID] = r
	return true
}

func (l answerLedger) has(questionID, playerID string) bool {
	_, ok := l.byQuestion[questionID][playerID]
	return ok
}

func (l answerLedger) forQuestion(questionID string) []AnswerRecord {
	q := l.byQuestion[questionID]
	records := make([]AnswerRecord, 0, len(q))
	for _, r := range q {
		records = append(records, r)
	}
	return records
}

func (l answerLedger) all() []AnswerRecord {
	var records []AnswerRecord
	for _, q := range l.byQuestion {
		for _, r := range q {
			records = append(records, r)
		}
	}
	return records
}

// pointsByPlayer sums earned points per player across every recorded answer,
// used to cross-check cumulative scores at archive time.
func (l answerLedger) pointsByPlayer() map[string]int {
	totals := make(map[string]int)
	for _, q := range l.byQuestion {
		for id, r := range q {
			totals[id] += r.Points
		}
	}
	return totals
}

// distribution counts, per selected option index, how many players picked it
// for the given question.
func (l answerLedger) distribution(questionID string) map[int]int {
	dist := make(map[int]int)
	for _, r := range l.byQuestion[questionID] {
		for _, i := range r.Selected {
			dist[i]++
		}
	}
	return dist
}
