package domain

// progress is the question cursor. It holds identifiers only; the aggregate
// reads question content from the quiz definition.
type progress struct {
	current  string
	previous string
	total    int
	answered int
}

func newProgress(first string, total int) progress {
	return progress{current: first, total: total}
}

// advance moves the cursor to the next question id. answered only increases.
func (p *progress) advance(next string) {
	p.previous = p.current
	p.current = next
	p.answered++
}

// finish counts the last question as answered when the session ends; there is
// no next id to advance to.
func (p *progress) finish() {
	p.previous = p.current
	p.answered++
}

func (p progress) complete() bool {
	return p.answered == p.total
}

func (p progress) view() ProgressView {
	return ProgressView{
		CurrentQuestionID:  p.current,
		PreviousQuestionID: p.previous,
		TotalQuestions:     p.total,
		AnsweredCount:      p.answered,
	}
}
