package domain

// Phase is the session's lifecycle state.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseQuestion Phase = "question"
	PhaseResults  Phase = "results"
	PhaseEnd      Phase = "end"
)

// transitions is the only legal phase graph. Results fans out to either the
// next question or the end of the session.
var transitions = map[Phase][]Phase{
	PhaseLobby:    {PhaseQuestion},
	PhaseQuestion: {PhaseResults},
	PhaseResults:  {PhaseQuestion, PhaseEnd},
	PhaseEnd:      {},
}

func (p Phase) canTransitionTo(next Phase) bool {
	for _, n := range transitions[p] {
		if n == next {
			return true
		}
	}
	return false
}
