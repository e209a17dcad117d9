package domain

const (
	EventNameLobbyUpdated    = "lobby.updated"
	EventNameQuestionStarted = "question.started"
	EventNameResultsReady    = "results.ready"
	EventNameSessionEnded    = "session.ended"
)

type EventLobbyUpdated struct {
	JoinCode string
	Lobby    LobbyView
}

func (EventLobbyUpdated) Name() string { return EventNameLobbyUpdated }

type EventQuestionStarted struct {
	JoinCode string
	Question QuestionView
}

func (EventQuestionStarted) Name() string { return EventNameQuestionStarted }

type EventResultsReady struct {
	JoinCode string
	Results  ResultsView
}

func (EventResultsReady) Name() string { return EventNameResultsReady }

type EventSessionEnded struct {
	JoinCode string
	Recap    EndView
	Players  []PlayerRecap
}

func (EventSessionEnded) Name() string { return EventNameSessionEnded }
