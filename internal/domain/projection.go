package domain

import "time"

// Read projections produced by the aggregate. These are the only views of a
// session's internals handed to callers; none of them alias aggregate state.

type LobbyView struct {
	Players []LobbyPlayer
	Count   int
}

type LobbyPlayer struct {
	PlayerID string
	Nickname string
	Guest    bool
}

// QuestionView is the player-facing question payload. It never carries
// correctness flags.
type QuestionView struct {
	QuestionID string
	Position   int
	Total      int
	Type       QuestionType
	Prompt     string
	TimeLimit  time.Duration
	Options    []Option
}

type ResultsView struct {
	QuestionID         string
	CorrectOptionIDs   []string
	Leaderboard        []LeaderboardEntry
	AnswerDistribution map[int]int
	Progress           ProgressView
}

type ProgressView struct {
	CurrentQuestionID  string
	PreviousQuestionID string
	TotalQuestions     int
	AnsweredCount      int
}

type EndView struct {
	Podium            []LeaderboardEntry
	Winner            LeaderboardEntry
	TotalParticipants int
}

// PlayerRecap is the per-player variant of the end payload.
type PlayerRecap struct {
	PlayerID    string
	Rank        int
	TotalScore  int
	IsPodium    bool
	IsWinner    bool
	FinalStreak int
}

// Snapshot is the full session state handed to the history archiver once
// completion invariants have been validated.
type Snapshot struct {
	SessionID     string
	HostID        string
	QuizID        string
	JoinCode      string
	StartedAt     time.Time
	CompletedAt   time.Time
	Players       []Player
	Answers       []AnswerRecord
	FinalStanding []LeaderboardEntry
}
