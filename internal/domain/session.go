package domain

import (
	"sync"
	"time"

	"github.com/victornm/qrally/internal/errors"
)

const podiumSize = 3

// Session is the live multiplayer session aggregate. It owns the roster, the
// answer ledger, the question cursor and the leaderboard; callers interact
// only through commands and read projections, never through the entities
// themselves.
//
// Every exported method takes the session's own lock, so commands on one
// session are serialized while distinct sessions proceed in parallel.
type Session struct {
	mu sync.Mutex

	sessionID string
	hostID    string
	joinCode  string
	quiz      Quiz

	phase             Phase
	startedAt         time.Time
	completedAt       time.Time
	questionStartedAt time.Time
	lastActivity      time.Time

	cursor    int
	players   map[string]*Player
	joinOrder []string
	ledger    answerLedger
	prog      progress
	board     leaderboard
}

type SessionConfig struct {
	SessionID string
	HostID    string
	JoinCode  string
	Quiz      Quiz
	Now       time.Time
}

// NewSession creates a session in the Lobby phase with an empty roster and
// the progress cursor seeded at the quiz's first question.
func NewSession(c SessionConfig) (*Session, error) {
	if len(c.Quiz.Questions) == 0 {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("quiz %s has no questions", c.Quiz.QuizID))
	}

	return &Session{
		sessionID:    c.SessionID,
		hostID:       c.HostID,
		joinCode:     c.JoinCode,
		quiz:         c.Quiz,
		phase:        PhaseLobby,
		lastActivity: c.Now,
		players:      make(map[string]*Player),
		ledger:       newAnswerLedger(),
		prog:         newProgress(c.Quiz.Questions[0].QuestionID, len(c.Quiz.Questions)),
	}, nil
}

func (s *Session) ID() string {
	return s.sessionID
}

func (s *Session) HostID() string {
	return s.hostID
}

func (s *Session) JoinCode() string {
	return s.joinCode
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// LastActivity is read by the directory sweep under this session's lock so
// eviction cannot race an in-flight command.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Join adds a player to the roster. The host can never join its own session.
// Re-joining under an id already present while still in Lobby replaces the
// old registration with a fresh one.
func (s *Session) Join(p Player, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.PlayerID == s.hostID {
		return errors.New(errors.CodePermissionDenied,
			errors.WithMessagef("host cannot join session %s as a player", s.joinCode))
	}
	if s.phase != PhaseLobby {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session %s already started", s.joinCode))
	}

	if _, ok := s.players[p.PlayerID]; ok {
		s.dropPlayer(p.PlayerID)
	}

	s.players[p.PlayerID] = &Player{
		PlayerID: p.PlayerID,
		Nickname: p.Nickname,
		Guest:    p.Guest,
	}
	s.joinOrder = append(s.joinOrder, p.PlayerID)
	s.lastActivity = now
	return nil
}

// Leave removes a player from the roster. Only allowed while in Lobby.
func (s *Session) Leave(playerID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseLobby {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("cannot leave session %s after it started", s.joinCode))
	}
	if _, ok := s.players[playerID]; !ok {
		return errors.New(errors.CodeNotFound,
			errors.WithMessagef("player %s not in session %s", playerID, s.joinCode))
	}

	s.dropPlayer(playerID)
	s.lastActivity = now
	return nil
}

func (s *Session) dropPlayer(playerID string) {
	delete(s.players, playerID)
	for i, id := range s.joinOrder {
		if id == playerID {
			s.joinOrder = append(s.joinOrder[:i], s.joinOrder[i+1:]...)
			break
		}
	}
}

// Start moves the session from Lobby to the first Question. Host-only.
func (s *Session) Start(callerID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if callerID != s.hostID {
		return errors.New(errors.CodePermissionDenied,
			errors.WithMessagef("only the host can start session %s", s.joinCode))
	}
	if s.phase != PhaseLobby || !s.phase.canTransitionTo(PhaseQuestion) {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("cannot start session %s in phase %s", s.joinCode, s.phase))
	}
	if len(s.players) == 0 {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session %s has no players", s.joinCode))
	}
	if s.cursor != 0 {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session %s progress is not at the first question", s.joinCode))
	}

	s.phase = PhaseQuestion
	s.startedAt = now
	s.questionStartedAt = now
	s.ledger.open(s.currentQuestion().QuestionID)
	s.lastActivity = now
	return nil
}

// OpenQuestion returns the question currently accepting answers and the time
// its phase began. Used by the caller to evaluate submissions; the
// player-facing payload is CurrentQuestion.
func (s *Session) OpenQuestion() (Question, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseQuestion {
		return Question{}, time.Time{}, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session %s has no open question in phase %s", s.joinCode, s.phase))
	}
	return s.currentQuestion(), s.questionStartedAt, nil
}

// RecordAnswer stores a player's answer for the open question. A second
// submission from the same player is rejected without touching the first.
// Submissions are accepted for as long as the phase is Question; the
// client-visible countdown is advisory only.
func (s *Session) RecordAnswer(questionID string, r AnswerRecord, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseQuestion {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session %s is not accepting answers in phase %s", s.joinCode, s.phase))
	}
	if _, ok := s.players[r.PlayerID]; !ok {
		return errors.New(errors.CodeNotFound,
			errors.WithMessagef("player %s not in session %s", r.PlayerID, s.joinCode))
	}
	if questionID != s.prog.current || !s.ledger.isOpen(questionID) {
		return errors.New(errors.CodeNotFound,
			errors.WithMessagef("question %s is not open in session %s", questionID, s.joinCode))
	}
	if s.ledger.has(questionID, r.PlayerID) {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("player %s already answered question %s", r.PlayerID, questionID))
	}

	r.QuestionID = questionID
	s.ledger.record(questionID, r)
	s.lastActivity = now
	return nil
}

// AdvancePhase moves Question->Results, or Results->Question/End depending on
// remaining questions. Host-only. The Question->Results transition tallies
// scores and recomputes the leaderboard before returning.
func (s *Session) AdvancePhase(callerID string, now time.Time) (Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if callerID != s.hostID {
		return s.phase, errors.New(errors.CodePermissionDenied,
			errors.WithMessagef("only the host can advance session %s", s.joinCode))
	}

	switch s.phase {
	case PhaseQuestion:
		s.tallyAndRank()
		s.phase = PhaseResults

	case PhaseResults:
		if s.cursor+1 < len(s.quiz.Questions) {
			s.cursor++
			next := s.currentQuestion()
			s.ledger.open(next.QuestionID)
			s.prog.advance(next.QuestionID)
			s.questionStartedAt = now
			s.phase = PhaseQuestion
		} else {
			s.prog.finish()
			s.completedAt = now
			s.phase = PhaseEnd
		}

	default:
		return s.phase, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("cannot advance session %s from phase %s", s.joinCode, s.phase))
	}

	s.lastActivity = now
	return s.phase, nil
}

// tallyAndRank applies every answer for the just-finished question to player
// scores and streaks, then recomputes the leaderboard. Runs with the session
// lock held, exactly once per Question->Results transition.
func (s *Session) tallyAndRank() {
	questionID := s.prog.current
	records := make(map[string]AnswerRecord)
	for _, r := range s.ledger.forQuestion(questionID) {
		records[r.PlayerID] = r
	}

	for id, p := range s.players {
		r, answered := records[id]
		if answered {
			p.Score += r.Points
		}
		if answered && r.Correct {
			p.Streak++
		} else {
			p.Streak = 0
		}
	}

	s.board.recompute(s.roster())
}

// roster returns the players in join order. Lock must be held.
func (s *Session) roster() []Player {
	players := make([]Player, 0, len(s.players))
	for _, id := range s.joinOrder {
		players = append(players, *s.players[id])
	}
	return players
}

func (s *Session) currentQuestion() Question {
	return s.quiz.Questions[s.cursor]
}

// ValidateCompletion re-checks the completion invariants. A failure is fatal
// for the archive attempt; the session itself stays live.
func (s *Session) ValidateCompletion() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fail := func(format string, args ...any) error {
		return errors.New(errors.CodeInternal, errors.WithMessagef(format, args...))
	}

	if _, ok := s.players[s.hostID]; ok {
		return fail("session %s: host %s found in roster", s.joinCode, s.hostID)
	}
	if len(s.players) == 0 {
		return fail("session %s: empty roster", s.joinCode)
	}
	if s.phase != PhaseEnd {
		return fail("session %s: phase %s is not %s", s.joinCode, s.phase, PhaseEnd)
	}
	if s.startedAt.IsZero() {
		return fail("session %s: started-at not set", s.joinCode)
	}
	if s.completedAt.IsZero() {
		return fail("session %s: completed-at not set", s.joinCode)
	}
	if !s.prog.complete() {
		return fail("session %s: %d of %d questions answered", s.joinCode, s.prog.answered, s.prog.total)
	}

	totals := s.ledger.pointsByPlayer()
	for id, p := range s.players {
		if totals[id] != p.Score {
			return fail("session %s: player %s score %d does not match recorded points %d",
				s.joinCode, id, p.Score, totals[id])
		}
	}

	return nil
}

// Snapshot copies the full session state for archiving.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		SessionID:     s.sessionID,
		HostID:        s.hostID,
		QuizID:        s.quiz.QuizID,
		JoinCode:      s.joinCode,
		StartedAt:     s.startedAt,
		CompletedAt:   s.completedAt,
		Players:       s.roster(),
		Answers:       s.ledger.all(),
		FinalStanding: s.board.top(0),
	}
}

// Lobby projects the current roster.
func (s *Session) Lobby() LobbyView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := LobbyView{Players: make([]LobbyPlayer, 0, len(s.joinOrder))}
	for _, p := range s.roster() {
		v.Players = append(v.Players, LobbyPlayer{
			PlayerID: p.PlayerID,
			Nickname: p.Nickname,
			Guest:    p.Guest,
		})
	}
	v.Count = len(v.Players)
	return v
}

// CurrentQuestion projects the open question without correctness flags.
func (s *Session) CurrentQuestion() (QuestionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseQuestion {
		return QuestionView{}, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session %s has no open question in phase %s", s.joinCode, s.phase))
	}

	q := s.currentQuestion()
	options := make([]Option, len(q.Options))
	copy(options, q.Options)

	return QuestionView{
		QuestionID: q.QuestionID,
		Position:   s.cursor + 1,
		Total:      len(s.quiz.Questions),
		Type:       q.Type,
		Prompt:     q.Prompt,
		TimeLimit:  q.TimeLimit,
		Options:    options,
	}, nil
}

// Results projects the just-finished question's outcome: correct options,
// top standings, answer distribution and progress.
func (s *Session) Results(topK int) (ResultsView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseResults {
		return ResultsView{}, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session %s has no results in phase %s", s.joinCode, s.phase))
	}

	q := s.currentQuestion()
	return ResultsView{
		QuestionID:         q.QuestionID,
		CorrectOptionIDs:   q.CorrectOptionIDs(),
		Leaderboard:        s.board.top(topK),
		AnswerDistribution: s.ledger.distribution(q.QuestionID),
		Progress:           s.prog.view(),
	}, nil
}

// Recap projects the end-of-session podium.
func (s *Session) Recap() (EndView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseEnd {
		return EndView{}, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session %s has not ended, phase is %s", s.joinCode, s.phase))
	}

	v := EndView{
		Podium:            s.board.top(podiumSize),
		TotalParticipants: len(s.players),
	}
	if len(v.Podium) > 0 {
		v.Winner = v.Podium[0]
	}
	return v, nil
}

// PlayerRecap projects one player's final standing.
func (s *Session) PlayerRecap(playerID string) (PlayerRecap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseEnd {
		return PlayerRecap{}, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session %s has not ended, phase is %s", s.joinCode, s.phase))
	}

	e, ok := s.board.entry(playerID)
	if !ok {
		return PlayerRecap{}, errors.New(errors.CodeNotFound,
			errors.WithMessagef("player %s not in session %s", playerID, s.joinCode))
	}

	return PlayerRecap{
		PlayerID:    e.PlayerID,
		Rank:        e.Rank,
		TotalScore:  e.Score,
		IsPodium:    e.Rank <= podiumSize,
		IsWinner:    e.Rank == 1,
		FinalStreak: s.players[e.PlayerID].Streak,
	}, nil
}
