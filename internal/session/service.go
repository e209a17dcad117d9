package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/victornm/qrally/internal/archive"
	"github.com/victornm/qrally/internal/directory"
	"github.com/victornm/qrally/internal/domain"
	"github.com/victornm/qrally/internal/errors"
	"github.com/victornm/qrally/internal/event"
	"github.com/victornm/qrally/internal/metrics"
	"github.com/victornm/qrally/internal/pin"
	"github.com/victornm/qrally/internal/quiz"
	"github.com/victornm/qrally/internal/score"
)

const resultsTopK = 10

type Config struct {
	Directory *directory.Directory
	Quiz      quiz.Store
	Score     *score.Service
	Pins      *pin.Allocator
	Archiver  *archive.Archiver
	EventBus  *event.Bus
	Metrics   *metrics.Metrics

	// NewSessionID defaults to time-ordered UUIDs.
	NewSessionID func() (string, error)
	// Now defaults to time.Now, injectable for deterministic tests.
	Now func() time.Time
}

// Service drives live sessions end to end: creation, joining, the phase
// cycle and archiving. All per-session state lives in the aggregate; the
// service resolves sessions through the directory and composes the ports.
type Service struct {
	dir      *directory.Directory
	quiz     quiz.Store
	score    *score.Service
	pins     *pin.Allocator
	archiver *archive.Archiver
	eb       *event.Bus
	metrics  *metrics.Metrics

	newSessionID func() (string, error)
	now          func() time.Time
}

func NewService(c Config) *Service {
	if c.NewSessionID == nil {
		c.NewSessionID = func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Metrics == nil {
		c.Metrics = metrics.New(prometheus.NewRegistry())
	}

	return &Service{
		dir:          c.Directory,
		quiz:         c.Quiz,
		score:        c.Score,
		pins:         c.Pins,
		archiver:     c.Archiver,
		eb:           c.EventBus,
		metrics:      c.Metrics,
		newSessionID: c.NewSessionID,
		now:          c.Now,
	}
}

type CreateSessionRequest struct {
	// HostID is the id of the host driving the session.
	HostID string
	// QuizID references the immutable quiz definition to play.
	QuizID string
}

type CreateSessionResponse struct {
	SessionID string
	JoinCode  string
	// JoinToken is a time-limited token resolving to the join code, meant
	// for QR embedding.
	JoinToken string
}

// CreateSession allocates a join code, reads the quiz and registers a fresh
// session in the Lobby phase.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResponse, error) {
	code, err := s.pins.Allocate(ctx)
	if err != nil {
		return nil, err
	}

	q, err := s.quiz.FindByID(ctx, req.QuizID)
	if err != nil {
		s.releasePin(ctx, code)
		return nil, err
	}

	id, err := s.newSessionID()
	if err != nil {
		s.releasePin(ctx, code)
		return nil, errors.Internal(err)
	}

	now := s.now()
	ss, err := domain.NewSession(domain.SessionConfig{
		SessionID: id,
		HostID:    req.HostID,
		JoinCode:  code,
		Quiz:      q,
		Now:       now,
	})
	if err != nil {
		s.releasePin(ctx, code)
		return nil, err
	}

	token, err := s.dir.Save(ss, now)
	if err != nil {
		s.releasePin(ctx, code)
		return nil, err
	}

	s.metrics.SessionsActive.Inc()
	slog.InfoContext(ctx, "session: created",
		"session_id", id,
		"join_code", code,
		"quiz_id", req.QuizID,
	)

	return &CreateSessionResponse{
		SessionID: id,
		JoinCode:  code,
		JoinToken: token,
	}, nil
}

func (s *Service) releasePin(ctx context.Context, code string) {
	if err := s.pins.Release(ctx, code); err != nil {
		slog.ErrorContext(ctx, "session: release join code failed",
			"join_code", code,
			"error", err,
		)
	}
}

type ResolveTokenRequest struct {
	JoinToken string
}

type ResolveTokenResponse struct {
	JoinCode string
}

// ResolveToken exchanges a join token for the session's join code.
func (s *Service) ResolveToken(_ context.Context, req ResolveTokenRequest) (*ResolveTokenResponse, error) {
	ss, err := s.dir.FindByToken(req.JoinToken, s.now())
	if err != nil {
		return nil, err
	}
	return &ResolveTokenResponse{JoinCode: ss.JoinCode()}, nil
}

type JoinSessionRequest struct {
	JoinCode string
	PlayerID string
	Nickname string
	Guest    bool
}

type JoinSessionResponse struct {
	PlayerID string
	Lobby    domain.LobbyView
}

// JoinSession adds a player to a lobby. A blank player id gets a generated
// one; rejoining under an existing id replaces the old registration.
func (s *Service) JoinSession(ctx context.Context, req JoinSessionRequest) (*JoinSessionResponse, error) {
	ss, err := s.dir.FindByCode(req.JoinCode)
	if err != nil {
		return nil, err
	}

	playerID := req.PlayerID
	if playerID == "" {
		playerID = uuid.NewString()
	}

	err = ss.Join(domain.Player{
		PlayerID: playerID,
		Nickname: req.Nickname,
		Guest:    req.Guest,
	}, s.now())
	if err != nil {
		return nil, err
	}

	lobby := ss.Lobby()
	s.eb.Publish(ctx, domain.EventLobbyUpdated{
		JoinCode: req.JoinCode,
		Lobby:    lobby,
	})

	return &JoinSessionResponse{PlayerID: playerID, Lobby: lobby}, nil
}

type LeaveSessionRequest struct {
	JoinCode string
	PlayerID string
}

type LeaveSessionResponse struct {
	Lobby domain.LobbyView
}

func (s *Service) LeaveSession(ctx context.Context, req LeaveSessionRequest) (*LeaveSessionResponse, error) {
	ss, err := s.dir.FindByCode(req.JoinCode)
	if err != nil {
		return nil, err
	}

	if err := ss.Leave(req.PlayerID, s.now()); err != nil {
		return nil, err
	}

	lobby := ss.Lobby()
	s.eb.Publish(ctx, domain.EventLobbyUpdated{
		JoinCode: req.JoinCode,
		Lobby:    lobby,
	})

	return &LeaveSessionResponse{Lobby: lobby}, nil
}

type StartSessionRequest struct {
	JoinCode string
	HostID   string
}

type StartSessionResponse struct {
	Question domain.QuestionView
}

// StartSession moves the lobby into the first question. Host-only.
func (s *Service) StartSession(ctx context.Context, req StartSessionRequest) (*StartSessionResponse, error) {
	ss, err := s.dir.FindByCode(req.JoinCode)
	if err != nil {
		return nil, err
	}

	if err := ss.Start(req.HostID, s.now()); err != nil {
		return nil, err
	}

	question, err := ss.CurrentQuestion()
	if err != nil {
		return nil, err
	}

	s.eb.Publish(ctx, domain.EventQuestionStarted{
		JoinCode: req.JoinCode,
		Question: question,
	})

	return &StartSessionResponse{Question: question}, nil
}

type SubmitAnswerRequest struct {
	JoinCode   string
	PlayerID   string
	QuestionID string
	Selected   []int
}

// SubmitAnswerResponse is intentionally empty: correctness and points are
// only revealed with the results projection.
type SubmitAnswerResponse struct{}

// SubmitAnswer evaluates and records a player's answer for the open question.
// Response time is measured from the question's start stamp; submissions are
// accepted for as long as the phase is Question.
func (s *Service) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (*SubmitAnswerResponse, error) {
	ss, err := s.dir.FindByCode(req.JoinCode)
	if err != nil {
		return nil, err
	}

	q, startedAt, err := ss.OpenQuestion()
	if err != nil {
		return nil, err
	}
	if q.QuestionID != req.QuestionID {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("question %s is not open in session %s", req.QuestionID, req.JoinCode))
	}

	now := s.now()
	responseTime := now.Sub(startedAt)
	eval := s.score.Evaluate(score.EvaluateRequest{
		Question:     q,
		Selected:     req.Selected,
		ResponseTime: responseTime,
	})

	err = ss.RecordAnswer(req.QuestionID, domain.AnswerRecord{
		PlayerID:     req.PlayerID,
		QuestionID:   req.QuestionID,
		Selected:     req.Selected,
		Correct:      eval.Correct,
		Points:       eval.Points,
		ResponseTime: responseTime,
	}, now)
	if err != nil {
		return nil, err
	}

	s.metrics.AnswersTotal.Inc()
	return &SubmitAnswerResponse{}, nil
}

type AdvancePhaseRequest struct {
	JoinCode string
	HostID   string
}

type AdvancePhaseResponse struct {
	Phase domain.Phase
}

// AdvancePhase cycles Question->Results->(Question|End). The tally runs
// inside the Question->Results transition; reaching End publishes the final
// recap and hands the session to the archiver.
func (s *Service) AdvancePhase(ctx context.Context, req AdvancePhaseRequest) (*AdvancePhaseResponse, error) {
	ss, err := s.dir.FindByCode(req.JoinCode)
	if err != nil {
		return nil, err
	}

	phase, err := ss.AdvancePhase(req.HostID, s.now())
	if err != nil {
		return nil, err
	}

	switch phase {
	case domain.PhaseResults:
		results, err := ss.Results(resultsTopK)
		if err != nil {
			return nil, err
		}
		s.eb.Publish(ctx, domain.EventResultsReady{
			JoinCode: req.JoinCode,
			Results:  results,
		})

	case domain.PhaseQuestion:
		question, err := ss.CurrentQuestion()
		if err != nil {
			return nil, err
		}
		s.eb.Publish(ctx, domain.EventQuestionStarted{
			JoinCode: req.JoinCode,
			Question: question,
		})

	case domain.PhaseEnd:
		s.publishRecap(ctx, ss)
		s.archive(ctx, ss)
	}

	return &AdvancePhaseResponse{Phase: phase}, nil
}

func (s *Service) publishRecap(ctx context.Context, ss *domain.Session) {
	recap, err := ss.Recap()
	if err != nil {
		slog.ErrorContext(ctx, "session: recap failed", "join_code", ss.JoinCode(), "error", err)
		return
	}

	recaps := make([]domain.PlayerRecap, 0, recap.TotalParticipants)
	for _, p := range ss.Lobby().Players {
		r, err := ss.PlayerRecap(p.PlayerID)
		if err != nil {
			continue
		}
		recaps = append(recaps, r)
	}

	s.eb.Publish(ctx, domain.EventSessionEnded{
		JoinCode: ss.JoinCode(),
		Recap:    recap,
		Players:  recaps,
	})
}

// archive runs the archiver for a session that reached End. Failures leave
// the session live and findable; ArchiveSession retries it.
func (s *Service) archive(ctx context.Context, ss *domain.Session) {
	if err := s.archiver.Archive(ctx, ss); err != nil {
		s.metrics.ArchiveFailures.Inc()
		slog.ErrorContext(ctx, "session: archive failed",
			"join_code", ss.JoinCode(),
			"error", err,
		)
		return
	}

	s.metrics.SessionsActive.Dec()
	s.metrics.SessionsEnded.Inc()
}

type ArchiveSessionRequest struct {
	JoinCode string
}

type ArchiveSessionResponse struct{}

// ArchiveSession retries archiving a session whose automatic archive failed.
func (s *Service) ArchiveSession(ctx context.Context, req ArchiveSessionRequest) (*ArchiveSessionResponse, error) {
	ss, err := s.dir.FindByCode(req.JoinCode)
	if err != nil {
		return nil, err
	}

	if err := s.archiver.Archive(ctx, ss); err != nil {
		s.metrics.ArchiveFailures.Inc()
		return nil, err
	}

	s.metrics.SessionsActive.Dec()
	s.metrics.SessionsEnded.Inc()
	return &ArchiveSessionResponse{}, nil
}

type GetLobbyRequest struct {
	JoinCode string
}

func (s *Service) GetLobby(_ context.Context, req GetLobbyRequest) (*domain.LobbyView, error) {
	ss, err := s.dir.FindByCode(req.JoinCode)
	if err != nil {
		return nil, err
	}

	lobby := ss.Lobby()
	return &lobby, nil
}

type GetQuestionRequest struct {
	JoinCode string
}

func (s *Service) GetQuestion(_ context.Context, req GetQuestionRequest) (*domain.QuestionView, error) {
	ss, err := s.dir.FindByCode(req.JoinCode)
	if err != nil {
		return nil, err
	}

	question, err := ss.CurrentQuestion()
	if err != nil {
		return nil, err
	}
	return &question, nil
}

type GetResultsRequest struct {
	JoinCode string
}

func (s *Service) GetResults(_ context.Context, req GetResultsRequest) (*domain.ResultsView, error) {
	ss, err := s.dir.FindByCode(req.JoinCode)
	if err != nil {
		return nil, err
	}

	results, err := ss.Results(resultsTopK)
	if err != nil {
		return nil, err
	}
	return &results, nil
}

type GetRecapRequest struct {
	JoinCode string
	// PlayerID switches to the per-player recap when set.
	PlayerID string
}

type GetRecapResponse struct {
	Recap  *domain.EndView
	Player *domain.PlayerRecap
}

func (s *Service) GetRecap(_ context.Context, req GetRecapRequest) (*GetRecapResponse, error) {
	ss, err := s.dir.FindByCode(req.JoinCode)
	if err != nil {
		return nil, err
	}

	if req.PlayerID != "" {
		r, err := ss.PlayerRecap(req.PlayerID)
		if err != nil {
			return nil, err
		}
		return &GetRecapResponse{Player: &r}, nil
	}

	recap, err := ss.Recap()
	if err != nil {
		return nil, err
	}
	return &GetRecapResponse{Recap: &recap}, nil
}
