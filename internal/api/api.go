package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/qrally/internal/errors"
	"github.com/victornm/qrally/internal/event"
	"github.com/victornm/qrally/internal/session"
)

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Session      *session.Service
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	ss *session.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		ss:     c.Session,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	v1 := c.Router.Group("/v1")
	v1.POST("/sessions", a.createSession)
	v1.GET("/join/:token", a.resolveToken)
	v1.POST("/sessions/:code/join", a.joinSession)
	v1.POST("/sessions/:code/leave", a.leaveSession)
	v1.POST("/sessions/:code/start", a.startSession)
	v1.POST("/sessions/:code/answers", a.submitAnswer)
	v1.POST("/sessions/:code/advance", a.advancePhase)
	v1.POST("/sessions/:code/archive", a.archiveSession)
	v1.GET("/sessions/:code/lobby", a.getLobby)
	v1.GET("/sessions/:code/question", a.getQuestion)
	v1.GET("/sessions/:code/results", a.getResults)
	v1.GET("/sessions/:code/recap", a.getRecap)

	a.subscribe(c.EventBus)

	return a
}

func abortWithError(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e})
}

type createSessionRequest struct {
	HostID string `json:"host_id" binding:"required"`
	QuizID string `json:"quiz_id" binding:"required"`
}

func (a *API) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	resp, err := a.ss.CreateSession(c.Request.Context(), session.CreateSessionRequest{
		HostID: req.HostID,
		QuizID: req.QuizID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": resp.SessionID,
		"join_code":  resp.JoinCode,
		"join_token": resp.JoinToken,
	})
}

func (a *API) resolveToken(c *gin.Context) {
	resp, err := a.ss.ResolveToken(c.Request.Context(), session.ResolveTokenRequest{
		JoinToken: c.Param("token"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"join_code": resp.JoinCode})
}

type joinSessionRequest struct {
	PlayerID string `json:"player_id"`
	Nickname string `json:"nickname" binding:"required"`
	Guest    bool   `json:"guest"`
}

func (a *API) joinSession(c *gin.Context) {
	var req joinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	resp, err := a.ss.JoinSession(c.Request.Context(), session.JoinSessionRequest{
		JoinCode: c.Param("code"),
		PlayerID: req.PlayerID,
		Nickname: req.Nickname,
		Guest:    req.Guest,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"player_id": resp.PlayerID,
		"lobby":     lobbyPayload(resp.Lobby),
	})
}

type leaveSessionRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
}

func (a *API) leaveSession(c *gin.Context) {
	var req leaveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	resp, err := a.ss.LeaveSession(c.Request.Context(), session.LeaveSessionRequest{
		JoinCode: c.Param("code"),
		PlayerID: req.PlayerID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"lobby": lobbyPayload(resp.Lobby)})
}

type startSessionRequest struct {
	HostID string `json:"host_id" binding:"required"`
}

func (a *API) startSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	resp, err := a.ss.StartSession(c.Request.Context(), session.StartSessionRequest{
		JoinCode: c.Param("code"),
		HostID:   req.HostID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"question": questionPayload(resp.Question)})
}

type submitAnswerRequest struct {
	PlayerID   string `json:"player_id" binding:"required"`
	QuestionID string `json:"question_id" binding:"required"`
	Selected   []int  `json:"selected"`
}

func (a *API) submitAnswer(c *gin.Context) {
	var req submitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	_, err := a.ss.SubmitAnswer(c.Request.Context(), session.SubmitAnswerRequest{
		JoinCode:   c.Param("code"),
		PlayerID:   req.PlayerID,
		QuestionID: req.QuestionID,
		Selected:   req.Selected,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{})
}

type advancePhaseRequest struct {
	HostID string `json:"host_id" binding:"required"`
}

func (a *API) advancePhase(c *gin.Context) {
	var req advancePhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	resp, err := a.ss.AdvancePhase(c.Request.Context(), session.AdvancePhaseRequest{
		JoinCode: c.Param("code"),
		HostID:   req.HostID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"phase": resp.Phase})
}

func (a *API) archiveSession(c *gin.Context) {
	_, err := a.ss.ArchiveSession(c.Request.Context(), session.ArchiveSessionRequest{
		JoinCode: c.Param("code"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

func (a *API) getLobby(c *gin.Context) {
	lobby, err := a.ss.GetLobby(c.Request.Context(), session.GetLobbyRequest{
		JoinCode: c.Param("code"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, lobbyPayload(*lobby))
}

func (a *API) getQuestion(c *gin.Context) {
	question, err := a.ss.GetQuestion(c.Request.Context(), session.GetQuestionRequest{
		JoinCode: c.Param("code"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, questionPayload(*question))
}

func (a *API) getResults(c *gin.Context) {
	results, err := a.ss.GetResults(c.Request.Context(), session.GetResultsRequest{
		JoinCode: c.Param("code"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resultsPayload(*results))
}

func (a *API) getRecap(c *gin.Context) {
	resp, err := a.ss.GetRecap(c.Request.Context(), session.GetRecapRequest{
		JoinCode: c.Param("code"),
		PlayerID: c.Query("player_id"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	if resp.Player != nil {
		c.JSON(http.StatusOK, playerRecapPayload(*resp.Player))
		return
	}
	c.JSON(http.StatusOK, endPayload(*resp.Recap))
}
