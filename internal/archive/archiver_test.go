package archive_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/qrally/internal/archive"
	"github.com/victornm/qrally/internal/directory"
	"github.com/victornm/qrally/internal/domain"
)

var t0 = time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)

func makeSession(t *testing.T) *domain.Session {
	t.Helper()

	s, err := domain.NewSession(domain.SessionConfig{
		SessionID: "s1",
		HostID:    "host",
		JoinCode:  "123456",
		Quiz: domain.Quiz{
			QuizID: "quiz-1",
			Questions: []domain.Question{{
				QuestionID:     "q1",
				Prompt:         "?",
				Type:           domain.QuestionTypeSingle,
				Options:        []domain.Option{{OptionID: "o1"}, {OptionID: "o2"}},
				CorrectIndices: []int{0},
				BasePoints:     1000,
				TimeLimit:      20 * time.Second,
			}},
		},
		Now: t0,
	})
	require.NoError(t, err)
	return s
}

func playToEnd(t *testing.T, s *domain.Session) {
	t.Helper()

	require.NoError(t, s.Join(domain.Player{PlayerID: "p1", Nickname: "p1"}, t0))
	require.NoError(t, s.Start("host", t0))
	require.NoError(t, s.RecordAnswer("q1", domain.AnswerRecord{
		PlayerID:     "p1",
		Selected:     []int{0},
		Correct:      true,
		Points:       1520,
		ResponseTime: 5 * time.Second,
	}, t0))
	for i := 0; i < 2; i++ {
		_, err := s.AdvancePhase("host", t0)
		require.NoError(t, err)
	}
	require.Equal(t, domain.PhaseEnd, s.Phase())
}

func TestArchiver_Archive(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the snapshot and evicts the session", func(t *testing.T) {
		history := archive.NewMemoryHistory()
		dir := directory.New(directory.Config{})
		a := archive.NewArchiver(archive.Config{History: history, Directory: dir})

		s := makeSession(t)
		_, err := dir.Save(s, t0)
		require.NoError(t, err)
		playToEnd(t, s)

		require.NoError(t, a.Archive(ctx, s))

		snap, ok := history.Get("s1")
		require.True(t, ok)
		assert.Equal(t, "123456", snap.JoinCode)
		require.Len(t, snap.Players, 1)
		assert.Equal(t, 1520, snap.Players[0].Score)
		require.Len(t, snap.FinalStanding, 1)
		assert.Equal(t, 1, snap.FinalStanding[0].Rank)

		_, err = dir.FindByCode("123456")
		assert.Error(t, err, "archived session must leave the directory")
	})

	t.Run("an incomplete session stays live", func(t *testing.T) {
		history := archive.NewMemoryHistory()
		dir := directory.New(directory.Config{})
		a := archive.NewArchiver(archive.Config{History: history, Directory: dir})

		s := makeSession(t)
		_, err := dir.Save(s, t0)
		require.NoError(t, err)
		require.NoError(t, s.Join(domain.Player{PlayerID: "p1", Nickname: "p1"}, t0))
		require.NoError(t, s.Start("host", t0))

		require.Error(t, a.Archive(ctx, s))

		assert.Zero(t, history.Len())
		_, err = dir.FindByCode("123456")
		assert.NoError(t, err, "failed archive must not evict the session")
	})

	t.Run("a failing history store leaves the session addressable", func(t *testing.T) {
		dir := directory.New(directory.Config{})
		a := archive.NewArchiver(archive.Config{History: failingHistory{}, Directory: dir})

		s := makeSession(t)
		_, err := dir.Save(s, t0)
		require.NoError(t, err)
		playToEnd(t, s)

		require.Error(t, a.Archive(ctx, s))
		_, err = dir.FindByCode("123456")
		assert.NoError(t, err)
	})

	t.Run("archiving twice writes one record", func(t *testing.T) {
		history := archive.NewMemoryHistory()
		dir := directory.New(directory.Config{})
		a := archive.NewArchiver(archive.Config{History: history, Directory: dir})

		s := makeSession(t)
		_, err := dir.Save(s, t0)
		require.NoError(t, err)
		playToEnd(t, s)

		require.NoError(t, a.Archive(ctx, s))
		require.NoError(t, a.Archive(ctx, s))
		assert.Equal(t, 1, history.Len())
	})
}

type failingHistory struct{}

func (failingHistory) Save(context.Context, domain.Snapshot) error {
	return fmt.Errorf("history unavailable")
}
