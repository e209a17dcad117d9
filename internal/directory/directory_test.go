package directory_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/qrally/internal/directory"
	"github.com/victornm/qrally/internal/domain"
	"github.com/victornm/qrally/internal/errors"
)

var t0 = time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)

func makeSession(t *testing.T, code string) *domain.Session {
	t.Helper()

	s, err := domain.NewSession(domain.SessionConfig{
		SessionID: "session-" + code,
		HostID:    "host-" + code,
		JoinCode:  code,
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

func assertCode(t *testing.T, err error, code errors.Code) {
	t.Helper()
	require.Error(t, err)
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, code, e.Code)
}

func TestDirectory_SaveAndFind(t *testing.T) {
	d := directory.New(directory.Config{})
	s := makeSession(t, "123456")

	token, err := d.Save(s, t0)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := d.FindByCode("123456")
	require.NoError(t, err)
	assert.Same(t, s, got)

	got, err = d.FindByToken(token, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = d.FindByCode("999999")
	assertCode(t, err, errors.CodeNotFound)
}

func TestDirectory_Save_DuplicateCode(t *testing.T) {
	d := directory.New(directory.Config{})
	_, err := d.Save(makeSession(t, "123456"), t0)
	require.NoError(t, err)

	_, err = d.Save(makeSession(t, "123456"), t0)
	assertCode(t, err, errors.CodeAlreadyExists)
}

func TestDirectory_TokenTTL(t *testing.T) {
	d := directory.New(directory.Config{TokenTTL: 10 * time.Minute})
	token, err := d.Save(makeSession(t, "123456"), t0)
	require.NoError(t, err)

	_, err = d.FindByToken(token, t0.Add(10*time.Minute+time.Second))
	assertCode(t, err, errors.CodeNotFound)

	// The session itself is untouched; only the token died.
	_, err = d.FindByCode("123456")
	require.NoError(t, err)
}

func TestDirectory_Remove(t *testing.T) {
	d := directory.New(directory.Config{})
	token, err := d.Save(makeSession(t, "123456"), t0)
	require.NoError(t, err)

	d.Remove("123456")
	_, err = d.FindByCode("123456")
	assertCode(t, err, errors.CodeNotFound)
	_, err = d.FindByToken(token, t0)
	assertCode(t, err, errors.CodeNotFound)

	// Removing again is a no-op.
	d.Remove("123456")
	assert.Zero(t, d.Len())
}

func TestDirectory_Sweep(t *testing.T) {
	t.Run("evicts only sessions past the inactivity window", func(t *testing.T) {
		var evicted []string
		d := directory.New(directory.Config{
			InactivityWindow: 30 * time.Minute,
			OnEvict:          func(s *domain.Session) { evicted = append(evicted, s.JoinCode()) },
		})

		stale := makeSession(t, "111111")
		fresh := makeSession(t, "222222")
		_, err := d.Save(stale, t0)
		require.NoError(t, err)
		_, err = d.Save(fresh, t0)
		require.NoError(t, err)

		// A join refreshes the session's last activity.
		later := t0.Add(25 * time.Minute)
		require.NoError(t, fresh.Join(domain.Player{PlayerID: "p1", Nickname: "p1"}, later))

		d.Sweep(t0.Add(31 * time.Minute))

		assert.Equal(t, []string{"111111"}, evicted)
		_, err = d.FindByCode("111111")
		assertCode(t, err, errors.CodeNotFound)
		_, err = d.FindByCode("222222")
		require.NoError(t, err)
	})

	t.Run("drops expired tokens", func(t *testing.T) {
		d := directory.New(directory.Config{TokenTTL: 10 * time.Minute, InactivityWindow: time.Hour})
		token, err := d.Save(makeSession(t, "123456"), t0)
		require.NoError(t, err)

		d.Sweep(t0.Add(11 * time.Minute))

		_, err = d.FindByToken(token, t0.Add(11*time.Minute))
		assertCode(t, err, errors.CodeNotFound)
	})
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {}

func TestDirectory_SweepLoop(t *testing.T) {
	tick := &fakeTicker{ch: make(chan time.Time)}
	evicted := make(chan string, 1)
	d := directory.New(directory.Config{
		InactivityWindow: 30 * time.Minute,
		NewTickerFunc:    func(time.Duration) directory.Ticker { return tick },
		OnEvict:          func(s *domain.Session) { evicted <- s.JoinCode() },
	})

	_, err := d.Save(makeSession(t, "123456"), t0)
	require.NoError(t, err)

	d.StartSweep()
	tick.ch <- t0.Add(31 * time.Minute)

	select {
	case code := <-evicted:
		assert.Equal(t, "123456", code)
	case <-time.After(time.Second):
		t.Fatal("sweep did not evict within 1s")
	}

	d.Stop()
	// Stop is idempotent and safe to call again.
	d.Stop()
}

func TestDirectory_ConcurrentAccess(t *testing.T) {
	d := directory.New(directory.Config{InactivityWindow: 30 * time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		code := fmt.Sprintf("%06d", i)
		s := makeSession(t, code)

		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Save(s, t0)
			assert.NoError(t, err)
			_, err = d.FindByCode(code)
			assert.NoError(t, err)
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Sweep(t0.Add(time.Minute))
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, d.Len())
}
