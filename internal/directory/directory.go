package directory

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/qrally/internal/domain"
	"github.com/victornm/qrally/internal/errors"
)

const (
	defaultTokenTTL         = 10 * time.Minute
	defaultInactivityWindow = 30 * time.Minute
	defaultSweepInterval    = time.Minute
)

type Config struct {
	// TokenTTL bounds how long a join token resolves. Defaults to 10 minutes.
	TokenTTL time.Duration
	// InactivityWindow is how long a session may go without commands before
	// the sweep evicts it. Defaults to 30 minutes.
	InactivityWindow time.Duration
	// SweepInterval is the sweep ticker period. Defaults to 1 minute.
	SweepInterval time.Duration

	// NewToken generates join tokens. Defaults to random UUIDs.
	NewToken func() string
	// NewTickerFunc lets tests drive the sweep schedule.
	NewTickerFunc func(d time.Duration) Ticker

	// OnEvict is called after the sweep removes a session, outside the
	// directory lock. Used to release the join code and update metrics.
	OnEvict func(s *domain.Session)
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Directory is the registry of live sessions, indexed by join code and by
// join token. Lookups are safe under concurrent access; the directory lock
// covers only its own bookkeeping, never per-session logic.
type Directory struct {
	c Config

	mu     sync.RWMutex
	byCode map[string]*domain.Session
	tokens map[string]tokenEntry

	sweepOnce sync.Once
	stopOnce  sync.Once
	sweeping  atomic.Bool
	done      chan struct{}
	stopped   chan struct{}
}

type tokenEntry struct {
	joinCode  string
	createdAt time.Time
}

func New(c Config) *Directory {
	if c.TokenTTL <= 0 {
		c.TokenTTL = defaultTokenTTL
	}
	if c.InactivityWindow <= 0 {
		c.InactivityWindow = defaultInactivityWindow
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaultSweepInterval
	}
	if c.NewToken == nil {
		c.NewToken = func() string { return uuid.NewString() }
	}
	if c.NewTickerFunc == nil {
		c.NewTickerFunc = func(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }
	}

	return &Directory{
		c:       c,
		byCode:  make(map[string]*domain.Session),
		tokens:  make(map[string]tokenEntry),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Save registers a session under its join code and returns a fresh join
// token for it.
func (d *Directory) Save(s *domain.Session, now time.Time) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	code := s.JoinCode()
	if _, ok := d.byCode[code]; ok {
		return "", errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("join code %s already in use", code))
	}

	token := d.c.NewToken()
	d.byCode[code] = s
	d.tokens[token] = tokenEntry{joinCode: code, createdAt: now}
	return token, nil
}

func (d *Directory) FindByCode(code string) (*domain.Session, error) {
	d.mu.RLock()
	s, ok := d.byCode[code]
	d.mu.RUnlock()

	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("no session with join code %s", code))
	}
	return s, nil
}

// FindByToken resolves a join token. A token past its TTL is treated as not
// found and dropped.
func (d *Directory) FindByToken(token string, now time.Time) (*domain.Session, error) {
	d.mu.RLock()
	e, ok := d.tokens[token]
	d.mu.RUnlock()

	if ok && now.Sub(e.createdAt) > d.c.TokenTTL {
		d.mu.Lock()
		delete(d.tokens, token)
		d.mu.Unlock()
		ok = false
	}
	if !ok {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("join token not found or expired"))
	}

	return d.FindByCode(e.joinCode)
}

// Remove drops the session with the given join code and any tokens pointing
// at it. Removing an unknown code is a no-op.
func (d *Directory) Remove(code string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remove(code)
}

func (d *Directory) remove(code string) {
	delete(d.byCode, code)
	for t, e := range d.tokens {
		if e.joinCode == code {
			delete(d.tokens, t)
		}
	}
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byCode)
}

// StartSweep launches the background sweep. Call Stop to halt it; Save and
// the lookups work whether or not the sweep is running.
func (d *Directory) StartSweep() {
	d.sweepOnce.Do(func() {
		d.sweeping.Store(true)
		go d.runSweep(d.c.NewTickerFunc(d.c.SweepInterval))
	})
}

// Stop halts the background sweep and waits for it to exit.
func (d *Directory) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
	if d.sweeping.Load() {
		<-d.stopped
	}
}

func (d *Directory) runSweep(t Ticker) {
	defer close(d.stopped)
	defer t.Stop()

	for {
		select {
		case <-d.done:
			return
		case now := <-t.C():
			d.Sweep(now)
		}
	}
}

// Sweep evicts sessions idle past the inactivity window and expired tokens.
// Reading a session's last activity takes that session's lock, so eviction
// cannot interleave with an in-flight command on it.
func (d *Directory) Sweep(now time.Time) {
	d.mu.RLock()
	sessions := make([]*domain.Session, 0, len(d.byCode))
	for _, s := range d.byCode {
		sessions = append(sessions, s)
	}
	d.mu.RUnlock()

	var evicted []*domain.Session
	for _, s := range sessions {
		if now.Sub(s.LastActivity()) <= d.c.InactivityWindow {
			continue
		}
		if d.evictIfIdle(s, now) {
			evicted = append(evicted, s)
		}
	}

	d.mu.Lock()
	for t, e := range d.tokens {
		if now.Sub(e.createdAt) > d.c.TokenTTL {
			delete(d.tokens, t)
		}
	}
	d.mu.Unlock()

	for _, s := range evicted {
		slog.Info("directory: evicted inactive session",
			"join_code", s.JoinCode(),
			"phase", s.Phase(),
		)
		if d.c.OnEvict != nil {
			d.c.OnEvict(s)
		}
	}
}

// evictIfIdle removes s if it is still registered and still idle. Last
// activity is re-read under the write lock, so a command that refreshed the
// session between the read pass and this check keeps it alive.
func (d *Directory) evictIfIdle(s *domain.Session, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur, ok := d.byCode[s.JoinCode()]
	if !ok || cur != s {
		return false
	}
	if now.Sub(cur.LastActivity()) <= d.c.InactivityWindow {
		return false
	}

	d.remove(s.JoinCode())
	return true
}

type realTicker struct {
	t *time.Ticker
}

func (t realTicker) C() <-chan time.Time { return t.t.C }

func (t realTicker) Stop() { t.t.Stop() }
