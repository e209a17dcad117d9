package pin

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/victornm/qrally/internal/errors"
)

const (
	defaultMinDigits   = 6
	defaultMaxDigits   = 10
	defaultMaxAttempts = 50
)

// ErrCodeTaken reports that another instance reserved the code first.
// Registries return it so the allocator can retry with a fresh code instead
// of failing the allocation.
var ErrCodeTaken = stderrors.New("code already taken")

// Registry is the durable set of currently active join codes. A code must be
// reserved there before it is handed out, so allocations survive restarts and
// stay unique across instances.
type Registry interface {
	ListActive(ctx context.Context) ([]string, error)
	Reserve(ctx context.Context, code string) error
	Release(ctx context.Context, code string) error
}

type Config struct {
	Registry Registry

	// MinDigits and MaxDigits bound the generated code length. Defaults 6-10.
	MinDigits int
	MaxDigits int
	// MaxAttempts bounds collision retries before allocation fails.
	MaxAttempts int
}

// Allocator hands out collision-free numeric join codes. The active set is
// loaded from the registry once at startup and kept in sync locally, so the
// common path only hits the registry to reserve the winning code.
type Allocator struct {
	c Config

	mu     sync.Mutex
	active map[string]struct{}
}

func NewAllocator(ctx context.Context, c Config) (*Allocator, error) {
	if c.MinDigits <= 0 {
		c.MinDigits = defaultMinDigits
	}
	if c.MaxDigits < c.MinDigits {
		c.MaxDigits = defaultMaxDigits
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}

	codes, err := c.Registry.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("pin: load active codes: %w", err)
	}

	active := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		active[code] = struct{}{}
	}

	return &Allocator{c: c, active: active}, nil
}

// Allocate generates a fresh join code and durably reserves it. Exhausting
// the attempt budget is a fatal allocation failure.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < a.c.MaxAttempts; attempt++ {
		code, err := a.generate()
		if err != nil {
			return "", fmt.Errorf("pin: generate code: %w", err)
		}

		if !a.claim(code) {
			continue
		}

		err = a.c.Registry.Reserve(ctx, code)
		if err == nil {
			return code, nil
		}
		if stderrors.Is(err, ErrCodeTaken) {
			// Another instance won this code after our startup load. It is
			// genuinely active, so the local claim stays; consume the attempt
			// and draw again.
			continue
		}

		a.unclaim(code)
		return "", fmt.Errorf("pin: reserve code: %w", err)
	}

	return "", errors.New(errors.CodeResourceExhausted,
		errors.WithMessagef("could not allocate a join code in %d attempts", a.c.MaxAttempts))
}

// Release frees a code once its session is archived or evicted.
func (a *Allocator) Release(ctx context.Context, code string) error {
	a.unclaim(code)
	if err := a.c.Registry.Release(ctx, code); err != nil {
		return fmt.Errorf("pin: release code: %w", err)
	}
	return nil
}

func (a *Allocator) claim(code string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.active[code]; ok {
		return false
	}
	a.active[code] = struct{}{}
	return true
}

func (a *Allocator) unclaim(code string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.active, code)
}

// generate draws a numeric code of random length between MinDigits and
// MaxDigits. The first digit is never zero so the length is stable.
func (a *Allocator) generate() (string, error) {
	span := int64(a.c.MaxDigits - a.c.MinDigits + 1)
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return "", err
	}
	digits := a.c.MinDigits + int(n.Int64())

	code := make([]byte, digits)
	for i := range code {
		low := int64(0)
		if i == 0 {
			low = 1
		}
		d, err := rand.Int(rand.Reader, big.NewInt(10-low))
		if err != nil {
			return "", err
		}
		code[i] = byte('0' + low + d.Int64())
	}

	return string(code), nil
}
