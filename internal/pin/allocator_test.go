package pin_test

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/qrally/internal/errors"
	"github.com/victornm/qrally/internal/pin"
)

func TestAllocator_Allocate(t *testing.T) {
	ctx := context.Background()

	t.Run("codes are numeric and within the length bounds", func(t *testing.T) {
		a, err := pin.NewAllocator(ctx, pin.Config{
			Registry:  pin.NewMemoryRegistry(),
			MinDigits: 6,
			MaxDigits: 10,
		})
		require.NoError(t, err)

		pattern := regexp.MustCompile(`^[1-9][0-9]{5,9}$`)
		for i := 0; i < 100; i++ {
			code, err := a.Allocate(ctx)
			require.NoError(t, err)
			assert.Regexp(t, pattern, code)
		}
	})

	t.Run("allocated codes never collide", func(t *testing.T) {
		a, err := pin.NewAllocator(ctx, pin.Config{Registry: pin.NewMemoryRegistry()})
		require.NoError(t, err)

		seen := make(map[string]struct{})
		for i := 0; i < 200; i++ {
			code, err := a.Allocate(ctx)
			require.NoError(t, err)
			_, dup := seen[code]
			require.False(t, dup, "code %s handed out twice", code)
			seen[code] = struct{}{}
		}
	})

	t.Run("exhausting the code space fails with resource exhausted", func(t *testing.T) {
		// Single-digit codes leave only 1-9 available.
		a, err := pin.NewAllocator(ctx, pin.Config{
			Registry:  pin.NewMemoryRegistry(),
			MinDigits: 1,
			MaxDigits: 1,
		})
		require.NoError(t, err)

		for i := 0; i < 9; i++ {
			_, err := a.Allocate(ctx)
			require.NoError(t, err)
		}

		_, err = a.Allocate(ctx)
		require.Error(t, err)
		var e *errors.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, errors.CodeResourceExhausted, e.Code)
	})

	t.Run("released codes become available again", func(t *testing.T) {
		a, err := pin.NewAllocator(ctx, pin.Config{
			Registry:    pin.NewMemoryRegistry(),
			MinDigits:   1,
			MaxDigits:   1,
			MaxAttempts: 1000,
		})
		require.NoError(t, err)

		codes := make([]string, 0, 9)
		for i := 0; i < 9; i++ {
			code, err := a.Allocate(ctx)
			require.NoError(t, err)
			codes = append(codes, code)
		}

		require.NoError(t, a.Release(ctx, codes[0]))

		code, err := a.Allocate(ctx)
		require.NoError(t, err)
		assert.Equal(t, codes[0], code)
	})
}

func TestAllocator_LoadsActiveSetAtStartup(t *testing.T) {
	ctx := context.Background()

	reg := pin.NewMemoryRegistry()
	for _, code := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		require.NoError(t, reg.Reserve(ctx, code))
	}

	a, err := pin.NewAllocator(ctx, pin.Config{Registry: reg, MinDigits: 1, MaxDigits: 1, MaxAttempts: 1000})
	require.NoError(t, err)

	// Only "9" is left.
	code, err := a.Allocate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "9", code)
}

func TestRedisRegistry(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	reg := pin.NewRedisRegistry(client, "qrally")

	require.NoError(t, reg.Reserve(ctx, "123456"))
	assert.ErrorIs(t, reg.Reserve(ctx, "123456"), pin.ErrCodeTaken)

	codes, err := reg.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"123456"}, codes)

	require.NoError(t, reg.Release(ctx, "123456"))
	codes, err = reg.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, codes)

	// Releasing an absent code is a no-op.
	require.NoError(t, reg.Release(ctx, "999999"))
}

func TestAllocator_ReserveCollision(t *testing.T) {
	ctx := context.Background()

	// Another instance reserved almost every single-digit code after our
	// startup load. Each collision consumes an attempt; the allocator keeps
	// drawing until it lands on the one free code.
	reg := pin.NewMemoryRegistry()
	a, err := pin.NewAllocator(ctx, pin.Config{Registry: reg, MinDigits: 1, MaxDigits: 1, MaxAttempts: 1000})
	require.NoError(t, err)
	for _, code := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		require.NoError(t, reg.Reserve(ctx, code))
	}

	code, err := a.Allocate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "9", code)
}

type faultyRegistry struct {
	pin.Registry
	failures int
}

func (r *faultyRegistry) Reserve(ctx context.Context, code string) error {
	if r.failures > 0 {
		r.failures--
		return fmt.Errorf("registry unavailable")
	}
	return r.Registry.Reserve(ctx, code)
}

func TestAllocator_ReserveFailureUnclaims(t *testing.T) {
	ctx := context.Background()

	// A transport failure is not a collision: it aborts the allocation and
	// frees the local claim so the code stays available for the next call.
	reg := &faultyRegistry{Registry: pin.NewMemoryRegistry(), failures: 1}
	a, err := pin.NewAllocator(ctx, pin.Config{Registry: reg, MinDigits: 1, MaxDigits: 1, MaxAttempts: 1000})
	require.NoError(t, err)

	_, err = a.Allocate(ctx)
	require.Error(t, err)

	// All nine codes must still be allocatable.
	for i := 0; i < 9; i++ {
		_, err := a.Allocate(ctx)
		require.NoError(t, err)
	}
}
