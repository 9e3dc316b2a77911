package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentebl/multibanco-agent-go/internal/domain"
	"github.com/agentebl/multibanco-agent-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func TestRetryWithBackoff_RetriesOnFailure(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     2,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return errors.New("persistent error")
	})

	require.Error(t, err)
	assert.Equal(t, 3, callCount)
}

func TestRetryWithBackoff_ZeroBackoff(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 2}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, 3, callCount)
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     5,
		InitialBackoff: 1 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, cfg, func() error {
		return errors.New("error")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryIf_StopsOnPermanentError(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 5, InitialBackoff: time.Millisecond}

	callCount := 0
	err := resilience.RetryIf(context.Background(), cfg, resilience.Transient, func() error {
		callCount++
		return &domain.ErrNotFound{Resource: "receipt", ID: "x"}
	})

	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 1, callCount)
}

func TestTransient(t *testing.T) {
	assert.True(t, resilience.Transient(errors.New("connection reset")))
	assert.True(t, resilience.Transient(&domain.ErrExternalService{Service: "supabase", Err: errors.New("503")}))

	assert.False(t, resilience.Transient(&domain.ErrNotFound{Resource: "receipt"}))
	assert.False(t, resilience.Transient(&domain.ErrValidation{Field: "date"}))
	assert.False(t, resilience.Transient(&domain.ErrMissingField{Field: "amount"}))
	assert.False(t, resilience.Transient(&domain.ErrRejected{Service: "supabase", Status: 400}))
}

func TestCircuitBreaker_SuccessFilterKeepsCircuitClosed(t *testing.T) {
	notFound := func(err error) bool {
		var nf *domain.ErrNotFound
		return errors.As(err, &nf)
	}
	cb := resilience.NewCircuitBreaker("test", resilience.WithSuccessFilter(notFound))

	for i := 0; i < 10; i++ {
		_, err := cb.Execute(func() (any, error) {
			return nil, &domain.ErrNotFound{Resource: "dni", ID: "1"}
		})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_TripsOnFailures(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test")

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, errors.New("upstream down") })
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Execute(func() (any, error) { return nil, nil })
	assert.True(t, resilience.IsBreakerRejection(err))
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	require.NoError(t, bh.Acquire(context.Background()))
	require.NoError(t, bh.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.Error(t, bh.Acquire(ctx), "third acquire should time out")

	bh.Release()

	require.NoError(t, bh.Acquire(context.Background()))
}

func TestBulkhead_Do(t *testing.T) {
	bh := resilience.NewBulkhead(0)

	ran := false
	err := bh.Do(context.Background(), func() error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	require.NoError(t, bh.Acquire(context.Background()), "slot must be released after Do")
}
