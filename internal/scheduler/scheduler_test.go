package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunsImmediatelyThenOnInterval(t *testing.T) {
	var calls atomic.Int32
	s := New(20*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	}, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, <-errCh)

	n := calls.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
}

func TestJobErrorDoesNotStopScheduler(t *testing.T) {
	var calls atomic.Int32
	s := New(10*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return errors.New("pubmed unreachable")
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-errCh)
}

func TestStopCancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	s := New(time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.NoError(t, <-errCh)
}

func TestInvalidInterval(t *testing.T) {
	s := New(0, func(context.Context) error { return nil }, nil)
	assert.Error(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}
