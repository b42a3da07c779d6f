package engine

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestTickerScheduler_FiresUntilCancelled(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	s := NewTickerScheduler(clock)

	fired := make(chan struct{}, 4)
	task := s.Every(100*time.Millisecond, func() { fired <- struct{}{} })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(100 * time.Millisecond)
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for tick")
	}

	task.Cancel()
	task.Cancel() // second cancel is a no-op

	clock.Advance(time.Second)
	select {
	case <-fired:
		t.Fatalf("tick after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}
