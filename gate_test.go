package outflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGateAwaitAdvance(t *testing.T) {
	gate := NewGate()

	t.Run("returns immediately when the phase already moved", func(t *testing.T) {
		observed := gate.Current()
		require.Greater(t, gate.Advance(), observed)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		next, err := gate.AwaitAdvance(ctx, observed)
		require.NoError(t, err)
		require.Greater(t, next, observed)
	})

	t.Run("one advance wakes every waiter", func(t *testing.T) {
		const waiters = 16
		observed := gate.Current()

		done := make(chan uint64, waiters)
		for i := 0; i < waiters; i++ {
			go func() {
				next, err := gate.AwaitAdvance(context.Background(), observed)
				if err == nil {
					done <- next
				}
			}()
		}

		// Give the waiters a chance to park before broadcasting.
		time.Sleep(50 * time.Millisecond)
		gate.Advance()

		for i := 0; i < waiters; i++ {
			select {
			case next := <-done:
				require.Greater(t, next, observed)
			case <-time.After(2 * time.Second):
				t.Fatalf("waiter %d never woke up", i)
			}
		}
	})
}

func TestGateNoLostWakeup(t *testing.T) {
	gate := NewGate()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Tight race between capturing the phase and entering the wait: were
	// the wake signal edge-triggered instead of a numeric comparison, some
	// iteration would miss the advance and hang until the ctx deadline.
	for i := 0; i < 10000; i++ {
		observed := gate.Current()
		go gate.Advance()
		next, err := gate.AwaitAdvance(ctx, observed)
		require.NoError(t, err, "lost wakeup at iteration %d", i)
		require.Greater(t, next, observed)
	}
}

func TestGateCancellation(t *testing.T) {
	gate := NewGate()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := gate.AwaitAdvance(ctx, gate.Current())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled waiter never returned")
	}
}
