package batch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelSignal(t *testing.T) {
	t.Run("cancel kills the attached process", func(t *testing.T) {
		sig := NewCancelSignal()
		ctx, kill := context.WithCancel(context.Background())
		detach, err := sig.attach(kill)
		require.NoError(t, err)
		defer detach()

		sig.Cancel()
		assert.True(t, sig.Cancelled())
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	})

	t.Run("no attach after cancel", func(t *testing.T) {
		sig := NewCancelSignal()
		sig.Cancel()
		_, err := sig.attach(func() {})
		assert.ErrorIs(t, err, ErrCancelled)
	})

	t.Run("detached process is not killed", func(t *testing.T) {
		sig := NewCancelSignal()
		ctx, kill := context.WithCancel(context.Background())
		defer kill()
		detach, err := sig.attach(kill)
		require.NoError(t, err)
		detach()

		sig.Cancel()
		assert.NoError(t, ctx.Err())
	})

	t.Run("stale detach keeps the newer process", func(t *testing.T) {
		sig := NewCancelSignal()
		detachOld, err := sig.attach(func() {})
		require.NoError(t, err)

		ctx, kill := context.WithCancel(context.Background())
		_, err = sig.attach(kill)
		require.NoError(t, err)
		detachOld()

		sig.Cancel()
		assert.Error(t, ctx.Err())
	})

	t.Run("concurrent cancel is safe", func(t *testing.T) {
		sig := NewCancelSignal()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(2)
			go func() { defer wg.Done(); sig.Cancel() }()
			go func() { defer wg.Done(); _ = sig.Cancelled() }()
		}
		wg.Wait()
		assert.True(t, sig.Cancelled())
	})
}
