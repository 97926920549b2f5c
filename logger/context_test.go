package logger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPCounter(t *testing.T) {
	t.Run("missing counter is a no-op", func(t *testing.T) {
		ctx := context.Background()
		assert.Equal(t, int64(0), IncrementHTTPCounter(ctx))
		assert.Equal(t, int64(0), GetHTTPCounter(ctx))
		AddHTTPElapsed(ctx, time.Second)
		assert.Equal(t, time.Duration(0), GetHTTPElapsed(ctx))
	})

	t.Run("counts calls and elapsed time", func(t *testing.T) {
		ctx := WithHTTPCounter(context.Background())
		assert.Equal(t, int64(1), IncrementHTTPCounter(ctx))
		assert.Equal(t, int64(2), IncrementHTTPCounter(ctx))
		AddHTTPElapsed(ctx, 150*time.Millisecond)
		AddHTTPElapsed(ctx, 50*time.Millisecond)

		assert.Equal(t, int64(2), GetHTTPCounter(ctx))
		assert.Equal(t, 200*time.Millisecond, GetHTTPElapsed(ctx))
	})

	t.Run("concurrent increments", func(t *testing.T) {
		ctx := WithHTTPCounter(context.Background())
		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				IncrementHTTPCounter(ctx)
			}()
		}
		wg.Wait()
		assert.Equal(t, int64(50), GetHTTPCounter(ctx))
	})
}
