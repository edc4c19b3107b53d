package coordinator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExpirer struct {
	calls atomic.Int32
	err   error
	swept chan struct{}
}

func (e *countingExpirer) ExpireSeekers(context.Context) (int, error) {
	e.calls.Add(1)
	select {
	case e.swept <- struct{}{}:
	default:
	}
	return 1, e.err
}

func TestReaperSweepsUntilCancelled(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "expires seekers"},
		{name: "keeps running after a failed sweep", err: errors.New("store unavailable")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expirer := &countingExpirer{err: tt.err, swept: make(chan struct{}, 1)}
			reaper, err := NewReaper(expirer, 10*time.Millisecond)
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- reaper.Start(ctx) }()

			for i := 0; i < 2; i++ {
				select {
				case <-expirer.swept:
				case <-time.After(2 * time.Second):
					t.Fatal("reaper did not sweep")
				}
			}
			cancel()

			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(2 * time.Second):
				t.Fatal("reaper did not stop")
			}
			assert.GreaterOrEqual(t, expirer.calls.Load(), int32(2))
		})
	}
}

func TestReaperSweepCallsExpirer(t *testing.T) {
	expirer := &countingExpirer{swept: make(chan struct{}, 1)}
	reaper, err := NewReaper(expirer, time.Hour)
	require.NoError(t, err)

	reaper.sweep(context.Background())
	assert.Equal(t, int32(1), expirer.calls.Load())
}
