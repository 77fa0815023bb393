package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGate_NeverExceedsLimit(t *testing.T) {
	req := require.New(t)
	limit := 3
	gate := NewGate(limit)

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req.NoError(gate.Acquire(context.Background()))
			defer gate.Release()

			now := current.Add(1)
			for {
				highest := peak.Load()
				if now <= highest || peak.CompareAndSwap(highest, now) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
		}()
	}
	wg.Wait()

	req.LessOrEqual(peak.Load(), int32(limit))
	req.Zero(gate.InFlight())
}

func TestGate_AcquireHonorsCancellation(t *testing.T) {
	req := require.New(t)
	gate := NewGate(1)

	req.NoError(gate.Acquire(context.Background()))
	defer gate.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := gate.Acquire(ctx)
	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestGate_ClampsInvalidLimit(t *testing.T) {
	req := require.New(t)
	gate := NewGate(0)

	req.NoError(gate.Acquire(context.Background()))
	defer gate.Release()
	req.Equal(1, gate.InFlight())
}
