package dispatch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/routing"
)

// attempt is the oracle outcome for one shortlisted unit.
type attempt struct {
	unitID  string
	est     routing.Estimate
	err     error
	latency time.Duration
}

// refine queries the oracle for every candidate concurrently, each from the
// unit position to origin. It returns once all calls finished or the batch
// deadline expired; calls still running at that point are abandoned and
// reported as timeouts. The result follows the order of list.
func (c *Coordinator) refine(ctx context.Context, origin geo.Point, list []candidate) []attempt {
	if len(list) == 0 {
		return nil
	}
	batchCtx, cancel := context.WithTimeout(ctx, c.cfg.BatchTimeout())
	defer cancel()

	var (
		mu     sync.Mutex
		sealed bool
		got    = make(map[string]attempt, len(list))
	)
	var g errgroup.Group
	g.SetLimit(min(len(list), c.cfg.ShortlistSize))

	start := time.Now()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, cand := range list {
			g.Go(func() error {
				t0 := time.Now()
				est, err := c.oracle.Estimate(batchCtx, *cand.unit.Position, origin)
				a := attempt{unitID: cand.unit.ID, est: est, err: err, latency: time.Since(t0)}
				mu.Lock()
				defer mu.Unlock()
				if !sealed {
					got[cand.unit.ID] = a
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-batchCtx.Done():
	}
	mu.Lock()
	sealed = true
	out := make([]attempt, len(list))
	for i, cand := range list {
		a, ok := got[cand.unit.ID]
		if !ok {
			a = attempt{
				unitID:  cand.unit.ID,
				err:     routing.Timeout(c.provider, batchCtx.Err()),
				latency: time.Since(start),
			}
		}
		out[i] = a
	}
	mu.Unlock()
	return out
}
