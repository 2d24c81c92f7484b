package stress

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/entitylock/internal/entitylock"
	"github.com/Iron-Ham/entitylock/internal/errors"
)

const sharedKey = 42

// MutualExclusion runs Increments critical sections on one entity, each
// from a fresh owner, and counts them with an unsynchronized counter.
func (r *Runner) MutualExclusion(ctx context.Context) Result {
	res := Result{Name: ScenarioMutualExclusion, Expected: int64(r.params.Increments)}
	l := r.newLocker(ScenarioMutualExclusion)
	start := r.clock.Now()

	var counter int64
	p := pool.New().WithMaxGoroutines(r.params.Workers).WithErrors()
	for range r.params.Increments {
		if ctx.Err() != nil {
			break
		}
		p.Go(func() error {
			return l.Do(entitylock.NewOwner(), sharedKey, func() error {
				counter++
				return nil
			})
		})
	}
	res.Err = errors.Join(p.Wait(), ctx.Err())

	res.Got = counter
	res.Duration = r.clock.Now().Sub(start)
	return res
}

// ParallelKeys holds Keys distinct entities for Hold each, all at once.
// Sections on different keys must overlap, so the run takes about one
// Hold rather than Keys of them.
func (r *Runner) ParallelKeys(ctx context.Context) Result {
	res := Result{Name: ScenarioParallelKeys, Expected: int64(r.params.Keys)}
	l := r.newLocker(ScenarioParallelKeys)
	start := r.clock.Now()

	var done atomic.Int64
	p := pool.New().WithErrors()
	for k := range r.params.Keys {
		p.Go(func() error {
			return l.Do(entitylock.NewOwner(), k, func() error {
				if err := r.sleep(ctx, r.params.Hold); err != nil {
					return err
				}
				done.Add(1)
				return nil
			})
		})
	}
	res.Err = p.Wait()

	res.Got = done.Load()
	res.Duration = r.clock.Now().Sub(start)
	serial := r.params.Hold * time.Duration(r.params.Keys)
	res.Detail = fmt.Sprintf("elapsed %s, serial would take %s", res.Duration.Round(time.Millisecond), serial)
	if res.Err == nil && r.params.Keys > 1 && res.Duration >= serial {
		res.Err = fmt.Errorf("sections on distinct keys were serialized (%s >= %s)", res.Duration, serial)
	}
	return res
}

// TimedWait has one owner hold the entity for Hold while a second owner
// tries for it with a ContenderTimeout shorter than that. Only the holder
// may increment; the contender must time out.
func (r *Runner) TimedWait(ctx context.Context) Result {
	res := Result{Name: ScenarioTimedWait, Expected: 1}
	l := r.newLocker(ScenarioTimedWait)
	start := r.clock.Now()

	var counter atomic.Int64
	var holderErr, contenderErr error
	held := make(chan struct{})

	var wg conc.WaitGroup
	wg.Go(func() {
		holder := entitylock.NewOwner()
		holderErr = l.Do(holder, sharedKey, func() error {
			close(held)
			if err := r.sleep(ctx, r.params.Hold); err != nil {
				return err
			}
			counter.Add(1)
			return nil
		})
	})
	wg.Go(func() {
		select {
		case <-held:
		case <-ctx.Done():
			contenderErr = ctx.Err()
			return
		}
		contender := entitylock.NewOwner()
		contenderErr = l.DoTimeout(ctx, contender, sharedKey, r.params.ContenderTimeout(), func(context.Context) error {
			counter.Add(1)
			return nil
		})
	})
	wg.Wait()

	res.Got = counter.Load()
	res.Duration = r.clock.Now().Sub(start)
	switch {
	case holderErr != nil:
		res.Err = errors.Wrap(holderErr, "holder")
	case errors.Is(contenderErr, errors.ErrTimeout):
		res.Detail = "contender timed out"
	case contenderErr == nil:
		res.Err = errors.New("contender acquired a lock that was still held")
	default:
		res.Err = errors.Wrap(contenderErr, "contender")
	}
	return res
}

// GlobalExclusivity races Increments per-entity critical sections against
// one global section that performs Increments increments of its own. The
// global section must exclude every entity section, so no increment is lost.
func (r *Runner) GlobalExclusivity(ctx context.Context) Result {
	res := Result{Name: ScenarioGlobalExclusivity, Expected: 2 * int64(r.params.Increments)}
	l := r.newLocker(ScenarioGlobalExclusivity)
	start := r.clock.Now()

	// Global mode only covers entities it can see, so register the key
	// before anything races for it.
	setup := entitylock.NewOwner()
	if err := l.Do(setup, sharedKey, func() error { return nil }); err != nil {
		res.Err = err
		return res
	}

	var counter int64
	var globalErr error
	var wg conc.WaitGroup
	wg.Go(func() {
		globalErr = l.DoGlobal(entitylock.NewOwner(), func() error {
			for range r.params.Increments {
				counter++
			}
			return nil
		})
	})

	p := pool.New().WithMaxGoroutines(r.params.Workers).WithErrors()
	for range r.params.Increments {
		if ctx.Err() != nil {
			break
		}
		p.Go(func() error {
			return l.Do(entitylock.NewOwner(), sharedKey, func() error {
				counter++
				return nil
			})
		})
	}
	poolErr := p.Wait()
	wg.Wait()

	res.Err = errors.Join(poolErr, globalErr, ctx.Err())
	res.Got = counter
	res.Duration = r.clock.Now().Sub(start)
	return res
}
