package stress

import (
	"context"
	"slices"
	"time"

	"github.com/juju/clock"

	"github.com/Iron-Ham/entitylock/internal/config"
	"github.com/Iron-Ham/entitylock/internal/entitylock"
	"github.com/Iron-Ham/entitylock/internal/errors"
	"github.com/Iron-Ham/entitylock/internal/logging"
)

// Scenario names.
const (
	ScenarioMutualExclusion   = "mutual-exclusion"
	ScenarioParallelKeys      = "parallel-keys"
	ScenarioTimedWait         = "timed-wait"
	ScenarioGlobalExclusivity = "global-exclusivity"
)

// Scenarios returns every scenario name in run order.
func Scenarios() []string {
	return []string{
		ScenarioMutualExclusion,
		ScenarioParallelKeys,
		ScenarioTimedWait,
		ScenarioGlobalExclusivity,
	}
}

// Params sizes a stress run.
type Params struct {
	Workers        int           // Concurrent critical sections in flight
	Increments     int           // Critical sections per counting scenario
	Keys           int           // Distinct entities in the parallel-keys scenario
	Hold           time.Duration // How long holders keep a lock in the timing scenarios
	Timeout        time.Duration // Contender bound in the timed-wait scenario
	DefaultTimeout time.Duration // Bound for timed acquisitions when Timeout is zero
}

// ContenderTimeout returns the bound the timed-wait contender uses:
// Timeout when set, DefaultTimeout otherwise.
func (p Params) ContenderTimeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return p.DefaultTimeout
}

// ParamsFromConfig converts the stress section of the configuration, taking
// the fallback bound for timed acquisitions from the locker section.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		Workers:        cfg.Stress.Workers,
		Increments:     cfg.Stress.Increments,
		Keys:           cfg.Stress.Keys,
		Hold:           cfg.Stress.Hold(),
		Timeout:        cfg.Stress.Timeout(),
		DefaultTimeout: cfg.Locker.DefaultTimeout(),
	}
}

// Result is the outcome of one scenario.
type Result struct {
	Name     string        `json:"name"`
	Expected int64         `json:"expected"`
	Got      int64         `json:"got"`
	Duration time.Duration `json:"duration_ns"`
	Detail   string        `json:"detail,omitempty"`
	Err      error         `json:"-"`
}

// Passed reports whether the scenario ran to completion with the expected count.
func (r Result) Passed() bool {
	return r.Err == nil && r.Expected == r.Got
}

// Runner runs scenarios. It is safe to run scenarios from several
// goroutines; each one uses its own Locker.
type Runner struct {
	params     Params
	prefix     string
	clock      clock.Clock
	logger     *logging.Logger
	lockerOpts []entitylock.Option
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock sets the clock used for hold times and passed to every Locker.
func WithClock(clk clock.Clock) Option {
	return func(r *Runner) {
		if clk != nil {
			r.clock = clk
		}
	}
}

// WithLogger sets the runner's logger. It is also passed to every Locker.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithNamePrefix names each scenario's Locker "<prefix>.<scenario>".
func WithNamePrefix(prefix string) Option {
	return func(r *Runner) { r.prefix = prefix }
}

// WithLockerOptions adds options applied to every Locker the runner creates,
// after the runner's own clock and logger.
func WithLockerOptions(opts ...entitylock.Option) Option {
	return func(r *Runner) {
		r.lockerOpts = append(r.lockerOpts, opts...)
	}
}

// NewRunner creates a Runner. Non-positive sizes fall back to one.
func NewRunner(p Params, opts ...Option) *Runner {
	p.Workers = max(p.Workers, 1)
	p.Increments = max(p.Increments, 1)
	p.Keys = max(p.Keys, 1)

	r := &Runner{
		params: p,
		clock:  clock.WallClock,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Params returns the runner's effective parameters.
func (r *Runner) Params() Params { return r.params }

// Run runs the named scenarios in order, or all of them when names is
// empty. Unknown names are rejected before anything runs. A scenario that
// fails does not stop the ones after it; a done ctx does.
func (r *Runner) Run(ctx context.Context, names ...string) ([]Result, error) {
	if len(names) == 0 {
		names = Scenarios()
	}
	for _, name := range names {
		if !slices.Contains(Scenarios(), name) {
			return nil, errors.NewValidationError("unknown scenario").
				WithField("scenario").
				WithValue(name)
		}
	}

	results := make([]Result, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, errors.Wrapf(err, "stress run cancelled before %s", name)
		}
		res := r.runOne(ctx, name)
		r.report(res)
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, name string) Result {
	switch name {
	case ScenarioMutualExclusion:
		return r.MutualExclusion(ctx)
	case ScenarioParallelKeys:
		return r.ParallelKeys(ctx)
	case ScenarioTimedWait:
		return r.TimedWait(ctx)
	default:
		return r.GlobalExclusivity(ctx)
	}
}

func (r *Runner) report(res Result) {
	args := []any{
		"scenario", res.Name,
		"expected", res.Expected,
		"got", res.Got,
		"duration_ms", res.Duration.Milliseconds(),
	}
	switch {
	case res.Err != nil:
		args = append(args, "error", res.Err.Error(), "retryable", errors.IsRetryable(res.Err))
		if errors.GetSeverity(res.Err) < errors.SeverityError {
			r.logger.Warn("scenario failed", args...)
		} else {
			r.logger.Error("scenario failed", args...)
		}
	case !res.Passed():
		r.logger.Warn("scenario count mismatch", args...)
	default:
		r.logger.Info("scenario passed", args...)
	}
}

func (r *Runner) newLocker(name string) *entitylock.Locker[int] {
	if r.prefix != "" {
		name = r.prefix + "." + name
	}
	opts := []entitylock.Option{
		entitylock.WithName(name),
		entitylock.WithClock(r.clock),
		entitylock.WithLogger(r.logger),
	}
	return entitylock.New[int](append(opts, r.lockerOpts...)...)
}

// sleep waits for d on the runner's clock or until ctx is done.
func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-r.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
