package checks

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/dshills/procwait/internal/logging"
	"github.com/dshills/procwait/internal/process"
	"github.com/dshills/procwait/internal/waitfor"
)

// terminateGrace is how long a check's process gets to exit after
// SIGTERM before it is killed.
const terminateGrace = 2 * time.Second

// Result records the outcome of one check.
type Result struct {
	// Name is the check name.
	Name string

	// Err is nil when the check passed.
	Err error

	// Output is the process output accumulated while waiting.
	Output string

	// Elapsed is how long the check took.
	Elapsed time.Duration
}

// Runner executes the checks of a suite sequentially through a
// process supervisor.
type Runner struct {
	sup      *process.Supervisor
	logger   *logging.Logger
	failFast bool
	waitOpts []waitfor.Option
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithFailFast controls whether the runner stops at the first failing
// check (default true).
func WithFailFast(v bool) RunnerOption {
	return func(r *Runner) {
		r.failFast = v
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithWaitOptions sets the waitfor options applied to every command check.
func WithWaitOptions(opts ...waitfor.Option) RunnerOption {
	return func(r *Runner) {
		r.waitOpts = opts
	}
}

// NewRunner creates a runner that starts check processes through sup.
func NewRunner(sup *process.Supervisor, opts ...RunnerOption) *Runner {
	r := &Runner{
		sup:      sup,
		logger:   logging.Default(),
		failFast: true,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.logger = r.logger.WithComponent("checks")
	return r
}

// Run executes every check in order and returns one Result per
// executed check. When fail-fast is enabled the suite stops at the
// first failure, so the result slice may be shorter than the suite.
func (r *Runner) Run(ctx context.Context, suite *Suite) ([]Result, error) {
	results := make([]Result, 0, len(suite.Checks))
	failed := 0

	for i := range suite.Checks {
		c := &suite.Checks[i]

		if err := ctx.Err(); err != nil {
			return results, err
		}

		r.logger.Debug("running check %s", c.Name)
		res := r.runCheck(ctx, c)
		results = append(results, res)

		if res.Err != nil {
			failed++
			r.logger.Error("check %s failed after %v: %v", c.Name, res.Elapsed.Round(time.Millisecond), res.Err)
			if r.failFast {
				break
			}
			continue
		}
		r.logger.Info("check %s passed in %v", c.Name, res.Elapsed.Round(time.Millisecond))
	}

	if failed > 0 {
		return results, fmt.Errorf("%w: %d of %d checks failed", ErrSuiteFailed, failed, len(suite.Checks))
	}
	return results, nil
}

// runCheck executes a single check and records its outcome.
func (r *Runner) runCheck(ctx context.Context, c *Check) Result {
	start := time.Now()

	var output string
	var err error
	if c.Path != "" {
		err = r.waitPath(ctx, c)
	} else {
		output, err = r.runCommand(ctx, c)
	}

	return Result{
		Name:    c.Name,
		Err:     err,
		Output:  output,
		Elapsed: time.Since(start),
	}
}

// waitPath waits for the check's path to exist.
func (r *Runner) waitPath(ctx context.Context, c *Check) error {
	pathCtx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()
	return waitfor.WaitForPath(pathCtx, c.Path)
}

// runCommand starts the check's command, waits for its output, and
// tears the process down afterwards.
func (r *Runner) runCommand(ctx context.Context, c *Check) (string, error) {
	cmd := exec.Command(c.Command, c.Args...)
	proc, err := r.sup.Start(c.Name, cmd)
	if err != nil {
		return "", fmt.Errorf("starting %s: %w", c.Command, err)
	}
	defer r.teardown(proc)

	opts := append([]waitfor.Option{waitfor.WithLogger(r.logger)}, r.waitOpts...)
	output, err := waitfor.Wait(proc, c.Parts, c.timeout(), opts...)
	if err != nil {
		return output, err
	}

	if c.Port > 0 {
		portCtx, cancel := context.WithTimeout(ctx, c.timeout())
		defer cancel()
		if err := waitfor.WaitForPort(portCtx, c.host(), c.Port); err != nil {
			return output, err
		}
	}

	return output, nil
}

// teardown terminates a check's process, escalating to SIGKILL when it
// ignores SIGTERM, and releases its pipes.
func (r *Runner) teardown(proc *process.Process) {
	if proc.IsRunning() {
		_ = r.sup.Terminate(proc.ID)
		select {
		case <-proc.Done():
		case <-time.After(terminateGrace):
			_ = r.sup.Kill(proc.ID)
		}
	}
	_ = proc.Close()
}

// ErrSuiteFailed is returned by Run when at least one check failed.
var ErrSuiteFailed = errors.New("check suite failed")
