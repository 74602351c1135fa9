// internal/loop/loop.go

// Package loop owns the run lifecycle: it paces cycles, moves frames from the
// surface to the inference client, hands invocations to the engine, applies
// committing actions, and decides when and why the run ends.
package loop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/franz-cli/internal/engine"
	"github.com/xkilldash9x/franz-cli/internal/journal"
)

// State describes what the runner is currently doing.
type State string

const (
	StateRunning    State = "RUNNING"
	StateRetrying   State = "RETRYING"
	StateTerminated State = "TERMINATED"
)

// Cause records why a run terminated.
type Cause string

const (
	// CauseDone means the model called done.
	CauseDone Cause = "DONE"
	// CauseRetryBudgetExhausted means a cycle produced only rejected
	// invocations until the per-cycle budget ran out.
	CauseRetryBudgetExhausted Cause = "RETRY_BUDGET_EXHAUSTED"
	// CauseTransportFailure means capture or inference kept failing past the
	// transport retry allowance.
	CauseTransportFailure Cause = "TRANSPORT_FAILURE"
	// CauseExternalCancel means the surrounding context was cancelled.
	CauseExternalCancel Cause = "EXTERNAL_CANCEL"
)

// Deps are the collaborators the runner drives. All are required except
// Journal, which may be a no-op recorder.
type Deps struct {
	Frames   FrameSource
	Client   InferenceClient
	Executor ActionExecutor
	Engine   *engine.Engine
	Journal  journal.Recorder
	Logger   *zap.Logger
}

// Config tunes the runner.
type Config struct {
	// RetryBudget is the total number of inference attempts per cycle when the
	// model keeps producing rejected invocations. The same frame is reused.
	RetryBudget int
	// TransportRetries is the number of additional attempts after a transport
	// fault, on top of the first.
	TransportRetries int
	TransportBackoff time.Duration
	// CycleInterval paces cycle starts.
	CycleInterval time.Duration
	// SettleDelay is the pause after a committing action, giving the surface
	// time to react before the next capture.
	SettleDelay  time.Duration
	InitialStory string
	// DumpDir, when set, receives every captured frame under a per-run
	// subdirectory.
	DumpDir string
}

// Result summarizes a finished run.
type Result struct {
	Cause Cause
	Steps int
	Story string
}

// Runner executes the perception-decide-act loop.
type Runner struct {
	deps Deps
	cfg  Config

	state State
}

// New creates a Runner. Zero or negative budgets are lifted to safe minimums.
func New(deps Deps, cfg Config) *Runner {
	if cfg.RetryBudget < 1 {
		cfg.RetryBudget = 1
	}
	if cfg.TransportRetries < 0 {
		cfg.TransportRetries = 0
	}
	if cfg.TransportBackoff <= 0 {
		cfg.TransportBackoff = time.Second
	}
	return &Runner{
		deps:  deps,
		cfg:   cfg,
		state: StateRunning,
	}
}

// State returns the runner's current state.
func (r *Runner) State() State { return r.state }

// Run drives cycles until the model concludes, a budget is exhausted,
// transport fails fatally, or ctx is cancelled. The returned Result always
// carries the terminal cause; the error is reserved for setup faults such as
// an unwritable dump directory.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	runID := uuid.NewString()
	log := r.deps.Logger.Named("loop").With(zap.String("run_id", runID))

	dumpDir, err := r.prepareDumpDir(runID)
	if err != nil {
		return Result{}, err
	}

	ns := engine.NewNarrative(r.cfg.InitialStory)
	log.Info("Run starting", zap.String("story", ns.Story))

	var limiter *rate.Limiter
	if r.cfg.CycleInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(r.cfg.CycleInterval), 1)
	}

	for {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return r.terminate(log, CauseExternalCancel, ns), nil
			}
		} else if err := ctx.Err(); err != nil {
			return r.terminate(log, CauseExternalCancel, ns), nil
		}

		frame, err := r.captureFrame(ctx, log)
		if err != nil {
			// Only the run context's own cancellation is an external stop; a
			// deadline inside the capture path is a transport fault.
			if ctx.Err() != nil {
				return r.terminate(log, CauseExternalCancel, ns), nil
			}
			log.Error("Frame capture failed fatally", zap.Error(err))
			return r.terminate(log, CauseTransportFailure, ns), nil
		}
		r.dumpFrame(log, dumpDir, ns.StepIndex, frame)

		action, cause := r.decide(ctx, log, frame, &ns)
		if cause != "" {
			return r.terminate(log, cause, ns), nil
		}

		r.record(ctx, log, journal.Entry{
			RunID:  runID,
			Step:   ns.StepIndex,
			Kind:   string(action.Kind),
			Story:  ns.Story,
			Detail: action.Describe(),
		})

		if action.Kind.Terminal() {
			return r.terminate(log, CauseDone, ns), nil
		}

		if action.Kind.Committing() {
			if err := r.deps.Executor.Execute(ctx, action); err != nil {
				// Executor faults do not end the run; the next frame shows
				// whatever actually happened.
				log.Warn("Action execution failed",
					zap.String("action", action.Describe()),
					zap.Error(err),
				)
			}
			if !r.sleep(ctx, r.cfg.SettleDelay) {
				return r.terminate(log, CauseExternalCancel, ns), nil
			}
		}
	}
}

// decide runs the per-cycle retry loop against a single frame. It returns the
// accepted action, or a terminal cause when the cycle cannot complete.
func (r *Runner) decide(ctx context.Context, log *zap.Logger, frame engine.Frame, ns *engine.Narrative) (engine.Action, Cause) {
	var retryNote string

	for attempt := 1; attempt <= r.cfg.RetryBudget; attempt++ {
		req := r.deps.Engine.BuildRequest(frame, *ns)
		req.RetryNote = retryNote

		inv, err := r.decideWithBackoff(ctx, req)
		if err != nil {
			// A timed-out call carries context.DeadlineExceeded in its error
			// chain, so the chain cannot distinguish an expired per-call
			// deadline from a stop request. Only the run context tells.
			if ctx.Err() != nil {
				return engine.Action{}, CauseExternalCancel
			}
			log.Error("Inference failed past transport allowance", zap.Error(err))
			return engine.Action{}, CauseTransportFailure
		}

		action, err := r.deps.Engine.Interpret(inv, ns)
		if err == nil {
			r.state = StateRunning
			log.Info("Cycle decided",
				zap.Int("step", ns.StepIndex),
				zap.String("action", action.Describe()),
				zap.Int("attempt", attempt),
			)
			return action, ""
		}

		r.state = StateRetrying
		var stall *engine.StallViolationError
		if errors.As(err, &stall) {
			retryNote = "You have been observing too long. You must act now."
		} else {
			retryNote = "Your previous reply was not a valid tool call. Call exactly one of the offered tools with its required arguments."
		}
		log.Warn("Invocation rejected, retrying against same frame",
			zap.Int("attempt", attempt),
			zap.Int("budget", r.cfg.RetryBudget),
			zap.Error(err),
		)
	}

	log.Error("Retry budget exhausted", zap.Int("budget", r.cfg.RetryBudget))
	return engine.Action{}, CauseRetryBudgetExhausted
}

// decideWithBackoff wraps one inference call in the transport retry policy.
func (r *Runner) decideWithBackoff(ctx context.Context, req engine.Request) (engine.RawInvocation, error) {
	var inv engine.RawInvocation

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.cfg.TransportBackoff
	policy.MaxInterval = 30 * time.Second

	operation := func() error {
		var err error
		inv, err = r.deps.Client.Decide(ctx, req)
		return err
	}
	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.cfg.TransportRetries)), ctx))
	return inv, err
}

// captureFrame retries capture with the same transport policy as inference.
func (r *Runner) captureFrame(ctx context.Context, log *zap.Logger) (engine.Frame, error) {
	var frame engine.Frame

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.cfg.TransportBackoff

	operation := func() error {
		var err error
		frame, err = r.deps.Frames.Capture(ctx)
		if err != nil {
			log.Warn("Frame capture failed", zap.Error(err))
		}
		return err
	}
	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.cfg.TransportRetries)), ctx))
	return frame, err
}

func (r *Runner) prepareDumpDir(runID string) (string, error) {
	if r.cfg.DumpDir == "" {
		return "", nil
	}
	dir := filepath.Join(r.cfg.DumpDir, "run_"+runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create frame dump directory: %w", err)
	}
	return dir, nil
}

// dumpFrame writes the captured PNG for offline inspection. Dump failures are
// logged and ignored; the run does not depend on them.
func (r *Runner) dumpFrame(log *zap.Logger, dir string, step int, frame engine.Frame) {
	if dir == "" {
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("step%03d.png", step))
	if err := os.WriteFile(path, frame.PNG, 0o644); err != nil {
		log.Warn("Failed to dump frame", zap.String("path", path), zap.Error(err))
	}
}

func (r *Runner) record(ctx context.Context, log *zap.Logger, entry journal.Entry) {
	if r.deps.Journal == nil {
		return
	}
	entry.CreatedAt = time.Now().UTC()
	if err := r.deps.Journal.Record(ctx, entry); err != nil {
		log.Warn("Failed to journal cycle", zap.Int("step", entry.Step), zap.Error(err))
	}
}

func (r *Runner) terminate(log *zap.Logger, cause Cause, ns engine.Narrative) Result {
	r.state = StateTerminated
	log.Info("Run terminated",
		zap.String("cause", string(cause)),
		zap.Int("steps", ns.StepIndex),
	)
	return Result{Cause: cause, Steps: ns.StepIndex, Story: ns.Story}
}

// sleep waits for d or until ctx is done, reporting whether the full delay
// elapsed.
func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
