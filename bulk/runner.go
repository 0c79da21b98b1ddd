// Package bulk logs in many accounts concurrently and caches their session cookies.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/networkteam/sessionkit/config"
	"github.com/networkteam/sessionkit/cookie"
	"github.com/networkteam/sessionkit/login"
	"github.com/networkteam/sessionkit/recorder"
)

// Factory creates the authenticator for one worker. Authenticators implementing
// io.Closer are closed when the worker is done.
type Factory func() (login.Authenticator, error)

// Job is the login of one account.
type Job struct {
	Credential config.Credential
	LoginURL   string
}

// Status of a finished job.
type Status string

const (
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
	StatusNotStarted Status = "not-started"
)

// Outcome is the result of one job.
type Outcome struct {
	Username string
	Role     string
	Status   Status
	Message  string
	// Token is the masked session cookie.
	Token    string
	Started  time.Time
	Finished time.Time
}

// Duration returns how long the job took.
func (o Outcome) Duration() time.Duration {
	if o.Started.IsZero() || o.Finished.IsZero() {
		return 0
	}
	return o.Finished.Sub(o.Started)
}

// Progress is published after every finished job.
type Progress struct {
	RunID   uuid.UUID
	Done    int
	Total   int
	Outcome Outcome
}

// Options configures a Runner.
type Options struct {
	// Threads is the number of concurrent logins.
	// Default: 4
	Threads int
	// Rate limits login starts per second. 0 disables the limit.
	Rate float64
	// Relogin logs in even if the cache holds a structurally valid cookie.
	Relogin bool
	// Timeout for a single login.
	// Default: 60s
	Timeout time.Duration
	// Store caches cookies per username. Without a store nothing is cached or skipped.
	Store  *cookie.Store
	Logger *slog.Logger
}

// DefaultOptions returns default options for a Runner.
func DefaultOptions() Options {
	return Options{
		Threads: 4,
		Timeout: 60 * time.Second,
		Logger:  slog.Default(),
	}
}

// Runner runs login jobs concurrently. Each worker owns its authenticator and cache files,
// so workers share nothing but the semaphore.
type Runner struct {
	factory  Factory
	options  Options
	notifier *recorder.Notifier[Progress]
}

// NewRunner creates a runner. Zero option values use the defaults.
func NewRunner(factory Factory, options Options) *Runner {
	defaults := DefaultOptions()
	if options.Threads <= 0 {
		options.Threads = defaults.Threads
	}
	if options.Timeout == 0 {
		options.Timeout = defaults.Timeout
	}
	if options.Logger == nil {
		options.Logger = defaults.Logger
	}

	return &Runner{
		factory:  factory,
		options:  options,
		notifier: recorder.NewNotifier[Progress](64),
	}
}

// Subscribe returns a channel of progress events for runs started afterwards.
func (r *Runner) Subscribe(ctx context.Context) <-chan Progress {
	return r.notifier.Subscribe(ctx)
}

// Close closes all progress subscriptions.
func (r *Runner) Close() {
	r.notifier.Close()
}

// Run executes all jobs and returns their outcomes in job order.
// A failed login never stops other jobs. If ctx is canceled, jobs not yet started
// are reported as not started and ctx.Err() is returned with the summary.
func (r *Runner) Run(ctx context.Context, jobs []Job) (Summary, error) {
	runID, err := uuid.NewV4()
	if err != nil {
		return Summary{}, fmt.Errorf("generating run id: %w", err)
	}
	logger := r.options.Logger.With(slog.String("component", "bulk"), slog.String("run", runID.String()))

	summary := Summary{
		RunID:    runID,
		Started:  time.Now(),
		Outcomes: lo.Map(jobs, func(job Job, _ int) Outcome {
			return Outcome{Username: job.Credential.Username, Role: job.Credential.Role, Status: StatusNotStarted}
		}),
	}

	var limiter *rate.Limiter
	if r.options.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.options.Rate), 1)
	}
	sem := semaphore.NewWeighted(int64(r.options.Threads))

	var (
		g    errgroup.Group
		mu   sync.Mutex
		done int
	)
	logger.Info("Starting bulk login", slog.Int("users", len(jobs)), slog.Int("threads", r.options.Threads))

	for i, job := range jobs {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		if ctx.Err() != nil {
			sem.Release(1)
			break
		}

		g.Go(func() error {
			defer sem.Release(1)

			outcome := r.runJob(ctx, job, logger)

			mu.Lock()
			summary.Outcomes[i] = outcome
			done++
			progress := Progress{RunID: runID, Done: done, Total: len(jobs), Outcome: outcome}
			mu.Unlock()

			r.notifier.Publish(progress)
			return nil
		})
	}
	_ = g.Wait()
	summary.Finished = time.Now()

	logger.Info("Bulk login finished",
		slog.Int("succeeded", summary.Count(StatusSucceeded)),
		slog.Int("failed", summary.Count(StatusFailed)),
		slog.Int("skipped", summary.Count(StatusSkipped)),
		slog.Duration("duration", summary.Duration()),
	)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (r *Runner) runJob(ctx context.Context, job Job, logger *slog.Logger) Outcome {
	cred := job.Credential
	outcome := Outcome{Username: cred.Username, Role: cred.Role, Started: time.Now()}
	logger = logger.With(slog.String("user", cred.Username))

	finish := func(status Status, message string) Outcome {
		outcome.Status = status
		outcome.Message = message
		outcome.Finished = time.Now()
		return outcome
	}

	if !cred.Usable() {
		return finish(StatusFailed, config.ErrUnusableCredential.Error())
	}
	if !r.options.Relogin && r.options.Store != nil {
		if value, err := r.options.Store.ReadText(cred.Key()); err == nil && cookie.ValidateCookie(value) {
			logger.Debug("Reusing cached session cookie")
			outcome.Token = cookie.Mask(value)
			return finish(StatusSkipped, "cached session cookie reused")
		}
	}

	auth, err := r.factory()
	if err != nil {
		return finish(StatusFailed, fmt.Sprintf("creating authenticator: %v", err))
	}
	if closer, ok := auth.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Warn("Closing authenticator failed", slog.String("error", err.Error()))
			}
		}()
	}
	if r.options.Store != nil {
		auth = &login.Caching{Next: auth, Store: r.options.Store, Key: login.KeyByUsername, Logger: logger}
	}

	loginCtx, cancel := context.WithTimeout(ctx, r.options.Timeout)
	defer cancel()

	result := auth.Login(loginCtx, login.Request{Credential: cred, LoginURL: job.LoginURL})
	if !result.Success {
		message := result.Message
		if errors.Is(loginCtx.Err(), context.DeadlineExceeded) && message == "" {
			message = fmt.Sprintf("login timed out after %s", r.options.Timeout)
		}
		logger.Warn("Login failed", slog.String("message", message))
		return finish(StatusFailed, message)
	}

	outcome.Token = cookie.Mask(result.SessionToken)
	logger.Info("Login succeeded", slog.String("token", outcome.Token))
	return finish(StatusSucceeded, result.Message)
}
