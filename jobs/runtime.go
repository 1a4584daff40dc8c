// Package jobs schedules the BBS server's two background duties: reaping
// stale sessions and refreshing remote apps (spec.md §9's Open Question on
// "who invokes SessionSvc.Reap" — resolved here by running both on a
// periodic Asynq schedule rather than leaving them uninvoked). Grounded on
// the teacher's jobs.Runtime: same Client/Server/Mux/Scheduler shape, new
// handlers.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/relaybbs/bbskit/registry"
	"github.com/relaybbs/bbskit/sandbox/remoteapp"
	"github.com/relaybbs/bbskit/session"
)

const (
	TaskReapSessions    = "session:reap"
	TaskRefreshRemotes  = "registry:refresh_remote"
	sessionMaxAge       = 30 * 24 * time.Hour // spec.md §9: 30-day session reaper
	refreshInterval     = 15 * time.Minute
	reapInterval        = time.Hour
)

// Runtime encapsulates the Asynq client, server, mux, and scheduler. With no
// RedisURL it degrades to a no-op runtime, the same fallback the teacher
// used for development without Redis.
type Runtime struct {
	Client    *asynq.Client
	Server    *asynq.Server
	Mux       *asynq.ServeMux
	Scheduler *asynq.Scheduler

	sessions *session.Service
	reg      *registry.Registry
	loader   *remoteapp.Loader
}

// NewRuntime creates a job runtime bound to the services the scheduled
// tasks act on.
func NewRuntime(redisURL string, sessions *session.Service, reg *registry.Registry, loader *remoteapp.Loader) (*Runtime, error) {
	rt := &Runtime{Mux: asynq.NewServeMux(), sessions: sessions, reg: reg, loader: loader}
	if redisURL == "" {
		return rt, nil
	}

	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("jobs: invalid redis URL: %w", err)
	}

	rt.Client = asynq.NewClient(opt)
	rt.Server = asynq.NewServer(opt, asynq.Config{
		Concurrency:  5,
		Queues:       map[string]int{"default": 1},
		ErrorHandler: asynq.ErrorHandlerFunc(rt.handleError),
		Logger:       &logger{},
	})
	rt.Scheduler = asynq.NewScheduler(opt, &asynq.SchedulerOpts{Logger: &logger{}})

	return rt, nil
}

// RegisterDefaults wires the handlers and periodic schedule for both
// background duties.
func (r *Runtime) RegisterDefaults() error {
	r.Mux.HandleFunc(TaskReapSessions, r.handleReapSessions)
	r.Mux.HandleFunc(TaskRefreshRemotes, r.handleRefreshRemotes)

	if r.Scheduler == nil {
		return nil
	}
	if _, err := r.Scheduler.Register(fmt.Sprintf("@every %s", reapInterval), asynq.NewTask(TaskReapSessions, nil)); err != nil {
		return fmt.Errorf("jobs: schedule %s: %w", TaskReapSessions, err)
	}
	if _, err := r.Scheduler.Register(fmt.Sprintf("@every %s", refreshInterval), asynq.NewTask(TaskRefreshRemotes, nil)); err != nil {
		return fmt.Errorf("jobs: schedule %s: %w", TaskRefreshRemotes, err)
	}
	return nil
}

// Start begins processing and scheduling jobs. A Runtime with no Redis
// configured is a deliberate no-op, mirroring the teacher's dev-mode
// fallback.
func (r *Runtime) Start() error {
	if r.Server == nil {
		log.Println("jobs: no redis configured, background scheduling disabled")
		return nil
	}
	go func() {
		if err := r.Scheduler.Run(); err != nil {
			log.Printf("jobs: scheduler stopped: %v", err)
		}
	}()
	return r.Server.Start(r.Mux)
}

// Enqueue submits a one-off task immediately, bypassing the periodic
// schedule. Used by admin tooling to trigger a reap or refresh on demand.
func (r *Runtime) Enqueue(taskType string) error {
	if r.Client == nil {
		return fmt.Errorf("jobs: no redis configured, cannot enqueue %s", taskType)
	}
	_, err := r.Client.Enqueue(asynq.NewTask(taskType, nil))
	if err != nil {
		return fmt.Errorf("jobs: enqueue %s: %w", taskType, err)
	}
	return nil
}

// Stop gracefully shuts down the job processor.
func (r *Runtime) Stop() error {
	if r.Server == nil {
		return nil
	}
	r.Scheduler.Shutdown()
	r.Server.Shutdown()
	return r.Client.Close()
}

func (r *Runtime) handleReapSessions(ctx context.Context, t *asynq.Task) error {
	n, err := r.sessions.Reap(ctx, sessionMaxAge)
	if err != nil {
		return fmt.Errorf("jobs: reap sessions: %w", err)
	}
	log.Printf("jobs: reaped %d stale sessions", n)
	return nil
}

func (r *Runtime) handleRefreshRemotes(ctx context.Context, t *asynq.Task) error {
	errs := r.reg.RefreshRemoteAll(ctx, r.loader)
	for url, err := range errs {
		log.Printf("jobs: refresh failed for %s: %v", url, err)
	}
	log.Printf("jobs: refreshed remote apps (%d failures)", len(errs))
	return nil
}

func (r *Runtime) handleError(ctx context.Context, task *asynq.Task, err error) {
	log.Printf("jobs: error processing %s: %v", task.Type(), err)
}

// logger adapts Go's log package to asynq's Logger interface, the same
// shape the teacher's jobs.Runtime used.
type logger struct{}

func (l *logger) Debug(args ...any) {}
func (l *logger) Info(args ...any)  { log.Println(append([]any{"jobs:"}, args...)...) }
func (l *logger) Warn(args ...any)  { log.Println(append([]any{"jobs: warn:"}, args...)...) }
func (l *logger) Error(args ...any) { log.Println(append([]any{"jobs: error:"}, args...)...) }
func (l *logger) Fatal(args ...any) { log.Fatal(append([]any{"jobs: fatal:"}, args...)...) }
