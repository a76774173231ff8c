package scheduler

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	ErrDuplicateTask  = errors.New("scheduler: duplicate task name")
	ErrInvalidTask    = errors.New("scheduler: invalid task")
	ErrAlreadyStarted = errors.New("scheduler: already started")
)

// TaskFunc is the body of a scheduled task.
type TaskFunc func(ctx context.Context) error

// TaskInfo describes a scheduled task.
type TaskInfo struct {
	Name     string
	Schedule string
	Next     time.Time
	Prev     time.Time
}

// Scheduler runs named tasks on cron schedules. Standard five field
// expressions and descriptors such as @every 1m are accepted. A task that is
// still running when its next run is due is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	tasks   map[string]*task
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// New creates a stopped scheduler that logs through log in the given location.
func New(log *slog.Logger, location *time.Location) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	adapter := &cronLogger{logger: log}

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(location),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		logger: log,
		tasks:  make(map[string]*task),
	}
}

type task struct {
	id   cron.EntryID
	spec string
	fn   TaskFunc
}

// Schedule adds a task. Names are unique.
func (s *Scheduler) Schedule(name, spec string, fn TaskFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("%w: name and task are required", ErrInvalidTask)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, name)
	}

	id, err := s.cron.AddFunc(spec, func() { s.run(s.runContext(), name, fn) })
	if err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q for %s: %w", spec, name, err)
	}

	s.tasks[name] = &task{id: id, spec: spec, fn: fn}
	return nil
}

// Remove drops a task. Reports whether it existed.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[name]
	if !ok {
		return false
	}
	s.cron.Remove(t.id)
	delete(s.tasks, name)
	return true
}

// Tasks describes every task ordered by name.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]TaskInfo, 0, len(s.tasks))
	for name, t := range s.tasks {
		entry := s.cron.Entry(t.id)
		infos = append(infos, TaskInfo{
			Name:     name,
			Schedule: t.spec,
			Next:     entry.Next,
			Prev:     entry.Prev,
		})
	}
	slices.SortFunc(infos, func(a, b TaskInfo) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return infos
}

// Run executes the named task immediately, outside its schedule.
func (s *Scheduler) Run(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: unknown task %s", ErrInvalidTask, name)
	}

	return s.run(ctx, name, t.fn)
}

// Start begins running tasks in the background.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("tasks", len(s.tasks)))
	return nil
}

// Stop stops scheduling, cancels the context of running tasks and waits for
// them to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.started = false
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	if !started {
		return nil
	}

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: stop: %w", ctx.Err())
	}
}

// runContext is the context of the current run, cancelled by Stop.
func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

func (s *Scheduler) run(ctx context.Context, name string, fn TaskFunc) error {
	start := time.Now()
	err := fn(ctx)

	attrs := []any{slog.String("task", name), slog.Duration("duration", time.Since(start))}
	if err != nil {
		s.logger.ErrorContext(ctx, "scheduled task failed", append(attrs, slog.String("error", err.Error()))...)
		return err
	}
	s.logger.DebugContext(ctx, "scheduled task completed", attrs...)
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
