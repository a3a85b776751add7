package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrTaskRunning    = errors.New("task is already running")
	ErrTaskRegistered = errors.New("task already registered")
)

// TaskFunc is the function signature for scheduled tasks.
type TaskFunc func(ctx context.Context) error

// TaskConfig contains configuration for a scheduled task.
type TaskConfig struct {
	ID          string
	Name        string
	Description string
	Cron        string // standard five-field cron, e.g. "30 3 * * *"
	Func        TaskFunc
	RunOnStart  bool
}

// TaskInfo describes a registered task for the status API.
type TaskInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Cron        string     `json:"cron"`
	LastRun     *time.Time `json:"lastRun,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	NextRun     *time.Time `json:"nextRun,omitempty"`
	Running     bool       `json:"running"`
}

type taskEntry struct {
	config    TaskConfig
	job       gocron.Job
	lastRun   *time.Time
	lastError string
	running   bool
}

// Scheduler runs background tasks on cron schedules. A task never overlaps
// with itself, and Stop cancels the context handed to running tasks.
type Scheduler struct {
	gocron gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger

	mu    sync.RWMutex
	tasks map[string]*taskEntry
}

// New creates a new scheduler.
func New(logger zerolog.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		gocron: gs,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With().Str("component", "scheduler").Logger(),
		tasks:  make(map[string]*taskEntry),
	}, nil
}

// RegisterTask adds a task. Invalid cron expressions are rejected here
// rather than at first run.
func (s *Scheduler) RegisterTask(cfg TaskConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[cfg.ID]; exists {
		return fmt.Errorf("%w: %q", ErrTaskRegistered, cfg.ID)
	}
	if cfg.Name == "" {
		cfg.Name = cfg.ID
	}

	job, err := s.gocron.NewJob(
		gocron.CronJob(cfg.Cron, false),
		gocron.NewTask(func() { s.execute(cfg.ID) }),
		gocron.WithName(cfg.Name),
		gocron.WithTags(cfg.ID),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule task %q: %w", cfg.ID, err)
	}

	s.tasks[cfg.ID] = &taskEntry{config: cfg, job: job}

	s.logger.Info().
		Str("id", cfg.ID).
		Str("cron", cfg.Cron).
		Bool("runOnStart", cfg.RunOnStart).
		Msg("Registered task")
	return nil
}

// execute runs a task unless it is already running.
func (s *Scheduler) execute(taskID string) {
	s.mu.Lock()
	entry, exists := s.tasks[taskID]
	if !exists || entry.running {
		s.mu.Unlock()
		return
	}
	entry.running = true
	s.mu.Unlock()

	started := time.Now()
	s.logger.Debug().Str("id", taskID).Msg("Starting task")

	err := s.run(entry.config)

	s.mu.Lock()
	entry.running = false
	entry.lastRun = &started
	entry.lastError = ""
	if err != nil {
		entry.lastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Str("id", taskID).Dur("duration", time.Since(started)).Msg("Task failed")
		return
	}
	s.logger.Info().Str("id", taskID).Dur("duration", time.Since(started)).Msg("Task completed")
}

func (s *Scheduler) run(cfg TaskConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return cfg.Func(s.ctx)
}

// Start starts the scheduler and kicks off RunOnStart tasks.
func (s *Scheduler) Start() {
	s.gocron.Start()

	s.mu.RLock()
	var startup []string
	for id, entry := range s.tasks {
		if entry.config.RunOnStart {
			startup = append(startup, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range startup {
		go s.execute(id)
	}
	s.logger.Info().Int("tasks", len(s.tasks)).Msg("Scheduler started")
}

// Stop cancels running tasks and shuts gocron down.
func (s *Scheduler) Stop() error {
	s.cancel()
	if err := s.gocron.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// RunNow triggers a task immediately in the background.
func (s *Scheduler) RunNow(taskID string) error {
	s.mu.RLock()
	entry, exists := s.tasks[taskID]
	running := exists && entry.running
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	if running {
		return fmt.Errorf("%w: %q", ErrTaskRunning, taskID)
	}

	go s.execute(taskID)
	return nil
}

// ListTasks returns all registered tasks ordered by id.
func (s *Scheduler) ListTasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]TaskInfo, 0, len(s.tasks))
	for _, entry := range s.tasks {
		tasks = append(tasks, entry.info())
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}

// GetTask returns a single task.
func (s *Scheduler) GetTask(taskID string) (*TaskInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}
	info := entry.info()
	return &info, nil
}

func (e *taskEntry) info() TaskInfo {
	info := TaskInfo{
		ID:          e.config.ID,
		Name:        e.config.Name,
		Description: e.config.Description,
		Cron:        e.config.Cron,
		LastRun:     e.lastRun,
		LastError:   e.lastError,
		Running:     e.running,
	}
	if next, err := e.job.NextRun(); err == nil && !next.IsZero() {
		info.NextRun = &next
	}
	return info
}
