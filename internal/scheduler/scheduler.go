// Package scheduler runs the periodic housekeeping jobs of the servers:
// expiring sessions and workspaces, pruning the audit trail, sweeping rate
// limiter buckets.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"grimm.is/rulegate/internal/clock"
	"grimm.is/rulegate/internal/logging"
)

// TaskFunc performs one run of a task. ctx is cancelled when the scheduler
// stops or the task's timeout expires.
type TaskFunc func(ctx context.Context) error

// Schedule defines when a task should run.
type Schedule interface {
	// Next returns the next time the task should run after the given time.
	Next(after time.Time) time.Time
}

// IntervalSchedule runs a task at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// Every creates an interval schedule.
func Every(d time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: d}
}

// Next implements Schedule.
func (s *IntervalSchedule) Next(after time.Time) time.Time {
	return after.Add(s.Interval)
}

// Task is a scheduled job.
type Task struct {
	ID         string
	Name       string
	Schedule   Schedule
	Func       TaskFunc
	Enabled    bool
	RunOnStart bool
	Timeout    time.Duration
}

// TaskStatus reports the history of a task.
type TaskStatus struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Enabled      bool          `json:"enabled"`
	LastRun      time.Time     `json:"last_run,omitempty"`
	LastDuration time.Duration `json:"last_duration,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	NextRun      time.Time     `json:"next_run,omitempty"`
	RunCount     int64         `json:"run_count"`
	ErrorCount   int64         `json:"error_count"`
}

// Scheduler manages and runs scheduled tasks.
type Scheduler struct {
	tasks   map[string]*taskEntry
	mu      sync.RWMutex
	logger  *logging.Logger
	tick    time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

type taskEntry struct {
	task    *Task
	status  TaskStatus
	nextRun time.Time
	active  bool
}

// New creates a scheduler. A nil logger uses the default.
func New(logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		tasks:  make(map[string]*taskEntry),
		logger: logger.WithComponent("scheduler"),
		tick:   time.Second,
	}
}

// AddTask adds a task to the scheduler.
func (s *Scheduler) AddTask(task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.ID == "" {
		return fmt.Errorf("task ID is required")
	}
	if task.Schedule == nil {
		return fmt.Errorf("task schedule is required")
	}
	if task.Func == nil {
		return fmt.Errorf("task function is required")
	}
	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}

	entry := &taskEntry{
		task:   task,
		status: TaskStatus{ID: task.ID, Name: task.Name, Enabled: task.Enabled},
	}
	if task.Enabled {
		entry.nextRun = task.Schedule.Next(clock.Now())
		entry.status.NextRun = entry.nextRun
	}

	s.tasks[task.ID] = entry
	s.logger.Debug("task added", "id", task.ID, "name", task.Name)
	return nil
}

// Every adds an enabled interval task.
func (s *Scheduler) Every(id, name string, interval time.Duration, fn TaskFunc) error {
	return s.AddTask(&Task{
		ID:       id,
		Name:     name,
		Schedule: Every(interval),
		Func:     fn,
		Enabled:  true,
		Timeout:  interval,
	})
}

// RunTask runs a task now, regardless of its schedule. It does not wait.
func (s *Scheduler) RunTask(id string) error {
	s.mu.RLock()
	entry, exists := s.tasks[id]
	running := s.running
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("task %s not found", id)
	}
	if !running {
		return fmt.Errorf("scheduler is not running")
	}
	s.launch(entry)
	return nil
}

// GetStatus returns the status of all tasks, sorted by name.
func (s *Scheduler) GetStatus() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]TaskStatus, 0, len(s.tasks))
	for _, entry := range s.tasks {
		statuses = append(statuses, entry.status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})
	return statuses
}

// GetTaskStatus returns the status of a specific task.
func (s *Scheduler) GetTaskStatus(id string) (TaskStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.tasks[id]
	if !exists {
		return TaskStatus{}, false
	}
	return entry.status, true
}

// Start runs the scheduler until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	var onStart []*taskEntry
	for _, entry := range s.tasks {
		if entry.task.Enabled && entry.task.RunOnStart {
			onStart = append(onStart, entry)
		}
	}
	s.mu.Unlock()

	s.logger.Debug("scheduler started", "tasks", len(s.tasks))
	for _, entry := range onStart {
		s.launch(entry)
	}
	go s.run()
}

// Stop stops the scheduler and waits for running tasks to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Debug("scheduler stopped")
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		case <-ticker.C:
			s.runDue(clock.Now())
		}
	}
}

// runDue launches every enabled task whose next run is not after now.
func (s *Scheduler) runDue(now time.Time) {
	s.mu.RLock()
	var due []*taskEntry
	for _, entry := range s.tasks {
		if entry.task.Enabled && !entry.nextRun.IsZero() && !now.Before(entry.nextRun) {
			due = append(due, entry)
		}
	}
	s.mu.RUnlock()

	for _, entry := range due {
		s.launch(entry)
	}
}

// launch starts entry unless a run of it is still active.
func (s *Scheduler) launch(entry *taskEntry) {
	s.mu.Lock()
	if entry.active || !s.running {
		s.mu.Unlock()
		return
	}
	entry.active = true
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	go s.execute(ctx, entry)
}

func (s *Scheduler) execute(parent context.Context, entry *taskEntry) {
	defer s.wg.Done()

	task := entry.task
	ctx := parent
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, task.Timeout)
		defer cancel()
	}

	start := clock.Now()
	err := task.Func(ctx)
	duration := clock.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()
	entry.active = false
	entry.status.LastRun = start
	entry.status.LastDuration = duration
	entry.status.RunCount++
	if err != nil {
		entry.status.LastError = err.Error()
		entry.status.ErrorCount++
		s.logger.Warn("task failed", "id", task.ID, "error", err, "duration", duration)
	} else {
		entry.status.LastError = ""
		s.logger.Debug("task completed", "id", task.ID, "duration", duration)
	}
	if task.Enabled {
		entry.nextRun = task.Schedule.Next(clock.Now())
		entry.status.NextRun = entry.nextRun
	}
}
