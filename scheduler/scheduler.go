// Package scheduler implements the fixed-capacity, priority-aware
// cooperative task scheduler every other component's periodic work runs
// under. It is a direct translation of the original Scheduler module.
package scheduler

import (
	"github.com/sasha-s/go-deadlock"

	"github.com/mlabs-dev/obd2core/internal/clock"
	"github.com/mlabs-dev/obd2core/internal/errsink"
	"github.com/mlabs-dev/obd2core/obd2"
)

// MaxTasks is the fixed capacity of the task table.
const MaxTasks = 16

// MinIntervalMs is the floor applied to any non-zero task interval,
// regardless of a caller-requested lower value.
const MinIntervalMs = 10

// Priority orders tasks when more than one is due in the same tick; lower
// values run first.
type Priority uint8

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
	PriorityBackground
	priorityMax
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "Critical"
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityLow:
		return "Low"
	case PriorityBackground:
		return "Background"
	default:
		return "Unknown"
	}
}

// State is a task's current lifecycle state.
type State uint8

const (
	StateIdle State = iota
	StatePending
	StateRunning
	StateBlocked
	StateDisabled
	stateMax
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePending:
		return "Pending"
	case StateRunning:
		return "Running"
	case StateBlocked:
		return "Blocked"
	case StateDisabled:
		return "Disabled"
	default:
		return "Unknown"
	}
}

// Func is the work a task performs. It returns the shared Result taxonomy,
// never panics.
type Func func() obd2.Result

// CompleteCallback is invoked synchronously after every task run.
type CompleteCallback func(taskID byte, result obd2.Result)

// Task is one scheduled unit of work.
type Task struct {
	ID          byte
	Name        string
	fn          Func
	Priority    Priority
	State       State
	IntervalMs  uint16
	LastRunMs   uint32
	NextRunMs   uint32
	RunCount    uint16
	ErrorCount  uint16
	Enabled     bool
	OneShot     bool
}

// Config configures a Scheduler.
type Config struct {
	Clock        clock.Source
	Sink         errsink.Sink
	OnComplete   CompleteCallback
	MinIntervalMs uint16
}

// Scheduler is a fixed-capacity, priority-ordered cooperative task runner.
// It is not safe for concurrent use without the embedded lock; exported
// methods all take it, so a Scheduler can be driven from more than one
// goroutine (e.g. a tick loop plus an out-of-band TriggerTask call).
type Scheduler struct {
	mu            deadlock.Mutex
	tasks         []Task
	running       bool
	clock         clock.Source
	sink          errsink.Sink
	onComplete    CompleteCallback
	minIntervalMs uint16
	totalRuns     uint32
	totalErrors   uint32
}

// New constructs a ready-to-use Scheduler. A nil Clock defaults to
// clock.System(); a nil Sink defaults to errsink.Nop. MinIntervalMs below
// MinIntervalMs is clamped up to it.
func New(cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Sink == nil {
		cfg.Sink = errsink.Nop
	}
	min := cfg.MinIntervalMs
	if min < MinIntervalMs {
		min = MinIntervalMs
	}
	return &Scheduler{
		tasks:         make([]Task, 0, MaxTasks),
		clock:         cfg.Clock,
		sink:          cfg.Sink,
		onComplete:    cfg.OnComplete,
		minIntervalMs: min,
	}
}

func (s *Scheduler) findTask(id byte) *Task {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return &s.tasks[i]
		}
	}
	return nil
}

func (s *Scheduler) nextTaskID() byte {
	var max byte
	for _, t := range s.tasks {
		if t.ID > max {
			max = t.ID
		}
	}
	return max + 1
}

func (s *Scheduler) clampInterval(intervalMs uint16) uint16 {
	if intervalMs > 0 && intervalMs < s.minIntervalMs {
		return s.minIntervalMs
	}
	return intervalMs
}

// AddTask registers a new task and returns its assigned id. Fails with
// ResultBufferFull once MaxTasks tasks are registered, and
// ResultInvalidParam for an out-of-range priority.
func (s *Scheduler) AddTask(name string, fn Func, priority Priority, intervalMs uint16, oneShot bool) (id byte, result obd2.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fn == nil {
		return 0, obd2.ResultInvalidParam
	}
	if priority >= priorityMax {
		return 0, obd2.ResultInvalidParam
	}
	if len(s.tasks) >= MaxTasks {
		s.sink.Report(errsink.CodeSchedulerQueueFull, errsink.SeverityError)
		return 0, obd2.ResultBufferFull
	}

	newID := s.nextTaskID()
	interval := s.clampInterval(intervalMs)
	now := s.clock()

	s.tasks = append(s.tasks, Task{
		ID:         newID,
		Name:       name,
		fn:         fn,
		Priority:   priority,
		State:      StateIdle,
		IntervalMs: interval,
		Enabled:    true,
		OneShot:    oneShot,
		NextRunMs:  now + uint32(interval),
	})

	return newID, obd2.ResultOK
}

// RemoveTask deletes a task, preserving the relative order of the rest.
func (s *Scheduler) RemoveTask(id byte) obd2.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return obd2.ResultOK
		}
	}
	s.sink.Report(errsink.CodeSchedulerTaskNotFound, errsink.SeverityWarning)
	return obd2.ResultError
}

// EnableTask re-arms a disabled task, scheduling its next run interval_ms
// from now.
func (s *Scheduler) EnableTask(id byte) obd2.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := s.findTask(id)
	if task == nil {
		return obd2.ResultError
	}
	task.Enabled = true
	task.State = StateIdle
	task.NextRunMs = s.clock() + uint32(task.IntervalMs)
	return obd2.ResultOK
}

// DisableTask stops a task from being scheduled until re-enabled.
func (s *Scheduler) DisableTask(id byte) obd2.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := s.findTask(id)
	if task == nil {
		return obd2.ResultError
	}
	task.Enabled = false
	task.State = StateDisabled
	return obd2.ResultOK
}

// SetInterval changes a task's poll interval, clamped to MinIntervalMs.
func (s *Scheduler) SetInterval(id byte, intervalMs uint16) obd2.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := s.findTask(id)
	if task == nil {
		return obd2.ResultError
	}
	task.IntervalMs = s.clampInterval(intervalMs)
	return obd2.ResultOK
}

// SetPriority changes a task's scheduling priority.
func (s *Scheduler) SetPriority(id byte, priority Priority) obd2.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if priority >= priorityMax {
		return obd2.ResultInvalidParam
	}
	task := s.findTask(id)
	if task == nil {
		return obd2.ResultError
	}
	task.Priority = priority
	return obd2.ResultOK
}

// TriggerTask marks a task as immediately due, regardless of its normal
// interval.
func (s *Scheduler) TriggerTask(id byte) obd2.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := s.findTask(id)
	if task == nil {
		return obd2.ResultError
	}
	task.State = StatePending
	task.NextRunMs = s.clock()
	return obd2.ResultOK
}

// Update runs at most one due task per call: the highest-priority due task,
// breaking ties by earliest due time. It is the cooperative scheduler's
// single tick entry point; the runner calls it once per tick.
func (s *Scheduler) Update() obd2.Result {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return obd2.ResultOK
	}

	now := s.clock()

	var best *Task
	bestPriority := priorityMax
	var earliestDue uint32 = 0xFFFFFFFF

	for i := range s.tasks {
		task := &s.tasks[i]
		if !task.Enabled || task.State == StateDisabled || task.State == StateRunning {
			continue
		}
		if !clock.IsDue(now, task.NextRunMs) {
			continue
		}
		if task.Priority < bestPriority || (task.Priority == bestPriority && task.NextRunMs < earliestDue) {
			best = task
			bestPriority = task.Priority
			earliestDue = task.NextRunMs
		}
	}

	if best == nil {
		s.mu.Unlock()
		return obd2.ResultOK
	}

	best.State = StateRunning
	fn := best.fn
	s.mu.Unlock()

	result := fn()

	s.mu.Lock()
	defer s.mu.Unlock()

	best.LastRunMs = now
	best.RunCount++
	s.totalRuns++

	if result != obd2.ResultOK {
		best.ErrorCount++
		s.totalErrors++
	}

	if s.onComplete != nil {
		s.onComplete(best.ID, result)
	}

	if best.OneShot {
		best.Enabled = false
		best.State = StateDisabled
	} else {
		best.State = StateIdle
		best.NextRunMs = now + uint32(best.IntervalMs)
	}

	return obd2.ResultOK
}

// Start arms every currently enabled task, scheduling each one interval_ms
// from now, and begins accepting Update calls.
func (s *Scheduler) Start() obd2.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	for i := range s.tasks {
		if s.tasks[i].Enabled {
			s.tasks[i].State = StateIdle
			s.tasks[i].NextRunMs = now + uint32(s.tasks[i].IntervalMs)
		}
	}
	s.running = true
	return obd2.ResultOK
}

// Stop suspends Update from running any task until Start is called again.
func (s *Scheduler) Stop() obd2.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return obd2.ResultOK
}

// IsRunning reports whether the scheduler is currently accepting ticks.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TaskCount returns the number of registered tasks.
func (s *Scheduler) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// TaskInfo returns a snapshot of a registered task's state.
func (s *Scheduler) TaskInfo(id byte) (Task, obd2.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := s.findTask(id)
	if task == nil {
		return Task{}, obd2.ResultError
	}
	return *task, obd2.ResultOK
}

// NextTask returns the id and time-until-due of the task with the nearest
// NextRunMs among enabled tasks.
func (s *Scheduler) NextTask() (id byte, timeUntilMs uint32, result obd2.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	earliestTime := uint32(0xFFFFFFFF)
	earliestID := byte(0xFF)

	for _, task := range s.tasks {
		if !task.Enabled || task.State == StateDisabled {
			continue
		}
		if task.NextRunMs < earliestTime {
			earliestTime = task.NextRunMs
			earliestID = task.ID
		}
	}

	if earliestID == 0xFF {
		return 0, 0, obd2.ResultNoData
	}

	var until uint32
	if !clock.IsDue(now, earliestTime) {
		until = clock.Elapsed(earliestTime, now)
	}
	return earliestID, until, obd2.ResultOK
}

// TotalRuns returns the number of task runs since the Scheduler was
// constructed.
func (s *Scheduler) TotalRuns() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalRuns
}

// TotalErrors returns the number of task runs that completed with a
// non-OK result.
func (s *Scheduler) TotalErrors() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalErrors
}
