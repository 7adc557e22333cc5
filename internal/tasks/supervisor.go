// Package tasks supervises background work started on behalf of a request
// that does not wait for it.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riskintel/backend/pkg/logger"
)

var ErrShuttingDown = errors.New("supervisor is shutting down")

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

type Task struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Subject    string     `json:"subject"`
	Status     Status     `json:"status"`
	QueuedAt   time.Time  `json:"queued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Event is published on every task state change.
type Event struct {
	Task Task `json:"task"`
}

type Stats struct {
	Workers   int    `json:"workers"`
	Queued    int    `json:"queued"`
	Running   int    `json:"running"`
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
}

type Supervisor struct {
	workers int
	sem     chan struct{}

	mu        sync.Mutex
	active    map[string]*Task
	recent    []Task
	history   int
	succeeded uint64
	failed    uint64
	closed    bool

	subsMu  sync.Mutex
	subs    map[int]chan Event
	nextSub int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a supervisor running at most workers tasks at once and
// remembering the last history completions.
func New(workers, history int) *Supervisor {
	if workers <= 0 {
		workers = 4
	}
	if history <= 0 {
		history = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		workers: workers,
		sem:     make(chan struct{}, workers),
		active:  make(map[string]*Task),
		history: history,
		subs:    make(map[int]chan Event),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit queues fn and returns its task id without waiting. fn receives a
// context that is cancelled only when Shutdown gives up waiting.
func (s *Supervisor) Submit(kind, subject string, fn func(ctx context.Context) error) (string, error) {
	task := &Task{
		ID:       uuid.NewString(),
		Kind:     kind,
		Subject:  subject,
		Status:   StatusQueued,
		QueuedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrShuttingDown
	}
	s.active[task.ID] = task
	s.wg.Add(1)
	snapshot := *task
	s.mu.Unlock()

	s.publish(snapshot)
	go s.run(task, fn)

	return task.ID, nil
}

func (s *Supervisor) run(task *Task, fn func(ctx context.Context) error) {
	defer s.wg.Done()

	select {
	case s.sem <- struct{}{}:
	case <-s.ctx.Done():
		s.complete(task, fmt.Errorf("cancelled before start: %w", s.ctx.Err()))
		return
	}
	defer func() { <-s.sem }()

	if err := s.ctx.Err(); err != nil {
		s.complete(task, fmt.Errorf("cancelled before start: %w", err))
		return
	}

	s.mu.Lock()
	now := time.Now().UTC()
	task.Status = StatusRunning
	task.StartedAt = &now
	snapshot := *task
	s.mu.Unlock()
	s.publish(snapshot)

	s.complete(task, s.invoke(task, fn))
}

func (s *Supervisor) invoke(task *Task, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Task panicked",
				zap.String("task_id", task.ID),
				zap.String("kind", task.Kind),
				zap.String("panic", fmt.Sprint(r)),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(s.ctx)
}

func (s *Supervisor) complete(task *Task, err error) {
	s.mu.Lock()
	now := time.Now().UTC()
	task.FinishedAt = &now
	if err != nil {
		task.Status = StatusFailed
		task.Error = err.Error()
		s.failed++
	} else {
		task.Status = StatusSucceeded
		s.succeeded++
	}
	delete(s.active, task.ID)
	s.recent = append(s.recent, *task)
	if len(s.recent) > s.history {
		s.recent = s.recent[len(s.recent)-s.history:]
	}
	snapshot := *task
	s.mu.Unlock()

	if err != nil {
		logger.Warn("Task failed", zap.String("task_id", task.ID), zap.String("kind", task.Kind), zap.Error(err))
	} else {
		logger.Debug("Task finished", zap.String("task_id", task.ID), zap.String("kind", task.Kind))
	}
	s.publish(snapshot)
}

// Get returns a queued, running or recently finished task.
func (s *Supervisor) Get(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.active[id]; ok {
		return *t, true
	}
	for i := len(s.recent) - 1; i >= 0; i-- {
		if s.recent[i].ID == id {
			return s.recent[i], true
		}
	}
	return Task{}, false
}

// Recent returns finished tasks, newest first.
func (s *Supervisor) Recent() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Task, 0, len(s.recent))
	for i := len(s.recent) - 1; i >= 0; i-- {
		out = append(out, s.recent[i])
	}
	return out
}

func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Workers: s.workers, Succeeded: s.succeeded, Failed: s.failed}
	for _, t := range s.active {
		if t.Status == StatusRunning {
			st.Running++
		} else {
			st.Queued++
		}
	}
	return st
}

// Subscribe returns a channel of task events and a function that ends the
// subscription. Events are dropped for subscribers that fall behind.
func (s *Supervisor) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
			s.subsMu.Unlock()
		})
	}
}

func (s *Supervisor) publish(t Task) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- Event{Task: t}:
		default:
		}
	}
}

// Shutdown stops accepting work and waits for queued and running tasks.
// When ctx ends first, task contexts are cancelled and ctx's error returned.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("Task drain timed out, cancelling")
		s.cancel()
		<-done
		err = ctx.Err()
	}
	s.cancel()

	s.subsMu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subsMu.Unlock()

	return err
}
