// Package queue serializes replies per channel. Each channel with pending
// work has one worker goroutine that runs its tasks strictly in order with
// randomized pacing around each one; channels proceed independently.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nous-labs/murmur/internal/chance"
	"github.com/nous-labs/murmur/internal/telemetry"
)

// abandonGrace is how long a task may take to return after its context
// ends before the worker gives up on it.
const abandonGrace = 100 * time.Millisecond

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("queue closed")

// Task is one pending reply.
type Task struct {
	ID        string
	Channel   string
	Account   string
	UserID    string
	MessageID string
	Enqueued  time.Time
	// Run generates and delivers the reply. A nil error with nothing sent
	// is a normal drop.
	Run func(ctx context.Context) error
}

// Config sets pacing and bounds.
type Config struct {
	Enabled      bool
	PreDelayMin  time.Duration
	PreDelayMax  time.Duration
	PostDelayMin time.Duration
	PostDelayMax time.Duration
	// TaskTimeout bounds a single Run.
	TaskTimeout time.Duration
}

// DefaultConfig returns the stock pacing: 2-7s before a task, 1-4s after.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		PreDelayMin:  2 * time.Second,
		PreDelayMax:  7 * time.Second,
		PostDelayMin: 1 * time.Second,
		PostDelayMax: 4 * time.Second,
		TaskTimeout:  90 * time.Second,
	}
}

type channelQueue struct {
	tasks []Task // head is in flight while its worker runs it
}

// Scheduler owns every channel queue.
type Scheduler struct {
	cfg Config
	rng chance.Source

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	queues map[string]*channelQueue
	closed bool
}

// New creates a scheduler. Workers stop when parent is cancelled or Close
// is called.
func New(parent context.Context, cfg Config, rng chance.Source) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{
		cfg:    cfg,
		rng:    rng,
		ctx:    ctx,
		cancel: cancel,
		queues: make(map[string]*channelQueue),
	}
}

// Enqueue appends task to its channel's queue, starting a worker if the
// channel had none. With the queue disabled the task runs immediately on
// the caller's goroutine.
func (s *Scheduler) Enqueue(task Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Enqueued.IsZero() {
		task.Enqueued = time.Now()
	}

	if !s.cfg.Enabled {
		if s.ctx.Err() != nil {
			return ErrClosed
		}
		s.run(task)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	q, ok := s.queues[task.Channel]
	if ok {
		q.tasks = append(q.tasks, task)
		telemetry.SetQueueDepth(task.Channel, len(q.tasks))
		return nil
	}
	q = &channelQueue{tasks: []Task{task}}
	s.queues[task.Channel] = q
	telemetry.SetQueueDepth(task.Channel, 1)
	telemetry.SetActiveQueues(len(s.queues))

	s.wg.Add(1)
	go s.work(task.Channel, q)
	return nil
}

func (s *Scheduler) work(channel string, q *channelQueue) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if len(q.tasks) == 0 {
			delete(s.queues, channel)
			telemetry.SetQueueDepth(channel, 0)
			telemetry.SetActiveQueues(len(s.queues))
			s.mu.Unlock()
			return
		}
		task := q.tasks[0]
		s.mu.Unlock()

		if s.pause(s.cfg.PreDelayMin, s.cfg.PreDelayMax) {
			s.run(task)
			s.pause(s.cfg.PostDelayMin, s.cfg.PostDelayMax)
		}

		s.mu.Lock()
		q.tasks = q.tasks[1:]
		if s.ctx.Err() != nil {
			if len(q.tasks) > 0 {
				slog.Warn("dropping queued replies on shutdown", "channel", channel, "pending", len(q.tasks))
			}
			q.tasks = nil
		}
		telemetry.SetQueueDepth(channel, len(q.tasks))
		s.mu.Unlock()
	}
}

// run executes task under the per-task bound. A Run that ignores its
// context is abandoned once the bound passes so the channel moves on.
func (s *Scheduler) run(task Task) {
	start := time.Now()
	ctx := s.ctx
	if s.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TaskTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("reply task panicked", "task", task.ID, "channel", task.Channel, "panic", r)
				done <- nil
			}
		}()
		done <- task.Run(ctx)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		grace := time.NewTimer(abandonGrace)
		defer grace.Stop()
		select {
		case err = <-done:
		case <-grace.C:
			slog.Warn("abandoning reply task past its bound", "task", task.ID, "channel", task.Channel, "timeout", s.cfg.TaskTimeout)
			err = ctx.Err()
		}
	}
	telemetry.Observe(telemetry.TaskDuration, time.Since(start).Seconds())
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		slog.Warn("reply task timed out", "task", task.ID, "channel", task.Channel, "timeout", s.cfg.TaskTimeout)
	case errors.Is(err, context.Canceled):
	default:
		slog.Warn("reply task failed", "task", task.ID, "channel", task.Channel, "error", err)
	}
}

// pause sleeps a random duration in [lo, hi]. It reports false if the
// scheduler stopped meanwhile.
func (s *Scheduler) pause(lo, hi time.Duration) bool {
	d := chance.Between(s.rng, lo, hi)
	if d <= 0 {
		return s.ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Len returns the pending count for channel, including the task in flight.
func (s *Scheduler) Len(channel string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.queues[channel]; ok {
		return len(q.tasks)
	}
	return 0
}

// Channels returns how many channels have a live worker.
func (s *Scheduler) Channels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}

// Close stops accepting tasks, cancels pending pacing and waits for
// workers to exit.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
