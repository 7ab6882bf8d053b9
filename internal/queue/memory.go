package queue

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Queue for tests and single-node development. It
// keeps the same delivery semantics as the Redis implementation.
type Memory struct {
	policy Policy

	mu        sync.Mutex
	pending   map[string]bool
	completed []Job
	dead      []DeadJob
	timers    []*time.Timer

	ready chan Job
}

func NewMemory(policy Policy) *Memory {
	return &Memory{
		policy:  policy,
		pending: make(map[string]bool),
		ready:   make(chan Job, 1024),
	}
}

func (m *Memory) Enqueue(_ context.Context, job Job) error {
	m.mu.Lock()
	if m.pending[job.Key()] {
		m.mu.Unlock()
		return nil
	}
	m.pending[job.Key()] = true
	m.mu.Unlock()

	m.ready <- job
	return nil
}

func (m *Memory) Dequeue(ctx context.Context) (Job, error) {
	select {
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case job := <-m.ready:
		job.Attempt++
		return job, nil
	}
}

func (m *Memory) Complete(_ context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, job.Key())
	m.completed = append(m.completed, job)
	if n := len(m.completed) - m.policy.CompletedRetention; n > 0 {
		m.completed = m.completed[n:]
	}
	return nil
}

func (m *Memory) Fail(_ context.Context, job Job, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job.Attempt >= m.policy.MaxAttempts {
		delete(m.pending, job.Key())
		m.dead = append(m.dead, DeadJob{Job: job, Reason: reason, FailedAt: time.Now()})
		if n := len(m.dead) - m.policy.DeadRetention; n > 0 {
			m.dead = m.dead[n:]
		}
		return nil
	}

	timer := time.AfterFunc(m.policy.Backoff(job.Attempt), func() {
		m.ready <- job
	})
	m.timers = append(m.timers, timer)
	return nil
}

func (m *Memory) DeadLetters(_ context.Context) ([]DeadJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DeadJob, len(m.dead))
	for i, d := range m.dead {
		out[len(m.dead)-1-i] = d
	}
	return out, nil
}

// Completed returns the retained completed jobs, for observability.
func (m *Memory) Completed() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Job, len(m.completed))
	copy(out, m.completed)
	return out
}

// Stop cancels outstanding retry timers.
func (m *Memory) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.timers {
		t.Stop()
	}
	m.timers = nil
}
