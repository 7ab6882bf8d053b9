// Package queue provides durable, at-least-once delivery of anchor jobs.
// Jobs are deduplicated by a deterministic identity key derived from the
// record id, so re-enqueuing a record with a job outstanding coalesces into
// the existing one instead of double-scheduling.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is one anchor request. Attempt counts deliveries and is set by the
// queue on dequeue; producers leave it zero.
type Job struct {
	RecordID       uuid.UUID `json:"recordId"`
	OrganisationID uuid.UUID `json:"organisationId"`
	Attempt        int       `json:"attempt"`
}

// Key is the deduplication identity: stable across re-enqueues of a record.
func (j Job) Key() string {
	return "anchor-" + j.RecordID.String()
}

// DeadJob is a job retained after exhausting its attempts, kept for operator
// inspection rather than silently dropped.
type DeadJob struct {
	Job      Job       `json:"job"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failedAt"`
}

// Policy fixes retry and retention behavior.
type Policy struct {
	MaxAttempts        int
	BaseBackoff        time.Duration
	CompletedRetention int
	DeadRetention      int
}

// DefaultPolicy mirrors production settings: 5 attempts, exponential backoff
// from 5s, keep the last 100 completions and 500 dead letters.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:        5,
		BaseBackoff:        5 * time.Second,
		CompletedRetention: 100,
		DeadRetention:      500,
	}
}

// Backoff returns the delay before redelivering a job that has been
// delivered attempt times: base * 2^(attempt-1).
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// Queue is the worker-facing contract. Implementations deliver each enqueued
// job at least once and redeliver failed jobs per Policy.
type Queue interface {
	// Enqueue schedules a job, coalescing with any pending job for the
	// same record.
	Enqueue(ctx context.Context, job Job) error

	// Dequeue blocks until a job is available or ctx is done. The returned
	// job's Attempt reflects this delivery.
	Dequeue(ctx context.Context) (Job, error)

	// Complete acknowledges a delivered job and releases its identity key.
	Complete(ctx context.Context, job Job) error

	// Fail schedules a redelivery with backoff, or moves the job to the
	// dead-letter set once attempts are exhausted.
	Fail(ctx context.Context, job Job, reason string) error

	// DeadLetters returns the retained exhausted jobs, newest first.
	DeadLetters(ctx context.Context) ([]DeadJob, error)
}
