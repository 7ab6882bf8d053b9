package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	readyKey     = "anchor:queue:ready"
	delayedKey   = "anchor:queue:delayed"
	deadKey      = "anchor:queue:dead"
	completedKey = "anchor:queue:completed"
	pendingKey   = "anchor:queue:pending:"

	// pendingTTL bounds how long a crashed worker can hold a record's
	// identity key before a fresh enqueue gets through again.
	pendingTTL = 24 * time.Hour

	popTimeout = time.Second
)

// Redis is the durable Queue used in deployments: a ready list consumed with
// blocking pops, a sorted set of delayed retries keyed by ready-time, and
// per-record identity markers for deduplication.
type Redis struct {
	client *redis.Client
	policy Policy
}

func NewRedis(client *redis.Client, policy Policy) *Redis {
	return &Redis{client: client, policy: policy}
}

func (q *Redis) Enqueue(ctx context.Context, job Job) error {
	ok, err := q.client.SetNX(ctx, pendingKey+job.Key(), "1", pendingTTL).Result()
	if err != nil {
		return fmt.Errorf("mark pending: %w", err)
	}
	if !ok {
		// A job for this record is already outstanding; coalesce.
		return nil
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.client.LPush(ctx, readyKey, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

func (q *Redis) Dequeue(ctx context.Context) (Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}
		if err := q.promoteDue(ctx); err != nil {
			return Job{}, err
		}

		res, err := q.client.BRPop(ctx, popTimeout, readyKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Job{}, fmt.Errorf("pop job: %w", err)
		}

		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return Job{}, fmt.Errorf("decode job: %w", err)
		}
		job.Attempt++
		return job, nil
	}
}

func (q *Redis) Complete(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	pipe := q.client.Pipeline()
	pipe.Del(ctx, pendingKey+job.Key())
	pipe.LPush(ctx, completedKey, payload)
	pipe.LTrim(ctx, completedKey, 0, int64(q.policy.CompletedRetention)-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

func (q *Redis) Fail(ctx context.Context, job Job, reason string) error {
	if job.Attempt >= q.policy.MaxAttempts {
		payload, err := json.Marshal(DeadJob{Job: job, Reason: reason, FailedAt: time.Now().UTC()})
		if err != nil {
			return fmt.Errorf("encode dead job: %w", err)
		}
		pipe := q.client.Pipeline()
		pipe.Del(ctx, pendingKey+job.Key())
		pipe.LPush(ctx, deadKey, payload)
		pipe.LTrim(ctx, deadKey, 0, int64(q.policy.DeadRetention)-1)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("dead-letter job: %w", err)
		}
		return nil
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	readyAt := time.Now().Add(q.policy.Backoff(job.Attempt))
	err = q.client.ZAdd(ctx, delayedKey, redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: payload,
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	return nil
}

func (q *Redis) DeadLetters(ctx context.Context) ([]DeadJob, error) {
	raw, err := q.client.LRange(ctx, deadKey, 0, int64(q.policy.DeadRetention)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	out := make([]DeadJob, 0, len(raw))
	for _, item := range raw {
		var dead DeadJob
		if err := json.Unmarshal([]byte(item), &dead); err != nil {
			return nil, fmt.Errorf("decode dead letter: %w", err)
		}
		out = append(out, dead)
	}
	return out, nil
}

// promoteDue moves delayed jobs whose backoff has elapsed onto the ready
// list. A job observed by two promoters is delivered twice, which the
// at-least-once contract permits.
func (q *Redis) promoteDue(ctx context.Context) error {
	now := float64(time.Now().UnixMilli())
	due, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%f", now),
	}).Result()
	if err != nil {
		return fmt.Errorf("scan delayed jobs: %w", err)
	}
	for _, payload := range due {
		removed, err := q.client.ZRem(ctx, delayedKey, payload).Result()
		if err != nil {
			return fmt.Errorf("promote job: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, readyKey, payload).Err(); err != nil {
			return fmt.Errorf("promote job: %w", err)
		}
	}
	return nil
}
