//go:build integration

package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"tracehub/internal/queue"
	"tracehub/pkg/testutil/containers"
)

type RedisQueueSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	queue *queue.Redis
}

func TestRedisQueueSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisQueueSuite))
}

func (s *RedisQueueSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisQueueSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.queue = queue.NewRedis(s.redis.Client, queue.Policy{
		MaxAttempts:        3,
		BaseBackoff:        50 * time.Millisecond,
		CompletedRetention: 2,
		DeadRetention:      5,
	})
}

func (s *RedisQueueSuite) TestEnqueueDequeueComplete() {
	ctx := context.Background()
	job := queue.Job{RecordID: uuid.New(), OrganisationID: uuid.New()}

	s.Require().NoError(s.queue.Enqueue(ctx, job))

	got, err := s.queue.Dequeue(ctx)
	s.Require().NoError(err)
	s.Equal(job.RecordID, got.RecordID)
	s.Equal(1, got.Attempt)

	s.Require().NoError(s.queue.Complete(ctx, got))

	// Identity key released; a fresh enqueue is accepted.
	s.Require().NoError(s.queue.Enqueue(ctx, job))
}

func (s *RedisQueueSuite) TestDedupeWhileOutstanding() {
	ctx := context.Background()
	job := queue.Job{RecordID: uuid.New()}

	s.Require().NoError(s.queue.Enqueue(ctx, job))
	s.Require().NoError(s.queue.Enqueue(ctx, job))

	_, err := s.queue.Dequeue(ctx)
	s.Require().NoError(err)

	timeout, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err = s.queue.Dequeue(timeout)
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *RedisQueueSuite) TestFailSchedulesBackoffRedelivery() {
	ctx := context.Background()
	job := queue.Job{RecordID: uuid.New()}

	s.Require().NoError(s.queue.Enqueue(ctx, job))
	got, err := s.queue.Dequeue(ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.queue.Fail(ctx, got, "node rejected tx"))

	timeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	redelivered, err := s.queue.Dequeue(timeout)
	s.Require().NoError(err)
	s.Equal(2, redelivered.Attempt)
}

func (s *RedisQueueSuite) TestDeadLetterAfterExhaustion() {
	ctx := context.Background()
	job := queue.Job{RecordID: uuid.New()}

	s.Require().NoError(s.queue.Enqueue(ctx, job))

	delivered, err := s.queue.Dequeue(ctx)
	s.Require().NoError(err)
	for delivered.Attempt < 3 {
		s.Require().NoError(s.queue.Fail(ctx, delivered, "still failing"))
		timeout, cancel := context.WithTimeout(ctx, 5*time.Second)
		delivered, err = s.queue.Dequeue(timeout)
		cancel()
		s.Require().NoError(err)
	}
	s.Require().NoError(s.queue.Fail(ctx, delivered, "gave up"))

	dead, err := s.queue.DeadLetters(ctx)
	s.Require().NoError(err)
	s.Require().Len(dead, 1)
	s.Equal(job.RecordID, dead[0].Job.RecordID)
	s.Equal("gave up", dead[0].Reason)
}
