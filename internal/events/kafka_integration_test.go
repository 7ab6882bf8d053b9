//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"tracehub/internal/events"
	"tracehub/pkg/testutil/containers"
)

func TestKafkaPublisher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	redpanda := containers.NewRedpandaContainer(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	pub, err := events.NewKafka(ctx, redpanda.Brokers, "passport-events-test", logger)
	require.NoError(t, err)
	defer pub.Close()

	passportID := uuid.New()
	event := events.Event{
		Type:           events.TypeAnchored,
		PassportID:     passportID,
		OrganisationID: uuid.New(),
		OccurredAt:     time.Now().UTC(),
		Data:           map[string]string{"txId": "0xabc"},
	}
	require.NoError(t, pub.Publish(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(redpanda.Brokers...),
		kgo.ConsumeTopics("passport-events-test"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(fetchCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, passportID.String(), string(records[0].Key))

	var got events.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, events.TypeAnchored, got.Type)
	assert.Equal(t, passportID, got.PassportID)
	assert.Equal(t, "0xabc", got.Data["txId"])
}

func TestKafkaPublisherReconnectsTopic(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	redpanda := containers.NewRedpandaContainer(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	first, err := events.NewKafka(ctx, redpanda.Brokers, "passport-events-test", logger)
	require.NoError(t, err)
	first.Close()

	// Second connect sees the existing topic; ensure is idempotent.
	second, err := events.NewKafka(ctx, redpanda.Brokers, "passport-events-test", logger)
	require.NoError(t, err)
	second.Close()
}
