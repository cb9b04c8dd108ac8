package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/domain/shared/clock"
	"staybook/internal/infra/outbox"
	"staybook/internal/infra/storage/memory"
)

type producerMock struct {
	mock.Mock
}

func (m *producerMock) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	args := m.Called(ctx, topic, key, payload, headers)
	return args.Error(0)
}

var workerNow = time.Date(2030, 5, 5, 5, 0, 0, 0, time.UTC)

func seed(t *testing.T, box *memory.Outbox, id, name, aggregate string) {
	t.Helper()
	require.NoError(t, box.Add(context.Background(), appoutbox.EventRecord{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"booking_id":"` + aggregate + `"}`),
		OccurredAt: workerNow,
		Aggregate:  aggregate,
		Headers:    map[string]string{"traceparent": "00-abc-def-01"},
	}))
}

func TestWorkerPublishesCloudEvents(t *testing.T) {
	box := memory.NewOutbox()
	seed(t, box, "e1", "booking.created", "b1")
	seed(t, box, "e2", "property.dates_blocked", "p1")

	producer := &producerMock{}
	var captured []byte
	producer.On("Publish", mock.Anything, "stay.booking.events.v1", "b1", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(3).([]byte) }).
		Return(nil).Once()
	producer.On("Publish", mock.Anything, "stay.property.events.v1", "p1", mock.Anything, mock.MatchedBy(func(h map[string]string) bool {
		return h["ce-type"] == "property.dates_blocked.v1" && h["content-type"] == "application/cloudevents+json"
	})).Return(nil).Once()

	w := &outbox.Worker{Store: box, Producer: producer, TopicPrefix: "stay.", Clock: clock.Fixed(workerNow)}
	handled, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, handled)
	assert.Empty(t, box.Pending())
	assert.Equal(t, 2, box.Sent())
	producer.AssertExpectations(t)

	var evt map[string]any
	require.NoError(t, json.Unmarshal(captured, &evt))
	assert.Equal(t, "1.0", evt["specversion"])
	assert.Equal(t, "e1", evt["id"])
	assert.Equal(t, "booking.created.v1", evt["type"])
	assert.Equal(t, "app://staybook", evt["source"])
	assert.Equal(t, "b1", evt["subject"])
	assert.Equal(t, "00-abc-def-01", evt["traceparent"])
	assert.Equal(t, map[string]any{"booking_id": "b1"}, evt["data"])
}

func TestWorkerRetriesWithBackoff(t *testing.T) {
	box := memory.NewOutbox()
	seed(t, box, "e1", "booking.status_changed", "b1")

	producer := &producerMock{}
	producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("broker down")).Once()

	current := workerNow
	w := &outbox.Worker{
		Store:    box,
		Producer: producer,
		Backoff:  []time.Duration{time.Minute},
		Clock:    clock.Func(func() time.Time { return current }),
	}

	handled, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, handled)
	assert.Len(t, box.Pending(), 1)

	handled, err = w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, handled)

	producer.On("Publish", mock.Anything, "booking.events.v1", "b1", mock.Anything, mock.Anything).Return(nil).Once()
	current = workerNow.Add(2 * time.Minute)
	handled, err = w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, handled)
	assert.Empty(t, box.Pending())
	producer.AssertExpectations(t)
}

func TestWorkerHonoursBatchSize(t *testing.T) {
	box := memory.NewOutbox()
	for _, id := range []string{"e1", "e2", "e3"} {
		seed(t, box, id, "booking.created", "b-"+id)
	}
	producer := &producerMock{}
	producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	w := &outbox.Worker{Store: box, Producer: producer, BatchSize: 2, Clock: clock.Fixed(workerNow)}
	handled, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, handled)
	assert.Len(t, box.Pending(), 1)
}

func TestWorkerRunDrainsOnWake(t *testing.T) {
	box := memory.NewOutbox()
	producer := &producerMock{}
	published := make(chan struct{}, 1)
	producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { published <- struct{}{} }).
		Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &outbox.Worker{Store: box, Producer: producer, Interval: time.Hour, Wake: box.Wake()}
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	seed(t, box, "e1", "user.deleted", "u1")
	require.NoError(t, box.Flush(ctx))

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not publish after wake")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWorkerRequiresDependencies(t *testing.T) {
	err := (&outbox.Worker{}).Run(context.Background())
	require.ErrorIs(t, err, outbox.ErrWorkerNotConfigured)
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, "booking.events.v1", outbox.TopicFor("", "booking.created"))
	assert.Equal(t, "dev.user.events.v1", outbox.TopicFor("dev.", "user.deleted"))
	assert.Equal(t, "plain.events.v1", outbox.TopicFor("", "plain"))
}
