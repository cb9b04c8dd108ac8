package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"staybook/internal/domain/shared/clock"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

// Envelope is one stored event awaiting publication.
type Envelope struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
	Attempts   int
}

// Store hands out pending envelopes one at a time. Claim returns nil when
// nothing is due.
type Store interface {
	Claim(ctx context.Context, workerID string, now time.Time) (*Envelope, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Worker relays stored events to the broker as CloudEvents JSON. Each event
// name "<base>.<what>" goes to the topic "<prefix><base>.events.v1".
type Worker struct {
	Store       Store
	Producer    Producer
	Interval    time.Duration
	BatchSize   int
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Wake        <-chan struct{}
	Clock       clock.Clock
	Logger      *slog.Logger
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-w.Wake:
		}
		if _, err := w.Drain(ctx); err != nil {
			return err
		}
	}
}

// Drain publishes up to BatchSize due events and reports how many were
// handled, successfully or not.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	handled := 0
	for handled < w.batchSize() {
		ok, err := w.processOnce(ctx)
		if err != nil {
			return handled, err
		}
		if !ok {
			break
		}
		handled++
	}
	return handled, nil
}

func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	now := clock.OrSystem(w.Clock).Now()
	env, err := w.Store.Claim(ctx, w.ID, now)
	if err != nil || env == nil {
		return false, err
	}
	topic := w.topicFor(env.Name)
	payload, headers, err := w.formatPayload(env)
	if err == nil {
		err = w.Producer.Publish(ctx, topic, env.Aggregate, payload, headers)
	}
	if err != nil {
		if w.Logger != nil {
			w.Logger.Warn("outbox publish failed", "event_id", env.ID, "event", env.Name, "topic", topic, "attempts", env.Attempts+1, "error", err)
		}
		if markErr := w.Store.MarkFailed(ctx, env.ID, w.nextRetry(now, env.Attempts), err.Error()); markErr != nil {
			return false, markErr
		}
		return true, nil
	}
	if w.Logger != nil {
		w.Logger.Debug("outbox event published", "event_id", env.ID, "event", env.Name, "topic", topic)
	}
	return true, w.Store.MarkSent(ctx, env.ID, now)
}

func (w *Worker) formatPayload(env *Envelope) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(env.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              env.ID,
		"type":            env.Name + ".v1",
		"source":          w.source(),
		"subject":         env.Aggregate,
		"time":            env.OccurredAt.UTC(),
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := env.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
		"ce-type":      env.Name + ".v1",
	}
	for k, v := range env.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// TopicFor maps an event name to its topic.
func TopicFor(prefix, name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return prefix + base + ".events.v1"
}

func (w *Worker) topicFor(name string) string {
	return TopicFor(w.TopicPrefix, name)
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 100
	}
	return w.BatchSize
}

func (w *Worker) nextRetry(now time.Time, attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return now.Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return now.Add(w.Backoff[len(w.Backoff)-1])
	}
	return now.Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://staybook"
}

// LogProducer stands in for the broker when Kafka is not configured; it
// logs every event so the outbox still drains.
type LogProducer struct {
	Logger *slog.Logger
}

func (p LogProducer) Publish(_ context.Context, topic, key string, payload []byte, _ map[string]string) error {
	if p.Logger != nil {
		p.Logger.Info("event", "topic", topic, "key", key, "bytes", len(payload))
	}
	return nil
}
