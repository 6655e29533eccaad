package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	application "animevote/contexts/anime-voting/voting-engine/application"
	"animevote/contexts/anime-voting/voting-engine/ports"
)

const defaultRelayBatch = 100

// OutboxRelay forwards session and vote events from the outbox to the bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

// relayError records which step of forwarding a row failed.
type relayError struct {
	stage    string
	outboxID string
	topic    string
	err      error
}

func (e *relayError) Error() string {
	return fmt.Sprintf("outbox %s %s: %v", e.outboxID, e.stage, e.err)
}

func (e *relayError) Unwrap() error {
	return e.err
}

// RunOnce forwards up to BatchSize pending rows, oldest first, and returns how
// many were marked published. It stops at the first failing row so event
// order per session is kept across retries.
func (r OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = defaultRelayBatch
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("voting events could not be loaded",
			"event", "voting_outbox_list_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	perTopic := make(map[string]int)
	for i, row := range pending {
		topic, err := r.forward(ctx, row)
		if err != nil {
			attrs := []any{
				"event", "voting_outbox_relay_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"forwarded", i,
				"error", err.Error(),
			}
			if failure, ok := err.(*relayError); ok {
				attrs = append(attrs, "stage", failure.stage, "topic", failure.topic)
			}
			logger.Error("voting event relay stopped", attrs...)
			return i, err
		}
		perTopic[topic]++
	}

	logger.Info("voting events relayed",
		"event", "voting_outbox_relay_completed",
		"module", application.ModuleName,
		"layer", "worker",
		"forwarded", len(pending),
		"per_topic", perTopic,
	)
	return len(pending), nil
}

// forward publishes one row under its event type and marks it published.
func (r OutboxRelay) forward(ctx context.Context, row ports.OutboxMessage) (string, error) {
	var event ports.EventEnvelope
	if err := json.Unmarshal(row.Payload, &event); err != nil {
		return "", &relayError{stage: "decode", outboxID: row.OutboxID, topic: row.EventType, err: err}
	}
	topic := event.EventType
	if topic == "" {
		topic = row.EventType
	}
	if err := r.Publisher.Publish(ctx, topic, event); err != nil {
		return topic, &relayError{stage: "publish", outboxID: row.OutboxID, topic: topic, err: err}
	}
	if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, r.now()); err != nil {
		return topic, &relayError{stage: "mark", outboxID: row.OutboxID, topic: topic, err: err}
	}
	return topic, nil
}

func (r OutboxRelay) now() time.Time {
	if r.Clock == nil {
		return time.Now().UTC()
	}
	return r.Clock.Now().UTC()
}
