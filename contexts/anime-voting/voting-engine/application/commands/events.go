package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "animevote/contexts/anime-voting/voting-engine/application"
	"animevote/contexts/anime-voting/voting-engine/ports"
)

const (
	EventSessionCreated   = "session.created"
	EventSessionItemAdded = "session.item_added"
	EventVoteCast         = "vote.cast"
	EventVoteReplaced     = "vote.replaced"
)

func newVotingEnvelope(
	eventID string,
	eventType string,
	sessionID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Partitioned by session so per-session consumers see ordered events.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "voting-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "session_id",
		PartitionKey:     sessionID,
		Data:             payload,
	}, nil
}

// appendEvent writes an outbox row after the state change has committed. A
// failure is logged and swallowed: the state change stands either way.
func appendEvent(
	ctx context.Context,
	outbox ports.OutboxWriter,
	idGen ports.IDGenerator,
	logger *slog.Logger,
	eventType string,
	sessionID string,
	occurredAt time.Time,
	data map[string]any,
) {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if outbox == nil {
		return
	}
	eventID, err := idGen.NewID(ctx)
	if err == nil {
		var envelope ports.EventEnvelope
		envelope, err = newVotingEnvelope(eventID, eventType, sessionID, occurredAt, data)
		if err == nil {
			err = outbox.AppendOutbox(ctx, envelope)
		}
	}
	if err != nil {
		application.ResolveLogger(logger).Error("voting outbox append failed",
			"event", "voting_outbox_append_failed",
			"module", application.ModuleName,
			"layer", "application",
			"event_type", eventType,
			"session_id", sessionID,
			"error", err.Error(),
		)
	}
}
