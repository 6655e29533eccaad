package ports

import (
	"context"
	"encoding/json"
	"time"

	"animevote/contexts/anime-voting/voting-engine/domain/entities"
)

type SessionRepository interface {
	CreateSession(ctx context.Context, session entities.Session) error
	GetSession(ctx context.Context, sessionID string) (entities.Session, error)
	// AppendSessionItem appends atomically and fails with ErrItemAlreadyPresent
	// when the item is already listed.
	AppendSessionItem(ctx context.Context, sessionID string, itemID string, at time.Time) (entities.Session, error)
	ListPublicSessions(ctx context.Context) ([]entities.Session, error)
	ListSessionsByMaster(ctx context.Context, masterID string) ([]entities.Session, error)
	ListSessions(ctx context.Context) ([]entities.Session, error)
}

// VoteUpsert is the candidate ballot written by the ledger. VoteID is used
// only when no vote exists yet for (SessionID, UserID).
type VoteUpsert struct {
	VoteID    string
	SessionID string
	UserID    string
	Entries   []entities.VoteEntry
	CastAt    time.Time
}

type VoteLedger interface {
	// UpsertVote creates or replaces the (session, user) vote in one atomic
	// step and reports whether an existing vote was replaced.
	UpsertVote(ctx context.Context, candidate VoteUpsert) (entities.Vote, bool, error)
	ListVotesBySession(ctx context.Context, sessionID string) ([]entities.Vote, error)
	ListVotesByUser(ctx context.Context, userID string) ([]entities.Vote, error)
}

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	SessionID   string
	ExpiresAt   time.Time
}

// IdempotencyStore claims keys atomically. Reserve stores record when no live
// row holds the key and reports true; otherwise it returns the live row and
// false. Release drops a reservation whose write failed.
type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Reserve(ctx context.Context, record IdempotencyRecord, now time.Time) (IdempotencyRecord, bool, error)
	Release(ctx context.Context, key string) error
}

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	OutboxWriter
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type CatalogSearcher interface {
	Search(ctx context.Context, keyword string, limit int) ([]entities.CatalogItem, error)
}

// Metrics receives use case outcomes; a nil Metrics disables recording.
type Metrics interface {
	ObserveVote(outcome string)
	ObserveSessionOperation(operation string, status string)
	ObserveStatsDuration(duration time.Duration)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
