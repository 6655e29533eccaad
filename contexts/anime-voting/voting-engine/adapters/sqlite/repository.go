package sqliteadapter

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	domainerrors "animevote/contexts/anime-voting/voting-engine/domain/errors"
	"animevote/contexts/anime-voting/voting-engine/ports"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository persists the voting context in an embedded SQLite database.
// Writers are expected to share one connection (see db.OpenSQLite), which
// serializes transactions the way row locks do on postgres.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRepository(db *sql.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the schema. Safe to call repeatedly.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return r.logError("voting_sqlite_migrate_failed", err)
	}
	return nil
}

func (r *Repository) CreateSession(ctx context.Context, session entities.Session) error {
	createdAt := session.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := session.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	sessionID := strings.TrimSpace(session.SessionID)

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO voting_sessions (
				id, title, description, master_id, is_public,
				allow_multiple_votes, max_votes_per_user, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sessionID,
			session.Title,
			session.Description,
			strings.TrimSpace(session.MasterID),
			session.IsPublic,
			session.AllowMultipleVotes,
			session.MaxVotesPerUser,
			formatTime(createdAt),
			formatTime(updatedAt),
		); err != nil {
			return err
		}
		for position, itemID := range session.Items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO voting_session_items (session_id, item_id, position, added_at)
				VALUES (?, ?, ?, ?)`,
				sessionID, entities.NormalizeItemID(itemID), position, formatTime(createdAt),
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY) {
			return domainerrors.ErrSessionAlreadyExists
		}
		return r.logError("voting_sqlite_create_session_failed", err, "session_id", sessionID)
	}
	return nil
}

func (r *Repository) GetSession(ctx context.Context, sessionID string) (entities.Session, error) {
	sessions, err := r.querySessions(ctx, "voting_sqlite_get_session_failed",
		`WHERE id = ?`, strings.TrimSpace(sessionID))
	if err != nil {
		return entities.Session{}, err
	}
	if len(sessions) == 0 {
		return entities.Session{}, domainerrors.ErrSessionNotFound
	}
	return sessions[0], nil
}

// AppendSessionItem computes the next position and inserts in one statement
// inside a transaction; the (session_id, item_id) key rejects duplicates.
func (r *Repository) AppendSessionItem(
	ctx context.Context,
	sessionID string,
	itemID string,
	at time.Time,
) (entities.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	itemID = entities.NormalizeItemID(itemID)
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM voting_sessions WHERE id = ?`, sessionID,
		).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return domainerrors.ErrSessionNotFound
		}
		result, err := tx.ExecContext(ctx, `
			INSERT INTO voting_session_items (session_id, item_id, position, added_at)
			SELECT ?, ?, COALESCE(MAX(position) + 1, 0), ?
			FROM voting_session_items WHERE session_id = ?
			ON CONFLICT (session_id, item_id) DO NOTHING`,
			sessionID, itemID, formatTime(at), sessionID,
		)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return domainerrors.ErrItemAlreadyPresent
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE voting_sessions SET updated_at = ? WHERE id = ?`, formatTime(at), sessionID)
		return err
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrSessionNotFound) || errors.Is(err, domainerrors.ErrItemAlreadyPresent) {
			return entities.Session{}, err
		}
		return entities.Session{}, r.logError("voting_sqlite_append_session_item_failed", err,
			"session_id", sessionID,
			"item_id", itemID,
		)
	}
	return r.GetSession(ctx, sessionID)
}

func (r *Repository) ListPublicSessions(ctx context.Context) ([]entities.Session, error) {
	return r.querySessions(ctx, "voting_sqlite_list_public_sessions_failed", `WHERE is_public = 1`)
}

func (r *Repository) ListSessionsByMaster(ctx context.Context, masterID string) ([]entities.Session, error) {
	return r.querySessions(ctx, "voting_sqlite_list_sessions_by_master_failed",
		`WHERE master_id = ?`, strings.TrimSpace(masterID))
}

func (r *Repository) ListSessions(ctx context.Context) ([]entities.Session, error) {
	return r.querySessions(ctx, "voting_sqlite_list_sessions_failed", ``)
}

// UpsertVote relies on the votes_session_user_key constraint: the conflict
// branch keeps id and created_at and swaps in the new entries.
func (r *Repository) UpsertVote(ctx context.Context, candidate ports.VoteUpsert) (entities.Vote, bool, error) {
	entries, err := encodeEntries(candidate.Entries)
	if err != nil {
		return entities.Vote{}, false, r.logError("voting_sqlite_encode_entries_failed", err,
			"session_id", candidate.SessionID,
			"user_id", candidate.UserID,
		)
	}
	castAt := candidate.CastAt.UTC()
	if castAt.IsZero() {
		castAt = time.Now().UTC()
	}
	voteID := strings.TrimSpace(candidate.VoteID)
	if voteID == "" {
		voteID = uuid.NewString()
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO votes (id, session_id, user_id, entries, cast_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, user_id) DO UPDATE SET
			entries = excluded.entries,
			cast_at = excluded.cast_at
		RETURNING id, session_id, user_id, entries, cast_at, created_at`,
		voteID,
		strings.TrimSpace(candidate.SessionID),
		strings.TrimSpace(candidate.UserID),
		entries,
		formatTime(castAt),
		formatTime(castAt),
	)
	vote, err := scanVote(row)
	if err != nil {
		switch {
		case isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY):
			return entities.Vote{}, false, domainerrors.ErrSessionNotFound
		case isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE), isConstraint(err, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY):
			return entities.Vote{}, false, domainerrors.ErrVoteConflict
		}
		return entities.Vote{}, false, r.logError("voting_sqlite_upsert_vote_failed", err,
			"session_id", candidate.SessionID,
			"user_id", candidate.UserID,
		)
	}
	return vote, vote.VoteID != voteID, nil
}

func (r *Repository) ListVotesBySession(ctx context.Context, sessionID string) ([]entities.Vote, error) {
	return r.queryVotes(ctx, "voting_sqlite_list_votes_by_session_failed",
		`WHERE session_id = ?`, strings.TrimSpace(sessionID))
}

func (r *Repository) ListVotesByUser(ctx context.Context, userID string) ([]entities.Vote, error) {
	return r.queryVotes(ctx, "voting_sqlite_list_votes_by_user_failed",
		`WHERE user_id = ?`, strings.TrimSpace(userID))
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	key = strings.TrimSpace(key)
	var (
		record    ports.IdempotencyRecord
		expiresAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT key, request_hash, session_id, expires_at FROM voting_idempotency WHERE key = ?`, key,
	).Scan(&record.Key, &record.RequestHash, &record.SessionID, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("voting_sqlite_idempotency_get_failed", err,
			"idempotency_key", key,
		)
	}
	if record.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return ports.IdempotencyRecord{}, false, r.logError("voting_sqlite_idempotency_decode_failed", err,
			"idempotency_key", key,
		)
	}
	if !record.ExpiresAt.After(now.UTC()) {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM voting_idempotency WHERE key = ?`, key); err != nil {
			return ports.IdempotencyRecord{}, false, r.logError("voting_sqlite_idempotency_expire_delete_failed", err,
				"idempotency_key", key,
			)
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (r *Repository) Reserve(ctx context.Context, record ports.IdempotencyRecord, now time.Time) (ports.IdempotencyRecord, bool, error) {
	key := strings.TrimSpace(record.Key)
	stored := ports.IdempotencyRecord{
		Key:         key,
		RequestHash: strings.TrimSpace(record.RequestHash),
		SessionID:   strings.TrimSpace(record.SessionID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM voting_idempotency WHERE key = ? AND expires_at <= ?`, key, formatTime(now),
	); err != nil {
		return ports.IdempotencyRecord{}, false, r.logError("voting_sqlite_idempotency_expire_delete_failed", err,
			"idempotency_key", key,
		)
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO voting_idempotency (key, request_hash, session_id, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO NOTHING`,
		stored.Key,
		stored.RequestHash,
		stored.SessionID,
		formatTime(stored.ExpiresAt),
	)
	if err != nil {
		return ports.IdempotencyRecord{}, false, r.logError("voting_sqlite_idempotency_reserve_failed", err, "idempotency_key", key)
	}
	if affected, _ := result.RowsAffected(); affected > 0 {
		return stored, true, nil
	}

	var (
		existing  ports.IdempotencyRecord
		expiresAt string
	)
	if err := r.db.QueryRowContext(ctx,
		`SELECT key, request_hash, session_id, expires_at FROM voting_idempotency WHERE key = ?`, key,
	).Scan(&existing.Key, &existing.RequestHash, &existing.SessionID, &expiresAt); err != nil {
		return ports.IdempotencyRecord{}, false, r.logError("voting_sqlite_idempotency_load_existing_failed", err, "idempotency_key", key)
	}
	if existing.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return ports.IdempotencyRecord{}, false, r.logError("voting_sqlite_idempotency_decode_failed", err, "idempotency_key", key)
	}
	return existing, false, nil
}

func (r *Repository) Release(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if _, err := r.db.ExecContext(ctx, `DELETE FROM voting_idempotency WHERE key = ?`, key); err != nil {
		return r.logError("voting_sqlite_idempotency_release_failed", err, "idempotency_key", key)
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("voting_sqlite_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
		)
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO voting_outbox (outbox_id, event_type, partition_key, payload, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (outbox_id) DO NOTHING`,
		outboxID,
		strings.TrimSpace(envelope.EventType),
		strings.TrimSpace(envelope.PartitionKey),
		payload,
		outboxStatusPending,
		formatTime(createdAt),
	)
	if err != nil {
		return r.logError("voting_sqlite_append_outbox_insert_failed", err, "outbox_id", outboxID)
	}
	if affected, _ := result.RowsAffected(); affected > 0 {
		return nil
	}

	var existing []byte
	if err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM voting_outbox WHERE outbox_id = ?`, outboxID,
	).Scan(&existing); err != nil {
		return r.logError("voting_sqlite_append_outbox_load_existing_failed", err, "outbox_id", outboxID)
	}
	if !bytes.Equal(existing, payload) {
		return domainerrors.ErrOutboxConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT outbox_id, event_type, partition_key, payload, created_at
		FROM voting_outbox
		WHERE status = ?
		ORDER BY created_at ASC, outbox_id ASC
		LIMIT ?`, outboxStatusPending, limit)
	if err != nil {
		return nil, r.logError("voting_sqlite_list_pending_outbox_failed", err, "limit", limit)
	}
	defer rows.Close()

	items := make([]ports.OutboxMessage, 0, limit)
	for rows.Next() {
		var (
			item      ports.OutboxMessage
			createdAt string
		)
		if err := rows.Scan(&item.OutboxID, &item.EventType, &item.PartitionKey, &item.Payload, &createdAt); err != nil {
			return nil, r.logError("voting_sqlite_scan_outbox_failed", err)
		}
		if item.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, r.logError("voting_sqlite_scan_outbox_failed", err, "outbox_id", item.OutboxID)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, r.logError("voting_sqlite_list_pending_outbox_failed", err, "limit", limit)
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE voting_outbox SET status = ?, published_at = ? WHERE outbox_id = ?`,
		outboxStatusPublished, formatTime(publishedAt), strings.TrimSpace(outboxID),
	)
	if err != nil {
		return r.logError("voting_sqlite_mark_outbox_published_failed", err,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return domainerrors.ErrOutboxConflict
	}
	return nil
}

func (r *Repository) querySessions(ctx context.Context, event string, where string, args ...any) ([]entities.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, master_id, is_public, allow_multiple_votes,
			max_votes_per_user, created_at, updated_at
		FROM voting_sessions `+where+`
		ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, r.logError(event, err)
	}
	defer rows.Close()

	var sessions []entities.Session
	for rows.Next() {
		var (
			session              entities.Session
			createdAt, updatedAt string
		)
		if err := rows.Scan(
			&session.SessionID,
			&session.Title,
			&session.Description,
			&session.MasterID,
			&session.IsPublic,
			&session.AllowMultipleVotes,
			&session.MaxVotesPerUser,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, r.logError(event, err)
		}
		if session.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, r.logError(event, err, "session_id", session.SessionID)
		}
		if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, r.logError(event, err, "session_id", session.SessionID)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, r.logError(event, err)
	}
	if err := rows.Close(); err != nil {
		return nil, r.logError(event, err)
	}

	for i := range sessions {
		items, err := r.sessionItems(ctx, sessions[i].SessionID)
		if err != nil {
			return nil, err
		}
		sessions[i].Items = items
	}
	if sessions == nil {
		sessions = []entities.Session{}
	}
	return sessions, nil
}

func (r *Repository) sessionItems(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT item_id FROM voting_session_items WHERE session_id = ? ORDER BY position ASC`, sessionID)
	if err != nil {
		return nil, r.logError("voting_sqlite_load_session_items_failed", err, "session_id", sessionID)
	}
	defer rows.Close()

	items := []string{}
	for rows.Next() {
		var itemID string
		if err := rows.Scan(&itemID); err != nil {
			return nil, r.logError("voting_sqlite_load_session_items_failed", err, "session_id", sessionID)
		}
		items = append(items, itemID)
	}
	if err := rows.Err(); err != nil {
		return nil, r.logError("voting_sqlite_load_session_items_failed", err, "session_id", sessionID)
	}
	return items, nil
}

func (r *Repository) queryVotes(ctx context.Context, event string, where string, args ...any) ([]entities.Vote, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, user_id, entries, cast_at, created_at
		FROM votes `+where+`
		ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, r.logError(event, err)
	}
	defer rows.Close()

	votes := []entities.Vote{}
	for rows.Next() {
		vote, err := scanVote(rows)
		if err != nil {
			return nil, r.logError(event, err)
		}
		votes = append(votes, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, r.logError(event, err)
	}
	return votes, nil
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "anime-voting/voting-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("voting sqlite operation failed", fields...)
	return domainerrors.StorageFailure(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVote(row rowScanner) (entities.Vote, error) {
	var (
		vote              entities.Vote
		entries           string
		castAt, createdAt string
	)
	if err := row.Scan(&vote.VoteID, &vote.SessionID, &vote.UserID, &entries, &castAt, &createdAt); err != nil {
		return entities.Vote{}, err
	}
	var err error
	if vote.Entries, err = decodeEntries(entries); err != nil {
		return entities.Vote{}, err
	}
	if vote.CastAt, err = parseTime(castAt); err != nil {
		return entities.Vote{}, err
	}
	if vote.CreatedAt, err = parseTime(createdAt); err != nil {
		return entities.Vote{}, err
	}
	return vote, nil
}

type voteEntryJSON struct {
	ItemID string `json:"item_id"`
	Grade  string `json:"grade"`
}

func encodeEntries(entries []entities.VoteEntry) (string, error) {
	rows := make([]voteEntryJSON, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, voteEntryJSON{ItemID: entry.ItemID, Grade: string(entry.Grade)})
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeEntries(raw string) ([]entities.VoteEntry, error) {
	var rows []voteEntryJSON
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, fmt.Errorf("decode vote entries: %w", err)
	}
	entries := make([]entities.VoteEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, entities.VoteEntry{ItemID: row.ItemID, Grade: entities.GradeLevel(row.Grade)})
	}
	return entries, nil
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(timeLayout, raw)
}

func isConstraint(err error, code int) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == code
}

var _ ports.SessionRepository = (*Repository)(nil)
var _ ports.VoteLedger = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
