package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	domainerrors "animevote/contexts/anime-voting/voting-engine/domain/errors"
	"animevote/contexts/anime-voting/voting-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates or updates the voting tables, including the unique index
// on (session_id, user_id) the ledger relies on.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(
		&sessionModel{},
		&sessionItemModel{},
		&voteModel{},
		&idempotencyModel{},
		&outboxModel{},
	); err != nil {
		return r.logError("voting_repo_migrate_failed", err)
	}
	return nil
}

func (r *Repository) CreateSession(ctx context.Context, session entities.Session) error {
	row := sessionModelFromEntity(session)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		items := sessionItemModels(row.ID, session.Items, row.CreatedAt)
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrSessionAlreadyExists
		}
		return r.logError("voting_repo_create_session_failed", err,
			"session_id", row.ID,
			"master_id", row.MasterID,
		)
	}
	return nil
}

func (r *Repository) GetSession(ctx context.Context, sessionID string) (entities.Session, error) {
	var row sessionModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(sessionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Session{}, domainerrors.ErrSessionNotFound
		}
		return entities.Session{}, r.logError("voting_repo_get_session_failed", err,
			"session_id", strings.TrimSpace(sessionID),
		)
	}
	sessions, err := r.attachItems(ctx, []sessionModel{row})
	if err != nil {
		return entities.Session{}, err
	}
	return sessions[0], nil
}

// AppendSessionItem locks the session row so concurrent appends are assigned
// distinct positions; the (session_id, item_id) key rejects duplicates.
func (r *Repository) AppendSessionItem(
	ctx context.Context,
	sessionID string,
	itemID string,
	at time.Time,
) (entities.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	itemID = entities.NormalizeItemID(itemID)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session sessionModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", sessionID).
			First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrSessionNotFound
			}
			return err
		}

		var count int64
		if err := tx.Model(&sessionItemModel{}).
			Where("session_id = ?", sessionID).
			Count(&count).Error; err != nil {
			return err
		}
		create := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "item_id"}},
			DoNothing: true,
		}).Create(&sessionItemModel{
			SessionID: sessionID,
			ItemID:    itemID,
			Position:  int(count),
			AddedAt:   at.UTC(),
		})
		if create.Error != nil {
			return create.Error
		}
		if create.RowsAffected == 0 {
			return domainerrors.ErrItemAlreadyPresent
		}
		return tx.Model(&sessionModel{}).
			Where("id = ?", sessionID).
			Update("updated_at", at.UTC()).Error
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrSessionNotFound) || errors.Is(err, domainerrors.ErrItemAlreadyPresent) {
			return entities.Session{}, err
		}
		return entities.Session{}, r.logError("voting_repo_append_session_item_failed", err,
			"session_id", sessionID,
			"item_id", itemID,
		)
	}
	return r.GetSession(ctx, sessionID)
}

func (r *Repository) ListPublicSessions(ctx context.Context) ([]entities.Session, error) {
	return r.listSessions(ctx, "voting_repo_list_public_sessions_failed",
		r.db.WithContext(ctx).Where("is_public = ?", true))
}

func (r *Repository) ListSessionsByMaster(ctx context.Context, masterID string) ([]entities.Session, error) {
	return r.listSessions(ctx, "voting_repo_list_sessions_by_master_failed",
		r.db.WithContext(ctx).Where("master_id = ?", strings.TrimSpace(masterID)))
}

func (r *Repository) ListSessions(ctx context.Context) ([]entities.Session, error) {
	return r.listSessions(ctx, "voting_repo_list_sessions_failed", r.db.WithContext(ctx))
}

// UpsertVote writes the ballot with a single INSERT ... ON CONFLICT DO UPDATE
// against the (session_id, user_id) unique index. The returned id differs
// from the candidate id exactly when an existing vote was replaced.
func (r *Repository) UpsertVote(ctx context.Context, candidate ports.VoteUpsert) (entities.Vote, bool, error) {
	row, err := voteModelFromUpsert(candidate)
	if err != nil {
		return entities.Vote{}, false, r.logError("voting_repo_encode_entries_failed", err,
			"session_id", candidate.SessionID,
			"user_id", candidate.UserID,
		)
	}
	create := r.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"entries", "cast_at"}),
		},
		clause.Returning{},
	).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return entities.Vote{}, false, domainerrors.ErrVoteConflict
		}
		return entities.Vote{}, false, r.logError("voting_repo_upsert_vote_failed", create.Error,
			"session_id", row.SessionID,
			"user_id", row.UserID,
		)
	}
	vote, err := row.toEntity()
	if err != nil {
		return entities.Vote{}, false, r.logError("voting_repo_decode_entries_failed", err, "vote_id", row.ID)
	}
	return vote, vote.VoteID != strings.TrimSpace(candidate.VoteID), nil
}

func (r *Repository) ListVotesBySession(ctx context.Context, sessionID string) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", strings.TrimSpace(sessionID)).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("voting_repo_list_votes_by_session_failed", err,
			"session_id", strings.TrimSpace(sessionID),
		)
	}
	return r.toVoteEntities(rows)
}

func (r *Repository) ListVotesByUser(ctx context.Context, userID string) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("voting_repo_list_votes_by_user_failed", err,
			"user_id", strings.TrimSpace(userID),
		)
	}
	return r.toVoteEntities(rows)
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("voting_repo_idempotency_get_failed", err,
			"idempotency_key", strings.TrimSpace(key),
		)
	}
	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).Error; err != nil {
			return ports.IdempotencyRecord{}, false, r.logError("voting_repo_idempotency_expire_delete_failed", err,
				"idempotency_key", strings.TrimSpace(key),
			)
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		SessionID:   row.SessionID,
		ExpiresAt:   row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) Reserve(ctx context.Context, record ports.IdempotencyRecord, now time.Time) (ports.IdempotencyRecord, bool, error) {
	row := idempotencyModel{
		Key:         strings.TrimSpace(record.Key),
		RequestHash: strings.TrimSpace(record.RequestHash),
		SessionID:   strings.TrimSpace(record.SessionID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	if err := r.db.WithContext(ctx).
		Where("key = ? AND expires_at <= ?", row.Key, now.UTC()).
		Delete(&idempotencyModel{}).Error; err != nil {
		return ports.IdempotencyRecord{}, false, r.logError("voting_repo_idempotency_expire_delete_failed", err,
			"idempotency_key", row.Key,
		)
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return ports.IdempotencyRecord{}, false, r.logError("voting_repo_idempotency_reserve_failed", create.Error, "idempotency_key", row.Key)
	}
	if create.RowsAffected > 0 {
		return ports.IdempotencyRecord{
			Key:         row.Key,
			RequestHash: row.RequestHash,
			SessionID:   row.SessionID,
			ExpiresAt:   row.ExpiresAt,
		}, true, nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", row.Key).
		First(&existing).Error; err != nil {
		return ports.IdempotencyRecord{}, false, r.logError("voting_repo_idempotency_load_existing_failed", err, "idempotency_key", row.Key)
	}
	return ports.IdempotencyRecord{
		Key:         existing.Key,
		RequestHash: existing.RequestHash,
		SessionID:   existing.SessionID,
		ExpiresAt:   existing.ExpiresAt.UTC(),
	}, false, nil
}

func (r *Repository) Release(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if err := r.db.WithContext(ctx).
		Where("key = ?", key).
		Delete(&idempotencyModel{}).Error; err != nil {
		return r.logError("voting_repo_idempotency_release_failed", err, "idempotency_key", key)
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("voting_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("voting_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return r.logError("voting_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrOutboxConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Order("outbox_id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("voting_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("voting_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrOutboxConflict
	}
	return nil
}

func (r *Repository) listSessions(ctx context.Context, event string, query *gorm.DB) ([]entities.Session, error) {
	var rows []sessionModel
	if err := query.Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError(event, err)
	}
	return r.attachItems(ctx, rows)
}

// attachItems loads the ordered item lists for a batch of sessions in one
// query.
func (r *Repository) attachItems(ctx context.Context, rows []sessionModel) ([]entities.Session, error) {
	sessions := make([]entities.Session, 0, len(rows))
	if len(rows) == 0 {
		return sessions, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	var items []sessionItemModel
	if err := r.db.WithContext(ctx).
		Where("session_id IN ?", ids).
		Order("session_id ASC").
		Order("position ASC").
		Find(&items).Error; err != nil {
		return nil, r.logError("voting_repo_load_session_items_failed", err, "session_count", len(ids))
	}
	bySession := make(map[string][]string, len(rows))
	for _, item := range items {
		bySession[item.SessionID] = append(bySession[item.SessionID], item.ItemID)
	}
	for _, row := range rows {
		sessions = append(sessions, row.toEntity(bySession[row.ID]))
	}
	return sessions, nil
}

func (r *Repository) toVoteEntities(rows []voteModel) ([]entities.Vote, error) {
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		vote, err := row.toEntity()
		if err != nil {
			return nil, r.logError("voting_repo_decode_entries_failed", err, "vote_id", row.ID)
		}
		items = append(items, vote)
	}
	return items, nil
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
	r.logger.Error("voting repository operation failed", fields...)
	return domainerrors.StorageFailure(err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.SessionRepository = (*Repository)(nil)
var _ ports.VoteLedger = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
