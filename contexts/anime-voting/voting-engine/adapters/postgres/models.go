package postgresadapter

import (
	"encoding/json"
	"strings"
	"time"

	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	"animevote/contexts/anime-voting/voting-engine/ports"
)

type sessionModel struct {
	ID                 string    `gorm:"column:id;primaryKey"`
	Title              string    `gorm:"column:title;size:100;not null"`
	Description        string    `gorm:"column:description;size:1000"`
	MasterID           string    `gorm:"column:master_id;index;not null"`
	IsPublic           bool      `gorm:"column:is_public;not null"`
	AllowMultipleVotes bool      `gorm:"column:allow_multiple_votes;not null"`
	MaxVotesPerUser    int       `gorm:"column:max_votes_per_user;not null"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (sessionModel) TableName() string {
	return "voting_sessions"
}

func sessionModelFromEntity(session entities.Session) sessionModel {
	row := sessionModel{
		ID:                 strings.TrimSpace(session.SessionID),
		Title:              session.Title,
		Description:        session.Description,
		MasterID:           strings.TrimSpace(session.MasterID),
		IsPublic:           session.IsPublic,
		AllowMultipleVotes: session.AllowMultipleVotes,
		MaxVotesPerUser:    session.MaxVotesPerUser,
		CreatedAt:          session.CreatedAt.UTC(),
		UpdatedAt:          session.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m sessionModel) toEntity(items []string) entities.Session {
	if items == nil {
		items = []string{}
	}
	return entities.Session{
		SessionID:          m.ID,
		Title:              m.Title,
		Description:        m.Description,
		MasterID:           m.MasterID,
		IsPublic:           m.IsPublic,
		AllowMultipleVotes: m.AllowMultipleVotes,
		MaxVotesPerUser:    m.MaxVotesPerUser,
		Items:              items,
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
	}
}

type sessionItemModel struct {
	SessionID string    `gorm:"column:session_id;primaryKey"`
	ItemID    string    `gorm:"column:item_id;primaryKey"`
	Position  int       `gorm:"column:position;not null"`
	AddedAt   time.Time `gorm:"column:added_at"`
}

func (sessionItemModel) TableName() string {
	return "voting_session_items"
}

func sessionItemModels(sessionID string, itemIDs []string, at time.Time) []sessionItemModel {
	rows := make([]sessionItemModel, 0, len(itemIDs))
	for position, itemID := range itemIDs {
		rows = append(rows, sessionItemModel{
			SessionID: sessionID,
			ItemID:    entities.NormalizeItemID(itemID),
			Position:  position,
			AddedAt:   at,
		})
	}
	return rows
}

type voteModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	SessionID string    `gorm:"column:session_id;not null;uniqueIndex:votes_session_user_key,priority:1"`
	UserID    string    `gorm:"column:user_id;not null;uniqueIndex:votes_session_user_key,priority:2;index"`
	Entries   []byte    `gorm:"column:entries;type:jsonb;not null"`
	CastAt    time.Time `gorm:"column:cast_at"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (voteModel) TableName() string {
	return "votes"
}

type voteEntryJSON struct {
	ItemID string `json:"item_id"`
	Grade  string `json:"grade"`
}

func encodeEntries(entries []entities.VoteEntry) ([]byte, error) {
	rows := make([]voteEntryJSON, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, voteEntryJSON{ItemID: entry.ItemID, Grade: string(entry.Grade)})
	}
	return json.Marshal(rows)
}

func decodeEntries(raw []byte) ([]entities.VoteEntry, error) {
	var rows []voteEntryJSON
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	entries := make([]entities.VoteEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, entities.VoteEntry{ItemID: row.ItemID, Grade: entities.GradeLevel(row.Grade)})
	}
	return entries, nil
}

func voteModelFromUpsert(candidate ports.VoteUpsert) (voteModel, error) {
	entries, err := encodeEntries(candidate.Entries)
	if err != nil {
		return voteModel{}, err
	}
	castAt := candidate.CastAt.UTC()
	if castAt.IsZero() {
		castAt = time.Now().UTC()
	}
	return voteModel{
		ID:        strings.TrimSpace(candidate.VoteID),
		SessionID: strings.TrimSpace(candidate.SessionID),
		UserID:    strings.TrimSpace(candidate.UserID),
		Entries:   entries,
		CastAt:    castAt,
		CreatedAt: castAt,
	}, nil
}

func (m voteModel) toEntity() (entities.Vote, error) {
	entries, err := decodeEntries(m.Entries)
	if err != nil {
		return entities.Vote{}, err
	}
	return entities.Vote{
		VoteID:    m.ID,
		SessionID: m.SessionID,
		UserID:    m.UserID,
		Entries:   entries,
		CastAt:    m.CastAt.UTC(),
		CreatedAt: m.CreatedAt.UTC(),
	}, nil
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	SessionID   string    `gorm:"column:session_id"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "voting_idempotency"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "voting_outbox"
}
