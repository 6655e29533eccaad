package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	domainerrors "animevote/contexts/anime-voting/voting-engine/domain/errors"
	"animevote/contexts/anime-voting/voting-engine/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type voteKey struct {
	sessionID string
	userID    string
}

// Store keeps sessions, the vote ledger, idempotency records and the outbox in
// process memory. A single mutex serializes writers, which gives the same
// check-then-write atomicity the SQL stores get from constraints.
type Store struct {
	mu sync.RWMutex

	sessions    map[string]entities.Session
	votes       map[voteKey]entities.Vote
	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]outboxRecord
}

func NewStore(seed []entities.Session) *Store {
	sessions := make(map[string]entities.Session, len(seed))
	for _, session := range seed {
		sessions[strings.TrimSpace(session.SessionID)] = session.Clone()
	}
	return &Store{
		sessions:    sessions,
		votes:       make(map[voteKey]entities.Vote),
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make(map[string]outboxRecord),
	}
}

func (s *Store) CreateSession(_ context.Context, session entities.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID := strings.TrimSpace(session.SessionID)
	if _, exists := s.sessions[sessionID]; exists {
		return domainerrors.ErrSessionAlreadyExists
	}
	session.SessionID = sessionID
	if session.Items == nil {
		session.Items = []string{}
	}
	s.sessions[sessionID] = session.Clone()
	return nil
}

func (s *Store) GetSession(_ context.Context, sessionID string) (entities.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[strings.TrimSpace(sessionID)]
	if !ok {
		return entities.Session{}, domainerrors.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *Store) AppendSessionItem(_ context.Context, sessionID string, itemID string, at time.Time) (entities.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID = strings.TrimSpace(sessionID)
	session, ok := s.sessions[sessionID]
	if !ok {
		return entities.Session{}, domainerrors.ErrSessionNotFound
	}
	if session.HasItem(itemID) {
		return entities.Session{}, domainerrors.ErrItemAlreadyPresent
	}
	session = session.Clone()
	session.Items = append(session.Items, entities.NormalizeItemID(itemID))
	session.UpdatedAt = at.UTC()
	s.sessions[sessionID] = session
	return session.Clone(), nil
}

func (s *Store) ListPublicSessions(_ context.Context) ([]entities.Session, error) {
	return s.filterSessions(func(session entities.Session) bool {
		return session.IsPublic
	}), nil
}

func (s *Store) ListSessionsByMaster(_ context.Context, masterID string) ([]entities.Session, error) {
	masterID = strings.TrimSpace(masterID)
	return s.filterSessions(func(session entities.Session) bool {
		return session.MasterID == masterID
	}), nil
}

func (s *Store) ListSessions(_ context.Context) ([]entities.Session, error) {
	return s.filterSessions(func(entities.Session) bool { return true }), nil
}

func (s *Store) UpsertVote(_ context.Context, candidate ports.VoteUpsert) (entities.Vote, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := voteKey{
		sessionID: strings.TrimSpace(candidate.SessionID),
		userID:    strings.TrimSpace(candidate.UserID),
	}
	if _, ok := s.sessions[key.sessionID]; !ok {
		return entities.Vote{}, false, domainerrors.ErrSessionNotFound
	}
	entries := append([]entities.VoteEntry(nil), candidate.Entries...)
	castAt := candidate.CastAt.UTC()

	if existing, ok := s.votes[key]; ok {
		existing.Entries = entries
		existing.CastAt = castAt
		s.votes[key] = existing
		return existing.Clone(), true, nil
	}
	vote := entities.Vote{
		VoteID:    strings.TrimSpace(candidate.VoteID),
		SessionID: key.sessionID,
		UserID:    key.userID,
		Entries:   entries,
		CastAt:    castAt,
		CreatedAt: castAt,
	}
	if vote.VoteID == "" {
		vote.VoteID = uuid.NewString()
	}
	s.votes[key] = vote
	return vote.Clone(), false, nil
}

func (s *Store) ListVotesBySession(_ context.Context, sessionID string) ([]entities.Vote, error) {
	sessionID = strings.TrimSpace(sessionID)
	return s.filterVotes(func(vote entities.Vote) bool {
		return vote.SessionID == sessionID
	}), nil
}

func (s *Store) ListVotesByUser(_ context.Context, userID string) ([]entities.Vote, error) {
	userID = strings.TrimSpace(userID)
	return s.filterVotes(func(vote entities.Vote) bool {
		return vote.UserID == userID
	}), nil
}

// VoteCount reports the ledger size, used by tests to assert uniqueness.
func (s *Store) VoteCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.votes)
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = strings.TrimSpace(key)
	record, exists := s.idempotency[key]
	if !exists {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.After(now.UTC()) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Reserve(_ context.Context, record ports.IdempotencyRecord, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(record.Key)
	if existing, exists := s.idempotency[key]; exists && existing.ExpiresAt.After(now.UTC()) {
		return existing, false, nil
	}
	stored := ports.IdempotencyRecord{
		Key:         key,
		RequestHash: strings.TrimSpace(record.RequestHash),
		SessionID:   strings.TrimSpace(record.SessionID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	s.idempotency[key] = stored
	return stored, true, nil
}

func (s *Store) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.idempotency, strings.TrimSpace(key))
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrOutboxConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].OutboxID < items[j].OutboxID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrOutboxConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) filterSessions(keep func(entities.Session) bool) []entities.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		if keep(session) {
			items = append(items, session.Clone())
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].SessionID < items[j].SessionID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items
}

func (s *Store) filterVotes(keep func(entities.Vote) bool) []entities.Vote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Vote, 0, len(s.votes))
	for _, vote := range s.votes {
		if keep(vote) {
			items = append(items, vote.Clone())
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].VoteID < items[j].VoteID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items
}

var _ ports.SessionRepository = (*Store)(nil)
var _ ports.VoteLedger = (*Store)(nil)
var _ ports.IdempotencyStore = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
