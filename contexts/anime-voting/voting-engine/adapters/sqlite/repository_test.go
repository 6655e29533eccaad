package sqliteadapter

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	domainerrors "animevote/contexts/anime-voting/voting-engine/domain/errors"
	"animevote/contexts/anime-voting/voting-engine/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "animevote.db")
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewRepository(db, nil)
	require.NoError(t, repo.Migrate(context.Background()))
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func seedSession(t *testing.T, repo *Repository, id string, public bool, createdAt time.Time, items ...string) entities.Session {
	t.Helper()
	session := entities.Session{
		SessionID:          id,
		Title:              "Session " + id,
		MasterID:           "master",
		IsPublic:           public,
		AllowMultipleVotes: true,
		MaxVotesPerUser:    entities.DefaultMaxVotesPerUser,
		Items:              items,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
	require.NoError(t, repo.CreateSession(context.Background(), session))
	return session
}

func TestSessionRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	createdAt := time.Date(2025, 1, 2, 3, 4, 5, 600, time.UTC)
	seedSession(t, repo, "s1", true, createdAt, "100", "２００")

	loaded, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "200"}, loaded.Items)
	assert.Equal(t, createdAt, loaded.CreatedAt)
	assert.True(t, loaded.IsPublic)
	assert.Equal(t, entities.DefaultMaxVotesPerUser, loaded.MaxVotesPerUser)

	err = repo.CreateSession(ctx, loaded)
	require.ErrorIs(t, err, domainerrors.ErrSessionAlreadyExists)

	_, err = repo.GetSession(ctx, "missing")
	require.ErrorIs(t, err, domainerrors.ErrSessionNotFound)
}

func TestAppendSessionItem(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	seedSession(t, repo, "s1", true, at, "100")

	updated, err := repo.AppendSessionItem(ctx, "s1", " 300 ", at.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "300"}, updated.Items)
	assert.Equal(t, at.Add(time.Minute), updated.UpdatedAt)

	_, err = repo.AppendSessionItem(ctx, "s1", "１００", at)
	require.ErrorIs(t, err, domainerrors.ErrItemAlreadyPresent)

	_, err = repo.AppendSessionItem(ctx, "missing", "100", at)
	require.ErrorIs(t, err, domainerrors.ErrSessionNotFound)
}

func TestConcurrentAppendSessionItemKeepsPositionsDense(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedSession(t, repo, "s1", true, time.Now().UTC())

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.AppendSessionItem(ctx, "s1", fmt.Sprintf("%d", 1000+i), time.Now().UTC())
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	loaded, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, loaded.Items, 12)
}

func TestListingsOrderAndFilter(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	seedSession(t, repo, "b", true, base.Add(time.Hour))
	seedSession(t, repo, "a", false, base)
	seedSession(t, repo, "c", true, base.Add(2*time.Hour))

	public, err := repo.ListPublicSessions(ctx)
	require.NoError(t, err)
	require.Len(t, public, 2)
	assert.Equal(t, "b", public[0].SessionID)
	assert.Equal(t, "c", public[1].SessionID)

	all, err := repo.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].SessionID)

	mine, err := repo.ListSessionsByMaster(ctx, "master")
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	none, err := repo.ListSessionsByMaster(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpsertVoteReplacesInPlace(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	castAt := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	seedSession(t, repo, "s1", true, castAt, "100", "200")

	first, replaced, err := repo.UpsertVote(ctx, ports.VoteUpsert{
		VoteID: "vote-1", SessionID: "s1", UserID: "u1", CastAt: castAt,
		Entries: []entities.VoteEntry{{ItemID: "100", Grade: entities.GradeGood}},
	})
	require.NoError(t, err)
	assert.False(t, replaced)
	assert.Equal(t, "vote-1", first.VoteID)

	second, replaced, err := repo.UpsertVote(ctx, ports.VoteUpsert{
		VoteID: "vote-2", SessionID: "s1", UserID: "u1", CastAt: castAt.Add(time.Hour),
		Entries: []entities.VoteEntry{
			{ItemID: "100", Grade: entities.GradeBad},
			{ItemID: "200", Grade: entities.GradeGod},
		},
	})
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.Equal(t, "vote-1", second.VoteID)
	assert.Equal(t, castAt, second.CreatedAt)
	assert.Equal(t, castAt.Add(time.Hour), second.CastAt)
	assert.Len(t, second.Entries, 2)

	votes, err := repo.ListVotesBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, entities.GradeBad, votes[0].Entries[0].Grade)

	byUser, err := repo.ListVotesByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, byUser, 1)
}

func TestUpsertVoteUnknownSession(t *testing.T) {
	repo := newTestRepository(t)
	_, _, err := repo.UpsertVote(context.Background(), ports.VoteUpsert{
		VoteID: "vote-1", SessionID: "missing", UserID: "u1", CastAt: time.Now().UTC(),
		Entries: []entities.VoteEntry{{ItemID: "100", Grade: entities.GradeGood}},
	})
	require.ErrorIs(t, err, domainerrors.ErrSessionNotFound)
}

func TestConcurrentFirstVotesProduceOneRow(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedSession(t, repo, "s1", true, time.Now().UTC(), "100")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		replaced int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, wasReplaced, err := repo.UpsertVote(ctx, ports.VoteUpsert{
				VoteID: fmt.Sprintf("vote-%d", i), SessionID: "s1", UserID: "u1", CastAt: time.Now().UTC(),
				Entries: []entities.VoteEntry{{ItemID: "100", Grade: entities.GradeGreat}},
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if wasReplaced {
				replaced++
			} else {
				created++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 15, replaced)
	votes, err := repo.ListVotesBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, votes, 1)
}

func TestIdempotencyRecords(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	record := ports.IdempotencyRecord{Key: "k1", RequestHash: "h1", SessionID: "s1", ExpiresAt: now.Add(time.Hour)}

	_, reserved, err := repo.Reserve(ctx, record, now)
	require.NoError(t, err)
	require.True(t, reserved)

	other := record
	other.RequestHash = "h2"
	other.SessionID = "s2"
	held, reserved, err := repo.Reserve(ctx, other, now)
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.Equal(t, "h1", held.RequestHash)
	assert.Equal(t, "s1", held.SessionID)
	assert.True(t, held.ExpiresAt.Equal(record.ExpiresAt))

	got, found, err := repo.Get(ctx, "k1", now)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "s1", got.SessionID)

	later := now.Add(2 * time.Hour)
	other.ExpiresAt = later.Add(time.Hour)
	held, reserved, err = repo.Reserve(ctx, other, later)
	require.NoError(t, err)
	assert.True(t, reserved)
	assert.Equal(t, "s2", held.SessionID)

	require.NoError(t, repo.Release(ctx, "k1"))
	_, found, err = repo.Get(ctx, "k1", later)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestOutboxLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	occurredAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	envelope := ports.EventEnvelope{
		EventID:      "evt-1",
		EventType:    "vote.cast",
		OccurredAt:   occurredAt,
		PartitionKey: "s1",
		Data:         []byte(`{"session_id":"s1"}`),
	}

	require.NoError(t, repo.AppendOutbox(ctx, envelope))
	require.NoError(t, repo.AppendOutbox(ctx, envelope))

	changed := envelope
	changed.EventType = "vote.replaced"
	require.ErrorIs(t, repo.AppendOutbox(ctx, changed), domainerrors.ErrOutboxConflict)

	pending, err := repo.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "evt-1", pending[0].OutboxID)
	assert.Equal(t, "s1", pending[0].PartitionKey)

	require.NoError(t, repo.MarkOutboxPublished(ctx, "evt-1", occurredAt.Add(time.Second)))
	pending, err = repo.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.ErrorIs(t, repo.MarkOutboxPublished(ctx, "missing", occurredAt), domainerrors.ErrOutboxConflict)
}

func TestClockAndIDsRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	id, err := IDGenerator{}.NewID(ctx)
	require.NoError(t, err)
	other, err := IDGenerator{}.NewID(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, id, other)

	now := Clock{}.Now()
	assert.Equal(t, time.UTC, now.Location())
	require.NoError(t, repo.CreateSession(ctx, entities.Session{
		SessionID:          id,
		Title:              "Clocked",
		MasterID:           "m1",
		AllowMultipleVotes: true,
		MaxVotesPerUser:    entities.DefaultMaxVotesPerUser,
		Items:              []string{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}))
	stored, err := repo.GetSession(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.CreatedAt.Equal(now))
}
