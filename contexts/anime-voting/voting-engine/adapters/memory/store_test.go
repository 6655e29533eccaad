package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	domainerrors "animevote/contexts/anime-voting/voting-engine/domain/errors"
	"animevote/contexts/anime-voting/voting-engine/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore() *Store {
	return NewStore([]entities.Session{{
		SessionID:          "s1",
		Title:              "Spring 2025",
		MasterID:           "master",
		IsPublic:           true,
		AllowMultipleVotes: true,
		MaxVotesPerUser:    entities.DefaultMaxVotesPerUser,
		Items:              []string{"100"},
		CreatedAt:          time.Now().UTC(),
	}})
}

func TestUpsertVoteReplacesInPlace(t *testing.T) {
	store := seededStore()
	ctx := context.Background()
	first := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	vote, replaced, err := store.UpsertVote(ctx, ports.VoteUpsert{
		VoteID: "v1", SessionID: "s1", UserID: "u1", CastAt: first,
		Entries: []entities.VoteEntry{{ItemID: "100", Grade: entities.GradeGood}},
	})
	require.NoError(t, err)
	assert.False(t, replaced)
	assert.Equal(t, "v1", vote.VoteID)

	again, replaced, err := store.UpsertVote(ctx, ports.VoteUpsert{
		VoteID: "v2", SessionID: "s1", UserID: "u1", CastAt: first.Add(time.Minute),
		Entries: []entities.VoteEntry{{ItemID: "100", Grade: entities.GradeGod}},
	})
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.Equal(t, "v1", again.VoteID)
	assert.Equal(t, first, again.CreatedAt)
	assert.Equal(t, first.Add(time.Minute), again.CastAt)
	assert.Equal(t, entities.GradeGod, again.Entries[0].Grade)
	assert.Equal(t, 1, store.VoteCount())
}

func TestUpsertVoteConcurrentFirstVotesKeepOneRow(t *testing.T) {
	store := seededStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := store.UpsertVote(ctx, ports.VoteUpsert{
				VoteID: fmt.Sprintf("v%d", i), SessionID: "s1", UserID: "u1", CastAt: time.Now(),
				Entries: []entities.VoteEntry{{ItemID: "100", Grade: entities.GradeGood}},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, store.VoteCount())
}

func TestAppendSessionItemRejectsDuplicate(t *testing.T) {
	store := seededStore()
	ctx := context.Background()

	session, err := store.AppendSessionItem(ctx, "s1", "200", time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "200"}, session.Items)

	_, err = store.AppendSessionItem(ctx, "s1", "２００", time.Now())
	require.ErrorIs(t, err, domainerrors.ErrItemAlreadyPresent)

	current, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "200"}, current.Items)

	_, err = store.AppendSessionItem(ctx, "missing", "200", time.Now())
	require.ErrorIs(t, err, domainerrors.ErrSessionNotFound)
}

func TestGetSessionReturnsDetachedCopy(t *testing.T) {
	store := seededStore()
	session, err := store.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	session.Items[0] = "mutated"

	again, err := store.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "100", again.Items[0])
}

func TestListingsFilterAndOrder(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewStore([]entities.Session{
		{SessionID: "b", MasterID: "m1", IsPublic: true, CreatedAt: base.Add(time.Hour)},
		{SessionID: "a", MasterID: "m2", IsPublic: false, CreatedAt: base},
		{SessionID: "c", MasterID: "m1", IsPublic: false, CreatedAt: base.Add(2 * time.Hour)},
	})
	ctx := context.Background()

	public, err := store.ListPublicSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, sessionIDs(public))

	mine, err := store.ListSessionsByMaster(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, sessionIDs(mine))

	all, err := store.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, sessionIDs(all))
}

func TestIdempotencyRecordsExpire(t *testing.T) {
	store := seededStore()
	ctx := context.Background()
	now := time.Now().UTC()

	_, reserved, err := store.Reserve(ctx, ports.IdempotencyRecord{Key: "k", RequestHash: "h", SessionID: "s1", ExpiresAt: now.Add(time.Hour)}, now)
	require.NoError(t, err)
	assert.True(t, reserved)

	held, reserved, err := store.Reserve(ctx, ports.IdempotencyRecord{Key: "k", RequestHash: "other", SessionID: "s2", ExpiresAt: now.Add(time.Hour)}, now)
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.Equal(t, "h", held.RequestHash)
	assert.Equal(t, "s1", held.SessionID)

	_, found, err := store.Get(ctx, "k", now)
	require.NoError(t, err)
	assert.True(t, found)

	_, found, err = store.Get(ctx, "k", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, found)

	held, reserved, err = store.Reserve(ctx, ports.IdempotencyRecord{Key: "k", RequestHash: "h3", SessionID: "s3", ExpiresAt: now.Add(3 * time.Hour)}, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, reserved)
	assert.Equal(t, "s3", held.SessionID)

	require.NoError(t, store.Release(ctx, "k"))
	_, found, err = store.Get(ctx, "k", now)
	require.NoError(t, err)
	assert.False(t, found)
}

func sessionIDs(items []entities.Session) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.SessionID)
	}
	return ids
}
