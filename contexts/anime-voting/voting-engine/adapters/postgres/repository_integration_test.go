//go:build integration

package postgresadapter

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
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("animevote"),
		tcpostgres.WithUsername("animevote"),
		tcpostgres.WithPassword("animevote"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	repo := NewRepository(db, nil)
	require.NoError(t, repo.Migrate(ctx))
	return repo
}

func createTestSession(t *testing.T, repo *Repository, items ...string) entities.Session {
	t.Helper()
	now := SystemClock{}.Now()
	session := entities.Session{
		SessionID:          fmt.Sprintf("session-%d", time.Now().UnixNano()),
		Title:              "Winter 2025",
		MasterID:           "master",
		IsPublic:           true,
		AllowMultipleVotes: true,
		MaxVotesPerUser:    entities.DefaultMaxVotesPerUser,
		Items:              items,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, repo.CreateSession(context.Background(), session))
	return session
}

func TestPostgresSessionLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	session := createTestSession(t, repo, "100")

	updated, err := repo.AppendSessionItem(ctx, session.SessionID, "200", SystemClock{}.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "200"}, updated.Items)

	_, err = repo.AppendSessionItem(ctx, session.SessionID, "200", SystemClock{}.Now())
	require.ErrorIs(t, err, domainerrors.ErrItemAlreadyPresent)

	_, err = repo.AppendSessionItem(ctx, "missing", "200", SystemClock{}.Now())
	require.ErrorIs(t, err, domainerrors.ErrSessionNotFound)

	loaded, err := repo.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "200"}, loaded.Items)
	assert.Equal(t, session.CreatedAt, loaded.CreatedAt)

	public, err := repo.ListPublicSessions(ctx)
	require.NoError(t, err)
	require.Len(t, public, 1)
}

func TestPostgresUpsertVoteKeepsIdentity(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	session := createTestSession(t, repo, "100")
	castAt := SystemClock{}.Now()

	first, replaced, err := repo.UpsertVote(ctx, ports.VoteUpsert{
		VoteID: "vote-1", SessionID: session.SessionID, UserID: "u1", CastAt: castAt,
		Entries: []entities.VoteEntry{{ItemID: "100", Grade: entities.GradeGood}},
	})
	require.NoError(t, err)
	assert.False(t, replaced)

	second, replaced, err := repo.UpsertVote(ctx, ports.VoteUpsert{
		VoteID: "vote-2", SessionID: session.SessionID, UserID: "u1", CastAt: castAt.Add(time.Second),
		Entries: []entities.VoteEntry{{ItemID: "100", Grade: entities.GradeBad}},
	})
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.Equal(t, first.VoteID, second.VoteID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, entities.GradeBad, second.Entries[0].Grade)

	votes, err := repo.ListVotesBySession(ctx, session.SessionID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
}

func TestPostgresConcurrentFirstVotes(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	session := createTestSession(t, repo, "100")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := repo.UpsertVote(ctx, ports.VoteUpsert{
				VoteID: fmt.Sprintf("vote-%d", i), SessionID: session.SessionID, UserID: "u1", CastAt: SystemClock{}.Now(),
				Entries: []entities.VoteEntry{{ItemID: "100", Grade: entities.GradeGreat}},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	votes, err := repo.ListVotesBySession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Len(t, votes, 1)
}
