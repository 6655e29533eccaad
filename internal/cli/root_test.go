package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	httptransport "animevote/contexts/anime-voting/voting-engine/transport/http"
	"animevote/internal/app/bootstrap"
	"animevote/internal/platform/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORE_DRIVER", "")
	var out bytes.Buffer
	cmd := NewRootCommand(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seedSQLite(t *testing.T, path string) string {
	t.Helper()
	cfg := config.Default()
	cfg.StoreDriver = config.StoreSQLite
	cfg.SQLitePath = path
	runtime, err := bootstrap.OpenRuntime(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer runtime.Close()

	ctx := context.Background()
	master := entities.Actor{UserID: "master-1", Role: entities.RoleUser}
	created, err := runtime.Module.Handler.CreateSessionHandler(ctx, master, "", httptransport.CreateSessionRequest{Title: "Winter"})
	require.NoError(t, err)
	id := created.Session.SessionID
	_, err = runtime.Module.Handler.AddAnimeHandler(ctx, master, id, httptransport.AddAnimeRequest{BangumiID: "100"})
	require.NoError(t, err)
	_, err = runtime.Module.Handler.CastVoteHandler(ctx, entities.Actor{UserID: "voter-1"}, id, httptransport.CastVoteRequest{
		VotedAnime: []httptransport.VoteEntryRequest{{AnimeID: "100", VoteLevel: "great"}},
	})
	require.NoError(t, err)
	return id
}

func TestGradesCommand(t *testing.T) {
	out, err := run(t, "grades")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	assert.Contains(t, lines[0], "LEVEL")
	assert.Contains(t, lines[1], "bad")
	assert.Contains(t, lines[6], "god")
}

func TestMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "votes.db")
	out, err := run(t, "migrate", "--store", "sqlite", "--sqlite-path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "migrated sqlite store")
}

func TestSessionsAndStatsCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "votes.db")
	id := seedSQLite(t, path)

	out, err := run(t, "sessions", "--store", "sqlite", "--sqlite-path", path)
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Winter")

	out, err = run(t, "sessions", "--json", "--store", "sqlite", "--sqlite-path", path)
	require.NoError(t, err)
	var list httptransport.SessionListResponse
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Equal(t, 1, list.Count)

	out, err = run(t, "stats", id, "--store", "sqlite", "--sqlite-path", path)
	require.NoError(t, err)
	var stats httptransport.SessionStatsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.TotalVoters)
	require.Len(t, stats.AnimeStats, 1)
	assert.Equal(t, 4, stats.AnimeStats[0].TotalScore)

	_, err = run(t, "stats", "missing", "--store", "sqlite", "--sqlite-path", path)
	require.Error(t, err)
}

func TestSessionsCommandOnEmptyMemoryStore(t *testing.T) {
	out, err := run(t, "sessions", "--store", "memory")
	require.NoError(t, err)
	assert.Contains(t, out, "no public sessions")
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, "token", "admin-1", "--secret", "s3cret", "--role", "admin")
	require.NoError(t, err)

	claims := &jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), claims, func(*jwt.Token) (any, error) {
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "admin-1", (*claims)["sub"])
	assert.Equal(t, "admin", (*claims)["role"])
}
