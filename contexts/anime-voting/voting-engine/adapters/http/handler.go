package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"animevote/contexts/anime-voting/voting-engine/application/commands"
	"animevote/contexts/anime-voting/voting-engine/application/queries"
	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	httptransport "animevote/contexts/anime-voting/voting-engine/transport/http"
)

type Handler struct {
	Sessions       commands.SessionUseCase
	Votes          commands.VoteUseCase
	SessionQueries queries.SessionQueries
	Stats          queries.StatsUseCase
	Users          queries.UserQueries
	Catalog        queries.CatalogQueries
	Logger         *slog.Logger
}

// CreateSessionHandler godoc
// @Summary Create a voting session
// @Description Creates a session owned by the caller. Replays with the same Idempotency-Key return the original session.
// @Tags voting
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Idempotency key"
// @Param request body httptransport.CreateSessionRequest true "Session"
// @Success 201 {object} httptransport.CreateSessionResponse
// @Success 200 {object} httptransport.CreateSessionResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /api/voting/sessions [post]
func (h Handler) CreateSessionHandler(
	ctx context.Context,
	actor entities.Actor,
	idempotencyKey string,
	req httptransport.CreateSessionRequest,
) (httptransport.CreateSessionResponse, error) {
	result, err := h.Sessions.CreateSession(ctx, commands.CreateSessionCommand{
		MasterID:           actor.UserID,
		Title:              req.Title,
		Description:        req.Description,
		IsPublic:           req.IsPublic,
		AllowMultipleVotes: req.AllowMultipleVotes,
		MaxVotesPerUser:    req.MaxVotesPerUser,
		IdempotencyKey:     idempotencyKey,
	})
	if err != nil {
		return httptransport.CreateSessionResponse{}, err
	}
	return httptransport.CreateSessionResponse{
		Session:  mapSession(result.Session),
		Replayed: result.Replayed,
	}, nil
}

// AddAnimeHandler godoc
// @Summary Add an anime to a session
// @Description Appends a catalog id to the session item list. Only the master or an admin may add.
// @Tags voting
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param session_id path string true "Session id"
// @Param request body httptransport.AddAnimeRequest true "Anime"
// @Success 200 {object} httptransport.AddAnimeResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /api/voting/sessions/{session_id}/anime [post]
func (h Handler) AddAnimeHandler(
	ctx context.Context,
	actor entities.Actor,
	sessionID string,
	req httptransport.AddAnimeRequest,
) (httptransport.AddAnimeResponse, error) {
	session, err := h.Sessions.AddItem(ctx, commands.AddItemCommand{
		SessionID: sessionID,
		ActorID:   actor.UserID,
		ActorRole: actor.Role,
		ItemID:    req.BangumiID,
	})
	if err != nil {
		return httptransport.AddAnimeResponse{}, err
	}
	return httptransport.AddAnimeResponse{
		SessionID:  session.SessionID,
		BangumiID:  entities.NormalizeItemID(req.BangumiID),
		BangumiIDs: itemIDs(session.Items),
	}, nil
}

func (h Handler) GetSessionHandler(
	ctx context.Context,
	actor entities.Actor,
	sessionID string,
) (httptransport.SessionDetailResponse, error) {
	session, err := h.SessionQueries.ViewSession(ctx, sessionID, actor)
	if err != nil {
		return httptransport.SessionDetailResponse{}, err
	}
	return httptransport.SessionDetailResponse{Session: mapSession(session)}, nil
}

func (h Handler) ListPublicSessionsHandler(ctx context.Context) (httptransport.SessionListResponse, error) {
	sessions, err := h.SessionQueries.ListPublic(ctx)
	if err != nil {
		return httptransport.SessionListResponse{}, err
	}
	return mapSessionList(sessions), nil
}

func (h Handler) ListMySessionsHandler(ctx context.Context, actor entities.Actor) (httptransport.SessionListResponse, error) {
	sessions, err := h.SessionQueries.ListByMaster(ctx, actor)
	if err != nil {
		return httptransport.SessionListResponse{}, err
	}
	return mapSessionList(sessions), nil
}

func (h Handler) ListAllSessionsHandler(ctx context.Context, actor entities.Actor) (httptransport.SessionListResponse, error) {
	sessions, err := h.SessionQueries.ListAll(ctx, actor)
	if err != nil {
		return httptransport.SessionListResponse{}, err
	}
	return mapSessionList(sessions), nil
}

// CastVoteHandler godoc
// @Summary Cast or replace a ballot
// @Description Stores the caller's ballot for the session, replacing any previous one.
// @Tags voting
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param session_id path string true "Session id"
// @Param request body httptransport.CastVoteRequest true "Ballot"
// @Success 200 {object} httptransport.CastVoteResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Router /api/voting/sessions/{session_id}/vote [post]
func (h Handler) CastVoteHandler(
	ctx context.Context,
	actor entities.Actor,
	sessionID string,
	req httptransport.CastVoteRequest,
) (httptransport.CastVoteResponse, error) {
	entries := make([]entities.VoteEntry, 0, len(req.VotedAnime))
	for _, entry := range req.VotedAnime {
		entries = append(entries, entities.VoteEntry{
			ItemID: entry.AnimeID,
			Grade:  entities.GradeLevel(entry.VoteLevel),
		})
	}
	result, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		SessionID: sessionID,
		UserID:    actor.UserID,
		Entries:   entries,
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	return httptransport.CastVoteResponse{
		VoteID:          result.Vote.VoteID,
		SessionID:       result.Vote.SessionID,
		VotedAnimeCount: len(result.Vote.Entries),
		Replaced:        result.Replaced,
		CastAt:          formatTime(result.Vote.CastAt),
	}, nil
}

// SessionResultsHandler godoc
// @Summary Aggregate session results
// @Tags voting
// @Produce json
// @Param session_id path string true "Session id"
// @Success 200 {object} httptransport.SessionStatsResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /api/voting/sessions/{session_id}/results [get]
func (h Handler) SessionResultsHandler(ctx context.Context, sessionID string) (httptransport.SessionStatsResponse, error) {
	stats, err := h.Stats.ComputeStats(ctx, sessionID)
	if err != nil {
		return httptransport.SessionStatsResponse{}, err
	}
	items := make([]httptransport.ItemStatsResponse, 0, len(stats.ItemOrder))
	for _, itemID := range stats.ItemOrder {
		item := stats.Items[itemID]
		items = append(items, httptransport.ItemStatsResponse{
			AnimeID:          item.ItemID,
			TotalVotes:       item.TotalVotes,
			TotalScore:       item.TotalScore,
			AverageScore:     item.AverageScore,
			VoteDistribution: mapDistribution(item.Distribution),
		})
	}
	return httptransport.SessionStatsResponse{
		SessionID:   stats.SessionID,
		TotalVoters: stats.TotalVoters,
		Overall: httptransport.OverallStatsResponse{
			TotalVotes:       stats.Overall.TotalVotes,
			TotalScore:       stats.Overall.TotalScore,
			AverageScore:     stats.Overall.AverageScore,
			VoteDistribution: mapDistribution(stats.Overall.Distribution),
		},
		AnimeStats: items,
	}, nil
}

func (h Handler) UserVotesHandler(ctx context.Context, actor entities.Actor) (httptransport.UserVotesResponse, error) {
	records, err := h.Users.VoteHistory(ctx, actor.UserID)
	if err != nil {
		return httptransport.UserVotesResponse{}, err
	}
	votes := make([]httptransport.UserVoteResponse, 0, len(records))
	for _, record := range records {
		votes = append(votes, httptransport.UserVoteResponse{
			VoteID:       record.Vote.VoteID,
			SessionID:    record.Vote.SessionID,
			SessionTitle: record.SessionTitle,
			VotedAnime:   mapEntries(record.Vote.Entries),
			CastAt:       formatTime(record.Vote.CastAt),
		})
	}
	return httptransport.UserVotesResponse{Votes: votes, Count: len(votes)}, nil
}

func (h Handler) UserStatsHandler(ctx context.Context, actor entities.Actor) (httptransport.UserStatsResponse, error) {
	stats, err := h.Users.Stats(ctx, actor.UserID)
	if err != nil {
		return httptransport.UserStatsResponse{}, err
	}
	return httptransport.UserStatsResponse{
		UserID:               stats.UserID,
		CreatedSessions:      stats.CreatedSessions,
		TotalVotes:           stats.TotalVotes,
		ParticipatedSessions: stats.ParticipatedSessions,
	}, nil
}

// SearchAnimeHandler godoc
// @Summary Search the anime catalog
// @Tags catalog
// @Produce json
// @Param keyword query string true "Keyword"
// @Param limit query int false "Result limit (1-50)"
// @Success 200 {object} httptransport.AnimeSearchResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 502 {object} httptransport.ErrorResponse
// @Router /api/search/anime [get]
func (h Handler) SearchAnimeHandler(ctx context.Context, keyword string, limit int) (httptransport.AnimeSearchResponse, error) {
	items, err := h.Catalog.Search(ctx, keyword, limit)
	if err != nil {
		return httptransport.AnimeSearchResponse{}, err
	}
	results := make([]httptransport.AnimeSearchItem, 0, len(items))
	for _, item := range items {
		results = append(results, httptransport.AnimeSearchItem{
			BangumiID: item.ExternalItemID,
			Title:     item.Title,
			TitleCN:   item.TitleCN,
			Image:     item.Image,
			Score:     item.Score,
		})
	}
	return httptransport.AnimeSearchResponse{
		Keyword: keyword,
		Count:   len(results),
		Results: results,
	}, nil
}

func (h Handler) GradesHandler() httptransport.GradesResponse {
	grades := entities.Grades()
	items := make([]httptransport.GradeResponse, 0, len(grades))
	for _, grade := range grades {
		items = append(items, httptransport.GradeResponse{
			Level: string(grade.Level),
			Label: grade.Label,
			Score: grade.Score,
		})
	}
	return httptransport.GradesResponse{Grades: items}
}

func mapSession(session entities.Session) httptransport.SessionResponse {
	return httptransport.SessionResponse{
		SessionID:          session.SessionID,
		Title:              session.Title,
		Description:        session.Description,
		MasterID:           session.MasterID,
		IsPublic:           session.IsPublic,
		AllowMultipleVotes: session.AllowMultipleVotes,
		MaxVotesPerUser:    session.MaxVotesPerUser,
		BangumiIDs:         itemIDs(session.Items),
		CreatedAt:          formatTime(session.CreatedAt),
		UpdatedAt:          formatTime(session.UpdatedAt),
	}
}

func mapSessionList(sessions []entities.Session) httptransport.SessionListResponse {
	items := make([]httptransport.SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		items = append(items, mapSession(session))
	}
	return httptransport.SessionListResponse{Sessions: items, Count: len(items)}
}

func mapEntries(entries []entities.VoteEntry) []httptransport.VoteEntryRequest {
	items := make([]httptransport.VoteEntryRequest, 0, len(entries))
	for _, entry := range entries {
		items = append(items, httptransport.VoteEntryRequest{
			AnimeID:   entry.ItemID,
			VoteLevel: string(entry.Grade),
		})
	}
	return items
}

func mapDistribution(distribution entities.Distribution) map[string]int {
	out := make(map[string]int, len(distribution))
	for level, count := range distribution {
		out[string(level)] = count
	}
	return out
}

func itemIDs(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	return out
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339Nano)
}
