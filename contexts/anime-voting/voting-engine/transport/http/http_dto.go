package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateSessionRequest struct {
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	IsPublic           *bool  `json:"is_public,omitempty"`
	AllowMultipleVotes *bool  `json:"allow_multiple_votes,omitempty"`
	MaxVotesPerUser    int    `json:"max_votes_per_user,omitempty"`
}

type SessionResponse struct {
	SessionID          string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	MasterID           string   `json:"master_id"`
	IsPublic           bool     `json:"is_public"`
	AllowMultipleVotes bool     `json:"allow_multiple_votes"`
	MaxVotesPerUser    int      `json:"max_votes_per_user"`
	BangumiIDs         []string `json:"bangumi_ids"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

type CreateSessionResponse struct {
	Session  SessionResponse `json:"session"`
	Replayed bool            `json:"replayed"`
}

type SessionDetailResponse struct {
	Session SessionResponse `json:"session"`
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Count    int               `json:"count"`
}

type AddAnimeRequest struct {
	BangumiID string `json:"bangumi_id"`
}

type AddAnimeResponse struct {
	SessionID  string   `json:"session_id"`
	BangumiID  string   `json:"bangumi_id"`
	BangumiIDs []string `json:"bangumi_ids"`
}

type VoteEntryRequest struct {
	AnimeID   string `json:"anime_id"`
	VoteLevel string `json:"vote_level"`
}

type CastVoteRequest struct {
	VotedAnime []VoteEntryRequest `json:"voted_anime"`
}

type CastVoteResponse struct {
	VoteID          string `json:"vote_id"`
	SessionID       string `json:"session_id"`
	VotedAnimeCount int    `json:"voted_anime_count"`
	Replaced        bool   `json:"replaced"`
	CastAt          string `json:"cast_at"`
}

type ItemStatsResponse struct {
	AnimeID          string         `json:"anime_id"`
	TotalVotes       int            `json:"total_votes"`
	TotalScore       int            `json:"total_score"`
	AverageScore     float64        `json:"average_score"`
	VoteDistribution map[string]int `json:"vote_distribution"`
}

type OverallStatsResponse struct {
	TotalVotes       int            `json:"total_votes"`
	TotalScore       int            `json:"total_score"`
	AverageScore     float64        `json:"average_score"`
	VoteDistribution map[string]int `json:"vote_distribution"`
}

type SessionStatsResponse struct {
	SessionID   string               `json:"session_id"`
	TotalVoters int                  `json:"total_voters"`
	Overall     OverallStatsResponse `json:"overall"`
	AnimeStats  []ItemStatsResponse  `json:"anime_stats"`
}

type UserVoteResponse struct {
	VoteID       string             `json:"vote_id"`
	SessionID    string             `json:"session_id"`
	SessionTitle string             `json:"session_title"`
	VotedAnime   []VoteEntryRequest `json:"voted_anime"`
	CastAt       string             `json:"cast_at"`
}

type UserVotesResponse struct {
	Votes []UserVoteResponse `json:"votes"`
	Count int                `json:"count"`
}

type UserStatsResponse struct {
	UserID               string `json:"user_id"`
	CreatedSessions      int    `json:"created_sessions"`
	TotalVotes           int    `json:"total_votes"`
	ParticipatedSessions int    `json:"participated_sessions"`
}

type AnimeSearchItem struct {
	BangumiID string  `json:"bangumi_id"`
	Title     string  `json:"title"`
	TitleCN   string  `json:"title_cn"`
	Image     string  `json:"image,omitempty"`
	Score     float64 `json:"score"`
}

type AnimeSearchResponse struct {
	Keyword string            `json:"keyword"`
	Count   int               `json:"count"`
	Results []AnimeSearchItem `json:"results"`
}

type GradeResponse struct {
	Level string `json:"level"`
	Label string `json:"label"`
	Score int    `json:"score"`
}

type GradesResponse struct {
	Grades []GradeResponse `json:"grades"`
}
