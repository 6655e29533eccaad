package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	"animevote/contexts/anime-voting/voting-engine/ports"

	"github.com/agnivade/levenshtein"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://api.bgm.tv"
	DefaultUserAgent = "animevote/1.0"
	DefaultTimeout   = 10 * time.Second

	// subjectTypeAnime is the Bangumi subject type for animation.
	subjectTypeAnime = 2
)

type Config struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

// BangumiClient resolves keywords against the Bangumi subject search API.
type BangumiClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
}

func NewBangumiClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *BangumiClient {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &BangumiClient{
		baseURL:   baseURL,
		userAgent: userAgent,
		http:      httpClient,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger,
	}
}

type searchRequest struct {
	Keyword string       `json:"keyword"`
	Filter  searchFilter `json:"filter"`
}

type searchFilter struct {
	Type []int `json:"type"`
}

type searchResponse struct {
	Total int             `json:"total"`
	Data  []subjectResult `json:"data"`
}

type subjectResult struct {
	ID     int     `json:"id"`
	Type   int     `json:"type"`
	Name   string  `json:"name"`
	NameCN string  `json:"name_cn"`
	Score  float64 `json:"score"`
	Images struct {
		Large string `json:"large"`
	} `json:"images"`
}

// Search returns anime subjects only, closest titles first.
func (c *BangumiClient) Search(ctx context.Context, keyword string, limit int) ([]entities.CatalogItem, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("catalog rate limit: %w", err)
	}

	body, err := json.Marshal(searchRequest{
		Keyword: keyword,
		Filter:  searchFilter{Type: []int{subjectTypeAnime}},
	})
	if err != nil {
		return nil, err
	}
	endpoint := c.baseURL + "/v0/search/subjects?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("catalog search rejected",
			"event", "voting_catalog_upstream_status",
			"module", "anime-voting/voting-engine",
			"layer", "adapter",
			"status", resp.StatusCode,
			"body", strings.TrimSpace(string(snippet)),
		)
		return nil, fmt.Errorf("catalog responded with status %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	items := make([]entities.CatalogItem, 0, len(payload.Data))
	for _, subject := range payload.Data {
		if subject.Type != subjectTypeAnime {
			continue
		}
		items = append(items, entities.CatalogItem{
			ExternalItemID: strconv.Itoa(subject.ID),
			Title:          subject.Name,
			TitleCN:        subject.NameCN,
			Image:          subject.Images.Large,
			Score:          subject.Score,
		})
	}
	rankByTitle(items, keyword)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	c.logger.Debug("catalog search completed",
		"event", "voting_catalog_search_completed",
		"module", "anime-voting/voting-engine",
		"layer", "adapter",
		"keyword", keyword,
		"results", len(items),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return items, nil
}

// rankByTitle orders items by edit distance between the keyword and the
// closer of the two titles. Ties keep upstream order.
func rankByTitle(items []entities.CatalogItem, keyword string) {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	distances := make(map[string]int, len(items))
	for _, item := range items {
		distances[item.ExternalItemID] = titleDistance(needle, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return distances[items[i].ExternalItemID] < distances[items[j].ExternalItemID]
	})
}

func titleDistance(needle string, item entities.CatalogItem) int {
	best := levenshtein.ComputeDistance(needle, strings.ToLower(item.Title))
	if item.TitleCN != "" {
		if d := levenshtein.ComputeDistance(needle, strings.ToLower(item.TitleCN)); d < best {
			best = d
		}
	}
	return best
}

var _ ports.CatalogSearcher = (*BangumiClient)(nil)
