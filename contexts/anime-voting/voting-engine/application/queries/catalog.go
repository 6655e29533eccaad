package queries

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	application "animevote/contexts/anime-voting/voting-engine/application"
	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	domainerrors "animevote/contexts/anime-voting/voting-engine/domain/errors"
	"animevote/contexts/anime-voting/voting-engine/ports"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
)

type CatalogQueries struct {
	Catalog ports.CatalogSearcher
	Logger  *slog.Logger
}

// Search resolves a keyword to candidate external item ids. A zero limit
// means the default.
func (q CatalogQueries) Search(ctx context.Context, keyword string, limit int) ([]entities.CatalogItem, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: keyword is required", domainerrors.ErrInvalidSearchQuery)
	}
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	if limit < 1 || limit > MaxSearchLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", domainerrors.ErrInvalidSearchQuery, MaxSearchLimit)
	}
	if q.Catalog == nil {
		return nil, domainerrors.ErrCatalogUnavailable
	}

	items, err := q.Catalog.Search(ctx, keyword, limit)
	if err != nil {
		application.ResolveLogger(q.Logger).Error("catalog search failed",
			"event", "voting_catalog_search_failed",
			"module", application.ModuleName,
			"layer", "application",
			"keyword", keyword,
			"limit", limit,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("%w: %w", domainerrors.ErrCatalogUnavailable, err)
	}
	return items, nil
}
