package queries

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "animevote/contexts/anime-voting/voting-engine/application"
	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	"animevote/contexts/anime-voting/voting-engine/domain/services"
	"animevote/contexts/anime-voting/voting-engine/ports"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// StatsUseCase recomputes session statistics from the ledger on every call.
type StatsUseCase struct {
	Sessions ports.SessionRepository
	Votes    ports.VoteLedger
	Metrics  ports.Metrics
	// Flights collapses concurrent computations for the same session into one
	// ledger read. Nothing outlives the in-flight call.
	Flights *singleflight.Group
	Logger  *slog.Logger
}

// sharedComputeTimeout bounds a coalesced computation, which runs detached
// from any single caller's cancellation.
const sharedComputeTimeout = 10 * time.Second

func (uc StatsUseCase) ComputeStats(ctx context.Context, sessionID string) (entities.SessionStats, error) {
	sessionID = strings.TrimSpace(sessionID)
	if uc.Flights == nil {
		return uc.compute(ctx, sessionID)
	}
	flight := uc.Flights.DoChan(sessionID, func() (any, error) {
		computeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedComputeTimeout)
		defer cancel()
		return uc.compute(computeCtx, sessionID)
	})
	select {
	case <-ctx.Done():
		return entities.SessionStats{}, ctx.Err()
	case result := <-flight:
		if result.Err != nil {
			return entities.SessionStats{}, result.Err
		}
		if result.Shared {
			application.ResolveLogger(uc.Logger).Debug("session stats computation shared",
				"event", "voting_stats_shared",
				"module", application.ModuleName,
				"layer", "application",
				"session_id", sessionID,
			)
		}
		return result.Val.(entities.SessionStats), nil
	}
}

func (uc StatsUseCase) compute(ctx context.Context, sessionID string) (stats entities.SessionStats, err error) {
	started := time.Now()
	ctx, span := application.StartSpan(ctx, "StatsUseCase.ComputeStats",
		attribute.String("session_id", sessionID),
	)
	defer func() {
		if uc.Metrics != nil {
			uc.Metrics.ObserveStatsDuration(time.Since(started))
		}
		application.EndSpan(span, err)
	}()

	session, err := uc.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return entities.SessionStats{}, err
	}
	votes, err := uc.Votes.ListVotesBySession(ctx, session.SessionID)
	if err != nil {
		return entities.SessionStats{}, err
	}
	stats = services.ComputeStats(session, votes)
	span.SetAttributes(
		attribute.Int("total_voters", stats.TotalVoters),
		attribute.Int("total_votes", stats.Overall.TotalVotes),
	)
	application.ResolveLogger(uc.Logger).Info("session stats computed",
		"event", "voting_stats_computed",
		"module", application.ModuleName,
		"layer", "application",
		"session_id", session.SessionID,
		"total_voters", stats.TotalVoters,
		"total_votes", stats.Overall.TotalVotes,
	)
	return stats, nil
}
