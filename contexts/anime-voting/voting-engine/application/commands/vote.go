package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "animevote/contexts/anime-voting/voting-engine/application"
	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	domainerrors "animevote/contexts/anime-voting/voting-engine/domain/errors"
	"animevote/contexts/anime-voting/voting-engine/domain/services"
	"animevote/contexts/anime-voting/voting-engine/ports"

	"go.opentelemetry.io/otel/attribute"
)

// CastVoteCommand is the write-model input for vote submission.
type CastVoteCommand struct {
	SessionID string
	UserID    string
	Entries   []entities.VoteEntry
}

// CastVoteResult carries the stored vote and whether it replaced an earlier
// ballot from the same user.
type CastVoteResult struct {
	Vote     entities.Vote
	Replaced bool
}

// VoteUseCase validates ballots and writes them to the ledger.
type VoteUseCase struct {
	Sessions ports.SessionRepository
	Votes    ports.VoteLedger
	Outbox   ports.OutboxWriter
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Metrics  ports.Metrics
	// EnforceSessionItems rejects grades for items that are not on the session.
	EnforceSessionItems bool
	Logger              *slog.Logger
}

// CastVote creates or replaces the caller's vote in a session. Every check
// runs before the ledger write, so a rejected ballot leaves the ledger as it
// was.
func (uc VoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (result CastVoteResult, err error) {
	sessionID := strings.TrimSpace(cmd.SessionID)
	userID := strings.TrimSpace(cmd.UserID)
	ctx, span := application.StartSpan(ctx, "VoteUseCase.CastVote",
		attribute.String("session_id", sessionID),
		attribute.String("user_id", userID),
		attribute.Int("entry_count", len(cmd.Entries)),
	)
	defer func() {
		uc.observe(result, err)
		application.EndSpan(span, err)
	}()

	logger := application.ResolveLogger(uc.Logger)
	logger.Info("vote cast processing started",
		"event", "voting_vote_cast_started",
		"module", application.ModuleName,
		"layer", "application",
		"session_id", sessionID,
		"user_id", userID,
		"entry_count", len(cmd.Entries),
	)
	if userID == "" {
		return CastVoteResult{}, domainerrors.ErrInvalidActor
	}
	if len(cmd.Entries) == 0 {
		return CastVoteResult{}, domainerrors.ErrEmptyBallot
	}

	session, err := uc.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return CastVoteResult{}, err
	}
	entries, err := services.ValidateBallot(session, cmd.Entries, services.BallotPolicy{
		EnforceSessionItems: uc.EnforceSessionItems,
	})
	if err != nil {
		logger.Warn("vote cast rejected",
			"event", "voting_vote_cast_rejected",
			"module", application.ModuleName,
			"layer", "application",
			"session_id", sessionID,
			"user_id", userID,
			"entry_count", len(cmd.Entries),
			"max_votes_per_user", session.MaxVotesPerUser,
			"error", err.Error(),
		)
		return CastVoteResult{}, err
	}

	voteID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CastVoteResult{}, err
	}
	now := uc.now()
	vote, replaced, err := uc.Votes.UpsertVote(ctx, ports.VoteUpsert{
		VoteID:    voteID,
		SessionID: session.SessionID,
		UserID:    userID,
		Entries:   entries,
		CastAt:    now,
	})
	if err != nil {
		logger.Error("vote upsert failed",
			"event", "voting_vote_upsert_failed",
			"module", application.ModuleName,
			"layer", "application",
			"session_id", sessionID,
			"user_id", userID,
			"error", err.Error(),
		)
		return CastVoteResult{}, err
	}

	eventType := EventVoteCast
	if replaced {
		eventType = EventVoteReplaced
	}
	appendEvent(ctx, uc.Outbox, uc.IDGen, uc.Logger, eventType, vote.SessionID, now, map[string]any{
		"vote_id":     vote.VoteID,
		"session_id":  vote.SessionID,
		"user_id":     vote.UserID,
		"entry_count": len(vote.Entries),
		"score":       vote.Score(),
		"cast_at":     vote.CastAt.Format(time.RFC3339Nano),
	})

	logger.Info("vote cast",
		"event", "voting_vote_cast",
		"module", application.ModuleName,
		"layer", "application",
		"vote_id", vote.VoteID,
		"session_id", vote.SessionID,
		"user_id", vote.UserID,
		"entry_count", len(vote.Entries),
		"replaced", replaced,
	)
	return CastVoteResult{Vote: vote, Replaced: replaced}, nil
}

func (uc VoteUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}

func (uc VoteUseCase) observe(result CastVoteResult, err error) {
	if uc.Metrics == nil {
		return
	}
	switch {
	case err == nil && result.Replaced:
		uc.Metrics.ObserveVote("replaced")
	case err == nil:
		uc.Metrics.ObserveVote("created")
	case errors.Is(err, domainerrors.ErrStorage):
		uc.Metrics.ObserveVote("failed")
	default:
		uc.Metrics.ObserveVote("rejected")
	}
}
