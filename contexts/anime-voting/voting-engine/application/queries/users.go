package queries

import (
	"context"
	"errors"
	"strings"

	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	domainerrors "animevote/contexts/anime-voting/voting-engine/domain/errors"
	"animevote/contexts/anime-voting/voting-engine/ports"
)

const unknownSessionTitle = "unknown session"

type UserQueries struct {
	Sessions ports.SessionRepository
	Votes    ports.VoteLedger
}

// VoteHistory lists the user's votes, each annotated with its session title.
func (q UserQueries) VoteHistory(ctx context.Context, userID string) ([]entities.VoteRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domainerrors.ErrInvalidActor
	}
	votes, err := q.Votes.ListVotesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	titles := make(map[string]string, len(votes))
	records := make([]entities.VoteRecord, 0, len(votes))
	for _, vote := range votes {
		title, ok := titles[vote.SessionID]
		if !ok {
			session, err := q.Sessions.GetSession(ctx, vote.SessionID)
			switch {
			case err == nil:
				title = session.Title
			case errors.Is(err, domainerrors.ErrSessionNotFound):
				title = unknownSessionTitle
			default:
				return nil, err
			}
			titles[vote.SessionID] = title
		}
		records = append(records, entities.VoteRecord{Vote: vote, SessionTitle: title})
	}
	return records, nil
}

func (q UserQueries) Stats(ctx context.Context, userID string) (entities.UserStats, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return entities.UserStats{}, domainerrors.ErrInvalidActor
	}
	sessions, err := q.Sessions.ListSessionsByMaster(ctx, userID)
	if err != nil {
		return entities.UserStats{}, err
	}
	votes, err := q.Votes.ListVotesByUser(ctx, userID)
	if err != nil {
		return entities.UserStats{}, err
	}
	participated := make(map[string]struct{}, len(votes))
	for _, vote := range votes {
		participated[vote.SessionID] = struct{}{}
	}
	return entities.UserStats{
		UserID:               userID,
		CreatedSessions:      len(sessions),
		TotalVotes:           len(votes),
		ParticipatedSessions: len(participated),
	}, nil
}
