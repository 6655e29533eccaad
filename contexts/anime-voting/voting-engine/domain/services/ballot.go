package services

import (
	"strings"

	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	domainerrors "animevote/contexts/anime-voting/voting-engine/domain/errors"
)

type BallotPolicy struct {
	// EnforceSessionItems rejects entries whose item is not on the session list.
	EnforceSessionItems bool
}

// ValidateBallot checks a ballot against the session limits and the grade
// table and returns the normalized entries. Grade keys are case-sensitive. Limits are checked before entry
// contents so an oversized ballot fails as a limit error.
func ValidateBallot(session entities.Session, entries []entities.VoteEntry, policy BallotPolicy) ([]entities.VoteEntry, error) {
	if len(entries) == 0 {
		return nil, domainerrors.ErrEmptyBallot
	}
	if !session.AllowMultipleVotes && len(entries) > 1 {
		return nil, domainerrors.ErrMultipleVotesNotAllowed
	}
	if len(entries) > session.MaxVotesPerUser {
		return nil, domainerrors.ErrVoteLimitExceeded
	}

	normalized := make([]entities.VoteEntry, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		itemID := entities.NormalizeItemID(entry.ItemID)
		grade := entities.GradeLevel(strings.TrimSpace(string(entry.Grade)))
		if itemID == "" || grade == "" {
			return nil, domainerrors.ErrMalformedVoteEntry
		}
		if !grade.Valid() {
			return nil, domainerrors.ErrInvalidGradeLevel
		}
		if _, dup := seen[itemID]; dup {
			return nil, domainerrors.ErrDuplicateVoteEntry
		}
		if policy.EnforceSessionItems && !session.HasItem(itemID) {
			return nil, domainerrors.ErrUnknownSessionItem
		}
		seen[itemID] = struct{}{}
		normalized = append(normalized, entities.VoteEntry{ItemID: itemID, Grade: grade})
	}
	return normalized, nil
}
