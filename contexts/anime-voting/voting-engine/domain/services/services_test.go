package services

import (
	"errors"
	"testing"

	"animevote/contexts/anime-voting/voting-engine/domain/entities"
	domainerrors "animevote/contexts/anime-voting/voting-engine/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizeOwnerOrRank(t *testing.T) {
	cases := []struct {
		name     string
		role     entities.Role
		actorID  string
		ownerID  string
		required entities.Role
		want     bool
	}{
		{name: "owner as guest", role: entities.RoleGuest, actorID: "u1", ownerID: "u1", required: entities.RoleAdmin, want: true},
		{name: "admin on foreign session", role: entities.RoleAdmin, actorID: "u2", ownerID: "u1", required: entities.RoleAdmin, want: true},
		{name: "user on foreign session", role: entities.RoleUser, actorID: "u2", ownerID: "u1", required: entities.RoleAdmin, want: false},
		{name: "user meets user rank", role: entities.RoleUser, actorID: "u2", ownerID: "u1", required: entities.RoleUser, want: true},
		{name: "anonymous never owns", role: entities.RoleGuest, actorID: "", ownerID: "", required: entities.RoleAdmin, want: false},
		{name: "unknown role", role: entities.Role("root"), actorID: "u2", ownerID: "u1", required: entities.Role("root"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Authorize(tc.role, tc.actorID, tc.ownerID, tc.required))
		})
	}
}

func TestValidateBallotOrdering(t *testing.T) {
	session := entities.Session{
		SessionID:          "s1",
		AllowMultipleVotes: false,
		MaxVotesPerUser:    1,
		Items:              []string{"100"},
	}

	_, err := ValidateBallot(session, []entities.VoteEntry{
		{ItemID: "100", Grade: "nope"},
		{ItemID: "200", Grade: "good"},
	}, BallotPolicy{EnforceSessionItems: true})
	require.ErrorIs(t, err, domainerrors.ErrMultipleVotesNotAllowed)
	assert.True(t, errors.Is(err, domainerrors.ErrLimitExceeded))

	session.AllowMultipleVotes = true
	_, err = ValidateBallot(session, []entities.VoteEntry{
		{ItemID: "100", Grade: "good"},
		{ItemID: "200", Grade: "good"},
	}, BallotPolicy{})
	require.ErrorIs(t, err, domainerrors.ErrVoteLimitExceeded)

	session.MaxVotesPerUser = 10
	_, err = ValidateBallot(session, []entities.VoteEntry{{ItemID: "100", Grade: "excellent"}}, BallotPolicy{})
	require.ErrorIs(t, err, domainerrors.ErrInvalidGradeLevel)
	assert.True(t, errors.Is(err, domainerrors.ErrValidation))

	_, err = ValidateBallot(session, []entities.VoteEntry{{ItemID: " ", Grade: "good"}}, BallotPolicy{})
	require.ErrorIs(t, err, domainerrors.ErrMalformedVoteEntry)

	_, err = ValidateBallot(session, nil, BallotPolicy{})
	require.ErrorIs(t, err, domainerrors.ErrEmptyBallot)
}

func TestValidateBallotNormalizesAndChecksMembership(t *testing.T) {
	session := entities.Session{
		AllowMultipleVotes: true,
		MaxVotesPerUser:    entities.DefaultMaxVotesPerUser,
		Items:              []string{"100", "200"},
	}

	entries, err := ValidateBallot(session, []entities.VoteEntry{
		{ItemID: "１００", Grade: " good "},
		{ItemID: "200", Grade: "god"},
	}, BallotPolicy{EnforceSessionItems: true})
	require.NoError(t, err)
	assert.Equal(t, []entities.VoteEntry{
		{ItemID: "100", Grade: entities.GradeGood},
		{ItemID: "200", Grade: entities.GradeGod},
	}, entries)

	_, err = ValidateBallot(session, []entities.VoteEntry{
		{ItemID: "100", Grade: "good"},
		{ItemID: "１００", Grade: "bad"},
	}, BallotPolicy{})
	require.ErrorIs(t, err, domainerrors.ErrDuplicateVoteEntry)

	_, err = ValidateBallot(session, []entities.VoteEntry{{ItemID: "300", Grade: "good"}}, BallotPolicy{EnforceSessionItems: true})
	require.ErrorIs(t, err, domainerrors.ErrUnknownSessionItem)

	_, err = ValidateBallot(session, []entities.VoteEntry{{ItemID: "300", Grade: "good"}}, BallotPolicy{EnforceSessionItems: false})
	require.NoError(t, err)

	_, err = ValidateBallot(session, []entities.VoteEntry{{ItemID: "100", Grade: "GOOD"}}, BallotPolicy{})
	require.ErrorIs(t, err, domainerrors.ErrInvalidGradeLevel)
}

func TestComputeStatsAveragesAndDistribution(t *testing.T) {
	session := entities.Session{SessionID: "s1", Items: []string{"itemA", "itemB"}}
	votes := []entities.Vote{
		{VoteID: "v1", UserID: "u1", Entries: []entities.VoteEntry{{ItemID: "itemA", Grade: entities.GradeGood}}},
		{VoteID: "v2", UserID: "u2", Entries: []entities.VoteEntry{{ItemID: "itemA", Grade: entities.GradeBad}}},
	}

	stats := ComputeStats(session, votes)

	require.Contains(t, stats.Items, "itemA")
	itemA := stats.Items["itemA"]
	assert.Equal(t, 2, itemA.TotalVotes)
	assert.Equal(t, 2, itemA.TotalScore)
	assert.Equal(t, 1.0, itemA.AverageScore)
	assert.Equal(t, 1, itemA.Distribution[entities.GradeGood])
	assert.Equal(t, 1, itemA.Distribution[entities.GradeBad])
	assert.Equal(t, 0, itemA.Distribution[entities.GradeGod])

	itemB := stats.Items["itemB"]
	assert.Equal(t, 0, itemB.TotalVotes)
	assert.Equal(t, 0.0, itemB.AverageScore)
	assert.Len(t, itemB.Distribution, len(entities.GradeLevels()))

	assert.Equal(t, 2, stats.TotalVoters)
	assert.Equal(t, 2, stats.Overall.TotalVotes)
	assert.Equal(t, 2, stats.Overall.TotalScore)
	assert.Equal(t, 1.0, stats.Overall.AverageScore)
	assert.Equal(t, []string{"itemA", "itemB"}, stats.ItemOrder)
}

func TestComputeStatsRoundsToTwoDecimals(t *testing.T) {
	session := entities.Session{SessionID: "s1"}
	votes := []entities.Vote{
		{Entries: []entities.VoteEntry{{ItemID: "x", Grade: entities.GradeGod}}},
		{Entries: []entities.VoteEntry{{ItemID: "x", Grade: entities.GradePoor}}},
		{Entries: []entities.VoteEntry{{ItemID: "x", Grade: entities.GradePoor}}},
	}

	stats := ComputeStats(session, votes)

	assert.Equal(t, 2.67, stats.Items["x"].AverageScore)
	assert.Equal(t, []string{"x"}, stats.ItemOrder)
}

func TestComputeStatsRoundsHalfToEven(t *testing.T) {
	entries := []entities.GradeLevel{
		entities.GradeJustSoSo,
		entities.GradePoor, entities.GradePoor, entities.GradePoor,
		entities.GradeBad, entities.GradeBad, entities.GradeBad, entities.GradeBad,
	}
	votes := make([]entities.Vote, 0, len(entries))
	for _, grade := range entries {
		votes = append(votes, entities.Vote{Entries: []entities.VoteEntry{{ItemID: "x", Grade: grade}}})
	}

	stats := ComputeStats(entities.Session{SessionID: "s1"}, votes)

	assert.Equal(t, 1, stats.Items["x"].TotalScore)
	assert.Equal(t, 8, stats.Items["x"].TotalVotes)
	assert.Equal(t, 0.12, stats.Items["x"].AverageScore)
	assert.Equal(t, 0.12, stats.Overall.AverageScore)
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(entities.Session{SessionID: "s1"}, nil)

	assert.Equal(t, 0, stats.TotalVoters)
	assert.Equal(t, 0, stats.Overall.TotalVotes)
	assert.Equal(t, 0.0, stats.Overall.AverageScore)
	assert.Empty(t, stats.Items)
}
