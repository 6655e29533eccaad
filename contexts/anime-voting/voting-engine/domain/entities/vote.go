package entities

import "time"

type VoteEntry struct {
	ItemID string
	Grade  GradeLevel
}

// Vote is the single ballot a user holds in a session. Resubmission replaces
// Entries and CastAt and keeps VoteID and CreatedAt.
type Vote struct {
	VoteID    string
	SessionID string
	UserID    string
	Entries   []VoteEntry
	CastAt    time.Time
	CreatedAt time.Time
}

func (v Vote) Clone() Vote {
	v.Entries = append([]VoteEntry(nil), v.Entries...)
	return v
}

// Score sums the grade scores of every entry.
func (v Vote) Score() int {
	total := 0
	for _, entry := range v.Entries {
		total += entry.Grade.Score()
	}
	return total
}

// VoteRecord pairs a vote with the title of its session for history reads.
type VoteRecord struct {
	Vote         Vote
	SessionTitle string
}
