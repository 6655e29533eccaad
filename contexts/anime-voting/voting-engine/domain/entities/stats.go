package entities

type Distribution map[GradeLevel]int

// NewDistribution returns a histogram with every grade level present at zero.
func NewDistribution() Distribution {
	distribution := make(Distribution, len(gradeTable))
	for _, grade := range gradeTable {
		distribution[grade.Level] = 0
	}
	return distribution
}

type ItemStats struct {
	ItemID       string
	TotalVotes   int
	TotalScore   int
	AverageScore float64
	Distribution Distribution
}

type OverallStats struct {
	TotalVotes   int
	TotalScore   int
	AverageScore float64
	Distribution Distribution
}

// SessionStats is derived per request and never stored.
type SessionStats struct {
	SessionID   string
	TotalVoters int
	Overall     OverallStats
	Items       map[string]ItemStats
	// ItemOrder lists Items keys in session order, then first-seen order for
	// entries that reference items outside the session list.
	ItemOrder []string
}

type UserStats struct {
	UserID               string
	CreatedSessions      int
	TotalVotes           int
	ParticipatedSessions int
}

// CatalogItem is a candidate returned by the external catalog search.
type CatalogItem struct {
	ExternalItemID string
	Title          string
	TitleCN        string
	Image          string
	Score          float64
}
