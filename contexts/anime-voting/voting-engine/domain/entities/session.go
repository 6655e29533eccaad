package entities

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

const (
	DefaultMaxVotesPerUser = 1000
	MaxTitleLength         = 100
	MaxDescriptionLength   = 1000
)

// Session is a master-owned voting configuration over an ordered item list.
type Session struct {
	SessionID          string
	Title              string
	Description        string
	MasterID           string
	IsPublic           bool
	AllowMultipleVotes bool
	MaxVotesPerUser    int
	Items              []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (s Session) HasItem(itemID string) bool {
	itemID = NormalizeItemID(itemID)
	for _, item := range s.Items {
		if item == itemID {
			return true
		}
	}
	return false
}

// VisibleTo reports whether a session detail may be shown to the actor.
func (s Session) VisibleTo(actor Actor) bool {
	if s.IsPublic {
		return true
	}
	if actor.Role == RoleAdmin {
		return true
	}
	return strings.TrimSpace(actor.UserID) != "" && actor.UserID == s.MasterID
}

// Clone detaches the item slice so stored sessions cannot be mutated by callers.
func (s Session) Clone() Session {
	s.Items = append([]string(nil), s.Items...)
	return s
}

// NormalizeItemID folds compatibility forms (full-width digits and letters)
// and surrounding whitespace so the same catalog id always compares equal.
func NormalizeItemID(itemID string) string {
	return strings.TrimSpace(norm.NFKC.String(itemID))
}
