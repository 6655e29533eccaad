package services

import (
	"strings"

	"animevote/contexts/anime-voting/voting-engine/domain/entities"
)

// Authorize allows the resource owner, or any actor whose role ranks at or
// above the required role.
func Authorize(actorRole entities.Role, actorID string, resourceOwnerID string, requiredRole entities.Role) bool {
	actorID = strings.TrimSpace(actorID)
	if actorID != "" && actorID == strings.TrimSpace(resourceOwnerID) {
		return true
	}
	if actorRole.Rank() == 0 {
		return false
	}
	return actorRole.Rank() >= requiredRole.Rank()
}
