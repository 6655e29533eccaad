package services

import (
	"math"

	"animevote/contexts/anime-voting/voting-engine/domain/entities"
)

// ComputeStats folds a snapshot of votes into per-item and overall statistics.
// Items on the session list appear even when nobody graded them.
func ComputeStats(session entities.Session, votes []entities.Vote) entities.SessionStats {
	stats := entities.SessionStats{
		SessionID:   session.SessionID,
		TotalVoters: len(votes),
		Overall: entities.OverallStats{
			Distribution: entities.NewDistribution(),
		},
		Items:     make(map[string]entities.ItemStats, len(session.Items)),
		ItemOrder: make([]string, 0, len(session.Items)),
	}
	for _, itemID := range session.Items {
		ensureItem(&stats, itemID)
	}

	for _, vote := range votes {
		for _, entry := range vote.Entries {
			score := entry.Grade.Score()
			item := ensureItem(&stats, entry.ItemID)
			item.TotalVotes++
			item.TotalScore += score
			item.Distribution[entry.Grade]++
			stats.Items[entry.ItemID] = item

			stats.Overall.TotalVotes++
			stats.Overall.TotalScore += score
			stats.Overall.Distribution[entry.Grade]++
		}
	}

	for itemID, item := range stats.Items {
		item.AverageScore = average(item.TotalScore, item.TotalVotes)
		stats.Items[itemID] = item
	}
	stats.Overall.AverageScore = average(stats.Overall.TotalScore, stats.Overall.TotalVotes)
	return stats
}

func ensureItem(stats *entities.SessionStats, itemID string) entities.ItemStats {
	if item, ok := stats.Items[itemID]; ok {
		return item
	}
	item := entities.ItemStats{
		ItemID:       itemID,
		Distribution: entities.NewDistribution(),
	}
	stats.Items[itemID] = item
	stats.ItemOrder = append(stats.ItemOrder, itemID)
	return item
}

// average rounds half to even at two decimals; an empty bucket averages to zero.
func average(total int, count int) float64 {
	if count == 0 {
		return 0
	}
	return math.RoundToEven(float64(total)/float64(count)*100) / 100
}
