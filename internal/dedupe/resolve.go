package dedupe

import (
	"sort"

	"github.com/starford/opdedupe/internal/models"
	"github.com/starford/opdedupe/internal/normalize"
)

// Resolve ranks each group's members newest first and assigns actions.
// Full-URL and local groups keep the newest member and delete the rest;
// domain groups mark every member for review. Groups with fewer than two
// members are dropped. IDs are assigned from 1 in input order.
func Resolve(groups []models.Group) []models.ResolvedGroup {
	out := make([]models.ResolvedGroup, 0, len(groups))
	for _, g := range groups {
		if len(g.Records) < 2 {
			continue
		}
		members := make([]models.Member, len(g.Records))
		for i, rec := range g.Records {
			members[i] = models.Member{
				Record:      rec,
				Username:    normalize.Username(rec),
				LastUpdated: normalize.BestTimestamp(rec),
			}
		}
		// Ties keep discovery order.
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].LastUpdated.After(members[j].LastUpdated)
		})

		for i := range members {
			members[i].Newest = i == 0
			members[i].Action = recommend(g.Key, i)
		}
		out = append(out, models.ResolvedGroup{
			ID:      len(out) + 1,
			Key:     g.Key,
			Members: members,
		})
	}
	return out
}

func recommend(k models.Key, rank int) models.Action {
	if !k.Exact() {
		return models.ActionReview
	}
	if rank == 0 {
		return models.ActionKeep
	}
	return models.ActionDelete
}
