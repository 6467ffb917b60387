// Package reconcile applies a reviewed report against the store in three
// ordered phases: update, archive, delete.
package reconcile

import (
	"fmt"
	"io"

	"github.com/starford/opdedupe/internal/models"
)

// Phase names, in execution order.
const (
	PhaseUpdate  = "update"
	PhaseArchive = "archive"
	PhaseDelete  = "delete"
)

// Plan is a report partitioned by action. Updates holds every item with a
// row not marked DELETE, so KEEP, REVIEW, ARCHIVE and unknown actions all get
// their edited title and url applied before any archive or delete runs.
// Each phase lists an item at most once.
type Plan struct {
	Updates   []models.Change `json:"updates"`
	Archives  []models.Change `json:"archives"`
	Deletes   []models.Change `json:"deletes"`
	Conflicts []Conflict      `json:"conflicts"`
}

// Conflict is an item whose rows ask for different destructive outcomes.
// Kept is the action that was planned; "" means nothing destructive.
type Conflict struct {
	ItemID  string          `json:"item_id"`
	Actions []models.Action `json:"actions"`
	Kept    models.Action   `json:"kept"`
}

// Counts is the size of each phase.
type Counts struct {
	Updates   int `json:"updates"`
	Archives  int `json:"archives"`
	Deletes   int `json:"deletes"`
	Conflicts int `json:"conflicts,omitempty"`
}

// Partition splits changes into phases, keeping report order within each.
// A record can sit in several groups and so appear on several rows. Its
// first non-DELETE row supplies the edit, and the least destructive
// of its actions wins: KEEP over ARCHIVE over DELETE.
func Partition(changes []models.Change) Plan {
	var p Plan
	var order []string
	actions := make(map[string][]models.Action)
	firstRow := make(map[string]map[models.Action]models.Change)
	updated := make(map[string]bool)

	for _, c := range changes {
		if _, ok := firstRow[c.ItemID]; !ok {
			firstRow[c.ItemID] = make(map[models.Action]models.Change)
			order = append(order, c.ItemID)
		}
		if _, ok := firstRow[c.ItemID][c.Action]; !ok {
			firstRow[c.ItemID][c.Action] = c
			actions[c.ItemID] = append(actions[c.ItemID], c.Action)
		}
		if c.Action != models.ActionDelete && !updated[c.ItemID] {
			updated[c.ItemID] = true
			p.Updates = append(p.Updates, c)
		}
	}

	for _, id := range order {
		rows := firstRow[id]
		_, keep := rows[models.ActionKeep]
		archive, hasArchive := rows[models.ActionArchive]
		del, hasDelete := rows[models.ActionDelete]

		var kept models.Action
		switch {
		case keep:
			kept = models.ActionKeep
		case hasArchive:
			kept = models.ActionArchive
			p.Archives = append(p.Archives, archive)
		case hasDelete:
			kept = models.ActionDelete
			p.Deletes = append(p.Deletes, del)
		}

		if (keep && (hasArchive || hasDelete)) || (hasArchive && hasDelete) {
			if kept == models.ActionKeep {
				kept = ""
			}
			p.Conflicts = append(p.Conflicts, Conflict{ItemID: id, Actions: actions[id], Kept: kept})
		}
	}
	return p
}

// Counts returns the number of items per phase.
func (p Plan) Counts() Counts {
	return Counts{
		Updates:   len(p.Updates),
		Archives:  len(p.Archives),
		Deletes:   len(p.Deletes),
		Conflicts: len(p.Conflicts),
	}
}

// Empty reports whether the plan has nothing to do.
func (p Plan) Empty() bool {
	return len(p.Updates) == 0 && len(p.Archives) == 0 && len(p.Deletes) == 0
}

// PrintCounts writes the planned change summary shown before confirmation.
func PrintCounts(w io.Writer, c Counts) {
	fmt.Fprintln(w, "Planned changes based on report:")
	fmt.Fprintf(w, " - Items to UPDATE (title/url): %d\n", c.Updates)
	fmt.Fprintf(w, " - Items to ARCHIVE:            %d\n", c.Archives)
	fmt.Fprintf(w, " - Items to DELETE:             %d\n", c.Deletes)
	if c.Conflicts > 0 {
		fmt.Fprintf(w, " - Items with conflicting rows: %d (least destructive action kept)\n", c.Conflicts)
	}
}
