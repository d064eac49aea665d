package program

import (
	"sort"

	"confprogram/internal/model"
)

// Schedulable reports whether a talk can be placed on the grid: it has a
// labelled category, a room, a start and a positive duration.
func Schedulable(t model.Talk) bool {
	return t.CategoryLabel() != "" &&
		t.Room != "" &&
		t.Start != nil &&
		t.EstimatedDuration() > 0
}

// Filter keeps the schedulable talks of the requested variant ordered by
// start time. The published variant keeps accepted talks only; the pending
// variant also keeps undecided ones.
func Filter(talks []model.Talk, pending bool) []model.Talk {
	out := make([]model.Talk, 0, len(talks))
	for _, t := range talks {
		if !Schedulable(t) {
			continue
		}
		if pending {
			if t.IsRefused() {
				continue
			}
		} else if !t.IsAccepted() {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := *out[i].Start, *out[j].Start
		if !a.Equal(b) {
			return a.Before(b)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// UsedRooms returns the rooms referenced by talks ordered by name. Rooms a
// talk names but the room list lacks are synthesized from the name alone.
func UsedRooms(rooms []model.Room, talks []model.Talk) []model.Room {
	byName := make(map[string]model.Room, len(rooms))
	for _, r := range rooms {
		byName[r.Name] = r
	}

	seen := make(map[string]bool)
	out := make([]model.Room, 0)
	for _, t := range talks {
		if t.Room == "" || seen[t.Room] {
			continue
		}
		seen[t.Room] = true
		r, ok := byName[t.Room]
		if !ok {
			r = model.Room{Name: t.Room}
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
