package ics

import (
	"hash/fnv"
	"strings"
	"time"

	appLog "confprogram/internal/log"
	"confprogram/internal/model"
)

// ImportTag marks talks imported from the feed with the given source ID.
func ImportTag(sourceID string) string {
	return "ics:" + sourceID
}

// TalksFromOccurrences converts timed occurrences into accepted talks of
// the given category: SUMMARY becomes the title, LOCATION the room and the
// occurrence length the duration. All-day and zero-length occurrences are
// skipped, and so are occurrences ending on a later day than they start in
// the occurrence zone, since a program day cannot hold them.
func TalksFromOccurrences(occs []Occurrence, category *model.Category) []model.Talk {
	accepted := true
	talks := make([]model.Talk, 0, len(occs))
	for _, o := range occs {
		if o.AllDay || !o.End.After(o.Start) {
			continue
		}
		if crossesMidnight(o) {
			appLog.Warn("ics: skipping occurrence crossing midnight",
				"source", o.SourceID,
				"uid", o.UID,
				"start", o.Start.Format(time.RFC3339),
				"end", o.End.Format(time.RFC3339),
			)
			continue
		}
		start := o.Start
		title := strings.TrimSpace(o.Summary)
		if title == "" {
			title = o.UID
		}
		talks = append(talks, model.Talk{
			ID:          importID(o),
			Title:       title,
			Description: o.Description,
			Room:        strings.TrimSpace(o.Location),
			Start:       &start,
			Duration:    int(o.End.Sub(o.Start) / time.Minute),
			Category:    category,
			Accepted:    &accepted,
			Tags:        []string{ImportTag(o.SourceID)},
		})
	}
	return talks
}

func crossesMidnight(o Occurrence) bool {
	end := o.End.In(o.Start.Location())
	sy, sm, sd := o.Start.Date()
	ey, em, ed := end.Date()
	return sy != ey || sm != em || sd != ed
}

// importID derives a stable positive talk ID from the occurrence identity,
// so re-importing a feed updates talks in place.
func importID(o Occurrence) int64 {
	h := fnv.New64a()
	h.Write([]byte(o.SourceID))
	h.Write([]byte{0})
	h.Write([]byte(o.UID))
	h.Write([]byte{0})
	h.Write([]byte(o.InstanceKey))
	id := int64(h.Sum64() & (1<<53 - 1))
	if id == 0 {
		id = 1
	}
	return id
}
