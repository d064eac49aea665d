package program

import (
	"fmt"
	"sort"
	"time"
)

const dayLayout = "2006-01-02"

// Day is one calendar day of the program in the conference timezone.
type Day struct {
	// Date is local midnight of the day.
	Date time.Time

	// Timeslots holds the sorted distinct start and end instants of the
	// talks of the day. Consecutive timeslots bound one row, so the last
	// timeslot starts no row.
	Timeslots []time.Time

	// Rows is indexed [row][room][column]; nil cells are free.
	Rows [][][]*Event
}

// RowCount returns the number of displayable rows of the day.
func (d *Day) RowCount() int {
	if len(d.Timeslots) == 0 {
		return 0
	}
	return len(d.Timeslots) - 1
}

// slotIndex returns the position of t in the day's timeslots, or -1.
func (d *Day) slotIndex(t time.Time) int {
	i := sort.Search(len(d.Timeslots), func(i int) bool {
		return !d.Timeslots[i].Before(t)
	})
	if i < len(d.Timeslots) && d.Timeslots[i].Equal(t) {
		return i
	}
	return -1
}

// buildDays buckets talks per local day and collects the day timeslots.
// It records the day index of every talk in p.TalkDay.
func (p *Program) buildDays() error {
	type bucket struct {
		key   string
		date  time.Time
		slots []time.Time
	}

	byKey := make(map[string]int)
	buckets := make([]*bucket, 0)
	talkBucket := make([]int, len(p.Talks))

	for i, t := range p.Talks {
		end, ok := t.End()
		if !ok {
			return fmt.Errorf("talk %d: %w", t.ID, ErrNoDuration)
		}
		start := t.Start.In(p.Location)
		end = end.In(p.Location)

		key := start.Format(dayLayout)
		if endKey := end.Format(dayLayout); endKey != key {
			return fmt.Errorf("talk %d (%s to %s): %w", t.ID,
				start.Format(time.RFC3339), end.Format(time.RFC3339), ErrCrossesMidnight)
		}

		b, ok := byKey[key]
		if !ok {
			b = len(buckets)
			byKey[key] = b
			buckets = append(buckets, &bucket{
				key:  key,
				date: time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, p.Location),
			})
		}
		talkBucket[i] = b
		buckets[b].slots = addSlot(buckets[b].slots, start)
		buckets[b].slots = addSlot(buckets[b].slots, end)
	}

	order := make([]int, len(buckets))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return buckets[order[i]].key < buckets[order[j]].key })

	dayOf := make([]int, len(buckets))
	p.Days = make([]Day, len(buckets))
	for d, b := range order {
		dayOf[b] = d
		slots := buckets[b].slots
		sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
		p.Days[d] = Day{Date: buckets[b].date, Timeslots: slots}
	}

	p.TalkDay = make([]int, len(p.Talks))
	for i, b := range talkBucket {
		p.TalkDay[i] = dayOf[b]
	}
	return nil
}

func addSlot(slots []time.Time, t time.Time) []time.Time {
	for _, s := range slots {
		if s.Equal(t) {
			return slots
		}
	}
	return append(slots, t)
}
