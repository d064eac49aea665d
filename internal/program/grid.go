package program

import (
	"fmt"
)

// Event is one occupied grid cell. Only the cell with Row == 0 carries
// content when rendered; the others are covered by its row span.
type Event struct {
	// Talk indexes Program.Talks.
	Talk int
	// Row is the offset of this cell from the first row of the talk.
	Row int
	// RowCount is the number of rows the talk spans.
	RowCount int
}

// allocRows prepares an empty grid for every day.
func (p *Program) allocRows() {
	for d := range p.Days {
		day := &p.Days[d]
		day.Rows = make([][][]*Event, day.RowCount())
		for r := range day.Rows {
			day.Rows[r] = make([][]*Event, len(p.Rooms))
		}
	}
}

// pack places non-plenary talks first and plenary talks last, each pass in
// start order, so plenary sessions settle into the columns left over.
func (p *Program) pack() error {
	for _, plenary := range []bool{false, true} {
		for i := range p.Talks {
			if p.Talks[i].Plenary != plenary {
				continue
			}
			if err := p.place(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// place puts one talk on the grid. The column is chosen at the first row
// of the talk (lowest free one) and kept for every row it spans.
func (p *Program) place(ti int) error {
	t := p.Talks[ti]
	end, ok := t.End()
	if !ok {
		return fmt.Errorf("talk %d: %w", t.ID, ErrNoDuration)
	}
	room, ok := p.roomIndex[t.Room]
	if !ok {
		return fmt.Errorf("talk %d: room %q is not on the program", t.ID, t.Room)
	}

	day := &p.Days[p.TalkDay[ti]]
	first := day.slotIndex(*t.Start)
	last := day.slotIndex(end)
	if first < 0 || last <= first {
		return fmt.Errorf("talk %d: timeslots not found on %s", t.ID, day.Date.Format(dayLayout))
	}

	span := last - first
	col := -1
	for row := first; row < last; row++ {
		cells := day.Rows[row][room]
		if col < 0 {
			col = 0
			for col < len(cells) && cells[col] != nil {
				col++
			}
			if col+1 > p.Cols[room] {
				p.Cols[room] = col + 1
			}
		}
		for len(cells) <= col {
			cells = append(cells, nil)
		}
		cells[col] = &Event{Talk: ti, Row: row - first, RowCount: span}
		day.Rows[row][room] = cells
	}
	return nil
}
