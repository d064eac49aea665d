// Package program lays a conference schedule out as a grid of days,
// timeslot rows and room columns.
//
// The layout is rebuilt from scratch for every render: Build derives the
// day buckets and their timeslots, then packs talks into columns. Days,
// rooms and talks are addressed by index; nothing here is shared between
// builds.
package program

import (
	"errors"
	"time"

	"confprogram/internal/model"
)

var (
	// ErrCrossesMidnight is returned for a talk that starts and ends on
	// different local days. Such talks are not supported by the layout.
	ErrCrossesMidnight = errors.New("program: talk crosses midnight")

	// ErrNoDuration is returned for a talk without a positive duration.
	// Filter removes those; seeing it means the input skipped filtering.
	ErrNoDuration = errors.New("program: talk has no duration")
)

// Program is a packed, render-ready schedule.
type Program struct {
	Conference model.Conference
	Location   *time.Location

	// Talks are the scheduled talks in start order.
	Talks []model.Talk
	// Rooms used by Talks, ordered by name.
	Rooms []model.Room
	// Days in chronological order.
	Days []Day

	// Cols holds, per room, the widest column count any row needed. It is
	// at least 1 and only ever grows.
	Cols []int

	// TalkDay holds the day index of every talk. Renderers use it instead
	// of recomputing local dates.
	TalkDay []int

	roomIndex map[string]int
}

// Build lays out talks, which must already be filtered (see Filter). rooms
// is the site room list; only rooms used by talks are kept. A nil loc means
// UTC.
func Build(conf model.Conference, rooms []model.Room, talks []model.Talk, loc *time.Location) (*Program, error) {
	if loc == nil {
		loc = time.UTC
	}
	p := &Program{
		Conference: conf,
		Location:   loc,
		Talks:      talks,
		Rooms:      UsedRooms(rooms, talks),
	}

	p.roomIndex = make(map[string]int, len(p.Rooms))
	p.Cols = make([]int, len(p.Rooms))
	for i, r := range p.Rooms {
		p.roomIndex[r.Name] = i
		p.Cols[i] = 1
	}

	if err := p.buildDays(); err != nil {
		return nil, err
	}
	p.allocRows()
	if err := p.pack(); err != nil {
		return nil, err
	}
	return p, nil
}

// RoomIndex returns the index of the named room in p.Rooms.
func (p *Program) RoomIndex(name string) (int, bool) {
	i, ok := p.roomIndex[name]
	return i, ok
}

// TotalCols is the column count of all rooms together.
func (p *Program) TotalCols() int {
	n := 0
	for _, c := range p.Cols {
		n += c
	}
	return n
}

// TalksIn returns the talks of one day held in one room, in start order.
func (p *Program) TalksIn(day, room int) []model.Talk {
	var out []model.Talk
	name := p.Rooms[room].Name
	for i, t := range p.Talks {
		if p.TalkDay[i] == day && t.Room == name {
			out = append(out, t)
		}
	}
	return out
}

// Empty reports whether nothing is scheduled.
func (p *Program) Empty() bool {
	return len(p.Days) == 0
}

// FirstDay and LastDay return the bounds of the program. Both are zero for
// an empty program.
func (p *Program) FirstDay() time.Time {
	if p.Empty() {
		return time.Time{}
	}
	return p.Days[0].Date
}

func (p *Program) LastDay() time.Time {
	if p.Empty() {
		return time.Time{}
	}
	return p.Days[len(p.Days)-1].Date
}
