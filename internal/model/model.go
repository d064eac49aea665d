package model

import (
	"strings"
	"time"
)

// Site identifies one tenant; every conference lives on its own domain.
type Site struct {
	Domain string
	Name   string
}

// Conference carries the per-site metadata shown in program exports.
type Conference struct {
	Site Site

	Name  string
	Venue string // may span several lines
	City  string

	// Timezone is the IANA zone talks are laid out in. Empty means the
	// service-wide default.
	Timezone string
}

// VenueLine joins the trimmed venue lines with ", ".
func (c Conference) VenueLine() string {
	lines := strings.Split(c.Venue, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.Join(lines, ", ")
}

type Room struct {
	Name     string
	Label    string
	Capacity int
}

// Category is the kind of talk (conference 30min, workshop, lightning...).
type Category struct {
	ID       int64
	Name     string
	Label    string // label on program; empty hides the category from it
	Color    string // "#rrggbb"
	Duration int    // default duration in minutes
}

type Speaker struct {
	ID   int64
	Name string
}

// Talk is a read-only view of a proposal as the program needs it.
type Talk struct {
	ID          int64
	Title       string
	Slug        string
	Description string

	// Room is the room name; empty when the talk is not placed yet.
	Room string
	// Start is nil when the talk is not scheduled yet.
	Start *time.Time
	// Duration in minutes; zero falls back to the category default.
	Duration int

	Category *Category
	Speakers []Speaker

	// Accepted is nil while the talk is undecided.
	Accepted *bool
	Plenary  bool
	Track    string
	Tags     []string
}

// EstimatedDuration returns the talk duration in minutes, falling back to the
// category default.
func (t Talk) EstimatedDuration() int {
	if t.Duration > 0 {
		return t.Duration
	}
	if t.Category != nil {
		return t.Category.Duration
	}
	return 0
}

// End returns start + estimated duration. ok is false for unscheduled talks.
func (t Talk) End() (end time.Time, ok bool) {
	d := t.EstimatedDuration()
	if t.Start == nil || d <= 0 {
		return time.Time{}, false
	}
	return t.Start.Add(time.Duration(d) * time.Minute), true
}

// CategoryLabel returns the program label of the talk category, if any.
func (t Talk) CategoryLabel() string {
	if t.Category == nil {
		return ""
	}
	return t.Category.Label
}

// CategoryColor returns the category color, white when uncategorized.
func (t Talk) CategoryColor() string {
	if t.Category == nil || t.Category.Color == "" {
		return "#ffffff"
	}
	return t.Category.Color
}

// SpeakersString formats speakers as "a, b & c".
func (t Talk) SpeakersString() string {
	switch len(t.Speakers) {
	case 0:
		return "superman"
	case 1:
		return t.Speakers[0].Name
	}
	names := make([]string, 0, len(t.Speakers)-1)
	for _, s := range t.Speakers[:len(t.Speakers)-1] {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ") + " & " + t.Speakers[len(t.Speakers)-1].Name
}

// IsAccepted reports whether the talk was explicitly accepted.
func (t Talk) IsAccepted() bool {
	return t.Accepted != nil && *t.Accepted
}

// IsRefused reports whether the talk was explicitly refused.
func (t Talk) IsRefused() bool {
	return t.Accepted != nil && !*t.Accepted
}
