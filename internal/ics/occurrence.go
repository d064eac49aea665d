package ics

import "time"

// Occurrence is a single concrete instance of a feed event, after
// recurrence expansion and timezone normalization.
type Occurrence struct {
	SourceID string
	UID      string

	// InstanceKey identifies one occurrence of a recurring event; it is the
	// local start time in RFC 3339.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start / End are in the display timezone.
	Start time.Time
	End   time.Time
}
