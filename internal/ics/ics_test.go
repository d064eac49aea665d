package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confprogram/internal/model"
	"confprogram/internal/program"
)

var feed = strings.ReplaceAll(`BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//ponycon//test//EN
BEGIN:VEVENT
UID:keynote@ponycon
DTSTART;TZID=Europe/Paris:20240504T090000
DTEND;TZID=Europe/Paris:20240504T100000
SUMMARY:Keynote
DESCRIPTION:Welcome
LOCATION:Amphi
END:VEVENT
BEGIN:VEVENT
UID:lightning@ponycon
DTSTART;TZID=Europe/Paris:20240504T140000
DTEND;TZID=Europe/Paris:20240504T141500
RRULE:FREQ=DAILY;COUNT=3
EXDATE;TZID=Europe/Paris:20240505T140000
SUMMARY:Lightning
LOCATION:Annex
END:VEVENT
BEGIN:VEVENT
UID:lightning@ponycon
RECURRENCE-ID;TZID=Europe/Paris:20240506T140000
DTSTART;TZID=Europe/Paris:20240506T160000
DTEND;TZID=Europe/Paris:20240506T163000
SUMMARY:Lightning (moved)
LOCATION:Annex
END:VEVENT
BEGIN:VEVENT
UID:party@ponycon
DTSTART;VALUE=DATE:20240505
DTEND;VALUE=DATE:20240506
SUMMARY:Party
END:VEVENT
BEGIN:VEVENT
SUMMARY:No identifier
DTSTART:20240504T090000Z
END:VEVENT
END:VCALENDAR
`, "\n", "\r\n")

func paris(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	return loc
}

func TestParseICS(t *testing.T) {
	events, err := ParseICS(Source{ID: "main"}, []byte(feed))
	require.NoError(t, err)
	require.Len(t, events, 4)

	k := events[0]
	assert.Equal(t, "keynote@ponycon", k.UID)
	assert.Equal(t, "Europe/Paris", k.StartTZ)
	assert.True(t, k.Start.Equal(time.Date(2024, 5, 4, 7, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Hour, k.End.Sub(k.Start))
	assert.False(t, k.AllDay)

	assert.Equal(t, "FREQ=DAILY;COUNT=3", events[1].RawRRule)
	require.Len(t, events[1].ExDates, 1)
	assert.True(t, events[1].ExDates[0].Equal(time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC)))

	assert.True(t, events[2].IsOverride)
	assert.True(t, events[3].AllDay)
}

func TestParseICSEmpty(t *testing.T) {
	_, err := ParseICS(Source{ID: "main"}, nil)
	assert.Error(t, err)
}

func TestExpandOccurrences(t *testing.T) {
	loc := paris(t)
	events, err := ParseICS(Source{ID: "main"}, []byte(feed))
	require.NoError(t, err)

	res, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      time.Date(2024, 5, 1, 0, 0, 0, 0, loc),
		RangeEnd:        time.Date(2024, 5, 31, 0, 0, 0, 0, loc),
	})
	require.NoError(t, err)
	assert.Empty(t, res.TruncatedEvents)

	var got []string
	for _, o := range res.Occurrences {
		got = append(got, o.Start.Format("01-02 15:04")+" "+o.Summary)
	}
	assert.Equal(t, []string{
		"05-04 09:00 Keynote",
		"05-04 14:00 Lightning",
		"05-05 00:00 Party",
		"05-06 16:00 Lightning (moved)",
	}, got)
}

func TestExpandOccurrencesCap(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	events := []ParsedEvent{{
		UID:      "daily",
		Start:    start,
		End:      start.Add(time.Hour),
		RawRRule: "FREQ=DAILY",
	}}
	res, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation:        time.UTC,
		RangeStart:             start,
		RangeEnd:               start.AddDate(1, 0, 0),
		MaxOccurrencesPerEvent: 10,
	})
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 10)
	assert.Equal(t, []string{"daily"}, res.TruncatedEvents)

	_, err = ExpandOccurrences(events, ExpandConfig{RangeStart: start, RangeEnd: start.Add(-time.Hour)})
	assert.Error(t, err)
}

func TestTalksFromOccurrences(t *testing.T) {
	loc := paris(t)
	events, err := ParseICS(Source{ID: "main"}, []byte(feed))
	require.NoError(t, err)
	res, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      time.Date(2024, 5, 1, 0, 0, 0, 0, loc),
		RangeEnd:        time.Date(2024, 5, 31, 0, 0, 0, 0, loc),
	})
	require.NoError(t, err)

	cat := &model.Category{ID: 3, Name: "Imported", Label: "imported"}
	talks := TalksFromOccurrences(res.Occurrences, cat)
	require.Len(t, talks, 3, "all-day occurrences are skipped")

	k := talks[0]
	assert.Equal(t, "Keynote", k.Title)
	assert.Equal(t, "Welcome", k.Description)
	assert.Equal(t, "Amphi", k.Room)
	assert.Equal(t, 60, k.Duration)
	assert.True(t, k.IsAccepted())
	assert.Equal(t, []string{"ics:main"}, k.Tags)
	assert.Equal(t, "imported", k.CategoryLabel())
	assert.Positive(t, k.ID)

	assert.Equal(t, 15, talks[1].Duration)
	assert.Equal(t, 30, talks[2].Duration)

	again := TalksFromOccurrences(res.Occurrences, nil)
	assert.Equal(t, k.ID, again[0].ID, "IDs are stable across imports")
	assert.NotEqual(t, talks[1].ID, talks[2].ID)
}

func TestTalksFromOccurrencesSkipsMidnightCrossing(t *testing.T) {
	loc := paris(t)
	at := func(day, hour int) time.Time { return time.Date(2024, 5, day, hour, 0, 0, 0, loc) }
	occs := []Occurrence{
		{SourceID: "main", UID: "talk", Summary: "Talk", Location: "Amphi", Start: at(4, 9), End: at(4, 10)},
		{SourceID: "main", UID: "party", Summary: "Party", Location: "Amphi", Start: at(4, 23), End: at(5, 1)},
		{SourceID: "main", UID: "late", Summary: "Late", Location: "Amphi", Start: at(4, 23), End: at(5, 0)},
	}

	cat := &model.Category{ID: 3, Name: "Imported", Label: "imported"}
	talks := TalksFromOccurrences(occs, cat)
	require.Len(t, talks, 1)
	assert.Equal(t, "Talk", talks[0].Title)

	p, err := program.Build(model.Conference{}, nil, program.Filter(talks, false), loc)
	require.NoError(t, err)
	assert.Len(t, p.Days, 1)
}

func TestFetcherConditionalRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		switch {
		case n == 1:
			w.Header().Set("ETag", `"v1"`)
			_, _ = w.Write([]byte(feed))
		case r.Header.Get("If-None-Match") == `"v1"` && n == 2:
			w.WriteHeader(http.StatusNotModified)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir()).WithClient(srv.Client())
	src := Source{ID: "main", URL: srv.URL + "/private.ics?token=secret"}

	first, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, feed, string(first.Body))

	second, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, feed, string(second.Body))

	third, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err, "server errors fall back to the cached body")
	assert.True(t, third.FromCache)

	results, errs := f.FetchAll(context.Background(), []Source{src, {ID: "empty"}})
	assert.Len(t, results, 1)
	assert.Len(t, errs, 1)
}

func TestFetcherErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir()).WithClient(srv.Client())
	_, err := f.FetchOne(context.Background(), Source{ID: "x", URL: srv.URL})
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://cal.example.test/...(redacted)", redactURL("https://cal.example.test/u/42/private.ics?token=abc"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
