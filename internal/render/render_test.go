package render

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confprogram/internal/cache"
	"confprogram/internal/model"
	"confprogram/internal/program"
)

var (
	paris, _ = time.LoadLocation("Europe/Paris")
	category = &model.Category{ID: 1, Name: "Talk", Label: "talk", Color: "#aabbcc", Duration: 30}
	yes      = true
)

var conference = model.Conference{
	Site:  model.Site{Domain: "2024.ponycon.test", Name: "PonyCon 2024"},
	Name:  "PonyCon",
	Venue: "Hall B\n12 rue des Poneys",
	City:  "Paris",
}

func at(day, hour, min int) *time.Time {
	t := time.Date(2024, time.May, day, hour, min, 0, 0, paris)
	return &t
}

func talk(id int64, title, room string, start *time.Time, minutes int, speakers ...string) model.Talk {
	t := model.Talk{
		ID:          id,
		Title:       title,
		Slug:        strings.ToLower(strings.ReplaceAll(title, " ", "-")),
		Description: "About " + title,
		Room:        room,
		Start:       start,
		Duration:    minutes,
		Category:    category,
		Accepted:    &yes,
	}
	for i, s := range speakers {
		t.Speakers = append(t.Speakers, model.Speaker{ID: int64(100 + i), Name: s})
	}
	return t
}

func layout(t *testing.T, rooms []model.Room, talks ...model.Talk) *program.Program {
	t.Helper()
	p, err := program.Build(conference, rooms, program.Filter(talks, false), paris)
	require.NoError(t, err)
	return p
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatHTML, "html": FormatHTML, "xml/": FormatXML, "ICS": FormatICS} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("pdf")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestHTMLSingleTalk(t *testing.T) {
	p := layout(t, []model.Room{{Name: "A", Label: "Big"}},
		talk(1, "Intro & more", "A", at(4, 9, 0), 30, "Ada"))

	want := `<table class="table table-bordered text-center">
<tr><td>Room</td><td style="min-width: 100px;" colspan="1">A<br><b>Big</b></td></tr>
<tr><td colspan="2"><h3>Saturday 04 May</h3></td></tr><tr style="height: 36px;"><td>09:00 – 09:30</td><td rowspan="1" bgcolor="#aabbcc">Intro &amp; more<br><em>Ada</em></td></tr>
</table>`
	assert.Equal(t, want, HTML(p))
}

func TestHTMLRowspanCoversLaterRows(t *testing.T) {
	p := layout(t, nil,
		talk(1, "Long", "A", at(4, 9, 0), 90),
		talk(2, "B1", "B", at(4, 9, 0), 30),
		talk(3, "B2", "B", at(4, 9, 30), 30),
		talk(4, "B3", "B", at(4, 10, 0), 30),
	)
	out := HTML(p)

	assert.Equal(t, 1, strings.Count(out, `rowspan="3"`))
	assert.Equal(t, 1, strings.Count(out, "Long<br>"))

	rows := strings.Split(out, "\n")
	// table, header, day header + row 0, row 1, row 2, /table
	require.Len(t, rows, 6)
	assert.Equal(t, 4, strings.Count(rows[2], "<td"), "day header, timeslot, two talks")
	assert.Equal(t, 2, strings.Count(rows[3], "<td"), "timeslot and B2 only")
	assert.Equal(t, 2, strings.Count(rows[4], "<td"), "timeslot and B3 only")
}

func TestHTMLMergesEmptyColumns(t *testing.T) {
	p := layout(t, nil,
		talk(1, "One", "A", at(4, 9, 0), 30),
		talk(2, "Two", "A", at(4, 9, 0), 30),
		talk(3, "Three", "A", at(4, 9, 0), 30),
		talk(4, "Four", "A", at(4, 9, 30), 30),
	)
	out := HTML(p)

	assert.Contains(t, out, `colspan="3">A<br>`)
	assert.Contains(t, out, `<td colspan="4"><h3>`)
	assert.Contains(t, out, `Four<br><em>superman</em></td><td colspan="2"></td></tr>`)
}

func TestHTMLEmpty(t *testing.T) {
	p := layout(t, nil)
	assert.Equal(t, "<table class=\"table table-bordered text-center\">\n<tr><td>Room</td></tr>\n\n</table>", HTML(p))
}

func TestXML(t *testing.T) {
	p := layout(t, []model.Room{{Name: "A"}, {Name: "B"}},
		talk(1, "Opening", "A", at(4, 9, 0), 90, "Ada", "Grace"),
		talk(2, "Ponies", "B", at(4, 9, 0), 30),
		talk(3, "Day two", "A", at(5, 14, 0), 45),
	)
	out, err := XML(p)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte(xml.Header)))

	var doc xmlSchedule
	require.NoError(t, xml.Unmarshal(out, &doc))

	assert.Equal(t, "PonyCon 2024", doc.Conference.Title)
	assert.Equal(t, "Hall B, 12 rue des Poneys", doc.Conference.Venue)
	assert.Equal(t, "Paris", doc.Conference.City)
	assert.Equal(t, "2024-05-04", doc.Conference.StartDate)
	assert.Equal(t, "2024-05-05", doc.Conference.EndDate)
	assert.Equal(t, 2, doc.Conference.DaysCount)

	require.Len(t, doc.Days, 2)
	assert.Equal(t, 1, doc.Days[0].Index)
	assert.Equal(t, "2024-05-05", doc.Days[1].Date)
	require.Len(t, doc.Days[0].Rooms, 2)

	opening := doc.Days[0].Rooms[0].Events[0]
	assert.Equal(t, int64(1), opening.ID)
	assert.Equal(t, "09:00", opening.Start)
	assert.Equal(t, "01:30", opening.Duration)
	assert.Equal(t, "A", opening.Room)
	assert.Equal(t, "opening", opening.Slug)
	assert.Equal(t, "talk", opening.Type)
	assert.Equal(t, []xmlPerson{{ID: 100, Name: "Ada"}, {ID: 101, Name: "Grace"}}, opening.Persons.Persons)

	assert.Len(t, doc.Days[0].Rooms[1].Events, 1)
	assert.Empty(t, doc.Days[1].Rooms[1].Events)
	assert.Equal(t, "Day two", doc.Days[1].Rooms[0].Events[0].Title)
}

func TestXMLEmpty(t *testing.T) {
	out, err := XML(layout(t, nil))
	require.NoError(t, err)

	var doc xmlSchedule
	require.NoError(t, xml.Unmarshal(out, &doc))
	assert.Equal(t, 0, doc.Conference.DaysCount)
	assert.Empty(t, doc.Conference.StartDate)
	assert.Empty(t, doc.Days)
}

func TestICS(t *testing.T) {
	p := layout(t, nil,
		talk(7, "Opening", "A", at(4, 9, 0), 90),
		talk(8, "Ponies", "B", at(4, 11, 0), 30),
	)
	out := ICS(p)

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 2)

	ev := events[0]
	assert.Equal(t, "2024.ponycon.test/7", ev.GetProperty(ical.ComponentPropertyUniqueId).Value)
	assert.Equal(t, "20240504T070000Z", ev.GetProperty(ical.ComponentPropertyDtStart).Value)
	assert.Equal(t, "20240504T070000Z", ev.GetProperty(ical.ComponentPropertyDtstamp).Value)
	assert.Equal(t, "20240504T083000Z", ev.GetProperty(ical.ComponentPropertyDtEnd).Value)
	assert.Equal(t, "Opening", ev.GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "A", ev.GetProperty(ical.ComponentPropertyLocation).Value)
	assert.Contains(t, out, "PRODID:-//2024.ponycon.test//PonyCon 2024//EN")
	assert.Contains(t, out, "X-WR-TIMEZONE:Europe/Paris")
	assert.Equal(t, out, ICS(p))
}

func TestICSEmpty(t *testing.T) {
	out := ICS(layout(t, nil))

	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))
	assert.Contains(t, out, "END:VCALENDAR")
	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	assert.Empty(t, cal.Events())
}

// memorySource is a mutable in-memory Source.
type memorySource struct {
	mu    sync.Mutex
	conf  model.Conference
	rooms []model.Room
	talks []model.Talk
}

func (s *memorySource) Conference(_ context.Context, domain string) (model.Conference, error) {
	if domain != s.conf.Site.Domain {
		return model.Conference{}, errors.New("no such site")
	}
	return s.conf, nil
}

func (s *memorySource) Rooms(context.Context, string) ([]model.Room, error) {
	return s.rooms, nil
}

func (s *memorySource) Talks(context.Context, string) ([]model.Talk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Talk(nil), s.talks...), nil
}

func (s *memorySource) setTitle(i int, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.talks[i].Title = title
}

func newSource() *memorySource {
	undecided := talk(2, "Maybe", "A", at(4, 11, 0), 30)
	undecided.Accepted = nil
	conf := conference
	conf.Timezone = "Europe/Paris"
	return &memorySource{
		conf:  conf,
		talks: []model.Talk{talk(1, "Keynote", "A", at(4, 9, 0), 60), undecided},
	}
}

func TestRendererServesCachedPublicRender(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	r := NewRenderer(src, Options{Cache: cache.NewMemory()})

	first, err := r.Render(ctx, "2024.ponycon.test", FormatHTML, false)
	require.NoError(t, err)
	assert.Contains(t, string(first), "Keynote")
	assert.NotContains(t, string(first), "Maybe")

	src.setTitle(0, "Changed keynote")

	second, err := r.Render(ctx, "2024.ponycon.test", FormatHTML, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	pending, err := r.Render(ctx, "2024.ponycon.test", FormatHTML, true)
	require.NoError(t, err)
	assert.Contains(t, string(pending), "Changed keynote")
	assert.Contains(t, string(pending), "Maybe")

	// Other formats have their own key and see live data on first render.
	xmlOut, err := r.Render(ctx, "2024.ponycon.test", FormatXML, false)
	require.NoError(t, err)
	assert.Contains(t, string(xmlOut), "Changed keynote")
}

func TestRendererWithoutCacheIsLive(t *testing.T) {
	ctx := context.Background()
	src := newSource()
	r := NewRenderer(src, Options{})

	_, err := r.Render(ctx, "2024.ponycon.test", FormatICS, false)
	require.NoError(t, err)
	src.setTitle(0, "Live")

	out, err := r.Render(ctx, "2024.ponycon.test", FormatICS, false)
	require.NoError(t, err)
	assert.Contains(t, string(out), "SUMMARY:Live")
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}

func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}

func TestRendererSurvivesCacheFailure(t *testing.T) {
	r := NewRenderer(newSource(), Options{Cache: brokenCache{}})

	out, err := r.Render(context.Background(), "2024.ponycon.test", FormatXML, false)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Keynote")
}

func TestRendererPropagatesErrors(t *testing.T) {
	r := NewRenderer(newSource(), Options{Cache: cache.NewMemory()})

	_, err := r.Render(context.Background(), "unknown.test", FormatHTML, false)
	assert.Error(t, err)

	src := newSource()
	src.talks = append(src.talks, talk(3, "Late", "A", at(4, 23, 30), 60))
	r = NewRenderer(src, Options{})
	_, err = r.Render(context.Background(), "2024.ponycon.test", FormatHTML, false)
	assert.True(t, errors.Is(err, program.ErrCrossesMidnight))
}

func TestRendererUsesConferenceTimezone(t *testing.T) {
	src := newSource()
	r := NewRenderer(src, Options{Location: time.UTC})

	p, err := r.Program(context.Background(), "2024.ponycon.test", false)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", p.Location.String())
}
