package render

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"confprogram/internal/program"
)

type xmlSchedule struct {
	XMLName    xml.Name      `xml:"schedule"`
	Conference xmlConference `xml:"conference"`
	Days       []xmlDay      `xml:"day"`
}

type xmlConference struct {
	Title     string `xml:"title"`
	Venue     string `xml:"venue"`
	City      string `xml:"city"`
	StartDate string `xml:"start_date"`
	EndDate   string `xml:"end_date"`
	DaysCount int    `xml:"days_count"`
}

type xmlDay struct {
	Index int       `xml:"index,attr"`
	Date  string    `xml:"date,attr"`
	Rooms []xmlRoom `xml:"room"`
}

type xmlRoom struct {
	Name   string     `xml:"name,attr"`
	Events []xmlEvent `xml:"event"`
}

type xmlEvent struct {
	ID          int64      `xml:"id,attr"`
	Start       string     `xml:"start"`
	Duration    string     `xml:"duration"`
	Room        string     `xml:"room"`
	Slug        string     `xml:"slug"`
	Title       string     `xml:"title"`
	Subtitle    string     `xml:"subtitle"`
	Track       string     `xml:"track"`
	Type        string     `xml:"type"`
	Language    string     `xml:"language"`
	Description string     `xml:"description"`
	Persons     xmlPersons `xml:"persons"`
	Links       struct{}   `xml:"links"`
}

type xmlPersons struct {
	Persons []xmlPerson `xml:"person"`
}

type xmlPerson struct {
	ID   int64  `xml:"id,attr"`
	Name string `xml:",chardata"`
}

// XML renders the program as a schedule document: conference metadata,
// then day > room > event. Talks are attached to the day the layout put
// them on.
func XML(p *program.Program) ([]byte, error) {
	doc := xmlSchedule{
		Conference: xmlConference{
			Title:     p.Conference.Site.Name,
			Venue:     p.Conference.VenueLine(),
			City:      p.Conference.City,
			DaysCount: len(p.Days),
		},
	}
	if !p.Empty() {
		doc.Conference.StartDate = p.FirstDay().Format("2006-01-02")
		doc.Conference.EndDate = p.LastDay().Format("2006-01-02")
	}

	for d, day := range p.Days {
		xd := xmlDay{Index: d + 1, Date: day.Date.Format("2006-01-02")}
		for r, room := range p.Rooms {
			xr := xmlRoom{Name: room.Name}
			for _, t := range p.TalksIn(d, r) {
				minutes := t.EstimatedDuration()
				ev := xmlEvent{
					ID:          t.ID,
					Start:       t.Start.In(p.Location).Format("15:04"),
					Duration:    fmt.Sprintf("%02d:%02d", minutes/60, minutes%60),
					Room:        room.Name,
					Slug:        t.Slug,
					Title:       t.Title,
					Track:       t.Track,
					Type:        t.CategoryLabel(),
					Description: t.Description,
				}
				for _, s := range t.Speakers {
					ev.Persons.Persons = append(ev.Persons.Persons, xmlPerson{ID: s.ID, Name: s.Name})
				}
				xr.Events = append(xr.Events, ev)
			}
			xd.Rooms = append(xd.Rooms, xr)
		}
		doc.Days = append(doc.Days, xd)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("render xml: %w", err)
	}
	buf.WriteString("\n")
	return buf.Bytes(), nil
}
