package render

import (
	"fmt"

	ical "github.com/arran4/golang-ical"

	"confprogram/internal/program"
)

// ICS renders every scheduled talk as a VEVENT with UTC start and end.
// DTSTAMP is the talk start so repeated renders are byte-identical.
func ICS(p *program.Program) string {
	site := p.Conference.Site

	cal := ical.NewCalendar()
	cal.SetProductId(fmt.Sprintf("-//%s//%s//EN", site.Domain, site.Name))
	cal.SetXWRCalName(calendarName(p))
	cal.SetXWRTimezone(p.Location.String())
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.MethodPublish)

	for _, t := range p.Talks {
		end, ok := t.End()
		if !ok {
			continue
		}
		ev := cal.AddEvent(fmt.Sprintf("%s/%d", site.Domain, t.ID))
		ev.SetDtStampTime(t.Start.UTC())
		ev.SetStartAt(t.Start.UTC())
		ev.SetEndAt(end.UTC())
		ev.SetSummary(t.Title)
		ev.SetLocation(t.Room)
		ev.SetStatus(ical.ObjectStatusConfirmed)
		ev.SetDescription(t.Description)
	}

	return cal.Serialize()
}

func calendarName(p *program.Program) string {
	if p.Conference.Name != "" {
		return p.Conference.Name
	}
	if p.Conference.Site.Name != "" {
		return p.Conference.Site.Name
	}
	return p.Conference.Site.Domain
}
