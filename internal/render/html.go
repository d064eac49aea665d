package render

import (
	"fmt"
	"html"
	"strings"

	"confprogram/internal/program"
)

// HTML renders the program as a table: one column group per room, one row
// per timeslot, a header row before each day.
func HTML(p *program.Program) string {
	var b strings.Builder
	b.WriteString(`<table class="table table-bordered text-center">`)
	b.WriteString("\n")
	htmlHeader(&b, p)
	b.WriteString("\n")
	for d := range p.Days {
		htmlDayHeader(&b, p, d)
		for r := 0; r < p.Days[d].RowCount(); r++ {
			if r > 0 {
				b.WriteString("\n")
			}
			htmlRow(&b, p, d, r)
		}
	}
	b.WriteString("\n</table>")
	return b.String()
}

func htmlHeader(b *strings.Builder, p *program.Program) {
	b.WriteString("<tr><td>Room</td>")
	for i, room := range p.Rooms {
		fmt.Fprintf(b, `<td style="min-width: 100px;" colspan="%d">%s<br><b>%s</b></td>`,
			p.Cols[i], html.EscapeString(room.Name), html.EscapeString(room.Label))
	}
	b.WriteString("</tr>")
}

func htmlDayHeader(b *strings.Builder, p *program.Program, d int) {
	fmt.Fprintf(b, `<tr><td colspan="%d"><h3>%s</h3></td></tr>`,
		1+p.TotalCols(), p.Days[d].Date.Format("Monday 02 January"))
}

// htmlRow writes one timeslot row. Cells covered by the rowspan of an
// event started on an earlier row are skipped, and runs of empty cells in
// a room collapse into one cell with a colspan.
func htmlRow(b *strings.Builder, p *program.Program, d, r int) {
	day := &p.Days[d]
	start := day.Timeslots[r].In(p.Location)
	end := day.Timeslots[r+1].In(p.Location)
	minutes := end.Sub(start).Minutes()

	fmt.Fprintf(b, `<tr style="height: %dpx;">`, int(minutes*1.2))
	fmt.Fprintf(b, "<td>%s – %s</td>", start.Format("15:04"), end.Format("15:04"))

	for room, events := range day.Rows[r] {
		cols := p.Cols[room]
		colspan := 1
		for i := 0; i < cols; i++ {
			ev := cellAt(events, i)
			if ev != nil {
				if ev.Row != 0 {
					continue
				}
				t := p.Talks[ev.Talk]
				fmt.Fprintf(b, `<td rowspan="%d" bgcolor="%s">%s<br><em>%s</em></td>`,
					ev.RowCount, html.EscapeString(t.CategoryColor()),
					html.EscapeString(t.Title), html.EscapeString(t.SpeakersString()))
				colspan = 1
				continue
			}
			if cellAt(events, i+1) == nil && i+1 < cols {
				colspan++
				continue
			}
			fmt.Fprintf(b, `<td colspan="%d"></td>`, colspan)
			colspan = 1
		}
	}
	b.WriteString("</tr>")
}

func cellAt(events []*program.Event, i int) *program.Event {
	if i < len(events) {
		return events[i]
	}
	return nil
}
