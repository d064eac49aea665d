package render

import (
	"errors"
	"fmt"
	"strings"

	"confprogram/internal/program"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported formats.
var ErrUnknownFormat = errors.New("render: format not available")

// Format is a program output format.
type Format int

const (
	FormatHTML Format = iota
	FormatXML
	FormatICS
)

// Formats lists every supported format.
var Formats = []Format{FormatHTML, FormatXML, FormatICS}

// ParseFormat maps "", "html", "xml" and "ics" to a Format, ignoring case
// and surrounding slashes. HTTP routes match their suffix exactly instead.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.Trim(s, "/ ")) {
	case "", "html":
		return FormatHTML, nil
	case "xml":
		return FormatXML, nil
	case "ics":
		return FormatICS, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

func (f Format) String() string {
	switch f {
	case FormatHTML:
		return "html"
	case FormatXML:
		return "xml"
	case FormatICS:
		return "ics"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ContentType is the HTTP content type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXML:
		return "application/xml; charset=utf-8"
	case FormatICS:
		return "text/calendar; charset=utf-8"
	default:
		return "text/html; charset=utf-8"
	}
}

// serializer turns a packed program into bytes.
type serializer func(p *program.Program) ([]byte, error)

var serializers = map[Format]serializer{
	FormatHTML: func(p *program.Program) ([]byte, error) { return []byte(HTML(p)), nil },
	FormatXML:  XML,
	FormatICS:  func(p *program.Program) ([]byte, error) { return []byte(ICS(p)), nil },
}

// Serialize renders p in format f.
func Serialize(p *program.Program, f Format) ([]byte, error) {
	s, ok := serializers[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}
	return s(p)
}
