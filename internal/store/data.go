package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"confprogram/internal/model"
)

// Data is the YAML document behind the File store.
type Data struct {
	Sites []SiteData `yaml:"sites" validate:"dive"`
}

type SiteData struct {
	Domain     string         `yaml:"domain" validate:"required"`
	Name       string         `yaml:"name"`
	Conference ConferenceData `yaml:"conference"`
	Rooms      []RoomData     `yaml:"rooms" validate:"dive"`
	Categories []CategoryData `yaml:"categories" validate:"dive"`
	Speakers   []SpeakerData  `yaml:"speakers" validate:"dive"`
	Talks      []TalkData     `yaml:"talks" validate:"dive"`
}

type ConferenceData struct {
	Name     string `yaml:"name"`
	Venue    string `yaml:"venue"`
	City     string `yaml:"city"`
	Timezone string `yaml:"timezone,omitempty"`
}

type RoomData struct {
	Name     string `yaml:"name" validate:"required"`
	Label    string `yaml:"label,omitempty"`
	Capacity int    `yaml:"capacity,omitempty" validate:"gte=0"`
}

type CategoryData struct {
	ID       int64  `yaml:"id" validate:"required"`
	Name     string `yaml:"name" validate:"required"`
	Label    string `yaml:"label,omitempty"`
	Color    string `yaml:"color,omitempty" validate:"omitempty,hexcolor"`
	Duration int    `yaml:"duration,omitempty" validate:"gte=0"`
}

type SpeakerData struct {
	ID   int64  `yaml:"id" validate:"required"`
	Name string `yaml:"name" validate:"required"`
}

type TalkData struct {
	ID          int64      `yaml:"id" validate:"required"`
	Title       string     `yaml:"title" validate:"required"`
	Slug        string     `yaml:"slug,omitempty"`
	Description string     `yaml:"description,omitempty"`
	Room        string     `yaml:"room,omitempty"`
	Start       *time.Time `yaml:"start,omitempty"`
	Duration    int        `yaml:"duration,omitempty" validate:"gte=0"`
	Category    int64      `yaml:"category,omitempty"`
	Speakers    []int64    `yaml:"speakers,omitempty"`
	Accepted    *bool      `yaml:"accepted,omitempty"`
	Plenary     bool       `yaml:"plenary,omitempty"`
	Track       string     `yaml:"track,omitempty"`
	Tags        []string   `yaml:"tags,omitempty"`
}

var validate = validator.New()

// Validate checks field constraints and cross references (unique domains,
// known categories and speakers).
func (d *Data) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("store data: %w", err)
	}

	domains := make(map[string]bool)
	for _, s := range d.Sites {
		if domains[s.Domain] {
			return fmt.Errorf("store data: duplicate site %q", s.Domain)
		}
		domains[s.Domain] = true

		cats := make(map[int64]bool)
		for _, c := range s.Categories {
			cats[c.ID] = true
		}
		speakers := make(map[int64]bool)
		for _, sp := range s.Speakers {
			speakers[sp.ID] = true
		}
		rooms := make(map[string]bool)
		for _, r := range s.Rooms {
			if rooms[r.Name] {
				return fmt.Errorf("store data: site %s: duplicate room %q", s.Domain, r.Name)
			}
			rooms[r.Name] = true
		}
		for _, t := range s.Talks {
			if t.Category != 0 && !cats[t.Category] {
				return fmt.Errorf("store data: site %s: talk %d: unknown category %d", s.Domain, t.ID, t.Category)
			}
			for _, id := range t.Speakers {
				if !speakers[id] {
					return fmt.Errorf("store data: site %s: talk %d: unknown speaker %d", s.Domain, t.ID, id)
				}
			}
		}
	}
	return nil
}

// Site returns the site with the given domain, or nil.
func (d *Data) Site(domain string) *SiteData {
	for i := range d.Sites {
		if d.Sites[i].Domain == domain {
			return &d.Sites[i]
		}
	}
	return nil
}

// snapshot is the model view of one site.
type snapshot struct {
	conference model.Conference
	rooms      []model.Room
	talks      []model.Talk
}

func (s *SiteData) snapshot() snapshot {
	site := model.Site{Domain: s.Domain, Name: s.Name}
	out := snapshot{
		conference: model.Conference{
			Site:     site,
			Name:     s.Conference.Name,
			Venue:    s.Conference.Venue,
			City:     s.Conference.City,
			Timezone: s.Conference.Timezone,
		},
	}

	for _, r := range s.Rooms {
		out.rooms = append(out.rooms, model.Room{Name: r.Name, Label: r.Label, Capacity: r.Capacity})
	}

	cats := make(map[int64]*model.Category, len(s.Categories))
	for _, c := range s.Categories {
		cats[c.ID] = &model.Category{ID: c.ID, Name: c.Name, Label: c.Label, Color: c.Color, Duration: c.Duration}
	}
	speakers := make(map[int64]model.Speaker, len(s.Speakers))
	for _, sp := range s.Speakers {
		speakers[sp.ID] = model.Speaker{ID: sp.ID, Name: sp.Name}
	}

	for _, t := range s.Talks {
		mt := model.Talk{
			ID:          t.ID,
			Title:       t.Title,
			Slug:        t.Slug,
			Description: t.Description,
			Room:        t.Room,
			Start:       t.Start,
			Duration:    t.Duration,
			Category:    cats[t.Category],
			Accepted:    t.Accepted,
			Plenary:     t.Plenary,
			Track:       t.Track,
			Tags:        t.Tags,
		}
		if mt.Slug == "" {
			mt.Slug = slugify(t.Title)
		}
		for _, id := range t.Speakers {
			mt.Speakers = append(mt.Speakers, speakers[id])
		}
		out.talks = append(out.talks, mt)
	}
	return out
}

// slugify lowercases s and joins its alphanumeric runs with dashes.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}

// LoadData reads and validates a YAML data file.
func LoadData(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// SaveData validates d and writes it atomically (temp file + rename,
// 0600 permissions).
func SaveData(path string, d *Data) error {
	if path == "" {
		return errors.New("data path is empty")
	}
	if d == nil {
		return errors.New("data is nil")
	}
	if err := d.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	raw, err := yaml.Marshal(d)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".confprogram-data-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// LoadOrEmpty is LoadData returning an empty document for a missing file.
func LoadOrEmpty(path string) (*Data, error) {
	d, err := LoadData(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Data{}, nil
	}
	return d, err
}
