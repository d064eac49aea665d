package store

import (
	"slices"

	"confprogram/internal/model"
)

// EnsureSite returns the site with the given domain, adding an empty one
// when it does not exist yet.
func (d *Data) EnsureSite(domain string) *SiteData {
	if s := d.Site(domain); s != nil {
		return s
	}
	d.Sites = append(d.Sites, SiteData{Domain: domain, Name: domain})
	return &d.Sites[len(d.Sites)-1]
}

// ReplaceTagged drops every talk carrying tag and appends talks in their
// place. Rooms the new talks use are added to the site. It returns the
// number of talks removed.
func (s *SiteData) ReplaceTagged(tag string, talks []model.Talk) int {
	kept := s.Talks[:0]
	removed := 0
	for _, t := range s.Talks {
		if slices.Contains(t.Tags, tag) {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	s.Talks = kept

	rooms := make(map[string]bool, len(s.Rooms))
	for _, r := range s.Rooms {
		rooms[r.Name] = true
	}
	for _, t := range talks {
		if t.Room != "" && !rooms[t.Room] {
			rooms[t.Room] = true
			s.Rooms = append(s.Rooms, RoomData{Name: t.Room})
		}
		s.Talks = append(s.Talks, talkData(t))
	}
	return removed
}

func talkData(t model.Talk) TalkData {
	td := TalkData{
		ID:          t.ID,
		Title:       t.Title,
		Slug:        t.Slug,
		Description: t.Description,
		Room:        t.Room,
		Start:       t.Start,
		Duration:    t.Duration,
		Accepted:    t.Accepted,
		Plenary:     t.Plenary,
		Track:       t.Track,
		Tags:        t.Tags,
	}
	if t.Category != nil {
		td.Category = t.Category.ID
	}
	for _, sp := range t.Speakers {
		td.Speakers = append(td.Speakers, sp.ID)
	}
	return td
}

// EnsureCategory returns the ID of the category called name, adding it with
// the given program label when missing.
func (s *SiteData) EnsureCategory(name, label string) int64 {
	var maxID int64
	for _, c := range s.Categories {
		if c.Name == name {
			return c.ID
		}
		maxID = max(maxID, c.ID)
	}
	s.Categories = append(s.Categories, CategoryData{ID: maxID + 1, Name: name, Label: label})
	return maxID + 1
}

// Category returns the model view of the category with the given ID, or nil.
func (s *SiteData) Category(id int64) *model.Category {
	for _, c := range s.Categories {
		if c.ID == id {
			return &model.Category{ID: c.ID, Name: c.Name, Label: c.Label, Color: c.Color, Duration: c.Duration}
		}
	}
	return nil
}
