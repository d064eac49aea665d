package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	appLog "confprogram/internal/log"
	"confprogram/internal/model"
)

// MySQL reads programs from the conference database.
//
// Expected tables: sites, conferences, rooms, talk_categories, tracks,
// talks, participants, talk_speakers and talk_tags, each site-scoped
// through site_id.
type MySQL struct {
	db *sql.DB
}

func NewMySQL(db *sql.DB) *MySQL {
	return &MySQL{db: db}
}

// NormalizeDSN forces parseTime and UTC on a go-sql-driver DSN so DATETIME
// columns scan into time.Time.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// OpenMySQL opens and pings a MySQL connection pool.
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	dsn, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	appLog.Info("connected to mysql")
	return db, nil
}

func (m *MySQL) Sites(ctx context.Context) ([]model.Site, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT domain, name FROM sites ORDER BY domain")
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	var out []model.Site
	for rows.Next() {
		var s model.Site
		if err := rows.Scan(&s.Domain, &s.Name); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (m *MySQL) Conference(ctx context.Context, domain string) (model.Conference, error) {
	var c model.Conference
	err := m.db.QueryRowContext(ctx,
		`SELECT s.domain, s.name, c.name, c.venue, c.city, c.timezone
		FROM sites s JOIN conferences c ON c.site_id = s.id
		WHERE s.domain = ?`, domain,
	).Scan(&c.Site.Domain, &c.Site.Name, &c.Name, &c.Venue, &c.City, &c.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Conference{}, fmt.Errorf("%w: %s", ErrSiteNotFound, domain)
	}
	if err != nil {
		return model.Conference{}, fmt.Errorf("failed to get conference: %w", err)
	}
	return c, nil
}

func (m *MySQL) Rooms(ctx context.Context, domain string) ([]model.Room, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT r.name, r.label, r.capacity
		FROM rooms r JOIN sites s ON s.id = r.site_id
		WHERE s.domain = ? ORDER BY r.name`, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	var out []model.Room
	for rows.Next() {
		var r model.Room
		if err := rows.Scan(&r.Name, &r.Label, &r.Capacity); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const talksQuery = `SELECT t.id, t.title, t.slug, t.description, r.name, t.start_date,
	t.duration, t.accepted, t.plenary, tr.name,
	c.id, c.name, c.label, c.color, c.duration
	FROM talks t
	JOIN sites s ON s.id = t.site_id
	LEFT JOIN rooms r ON r.id = t.room_id
	LEFT JOIN tracks tr ON tr.id = t.track_id
	LEFT JOIN talk_categories c ON c.id = t.category_id
	WHERE s.domain = ?
	ORDER BY t.start_date, t.id`

const speakersQuery = `SELECT ts.talk_id, p.id, p.name
	FROM talk_speakers ts
	JOIN participants p ON p.id = ts.participant_id
	JOIN talks t ON t.id = ts.talk_id
	JOIN sites s ON s.id = t.site_id
	WHERE s.domain = ?
	ORDER BY ts.talk_id, ts.id`

const tagsQuery = `SELECT tt.talk_id, tt.name
	FROM talk_tags tt
	JOIN talks t ON t.id = tt.talk_id
	JOIN sites s ON s.id = t.site_id
	WHERE s.domain = ?
	ORDER BY tt.talk_id, tt.name`

func (m *MySQL) Talks(ctx context.Context, domain string) ([]model.Talk, error) {
	rows, err := m.db.QueryContext(ctx, talksQuery, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to query talks: %w", err)
	}
	defer rows.Close()

	var talks []model.Talk
	index := make(map[int64]int)
	for rows.Next() {
		var (
			t        model.Talk
			room     sql.NullString
			start    sql.NullTime
			accepted sql.NullBool
			track    sql.NullString
			catID    sql.NullInt64
			catName  sql.NullString
			catLabel sql.NullString
			catColor sql.NullString
			catDur   sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Slug, &t.Description, &room, &start,
			&t.Duration, &accepted, &t.Plenary, &track,
			&catID, &catName, &catLabel, &catColor, &catDur); err != nil {
			return nil, fmt.Errorf("failed to scan talk: %w", err)
		}
		t.Room = room.String
		if start.Valid {
			st := start.Time
			t.Start = &st
		}
		if accepted.Valid {
			a := accepted.Bool
			t.Accepted = &a
		}
		t.Track = track.String
		if catID.Valid {
			t.Category = &model.Category{
				ID:       catID.Int64,
				Name:     catName.String,
				Label:    catLabel.String,
				Color:    catColor.String,
				Duration: int(catDur.Int64),
			}
		}
		index[t.ID] = len(talks)
		talks = append(talks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate talks: %w", err)
	}

	if err := m.attachSpeakers(ctx, domain, talks, index); err != nil {
		return nil, err
	}
	if err := m.attachTags(ctx, domain, talks, index); err != nil {
		return nil, err
	}
	return talks, nil
}

func (m *MySQL) attachSpeakers(ctx context.Context, domain string, talks []model.Talk, index map[int64]int) error {
	rows, err := m.db.QueryContext(ctx, speakersQuery, domain)
	if err != nil {
		return fmt.Errorf("failed to query speakers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var talkID int64
		var s model.Speaker
		if err := rows.Scan(&talkID, &s.ID, &s.Name); err != nil {
			return fmt.Errorf("failed to scan speaker: %w", err)
		}
		if i, ok := index[talkID]; ok {
			talks[i].Speakers = append(talks[i].Speakers, s)
		}
	}
	return rows.Err()
}

func (m *MySQL) attachTags(ctx context.Context, domain string, talks []model.Talk, index map[int64]int) error {
	rows, err := m.db.QueryContext(ctx, tagsQuery, domain)
	if err != nil {
		return fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var talkID int64
		var tag string
		if err := rows.Scan(&talkID, &tag); err != nil {
			return fmt.Errorf("failed to scan tag: %w", err)
		}
		if i, ok := index[talkID]; ok {
			talks[i].Tags = append(talks[i].Tags, tag)
		}
	}
	return rows.Err()
}
