// Package store loads the sites, rooms and talks a program is built from.
package store

import (
	"context"
	"errors"

	"confprogram/internal/model"
)

// ErrSiteNotFound is returned for a domain no conference is hosted on.
var ErrSiteNotFound = errors.New("store: site not found")

// Store is the read side of the conference database.
type Store interface {
	Sites(ctx context.Context) ([]model.Site, error)
	Conference(ctx context.Context, domain string) (model.Conference, error)
	Rooms(ctx context.Context, domain string) ([]model.Room, error)
	// Talks returns every talk of the site, scheduled or not.
	Talks(ctx context.Context, domain string) ([]model.Talk, error)
}
