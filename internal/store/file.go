package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	appLog "confprogram/internal/log"
	"confprogram/internal/model"
)

// File serves sites from a YAML data file held in memory. Watch reloads it
// when the file changes on disk.
type File struct {
	path string

	mu    sync.RWMutex
	sites map[string]snapshot
	order []model.Site
}

// OpenFile loads the data file at path.
func OpenFile(path string) (*File, error) {
	f := &File{path: path}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// NewFileFromData builds a File store from an in-memory document. Reload
// and Watch are no-ops on it.
func NewFileFromData(d *Data) (*File, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	f := &File{}
	f.swap(d)
	return f, nil
}

// Reload re-reads the data file. On error the previous data stays active.
func (f *File) Reload() error {
	if f.path == "" {
		return nil
	}
	d, err := LoadData(f.path)
	if err != nil {
		return err
	}
	f.swap(d)
	appLog.Info("program data loaded", "path", f.path, "sites", len(d.Sites))
	return nil
}

func (f *File) swap(d *Data) {
	sites := make(map[string]snapshot, len(d.Sites))
	order := make([]model.Site, 0, len(d.Sites))
	for i := range d.Sites {
		s := &d.Sites[i]
		sites[s.Domain] = s.snapshot()
		order = append(order, model.Site{Domain: s.Domain, Name: s.Name})
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Domain < order[j].Domain })

	f.mu.Lock()
	f.sites = sites
	f.order = order
	f.mu.Unlock()
}

// Watch reloads the data file whenever it is written, created or renamed
// over, until ctx is canceled. The parent directory is watched so that
// atomic saves (temp file + rename) are seen.
func (f *File) Watch(ctx context.Context) error {
	if f.path == "" {
		<-ctx.Done()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("data watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(f.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(f.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := f.Reload(); err != nil {
				appLog.Error("program data reload failed; keeping previous data", err, "path", f.path)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			appLog.Error("program data watcher error", err, "path", f.path)
		}
	}
}

func (f *File) site(domain string) (snapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.sites[domain]
	if !ok {
		return snapshot{}, fmt.Errorf("%w: %s", ErrSiteNotFound, domain)
	}
	return s, nil
}

func (f *File) Sites(_ context.Context) ([]model.Site, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]model.Site(nil), f.order...), nil
}

func (f *File) Conference(_ context.Context, domain string) (model.Conference, error) {
	s, err := f.site(domain)
	if err != nil {
		return model.Conference{}, err
	}
	return s.conference, nil
}

func (f *File) Rooms(_ context.Context, domain string) ([]model.Room, error) {
	s, err := f.site(domain)
	if err != nil {
		return nil, err
	}
	return append([]model.Room(nil), s.rooms...), nil
}

func (f *File) Talks(_ context.Context, domain string) ([]model.Talk, error) {
	s, err := f.site(domain)
	if err != nil {
		return nil, err
	}
	return append([]model.Talk(nil), s.talks...), nil
}
