package render

import (
	"context"
	"fmt"
	"time"

	"confprogram/internal/cache"
	appLog "confprogram/internal/log"
	"confprogram/internal/metrics"
	"confprogram/internal/model"
	"confprogram/internal/program"
)

// Source supplies the raw program data of a site.
type Source interface {
	Conference(ctx context.Context, domain string) (model.Conference, error)
	Rooms(ctx context.Context, domain string) ([]model.Room, error)
	Talks(ctx context.Context, domain string) ([]model.Talk, error)
}

// Options configures a Renderer.
type Options struct {
	// Cache memoizes public renders. Nil disables caching.
	Cache cache.Cache
	// TTL of cached renders; zero means cache.DefaultTTL.
	TTL time.Duration
	// Location is used for conferences without their own timezone. Nil
	// means UTC.
	Location *time.Location
}

// Renderer loads, lays out and serializes programs.
type Renderer struct {
	src   Source
	cache cache.Cache
	ttl   time.Duration
	loc   *time.Location
}

func NewRenderer(src Source, opts Options) *Renderer {
	if opts.TTL <= 0 {
		opts.TTL = cache.DefaultTTL
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Renderer{
		src:   src,
		cache: opts.Cache,
		ttl:   opts.TTL,
		loc:   opts.Location,
	}
}

// Render returns the program of a site in format f.
//
// Public renders go through the cache when one is configured: a hit is
// returned as is, a miss is rendered and stored for the TTL. Pending
// renders always reflect live data and never touch the cache. Cache
// failures are logged and fall back to a live render.
func (r *Renderer) Render(ctx context.Context, domain string, f Format, pending bool) ([]byte, error) {
	started := time.Now()

	outcome := metrics.CacheDisabled
	var key string
	switch {
	case pending:
		outcome = metrics.CacheBypass
	case r.cache != nil:
		key = cache.ProgramKey(domain, f.String(), pending)
		out, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			appLog.Error("program cache get failed", err, "site", domain, "format", f.String())
		}
		if ok && len(out) > 0 {
			metrics.TrackRender(f.String(), pending, metrics.CacheHit, time.Since(started))
			return out, nil
		}
		outcome = metrics.CacheMiss
	}

	p, err := r.Program(ctx, domain, pending)
	if err != nil {
		metrics.TrackRenderError(f.String())
		return nil, err
	}
	out, err := Serialize(p, f)
	if err != nil {
		metrics.TrackRenderError(f.String())
		return nil, err
	}

	if key != "" {
		if err := r.cache.Set(ctx, key, out, r.ttl); err != nil {
			appLog.Error("program cache set failed", err, "site", domain, "format", f.String())
		}
	}

	metrics.TrackRender(f.String(), pending, outcome, time.Since(started))
	appLog.Debug("program rendered",
		"site", domain,
		"format", f.String(),
		"pending", pending,
		"talks", len(p.Talks),
		"days", len(p.Days),
		"bytes", len(out),
		"cache", outcome,
	)
	return out, nil
}

// Program loads a site and lays out its talks without serializing.
func (r *Renderer) Program(ctx context.Context, domain string, pending bool) (*program.Program, error) {
	conf, err := r.src.Conference(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("load conference %s: %w", domain, err)
	}
	rooms, err := r.src.Rooms(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("load rooms %s: %w", domain, err)
	}
	talks, err := r.src.Talks(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("load talks %s: %w", domain, err)
	}

	p, err := program.Build(conf, rooms, program.Filter(talks, pending), r.location(conf))
	if err != nil {
		return nil, fmt.Errorf("build program %s: %w", domain, err)
	}
	return p, nil
}

func (r *Renderer) location(conf model.Conference) *time.Location {
	if conf.Timezone == "" {
		return r.loc
	}
	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("failed to load conference timezone; using default", err,
			"site", conf.Site.Domain, "timezone", conf.Timezone)
		return r.loc
	}
	return loc
}
