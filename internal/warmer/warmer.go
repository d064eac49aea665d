// Package warmer pre-renders public programs on a cron schedule so the
// first visitor after an expiry does not pay for the render.
package warmer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	appLog "confprogram/internal/log"
	"confprogram/internal/model"
	"confprogram/internal/render"
)

// Disabled is the schedule value that turns the warmer off.
const Disabled = "off"

type SiteLister interface {
	Sites(ctx context.Context) ([]model.Site, error)
}

type Renderer interface {
	Render(ctx context.Context, domain string, f render.Format, pending bool) ([]byte, error)
}

// Purger drops expired cache entries; the in-process cache implements it.
type Purger interface {
	Purge() int
}

// Warmer renders the public variant of every format of every site. Renders
// go through the render cache, so warm entries are left alone and only
// cold keys get filled.
type Warmer struct {
	sites    SiteLister
	renderer Renderer
	purger   Purger

	mu   sync.Mutex
	cron *cron.Cron
}

func New(sites SiteLister, r Renderer) *Warmer {
	return &Warmer{sites: sites, renderer: r}
}

// WithPurger makes every run drop expired entries of p before rendering.
func (w *Warmer) WithPurger(p Purger) *Warmer {
	w.purger = p
	return w
}

// RunOnce warms every site once. Failing renders are logged and joined in
// the returned error; the remaining sites are still warmed.
func (w *Warmer) RunOnce(ctx context.Context) error {
	if w.purger != nil {
		if n := w.purger.Purge(); n > 0 {
			appLog.Debug("expired cache entries purged", "count", n)
		}
	}

	sites, err := w.sites.Sites(ctx)
	if err != nil {
		return fmt.Errorf("list sites: %w", err)
	}

	var errs []error
	rendered := 0
	for _, s := range sites {
		for _, f := range render.Formats {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := w.renderer.Render(ctx, s.Domain, f, false); err != nil {
				appLog.Error("warm render failed", err, "site", s.Domain, "format", f.String())
				errs = append(errs, fmt.Errorf("%s %s: %w", s.Domain, f, err))
				continue
			}
			rendered++
		}
	}
	appLog.Info("render cache warmed", "sites", len(sites), "renders", rendered, "errors", len(errs))
	return errors.Join(errs...)
}

// Start schedules RunOnce on a standard 5-field cron spec. A run still in
// progress when the next one is due makes that next run skip. ctx bounds
// every scheduled run.
func (w *Warmer) Start(ctx context.Context, spec string) error {
	if spec == "" || spec == Disabled {
		appLog.Info("cache warmer disabled")
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return errors.New("warmer already started")
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, func() {
		// Errors are already logged per render.
		_ = w.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	c.Start()
	w.cron = c
	appLog.Info("cache warmer started", "schedule", spec)
	return nil
}

// Stop stops the schedule and waits for a running warm-up to finish.
func (w *Warmer) Stop() {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	appLog.Info("cache warmer stopped")
}

// cronLogger routes cron's own messages to the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
