// confprogram serves conference programs as HTML, XML and ICS.
package main

import (
	"context"
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"confprogram/internal/cache"
	"confprogram/internal/config"
	appLog "confprogram/internal/log"
	"confprogram/internal/render"
	"confprogram/internal/store"
)

var version = "0.1.0-dev"

// Global flags
var (
	configPath string
	envFile    string
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "confprogram",
	Short: "Conference program grid renderer",
	Long: `confprogram lays scheduled talks out on a day/timeslot/room grid and
publishes the result as an HTML table, a schedule XML document or an
iCalendar feed, one program per conference site.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file with CONFPROGRAM_* overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR); overrides config")
}

// loadConfig reads the config file, applies environment overrides and
// configures logging.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	cfg.ApplyEnv()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	appLog.SetFormat(cfg.LogFormat)
	appLog.Debug("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"cache", cfg.Cache.Backend,
		"cache_ttl", cfg.CacheTTL().String(),
		"store", cfg.Store.Backend,
		"staff_auth", cfg.StaffAuth != nil,
		"ics_sites", len(cfg.Sites),
	)
	return cfg, nil
}

// app holds the collaborators shared by the commands.
type app struct {
	cfg      *config.Config
	store    store.Store
	file     *store.File // nil unless the file backend is used
	renderer *render.Renderer
	memory   *cache.Memory // nil unless the in-process cache is used
	closers  []func() error
}

// openApp opens the configured store and cache. withCache false renders
// every request live.
func openApp(ctx context.Context, cfg *config.Config, withCache bool) (*app, error) {
	a := &app{cfg: cfg}

	switch cfg.Store.Backend {
	case config.StoreMySQL:
		db, err := store.OpenMySQL(ctx, cfg.Store.MySQLDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.store = store.NewMySQL(db)
	default:
		f, err := store.OpenFile(cfg.Store.DataPath)
		if err != nil {
			return nil, fmt.Errorf("open data file: %w", err)
		}
		a.file = f
		a.store = f
	}

	var c cache.Cache
	if withCache {
		switch cfg.Cache.Backend {
		case config.CacheRedis:
			client, err := cache.NewRedisClient(ctx, cfg.Cache.RedisURL)
			if err != nil {
				a.Close()
				return nil, err
			}
			a.closers = append(a.closers, client.Close)
			c = cache.NewRedis(client, "confprogram:")
		case config.CacheMemory:
			a.memory = cache.NewMemory()
			c = a.memory
		}
	}
	appLog.Info("program backends ready", "store", cfg.Store.Backend, "cache", cacheName(c, cfg))

	a.renderer = render.NewRenderer(a.store, render.Options{
		Cache:    c,
		TTL:      cfg.CacheTTL(),
		Location: cfg.ResolveLocation(),
	})
	return a, nil
}

func cacheName(c cache.Cache, cfg *config.Config) string {
	if c == nil {
		return config.CacheNone
	}
	return cfg.Cache.Backend
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			appLog.Error("close failed", err)
		}
	}
	a.closers = nil
}

// rootContext returns the command context, falling back to Background.
func rootContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
