package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and YAML load/save,
// including first-run config creation and 0600 permissions. Environment
// variables (optionally from a .env file) override the YAML values.

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Store backends.
const (
	StoreFile  = "file"
	StoreMySQL = "mysql"
)

// ICSConfig describes a single ICS feed imported into a site's program.
type ICSConfig struct {
	// URL is the ICS endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// SiteConfig lists the feeds imported for one conference domain.
type SiteConfig struct {
	Domain string      `yaml:"domain" json:"domain"`
	ICS    []ICSConfig `yaml:"ics" json:"ics"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the staff program.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// CacheConfig selects where rendered programs are kept.
type CacheConfig struct {
	// Backend is one of "memory" (default), "redis" or "none".
	Backend  string `yaml:"backend" json:"backend"`
	RedisURL string `yaml:"redis_url,omitempty" json:"redis_url,omitempty"`
	// TTL is a Go duration string; defaults to "3h".
	TTL string `yaml:"ttl" json:"ttl"`
}

// StoreConfig selects where sites, rooms and talks are read from.
type StoreConfig struct {
	// Backend is "file" (default) or "mysql".
	Backend  string `yaml:"backend" json:"backend"`
	DataPath string `yaml:"data_path" json:"data_path"`
	MySQLDSN string `yaml:"mysql_dsn,omitempty" json:"mysql_dsn,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone programs are laid out in when a conference
	// does not set its own (e.g. "Europe/Paris").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron schedule (e.g. "*/15 * * * *") for warming the
	// render cache. "off" disables the warmer.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	Cache CacheConfig `yaml:"cache" json:"cache"`
	Store StoreConfig `yaml:"store" json:"store"`

	// StaffAuth, if non-nil, protects /staff/ with HTTP Basic Authentication.
	StaffAuth *BasicAuthConfig `yaml:"staff_auth,omitempty" json:"staff_auth,omitempty"`

	// Sites lists the ICS feeds imported per conference domain.
	Sites []SiteConfig `yaml:"sites" json:"sites"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Europe/Paris",
		RefreshCron: "*/15 * * * *",
		LogLevel:    "INFO",
		LogFormat:   "text",
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     "3h",
		},
		Store: StoreConfig{
			Backend:  StoreFile,
			DataPath: "./data/program.yaml",
		},
		Sites: []SiteConfig{},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
		c.LogFormat = strings.ToLower(c.LogFormat)
	default:
		c.LogFormat = def.LogFormat
	}

	switch strings.ToLower(c.Cache.Backend) {
	case CacheMemory, CacheRedis, CacheNone:
		c.Cache.Backend = strings.ToLower(c.Cache.Backend)
	default:
		// Unknown value; fall back to the in-process cache.
		c.Cache.Backend = CacheMemory
	}
	if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
		c.Cache.TTL = def.Cache.TTL
	}

	switch strings.ToLower(c.Store.Backend) {
	case StoreFile, StoreMySQL:
		c.Store.Backend = strings.ToLower(c.Store.Backend)
	default:
		c.Store.Backend = StoreFile
	}
	if c.Store.DataPath == "" {
		c.Store.DataPath = def.Store.DataPath
	}

	if c.Sites == nil {
		c.Sites = []SiteConfig{}
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	if c.Cache.Backend == CacheRedis && c.Cache.RedisURL == "" {
		return errors.New("cache backend redis requires cache.redis_url")
	}
	if c.Store.Backend == StoreMySQL && c.Store.MySQLDSN == "" {
		return errors.New("store backend mysql requires store.mysql_dsn")
	}
	if a := c.StaffAuth; a != nil && (a.Username == "" || a.Password == "") {
		return errors.New("staff_auth requires username and password")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// CacheTTL returns the parsed cache TTL.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil || d <= 0 {
		return 3 * time.Hour
	}
	return d
}

// ResolveLocation loads the configured timezone, falling back to UTC.
func (c *Config) ResolveLocation() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Site returns the feed settings for domain, or nil.
func (c *Config) Site(domain string) *SiteConfig {
	for i := range c.Sites {
		if c.Sites[i].Domain == domain {
			return &c.Sites[i]
		}
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values from CONFPROGRAM_* environment variables.
func (c *Config) ApplyEnv() {
	c.Listen = getEnv("CONFPROGRAM_LISTEN", c.Listen)
	c.Timezone = getEnv("CONFPROGRAM_TIMEZONE", c.Timezone)
	c.RefreshCron = getEnv("CONFPROGRAM_REFRESH", c.RefreshCron)
	c.LogLevel = getEnv("CONFPROGRAM_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("CONFPROGRAM_LOG_FORMAT", c.LogFormat)
	c.Cache.Backend = getEnv("CONFPROGRAM_CACHE", c.Cache.Backend)
	c.Cache.RedisURL = getEnv("CONFPROGRAM_REDIS_URL", c.Cache.RedisURL)
	c.Cache.TTL = getEnv("CONFPROGRAM_CACHE_TTL", c.Cache.TTL)
	c.Store.Backend = getEnv("CONFPROGRAM_STORE", c.Store.Backend)
	c.Store.DataPath = getEnv("CONFPROGRAM_DATA", c.Store.DataPath)
	c.Store.MySQLDSN = getEnv("CONFPROGRAM_MYSQL_DSN", c.Store.MySQLDSN)

	user := getEnv("CONFPROGRAM_STAFF_USER", "")
	pass := getEnv("CONFPROGRAM_STAFF_PASSWORD", "")
	if user != "" && pass != "" {
		c.StaffAuth = &BasicAuthConfig{Username: user, Password: pass}
	}
	c.Normalize()
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration atomically (temp file + rename) with
// 0600 permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".confprogram-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
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

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
