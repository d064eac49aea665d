package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confprogram/internal/config"
)

const testData = `sites:
  - domain: 2024.ponycon.test
    name: PonyCon
    conference:
      timezone: UTC
    rooms:
      - name: Amphi
    categories:
      - id: 1
        name: Talk
        label: talk
    talks:
      - id: 1
        title: Keynote
        room: Amphi
        start: 2024-05-04T09:00:00Z
        duration: 45
        category: 1
        accepted: true
`

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "program.yaml")
	require.NoError(t, os.WriteFile(dataPath, []byte(testData), 0o600))

	cfg := config.DefaultConfig()
	cfg.Store.DataPath = dataPath
	cfg.Cache.Backend = config.CacheNone
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Save(path, cfg))
	return path
}

func TestRenderCommand(t *testing.T) {
	cfgPath := writeConfig(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"render", "2024.ponycon.test", "--config", cfgPath, "--env-file", filepath.Join(t.TempDir(), "none.env"), "--format", "ics"})
	require.NoError(t, rootCmd.Execute())

	assert.True(t, strings.HasPrefix(out.String(), "BEGIN:VCALENDAR"))
	assert.Contains(t, out.String(), "SUMMARY:Keynote")
}

func TestRenderCommandUnknownSite(t *testing.T) {
	cfgPath := writeConfig(t)

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"render", "nope.test", "--config", cfgPath, "--format", "html"})
	assert.Error(t, rootCmd.Execute())
}

func TestFeedID(t *testing.T) {
	assert.Equal(t, "a", feedID(config.ICSConfig{ID: "a", Name: "b", URL: "c"}))
	assert.Equal(t, "b", feedID(config.ICSConfig{Name: "b", URL: "c"}))
	assert.Equal(t, "c", feedID(config.ICSConfig{URL: "c"}))
}

func TestParseDay(t *testing.T) {
	def := time.Date(2024, 5, 4, 15, 30, 0, 0, time.UTC)
	d, err := parseDay("", def, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC), d)

	d, err = parseDay("2024-06-01", def, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 6, int(d.Month()))

	_, err = parseDay("June", def, time.UTC)
	assert.Error(t, err)
}
