package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"confprogram/internal/config"
	"confprogram/internal/ics"
	appLog "confprogram/internal/log"
	"confprogram/internal/store"
)

var (
	importCacheDir string
	importCategory string
	importFrom     string
	importTo       string
	importDryRun   bool
)

var importCmd = &cobra.Command{
	Use:   "import-ics <domain>",
	Short: "Import talks from the ICS feeds configured for a site",
	Long: `Fetch the ICS feeds listed under sites[].ics for the given domain, expand
recurring events and merge the timed ones into the YAML data file as
accepted talks. Talks imported earlier from the same feed are replaced.

LOCATION becomes the room, SUMMARY the title. All-day events are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importCacheDir, "cache-dir", "./var/ics-cache", "Directory for conditional-request cache")
	importCmd.Flags().StringVar(&importCategory, "category", "Imported", "Category given to imported talks (created when missing)")
	importCmd.Flags().StringVar(&importFrom, "from", "", "First day to import, YYYY-MM-DD (default: 30 days ago)")
	importCmd.Flags().StringVar(&importTo, "to", "", "Last day to import, YYYY-MM-DD (default: one year ahead)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Print what would change without writing the data file")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	domain := args[0]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Backend != config.StoreFile {
		return errors.New("import-ics writes the YAML data file; store backend must be file")
	}
	siteCfg := cfg.Site(domain)
	if siteCfg == nil || len(siteCfg.ICS) == 0 {
		return fmt.Errorf("no ics feeds configured for %s", domain)
	}

	data, err := store.LoadOrEmpty(cfg.Store.DataPath)
	if err != nil {
		return err
	}
	site := data.EnsureSite(domain)

	loc := cfg.ResolveLocation()
	if tz := site.Conference.Timezone; tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	now := time.Now().In(loc)
	from, err := parseDay(importFrom, now.AddDate(0, 0, -30), loc)
	if err != nil {
		return err
	}
	to, err := parseDay(importTo, now.AddDate(1, 0, 0), loc)
	if err != nil {
		return err
	}

	category := site.Category(site.EnsureCategory(importCategory, "imported"))
	fetcher := ics.NewFetcher(importCacheDir)
	ctx := rootContext(cmd)

	sources := make([]ics.Source, 0, len(siteCfg.ICS))
	for _, c := range siteCfg.ICS {
		if c.URL == "" {
			continue
		}
		sources = append(sources, ics.Source{ID: feedID(c), URL: c.URL})
	}

	results, fetchErrs := fetcher.FetchAll(ctx, sources)
	out := cmd.OutOrStdout()
	for _, res := range results {
		events, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			fetchErrs = append(fetchErrs, fmt.Errorf("feed %s: %w", res.Source.ID, err))
			continue
		}
		expanded, err := ics.ExpandOccurrences(events, ics.ExpandConfig{
			DisplayLocation: loc,
			RangeStart:      from,
			RangeEnd:        to.AddDate(0, 0, 1),
		})
		if err != nil {
			return err
		}
		talks := ics.TalksFromOccurrences(expanded.Occurrences, category)
		removed := site.ReplaceTagged(ics.ImportTag(res.Source.ID), talks)
		appLog.Info("ics feed imported",
			"site", domain,
			"id", res.Source.ID,
			"occurrences", len(expanded.Occurrences),
			"talks", len(talks),
			"replaced", removed,
			"from_cache", res.FromCache,
		)
		fmt.Fprintf(out, "%s: %d talks imported, %d replaced\n", res.Source.ID, len(talks), removed)
	}

	if importDryRun {
		fmt.Fprintln(out, "dry run: data file left untouched")
		return errors.Join(fetchErrs...)
	}
	if len(results) > 0 {
		if err := store.SaveData(cfg.Store.DataPath, data); err != nil {
			return fmt.Errorf("save data: %w", err)
		}
	}
	return errors.Join(fetchErrs...)
}

// feedID falls back to the feed name, then its URL.
func feedID(c config.ICSConfig) string {
	switch {
	case c.ID != "":
		return c.ID
	case c.Name != "":
		return c.Name
	default:
		return c.URL
	}
}

func parseDay(s string, def time.Time, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Date(def.Year(), def.Month(), def.Day(), 0, 0, 0, 0, loc), nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return t, nil
}
