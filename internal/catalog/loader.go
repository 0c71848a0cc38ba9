package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"evently/internal/ics"
	appLog "evently/internal/log"
	"evently/internal/store"
)

const defaultHorizonDays = 180

// Options selects where the catalog comes from. URL wins over Path; a Path
// ending in .ics is read as a feed, any other Path as a YAML catalog; with
// neither set the built-in sample events are used.
type Options struct {
	Path string
	URL  string

	// DefaultYear completes short dates ("Sep 12") and dates the sample set.
	DefaultYear int
	// HorizonDays bounds recurring feed events, counted from today.
	HorizonDays int
	Location    *time.Location

	// CacheDir holds the ETag cache for remote feeds.
	CacheDir string

	Now func() time.Time
}

// Loader builds catalog snapshots from the configured source.
type Loader struct {
	opts Options

	fetcherOnce sync.Once
	fetcher     *ics.Fetcher
}

func NewLoader(opts Options) *Loader {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultYear <= 0 {
		opts.DefaultYear = opts.Now().In(opts.Location).Year()
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = defaultHorizonDays
	}
	if opts.CacheDir == "" {
		opts.CacheDir = filepath.Join(".", "var", "ics-cache")
	}
	return &Loader{opts: opts}
}

// feedFetcher opens the feed cache on first use so that YAML and builtin
// catalogs never touch CacheDir. Without a usable cache dir feeds are still
// fetched, only without the offline fallback.
func (l *Loader) feedFetcher() *ics.Fetcher {
	l.fetcherOnce.Do(func() {
		cache, err := store.OpenDisk(l.opts.CacheDir)
		if err != nil {
			appLog.Error("feed cache unavailable; caching in memory", err, "dir", l.opts.CacheDir)
			l.fetcher = ics.NewFetcher(nil)
			return
		}
		l.fetcher = ics.NewFetcher(cache)
	})
	return l.fetcher
}

// Describe names the source for logs and the health endpoint.
func (l *Loader) Describe() string {
	switch {
	case l.opts.URL != "":
		return "ics:" + l.opts.URL
	case isICSPath(l.opts.Path):
		return "ics:" + l.opts.Path
	case l.opts.Path != "":
		return "yaml:" + l.opts.Path
	default:
		return SourceBuiltin
	}
}

// Load builds a fresh snapshot. It never returns a partially loaded catalog:
// any failure yields an error and the caller keeps its previous snapshot.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	switch {
	case l.opts.URL != "":
		return l.loadICS(ctx, l.opts.URL)
	case isICSPath(l.opts.Path):
		return l.loadICS(ctx, l.opts.Path)
	case l.opts.Path != "":
		return LoadFile(l.opts.Path, l.opts.DefaultYear, l.opts.Location)
	default:
		return New(SourceBuiltin, Sample(l.opts.DefaultYear, l.opts.Location)), nil
	}
}

func (l *Loader) loadICS(ctx context.Context, url string) (*Catalog, error) {
	src := ics.Source{ID: "feed", URL: url}

	res, err := l.feedFetcher().FetchOne(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	parsed, err := ics.ParseICS(src, res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	now := l.opts.Now().In(l.opts.Location)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, l.opts.Location)
	expanded, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
		DisplayLocation: l.opts.Location,
		RangeStart:      start,
		RangeEnd:        start.AddDate(0, 0, l.opts.HorizonDays),
	})
	if err != nil {
		return nil, fmt.Errorf("expand feed: %w", err)
	}

	appLog.Info("catalog feed loaded",
		"source", src.ID,
		"from_cache", res.FromCache,
		"vevents", len(parsed),
		"records", len(expanded.Events),
		"truncated", len(expanded.TruncatedEvents),
	)
	return New(src.ID, expanded.Events), nil
}

func isICSPath(p string) bool {
	return p != "" && strings.EqualFold(filepath.Ext(p), ".ics")
}
