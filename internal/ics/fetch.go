package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	appLog "evently/internal/log"
	"evently/internal/store"
)

// Source is a single ICS catalog feed.
type Source struct {
	// ID is used as the SourceID of the records and in logs.
	ID string
	// URL is an http(s) endpoint or a local file path (optionally file://).
	URL string
}

// IsRemote reports whether the source has to be fetched over HTTP.
func (s Source) IsRemote() bool {
	return strings.HasPrefix(s.URL, "http://") || strings.HasPrefix(s.URL, "https://")
}

// FetchResult contains the outcome of fetching a single source.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool // true if the cached body was reused (304 or fetch failure)
}

// cacheEntry holds HTTP validators for a single feed URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher fetches ICS feeds with conditional requests (ETag /
// Last-Modified). The last good body is kept in a KV store and doubles as an
// offline fallback.
type Fetcher struct {
	client *http.Client
	cache  store.KV
}

// NewFetcher creates a Fetcher caching in cache. A nil cache keeps bodies in
// memory only.
func NewFetcher(cache store.KV) *Fetcher {
	if cache == nil {
		cache = store.NewMemory()
	}
	return &Fetcher{
		client: &http.Client{Timeout: 15 * time.Second},
		cache:  cache,
	}
}

// WithClient swaps the HTTP client, mostly for tests.
func (f *Fetcher) WithClient(c *http.Client) *Fetcher {
	f.client = c
	return f
}

// FetchOne fetches a single source. Local files are read directly; remote
// feeds go through the cache.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}
	if !src.IsRemote() {
		body, err := os.ReadFile(strings.TrimPrefix(src.URL, "file://"))
		if err != nil {
			return FetchResult{}, fmt.Errorf("read ics file: %w", err)
		}
		return FetchResult{Source: src, Body: body}, nil
	}

	key := cacheKey(src.URL)
	meta := f.loadMeta(key)
	cached, _ := f.cache.Read(key + ".ics")
	fallback := func(reason string, err error) (FetchResult, error) {
		if len(cached) == 0 {
			return FetchResult{}, err
		}
		appLog.Error("ics fetch failed, serving cached body", err, "id", src.ID, "url", redactURL(src.URL), "reason", reason)
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if len(cached) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.URL), "revalidate", meta.ETag != "" || meta.LastModified != "")

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback("network", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fallback("read body", err)
		}
		f.save(key, cacheEntry{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}, body)
		appLog.Info("ics fetch ok", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return FetchResult{}, errors.New("304 Not Modified without a cached body")
		}
		appLog.Info("ics feed not modified", "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil

	default:
		return fallback("status", fmt.Errorf("unexpected status %s", resp.Status))
	}
}

// cacheKey is a short stable digest of the feed URL; the URL itself may hold
// tokens and is not a valid file name.
func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "feed-" + hex.EncodeToString(sum[:8])
}

func (f *Fetcher) loadMeta(key string) cacheEntry {
	var meta cacheEntry
	data, err := f.cache.Read(key + ".json")
	if err != nil {
		return meta
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		appLog.Error("ics cache metadata unreadable; ignoring", err, "key", key)
		return cacheEntry{}
	}
	return meta
}

// save writes the body before the validators so metadata never refers to
// a body that is not there.
func (f *Fetcher) save(key string, meta cacheEntry, body []byte) {
	if err := f.cache.Write(key+".ics", body); err != nil {
		appLog.Error("ics cache save failed", err, "key", key)
		return
	}
	data, err := json.Marshal(meta)
	if err != nil {
		appLog.Error("ics cache save failed", err, "key", key)
		return
	}
	if err := f.cache.Write(key+".json", data); err != nil {
		appLog.Error("ics cache save failed", err, "key", key)
	}
}

// redactURL keeps scheme and host only, feed URLs often embed tokens.
//
//	https://example.com/private.ics?token=abcd -> https://example.com/...(redacted)
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i == -1 {
		return u
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/...(redacted)"
}
