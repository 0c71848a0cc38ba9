package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "evently/internal/log"
)

// Refresher reloads the catalog on a cron schedule and on demand. A failed
// load keeps the previous snapshot in place.
type Refresher struct {
	loader *Loader
	holder *Holder

	mu      sync.Mutex // serialises reloads
	cron    *cron.Cron
	entryID cron.EntryID
}

func NewRefresher(loader *Loader, holder *Holder) *Refresher {
	return &Refresher{loader: loader, holder: holder}
}

// Reload loads a fresh catalog and swaps it in.
func (r *Refresher) Reload(ctx context.Context) (*Catalog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := time.Now()
	c, err := r.loader.Load(ctx)
	if err != nil {
		appLog.Error("catalog reload failed", err, "source", r.loader.Describe())
		return nil, err
	}
	r.holder.Replace(c)
	appLog.Info("catalog reload done", "source", r.loader.Describe(), "took_ms", time.Since(started).Milliseconds())
	return c, nil
}

// Start schedules Reload with a standard 5-field cron spec in loc. An empty
// spec disables periodic refresh. Jobs run with ctx; Stop cancels nothing
// already running but prevents new runs.
func (r *Refresher) Start(ctx context.Context, spec string, loc *time.Location) error {
	if spec == "" {
		appLog.Info("catalog refresh disabled")
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}

	c := cron.New(cron.WithLocation(loc))
	id, err := c.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		_, _ = r.Reload(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}

	r.mu.Lock()
	r.cron = c
	r.entryID = id
	r.mu.Unlock()

	c.Start()
	appLog.Info("catalog refresh scheduled", "spec", spec, "next", c.Entry(id).Next.Format(time.RFC3339))
	return nil
}

// Next returns the next scheduled run, or the zero time when not scheduled.
func (r *Refresher) Next() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron == nil {
		return time.Time{}
	}
	return r.cron.Entry(r.entryID).Next
}

// Stop halts the schedule and waits for a running reload to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

// Source describes where reloads read from.
func (r *Refresher) Source() string { return r.loader.Describe() }
