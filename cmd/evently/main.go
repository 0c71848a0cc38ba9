package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mitchellh/go-homedir"

	"evently/internal/auth"
	"evently/internal/capture"
	"evently/internal/catalog"
	"evently/internal/config"
	appLog "evently/internal/log"
	"evently/internal/store"
	"evently/internal/view"
	"evently/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath  string
	listen      string
	once        bool
	snapshot    string
	demoLatency bool
}

func main() {
	os.Exit(run(parseFlags()))
}

// run wires the service and blocks until it exits. It returns the process
// exit code so deferred cleanup runs before main exits.
func run(flags flagConfig) int {
	appLog.Info("evently starting", "version", version)

	configPath, err := homedir.Expand(flags.configPath)
	if err != nil {
		appLog.Error("failed to expand config path", err, "config_path", flags.configPath)
		return 1
	}
	conf, err := config.Load(configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", configPath)
		return 1
	}

	// CLI flags override the config file.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.demoLatency {
		conf.DemoLatency = true
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone; falling back to local", err)
		loc = time.Local
	}
	dataDir, err := conf.ResolveDataDir()
	if err != nil {
		appLog.Error("failed to resolve data dir", err)
		return 1
	}

	appLog.Info("effective config",
		"config_path", configPath,
		"listen", conf.Listen,
		"timezone", loc.String(),
		"page_size", conf.PageSize,
		"data_dir", dataDir,
		"catalog_path", conf.Catalog.Path,
		"catalog_url", conf.Catalog.URL,
		"refresh", conf.Catalog.RefreshCron,
		"demo_latency", conf.DemoLatency,
		"once", flags.once,
		"snapshot", flags.snapshot,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := catalog.NewLoader(catalog.Options{
		Path:        conf.Catalog.Path,
		URL:         conf.Catalog.URL,
		DefaultYear: conf.Catalog.DefaultYear,
		HorizonDays: conf.Catalog.HorizonDays,
		Location:    loc,
		CacheDir:    filepath.Join(dataDir, "ics-cache"),
	})
	holder := catalog.NewHolder(nil)
	refresher := catalog.NewRefresher(loader, holder)
	if _, err := refresher.Reload(ctx); err != nil {
		appLog.Error("initial catalog load failed", err, "source", loader.Describe())
		return 1
	}

	if flags.once {
		c := holder.Current()
		appLog.Info("catalog loaded", "source", c.Source(), "event_count", c.Len())
		return 0
	}

	kv, err := store.OpenDisk(filepath.Join(dataDir, "store"))
	if err != nil {
		appLog.Error("failed to open user store", err, "data_dir", dataDir)
		return 1
	}
	opts := auth.MockOptions{}
	if conf.DemoLatency {
		opts.Latency = auth.DemoLatency
	}
	accounts := auth.NewMock(store.NewState(kv), opts)

	if err := refresher.Start(ctx, conf.RefreshSchedule(), loc); err != nil {
		appLog.Error("failed to schedule catalog refresh", err)
		return 1
	}
	defer refresher.Stop()

	srv := web.NewServer(web.Deps{
		Config:    conf,
		Catalog:   holder,
		Refresher: refresher,
		Auth:      accounts,
		Session:   view.NewSession(holder, conf.PageSize, conf.ApplyDelay()),
		Location:  loc,
	})

	if flags.snapshot != "" {
		return runSnapshot(ctx, srv, conf.Listen, flags.snapshot)
	}

	if err := srv.ListenAndServe(ctx); err != nil {
		appLog.Error("http server failed", err)
		return 1
	}
	appLog.Info("evently exiting")
	return 0
}

// runSnapshot serves just long enough to capture /calendar as a PNG.
func runSnapshot(parent context.Context, srv *web.Server, listen, out string) int {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	base := "http://" + listen
	if err := waitHealthy(ctx, base+"/health", 10*time.Second); err != nil {
		appLog.Error("server did not become healthy", err, "listen", listen)
		return 1
	}
	if err := capture.Snapshot(ctx, capture.Options{BaseURL: base, OutputPath: out}); err != nil {
		appLog.Error("snapshot failed", err)
		return 1
	}

	cancel()
	if err := <-errCh; err != nil {
		appLog.Error("http server failed", err)
		return 1
	}
	return 0
}

func waitHealthy(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "~/.evently/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load the catalog once, log a summary and exit")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Write a PNG of the calendar page to this path and exit")
	flag.BoolVar(&cfg.demoLatency, "demo-latency", false, "Delay account calls like the demo client")

	flag.Parse()

	return cfg
}
