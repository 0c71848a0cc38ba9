package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"evently/internal/catalog"
	"evently/internal/config"
	appLog "evently/internal/log"
)

const defaultConfigPath = "~/.evently/config.yaml"

// New builds the eventsctl command tree. Every flag can also be set through
// an EVENTLY_* environment variable, e.g. EVENTLY_SORT=price.
func New() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("EVENTLY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "eventsctl",
		Short:         "Browse the Evently catalog from the command line.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if v.GetBool("verbose") {
				appLog.SetLevel(appLog.LevelDebug)
			} else {
				appLog.SetLevel(appLog.LevelWarn)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().String("config", defaultConfigPath, "Path to config file")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Log catalog loading")
	bindFlags(v, cmd.PersistentFlags())

	addEvents(cmd, v)
	addEvent(cmd, v)
	addCalendar(cmd, v)
	addHashPassword(cmd)
	return cmd
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
	})
}

// session is what the catalog commands share: the loaded config, its zone
// and a catalog snapshot.
type session struct {
	cfg     *config.Config
	loc     *time.Location
	catalog *catalog.Catalog
}

func load(ctx context.Context, v *viper.Viper) (*session, error) {
	path, err := homedir.Expand(v.GetString("config"))
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return nil, err
	}

	loader := catalog.NewLoader(catalog.Options{
		Path:        cfg.Catalog.Path,
		URL:         cfg.Catalog.URL,
		DefaultYear: cfg.Catalog.DefaultYear,
		HorizonDays: cfg.Catalog.HorizonDays,
		Location:    loc,
		CacheDir:    filepath.Join(dataDir, "ics-cache"),
	})
	c, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog from %s: %w", loader.Describe(), err)
	}
	return &session{cfg: cfg, loc: loc, catalog: c}, nil
}
