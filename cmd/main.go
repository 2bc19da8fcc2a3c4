// Command footfall turns recorded camera runs into a durable log of unique
// visitors and their entry and exit events.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/footfall/internal/adapters/repository"
	"github.com/okian/footfall/internal/config"
	"github.com/okian/footfall/pkg/logger"
)

// cli carries what the persistent pre-run resolved for the subcommands.
type cli struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "footfall",
		Short: "Count unique visitors from camera face detections",
		Long: `footfall tracks faces across the frames of one or more camera streams,
recognizes returning visitors by their face embeddings and records an entry
and exit event per visit in a SQLite store.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.init,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (default: $FOOTFALL_CONFIG)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override log_level: debug, info, warn, error")

	root.AddCommand(
		newRunCmd(c),
		newServeCmd(c),
		newMigrateCmd(c),
		newVersionCmd(),
	)
	return root
}

// init loads configuration and configures logging for every subcommand.
func (c *cli) init(cmd *cobra.Command, _ []string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.LoadFile(cmd.Context(), c.configPath)
	} else {
		cfg, err = config.Load(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}

	if err := logger.Configure(logger.Options{Path: cfg.LogPath, Format: cfg.LogFormat}); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	c.cfg = cfg
	return nil
}

// openStore builds the identity store the config asks for. ":memory:" keeps
// everything in process; any other path is a SQLite file.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	idx, err := repository.NewIndex(cfg.MatchIndex, cfg.HNSWCandidates)
	if err != nil {
		return nil, err
	}
	if cfg.DBPath == ":memory:" {
		return repository.NewMemoryStore(repository.WithIndex(idx)), nil
	}
	return repository.OpenSQLite(ctx, cfg.DBPath, repository.WithIndex(idx))
}
