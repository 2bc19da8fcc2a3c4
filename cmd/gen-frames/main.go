// Command gen-frames writes synthetic replays with known visitor counts and
// verifies finished runs against them.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/footfall/internal/scenegen"
	"github.com/okian/footfall/pkg/logger"
)

func main() {
	def := scenegen.DefaultConfig()
	var (
		out            = flag.String("out", "scene", "Output directory")
		seed           = flag.Uint64("seed", 1, "Random seed")
		streams        = flag.Int("streams", def.Streams, "Number of cameras")
		visitors       = flag.Int("visitors", def.Visitors, "Number of distinct people")
		revisit        = flag.Float64("revisit", def.RevisitRate, "Probability of a second visit")
		dim            = flag.Int("dim", def.Dim, "Embedding length")
		images         = flag.Bool("images", false, "Also render JPEG frames")
		frameSkip      = flag.Int("frame-skip", def.FrameSkip, "Pipeline frame_skip the scene must respect")
		maxDisappeared = flag.Int("max-disappeared", def.MaxDisappeared, "Pipeline track_disappeared_frames")
		verify         = flag.Bool("verify", false, "Check a finished run instead of generating")
		baseURL        = flag.String("url", "", "Service to verify against")
		dbPath         = flag.String("db", "", "SQLite store to verify against")
		timeout        = flag.Duration("timeout", def.Timeout, "HTTP request timeout")
		verbose        = flag.Bool("verbose", false, "Log every visit")
		help           = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		scenegen.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := def
	cfg.OutputDir = *out
	cfg.Seed = *seed
	cfg.Streams = *streams
	cfg.Visitors = *visitors
	cfg.RevisitRate = *revisit
	cfg.Dim = *dim
	cfg.Images = *images
	cfg.FrameSkip = *frameSkip
	cfg.MaxDisappeared = *maxDisappeared
	cfg.BaseURL = *baseURL
	cfg.DBPath = *dbPath
	cfg.Timeout = *timeout
	cfg.Verbose = *verbose

	if *verify {
		if err := scenegen.RunVerify(ctx, cfg); err != nil {
			logger.Get().Error(ctx, "verification failed", logger.Error(err))
			stop()
			os.Exit(1)
		}
		logger.Get().Info(ctx, "verification passed")
		return
	}

	if _, err := scenegen.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "generation failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}
