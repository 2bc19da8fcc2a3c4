package scenegen

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/footfall/internal/adapters/repository"
	"github.com/okian/footfall/pkg/logger"
)

// Run generates a scene and writes it to cfg.OutputDir.
func Run(ctx context.Context, cfg *Config) (*Scene, error) {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "generating scene",
		logger.String("output", cfg.OutputDir),
		logger.Int("streams", cfg.Streams),
		logger.Int("visitors", cfg.Visitors),
		logger.Int("frameSkip", cfg.FrameSkip),
		logger.Int("maxDisappeared", cfg.MaxDisappeared),
		logger.Bool("images", cfg.Images),
	)

	s, err := Generate(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("scene generation failed: %w", err)
	}
	if cfg.Verbose {
		for _, v := range s.Visits {
			logger.Get().Info(ctx, "visit",
				logger.Int("visitor", v.Visitor),
				logger.String("stream", s.Streams[v.Stream]),
				logger.Int("start", v.Start),
				logger.Int("end", v.End),
			)
		}
	}

	paths, err := Write(ctx, cfg, s, stats)
	if err != nil {
		return nil, fmt.Errorf("scene write failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logger.Get().Info(ctx, "scene written",
		logger.Any("files", paths),
		logger.Int("frames", stats.Frames),
		logger.Int("detections", stats.Detections),
		logger.Int("falseHits", stats.FalseHits),
		logger.Int("images", stats.Images),
		logger.Int("expectedVisitors", s.Truth.Visitors),
		logger.Int("expectedExits", s.Truth.Exits),
		logger.Duration("duration", stats.Duration),
	)
	return s, nil
}

// RunVerify compares a finished run against the truth stored in
// cfg.OutputDir, reading counts from the service or the database.
func RunVerify(ctx context.Context, cfg *Config) error {
	want, err := ReadTruth(cfg.OutputDir)
	if err != nil {
		return err
	}

	var got Counts
	switch {
	case cfg.BaseURL != "":
		got, err = FetchCounts(ctx, cfg.BaseURL, cfg.Timeout)
	case cfg.DBPath != "":
		var store *repository.SQLiteStore
		store, err = repository.OpenSQLite(ctx, cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()
		got, err = CountStore(ctx, store)
	default:
		return fmt.Errorf("%w: verification needs a service url or a database path", ErrInvalidConfig)
	}
	if err != nil {
		return err
	}
	return Verify(ctx, want, got)
}
