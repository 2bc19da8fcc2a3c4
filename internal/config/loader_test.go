package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/footfall/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.FrameSkip, convey.ShouldEqual, 5)
				convey.So(cfg.MatchThreshold, convey.ShouldEqual, 0.60)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("FOOTFALL_FRAME_SKIP", "3")
			_ = os.Setenv("FOOTFALL_MATCH_THRESHOLD", "0.72")
			_ = os.Setenv("FOOTFALL_DB_PATH", ":memory:")
			_ = os.Setenv("FOOTFALL_ENTRY_ON_REIDENTIFY", "true")
			_ = os.Setenv("FOOTFALL_TRACKER_MATCHER", "hungarian")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.FrameSkip, convey.ShouldEqual, 3)
				convey.So(cfg.MatchThreshold, convey.ShouldEqual, 0.72)
				convey.So(cfg.DBPath, convey.ShouldEqual, ":memory:")
				convey.So(cfg.EntryOnReidentify, convey.ShouldBeTrue)
				convey.So(cfg.TrackerMatcher, convey.ShouldEqual, config.MatcherHungarian)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(t, `
frame_skip: 2
confidence_threshold: 0.5
distance_threshold: 120
match_index: hnsw
hnsw_candidates: 16
`)
			_ = os.Setenv("FOOTFALL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML and keep defaults for missing keys", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.FrameSkip, convey.ShouldEqual, 2)
				convey.So(cfg.ConfidenceThreshold, convey.ShouldEqual, 0.5)
				convey.So(cfg.DistanceThreshold, convey.ShouldEqual, 120)
				convey.So(cfg.MatchIndex, convey.ShouldEqual, config.IndexHNSW)
				convey.So(cfg.HNSWCandidates, convey.ShouldEqual, 16)
				convey.So(cfg.TrackDisappearedFrames, convey.ShouldEqual, 30)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(t, `
frame_skip: 2
addr: ":9090"
`)
			_ = os.Setenv("FOOTFALL_CONFIG", tmpFile)
			_ = os.Setenv("FOOTFALL_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.FrameSkip, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When loading an explicit file", func() {
			clearConfigEnvVars()
			tmpFile := createTempConfigFile(t, "flush_on_end: false\n")

			cfg, err := config.LoadFile(ctx, tmpFile)

			convey.Convey("Then the file layer applies", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.FlushOnEnd, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("FOOTFALL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("FOOTFALL_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an out-of-range value", func() {
			_ = os.Setenv("FOOTFALL_FRAME_SKIP", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "frame_skip")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("FOOTFALL_WRITER_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	envVars := []string{
		"FOOTFALL_CONFIG",
		"FOOTFALL_FRAME_SKIP",
		"FOOTFALL_MATCH_THRESHOLD",
		"FOOTFALL_DB_PATH",
		"FOOTFALL_ENTRY_ON_REIDENTIFY",
		"FOOTFALL_TRACKER_MATCHER",
		"FOOTFALL_ADDR",
		"FOOTFALL_WRITER_QUEUE_SIZE",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "footfall.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
