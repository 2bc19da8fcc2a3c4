// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers .env, an optional YAML file and FOOTFALL_ env vars over New().
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
)

// Matcher and index names accepted by the config.
const (
	IndexLinear = "linear"
	IndexHNSW   = "hnsw"

	MatcherGreedy    = "greedy"
	MatcherHungarian = "hungarian"
)

// Config contains process configuration.
type Config struct {
	// FrameSkip runs detection on every Nth frame.
	FrameSkip int `koanf:"frame_skip"`

	// ConfidenceThreshold drops detections below this score.
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`

	// MatchThreshold is the minimum cosine similarity for a re-identification.
	MatchThreshold float64 `koanf:"match_threshold"`

	// TrackDisappearedFrames is the tracker grace period in processed frames.
	TrackDisappearedFrames int `koanf:"track_disappeared_frames"`

	// DistanceThreshold is the max centroid distance in pixels for a track match.
	DistanceThreshold float64 `koanf:"distance_threshold"`

	// DBPath locates the SQLite store. ":memory:" selects the in-memory store.
	DBPath string `koanf:"db_path"`

	// LogsDir is the root directory for persisted crops.
	LogsDir string `koanf:"logs_dir"`

	// ModelsDir is where external detector/embedder models live.
	ModelsDir string `koanf:"models_dir"`

	// LogPath adds a file sink to the logger when non-empty.
	LogPath string `koanf:"log_path"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects "text" or "json" log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Serve starts the read API next to the pipeline.
	Serve bool `koanf:"serve"`

	// MatchIndex selects the identity search index: linear or hnsw.
	MatchIndex string `koanf:"match_index"`

	// HNSWCandidates is how many ANN candidates are re-ranked exactly.
	HNSWCandidates int `koanf:"hnsw_candidates"`

	// TrackerMatcher selects the track association strategy: greedy or hungarian.
	TrackerMatcher string `koanf:"tracker_matcher"`

	// EmbedMinIoU is the minimum overlap between a track box and a detection
	// for the detection's embedding to be used for that track.
	EmbedMinIoU float64 `koanf:"embed_min_iou"`

	// EntryOnReidentify writes an entry event when a new track matches a known identity.
	EntryOnReidentify bool `koanf:"entry_on_reidentify"`

	// FlushOnEnd emits exits for tracks still bound when a stream ends.
	FlushOnEnd bool `koanf:"flush_on_end"`

	// WriterQueueSize bounds the store writer queue.
	WriterQueueSize int `koanf:"writer_queue_size"`

	// CropMaxSide downscales stored crops so the longest side fits. Zero keeps them as is.
	CropMaxSide int `koanf:"crop_max_side"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		FrameSkip:              5,
		ConfidenceThreshold:    0.45,
		MatchThreshold:         0.60,
		TrackDisappearedFrames: 30,
		DistanceThreshold:      80,
		DBPath:                 "data/visitors.db",
		LogsDir:                "logs",
		ModelsDir:              "models",
		LogPath:                "logs/events.log",
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		Serve:                  false,
		MatchIndex:             IndexLinear,
		HNSWCandidates:         8,
		TrackerMatcher:         MatcherGreedy,
		EmbedMinIoU:            0.3,
		EntryOnReidentify:      false,
		FlushOnEnd:             true,
		WriterQueueSize:        1024,
		CropMaxSide:            0,
	}
}

// Validate reports the first out-of-range value.
func (c *Config) Validate() error {
	switch {
	case c.FrameSkip < 1:
		return invalid("frame_skip must be >= 1, got %d", c.FrameSkip)
	case c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1:
		return invalid("confidence_threshold must be in [0,1], got %v", c.ConfidenceThreshold)
	case c.MatchThreshold < -1 || c.MatchThreshold > 1:
		return invalid("match_threshold must be in [-1,1], got %v", c.MatchThreshold)
	case c.TrackDisappearedFrames < 0:
		return invalid("track_disappeared_frames must be >= 0, got %d", c.TrackDisappearedFrames)
	case c.DistanceThreshold <= 0:
		return invalid("distance_threshold must be > 0, got %v", c.DistanceThreshold)
	case c.DBPath == "":
		return invalid("db_path must not be empty")
	case c.LogsDir == "":
		return invalid("logs_dir must not be empty")
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.EmbedMinIoU < 0 || c.EmbedMinIoU > 1:
		return invalid("embed_min_iou must be in [0,1], got %v", c.EmbedMinIoU)
	case c.WriterQueueSize < 1:
		return invalid("writer_queue_size must be >= 1, got %d", c.WriterQueueSize)
	case c.CropMaxSide < 0:
		return invalid("crop_max_side must be >= 0, got %d", c.CropMaxSide)
	case c.HNSWCandidates < 1:
		return invalid("hnsw_candidates must be >= 1, got %d", c.HNSWCandidates)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	}
	switch c.MatchIndex {
	case IndexLinear, IndexHNSW:
	default:
		return invalid("match_index must be %s or %s, got %q", IndexLinear, IndexHNSW, c.MatchIndex)
	}
	switch c.TrackerMatcher {
	case MatcherGreedy, MatcherHungarian:
	default:
		return invalid("tracker_matcher must be %s or %s, got %q", MatcherGreedy, MatcherHungarian, c.TrackerMatcher)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
