package scenegen

import "time"

// Config holds configuration for scene generation and verification.
type Config struct {
	OutputDir string // Directory receiving <stream>.jsonl and truth.json
	Seed      uint64 // Random seed; equal seeds give equal scenes

	Streams     int     // Number of cameras
	Visitors    int     // Number of distinct people
	RevisitRate float64 // Probability that a person comes back once more
	MinVisit    int     // Shortest visit, in frames
	MaxVisit    int     // Longest visit, in frames
	NoiseRate   float64 // Probability of a low-confidence false detection per frame

	Dim           int           // Embedding length
	Jitter        float64       // Per-frame embedding noise (std dev before normalisation)
	Width         int           // Frame width in pixels
	Height        int           // Frame height in pixels
	FrameInterval time.Duration // Time between frames
	Start         time.Time     // Timestamp of frame 1
	Images        bool          // Also render JPEG frames

	// Pipeline settings the schedule must respect.
	FrameSkip      int // Processed frame stride
	MaxDisappeared int // Tracker grace period in processed frames

	BaseURL string        // Service to verify against; empty skips the check
	DBPath  string        // SQLite store to verify against; empty skips the check
	Timeout time.Duration // HTTP request timeout
	Verbose bool          // Log every visit
}

// DefaultConfig returns a small scene that the default pipeline settings
// process correctly.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:      "scene",
		Seed:           1,
		Streams:        2,
		Visitors:       20,
		RevisitRate:    0.3,
		MinVisit:       20,
		MaxVisit:       60,
		NoiseRate:      0.1,
		Dim:            128,
		Jitter:         0.01,
		Width:          1280,
		Height:         720,
		FrameInterval:  40 * time.Millisecond,
		Start:          time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
		FrameSkip:      5,
		MaxDisappeared: 30,
		Timeout:        10 * time.Second,
	}
}

// Truth is what a correct run over the scene must store, assuming entries
// are written only for new registrations and streams are flushed at the end.
type Truth struct {
	Visitors int `json:"visitors"`
	Entries  int `json:"entries"`
	Exits    int `json:"exits"`
	Visits   int `json:"visits"`
	Frames   int `json:"frames"`
}

// Counts is what a run actually stored.
type Counts struct {
	Visitors int `json:"visitors"`
	Entries  int `json:"entries"`
	Exits    int `json:"exits"`
}

// Stats holds generation statistics.
type Stats struct {
	Frames     int
	Detections int
	FalseHits  int
	Images     int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
