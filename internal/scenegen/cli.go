package scenegen

import "os"

// ShowHelp prints usage information for the scene generator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`footfall scene generator
========================

Writes synthetic camera replays with known ground truth, and checks a
finished run against it.

Usage:
  go run ./cmd/gen-frames [options]

Options:
  -out string          Output directory (default "scene")
  -seed uint           Random seed (default 1)
  -streams int         Number of cameras (default 2)
  -visitors int        Number of distinct people (default 20)
  -revisit float       Probability of a second visit (default 0.3)
  -dim int             Embedding length (default 128)
  -images              Also render JPEG frames
  -frame-skip int      Pipeline frame_skip the scene must respect (default 5)
  -max-disappeared int Pipeline track_disappeared_frames (default 30)
  -verify              Check a finished run instead of generating
  -url string          Service to verify against, e.g. http://localhost:9080
  -db string           SQLite store to verify against
  -verbose             Log every visit
  -help                Show this help message

Examples:
  go run ./cmd/gen-frames -out scene -visitors 50
  footfall run scene/cam-1.jsonl scene/cam-2.jsonl
  go run ./cmd/gen-frames -out scene -verify -db data/visitors.db
`)
}
