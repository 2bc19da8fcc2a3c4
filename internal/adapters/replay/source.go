// Package replay adapts recorded runs to the pipeline's collaborators.
//
// A recorded run is a JSONL file with one frame per line carrying the
// detector output (boxes, confidences) and optionally a precomputed embedding
// per detection and a path to the frame image. Source streams the frames,
// Detector applies the confidence threshold and Embedder hands each track the
// embedding of the detection that overlaps it best.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // frame decoders
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"

	"github.com/okian/footfall/internal/domain/model"
	"github.com/okian/footfall/pkg/logger"
)

const readBufferSize = 1 << 20

// Source streams frames from a JSONL file.
type Source struct {
	name    string
	baseDir string
	file    io.Closer
	dec     *json.Decoder
	line    int

	logger logger.Logger
}

// Open opens a recorded run. Frames without a stream name get name, which
// defaults to the file name without extension.
func Open(path string, opts ...SourceOption) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	base := filepath.Base(path)
	s := NewSource(bufio.NewReaderSize(f, readBufferSize), append([]SourceOption{
		WithStreamName(base[:len(base)-len(filepath.Ext(base))]),
		WithBaseDir(filepath.Dir(path)),
	}, opts...)...)
	s.file = f
	return s, nil
}

// NewSource reads frames from r.
func NewSource(r io.Reader, opts ...SourceOption) *Source {
	s := &Source{
		name:   "stream",
		dec:    json.NewDecoder(r),
		logger: logger.Get().Named("replay"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name is the stream name used for frames that do not carry one.
func (s *Source) Name() string {
	return s.name
}

// Next returns the next frame, or io.EOF at the end of the run. Images are
// not decoded; call Load for the frames that need pixels.
func (s *Source) Next(ctx context.Context) (*model.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec Record
	if err := s.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: record %d: %w", ErrMalformed, s.line+1, err)
	}
	s.line++

	if rec.Stream == "" {
		rec.Stream = s.name
	}
	f, skipped := rec.Frame()
	if skipped > 0 {
		s.logger.Warn(ctx, "dropped malformed detections",
			logger.Int("frame", f.Index),
			logger.Int("count", skipped),
		)
	}
	return f, nil
}

// Load decodes the frame image referenced by f, if any. Relative paths are
// resolved against the directory of the replay file.
func (s *Source) Load(_ context.Context, f *model.Frame) error {
	if f.Image != nil || f.ImageRef == "" {
		return nil
	}
	p := f.ImageRef
	if !filepath.IsAbs(p) && s.baseDir != "" {
		p = filepath.Join(s.baseDir, p)
	}

	file, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrImage, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrImage, p, err)
	}
	f.Image = img
	if f.Width == 0 || f.Height == 0 {
		f.Width, f.Height = img.Bounds().Dx(), img.Bounds().Dy()
	}
	return nil
}

// Close releases the underlying file, if Open created one.
func (s *Source) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
