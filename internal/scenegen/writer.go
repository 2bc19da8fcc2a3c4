package scenegen

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/okian/footfall/internal/adapters/replay"
	"github.com/okian/footfall/internal/domain/model"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o640
	truthFile           = "truth.json"
	framesDir           = "frames"
	jpegQuality         = 80
)

var background = color.RGBA{R: 96, G: 96, B: 96, A: 255}

// Write stores the scene under dir: one <stream>.jsonl per stream, the
// truth file and, when enabled, a JPEG per frame. It returns the replay
// file paths in stream order.
func Write(ctx context.Context, cfg *Config, s *Scene, stats *Stats) ([]string, error) {
	if err := os.MkdirAll(cfg.OutputDir, directoryPermission); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	paths := make([]string, 0, len(s.Streams))
	for i, name := range s.Streams {
		p := filepath.Join(cfg.OutputDir, name+".jsonl")
		if err := writeStream(ctx, cfg, p, s.Frames[i], stats); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}

	raw, err := json.MarshalIndent(s.Truth, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode truth: %w", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.OutputDir, truthFile), raw, filePermission); err != nil {
		return nil, fmt.Errorf("write truth: %w", err)
	}
	return paths, nil
}

// ReadTruth loads the truth file written next to a scene.
func ReadTruth(dir string) (Truth, error) {
	var t Truth
	raw, err := os.ReadFile(filepath.Join(dir, truthFile))
	if err != nil {
		return t, fmt.Errorf("read truth: %w", err)
	}
	if err := json.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("decode truth: %w", err)
	}
	return t, nil
}

func writeStream(ctx context.Context, cfg *Config, path string, frames []*model.Frame, stats *Stats) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if cfg.Images {
			ref, err := writeImage(cfg.OutputDir, frame)
			if err != nil {
				return err
			}
			frame.ImageRef = ref
			stats.Images++
		}
		if err := enc.Encode(replay.RecordFromFrame(frame)); err != nil {
			return fmt.Errorf("encode frame %d: %w", frame.Index, err)
		}
		stats.Frames++
		for _, d := range frame.Detections {
			if d.Embedding == nil {
				stats.FalseHits++
			} else {
				stats.Detections++
			}
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

// writeImage renders a frame as flat rectangles, one per detection, and
// returns its path relative to root.
func writeImage(root string, frame *model.Frame) (string, error) {
	rel := filepath.Join(framesDir, frame.Stream, fmt.Sprintf("%06d.jpg", frame.Index))
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), directoryPermission); err != nil {
		return "", fmt.Errorf("create frames dir: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	for _, d := range frame.Detections {
		r := image.Rect(int(d.Box.X1), int(d.Box.Y1), int(d.Box.X2), int(d.Box.Y2))
		draw.Draw(img, r, image.NewUniform(faceColor(d.Embedding)), image.Point{}, draw.Src)
	}

	out, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", full, err)
	}
	defer out.Close()
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encode %s: %w", full, err)
	}
	return rel, nil
}

// faceColor derives a stable color from an embedding so the same visitor
// looks the same in every frame.
func faceColor(vec []float64) color.RGBA {
	if len(vec) < 3 {
		return color.RGBA{R: 200, G: 200, B: 200, A: 255}
	}
	c := func(x float64) uint8 { return uint8(128 + 127*max(-1, min(1, x*8))) }
	return color.RGBA{R: c(vec[0]), G: c(vec[1]), B: c(vec[2]), A: 255}
}
