// Package imagestore writes face crops to the filesystem as JPEG files.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/okian/footfall/pkg/logger"
)

// Default store configuration constants.
const (
	defaultQuality = 90
	dirPermission  = 0o755
	filePermission = 0o644
	suffixLength   = 8
)

// FileStore saves crops below a root directory.
type FileStore struct {
	root    string
	maxSide int
	quality int

	logger logger.Logger
}

// New creates a store rooted at root. The directory is created on first save.
func New(root string, opts ...Option) *FileStore {
	s := &FileStore{
		root:    root,
		quality: defaultQuality,
		logger:  logger.Get().Named("imagestore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the directory crops are written below.
func (s *FileStore) Root() string {
	return s.root
}

// Save encodes img as root/dir/name.jpg and returns that path. An existing
// file is never overwritten: a random suffix is added to the name instead.
func (s *FileStore) Save(ctx context.Context, dir, name string, img image.Image) (string, error) {
	if img == nil {
		return "", ErrNilImage
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(s.root, filepath.FromSlash(dir))
	if err := os.MkdirAll(target, dirPermission); err != nil {
		return "", fmt.Errorf("create %s: %w", target, err)
	}

	f, path, err := s.create(target, name)
	if err != nil {
		return "", err
	}

	if err := jpeg.Encode(f, s.fit(img), &jpeg.Options{Quality: s.quality}); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}

	s.logger.Debug(ctx, "crop saved", logger.String("path", path))
	return path, nil
}

func (s *FileStore) create(dir, name string) (*os.File, string, error) {
	path := filepath.Join(dir, name+".jpg")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePermission)
	if errors.Is(err, os.ErrExist) {
		path = filepath.Join(dir, name+"_"+uuid.NewString()[:suffixLength]+".jpg")
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePermission)
	}
	if err != nil {
		return nil, "", fmt.Errorf("create %s: %w", path, err)
	}
	return f, path, nil
}

// fit downscales img so its longest side is at most maxSide.
func (s *FileStore) fit(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if s.maxSide <= 0 || (width <= s.maxSide && height <= s.maxSide) {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = s.maxSide
		newHeight = max(1, int(float64(height)*float64(s.maxSide)/float64(width)))
	} else {
		newHeight = s.maxSide
		newWidth = max(1, int(float64(width)*float64(s.maxSide)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}
