// Package media decodes uploaded images, scales them down and stores them as WebP.
package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"jnestagram/internal/models"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMaxUploadBytes = 10 << 20
	PostImageMaxSize      = 1440
	PostImageQuality      = 80
)

// Store writes processed images below a root directory and returns paths
// relative to it.
type Store struct {
	root     string
	maxBytes int64
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir, maxBytes: DefaultMaxUploadBytes}
}

// Save decodes content, fits it within maxSize×maxSize and writes it as
// <folder>/<uuid>.webp.
func (s *Store) Save(folder string, content []byte, maxSize, quality int) (string, error) {
	if len(content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if int64(len(content)) > s.maxBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes>>20))
	}
	if !isAllowedImageMIME(http.DetectContentType(content)) {
		return "", models.NewValidationError("Invalid image type")
	}

	encoded, err := ResizeToWebP(content, maxSize, quality)
	if err != nil {
		return "", err
	}

	rel := filepath.Join(folder, uuid.NewString()+".webp")
	abs := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	if err := os.WriteFile(abs, encoded, 0o644); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

// Remove deletes a file previously returned by Save. Missing files are ignored.
func (s *Store) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	clean := filepath.Clean("/" + rel)
	err := os.Remove(filepath.Join(s.root, clean))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Root is the directory served under /media.
func (s *Store) Root() string { return s.root }

// ResizeToWebP decodes an image, fits it within maxSize×maxSize keeping the
// aspect ratio and encodes it as WebP.
func ResizeToWebP(content []byte, maxSize, quality int) ([]byte, error) {
	decoded, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if !isSupportedDecodedFormat(format) {
		return nil, models.NewValidationError("Unsupported image format")
	}

	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, resizeToFit(decoded, maxSize, maxSize), &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, models.NewInternalError(err)
	}
	return buf.Bytes(), nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func isAllowedImageMIME(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}

func isSupportedDecodedFormat(format string) bool {
	switch strings.ToLower(format) {
	case "jpeg", "png", "gif", "webp":
		return true
	}
	return false
}
