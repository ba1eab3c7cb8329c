// Package photostore keeps uploaded profile photos on disk under
// <root>/<profileID>/. Deletion never unlinks originals: files and folders are
// renamed so an operator can still restore them until the sweep runs.
package photostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

const (
	DeletedPrefix       = "delete_"
	PreviewPrefix       = "preview_"
	DeletedFolderSuffix = "_delete"
	DefaultExt          = "jpeg"
	DefaultMaxPixels    = 50_000_000
)

var (
	// ErrNotImage is returned when an upload cannot be decoded as an image.
	ErrNotImage = errors.New("upload is not a decodable image")
	// ErrTooLarge is returned when the image header declares more pixels
	// than Options.MaxPixels. Such uploads are never decoded.
	ErrTooLarge = errors.New("image exceeds the pixel limit")
)

// Mirror receives copies of stored originals. Implementations must be safe
// for concurrent use.
type Mirror interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	SoftDelete(ctx context.Context, key string) error
}

type Options struct {
	Root        string
	MaxSide     int    // 0 keeps the original dimensions
	Watermark   string // empty disables the overlay
	PreviewSize int
	MaxPixels   int // width*height limit checked before decoding
	Mirror      Mirror
}

type Store struct {
	opts Options
}

type Saved struct {
	Name string
	Size int64
}

func New(opts Options) *Store {
	if opts.PreviewSize <= 0 {
		opts.PreviewSize = 200
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	return &Store{opts: opts}
}

func (s *Store) Root() string { return s.opts.Root }

// ProfileDir is <root>/<profileID>.
func (s *Store) ProfileDir(profileID uuid.UUID) string {
	return filepath.Join(s.opts.Root, profileID.String())
}

func (s *Store) PhotoURL(profileID uuid.UUID, name string) string {
	return "/photos/" + profileID.String() + "/" + name
}

func (s *Store) PreviewURL(profileID uuid.UUID, name string) string {
	return "/photos/" + profileID.String() + "/" + PreviewPrefix + name
}

// SavePhoto decodes src, resizes and watermarks it as configured, writes it
// under a fresh uuid name that keeps a supported original extension, and
// writes a square preview next to it. The header is checked against
// MaxPixels before the pixels are decoded.
func (s *Store) SavePhoto(ctx context.Context, src io.Reader, originalName string, profileID uuid.UUID) (Saved, error) {
	raw, err := io.ReadAll(src)
	if err != nil {
		return Saved{}, fmt.Errorf("read upload: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Saved{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(s.opts.MaxPixels) {
		return Saved{}, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return Saved{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	dir := s.ProfileDir(profileID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		log.Infof("[photos] creating folder %s", dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Saved{}, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	ext := extensionOf(originalName)
	name := uuid.NewString() + "." + ext

	if s.opts.MaxSide > 0 {
		b := img.Bounds()
		if b.Dx() > s.opts.MaxSide || b.Dy() > s.opts.MaxSide {
			img = imaging.Fit(img, s.opts.MaxSide, s.opts.MaxSide, imaging.Lanczos)
		}
	}
	if s.opts.Watermark != "" {
		img = applyWatermark(img, s.opts.Watermark)
	}

	body, err := encode(img, ext)
	if err != nil {
		return Saved{}, fmt.Errorf("encode %s: %w", name, err)
	}
	full := filepath.Join(dir, name)
	if err := os.WriteFile(full, body, 0644); err != nil {
		return Saved{}, fmt.Errorf("write %s: %w", full, err)
	}

	preview := imaging.Fill(img, s.opts.PreviewSize, s.opts.PreviewSize, imaging.Center, imaging.Lanczos)
	previewBody, err := encode(preview, ext)
	if err != nil {
		return Saved{}, fmt.Errorf("encode preview %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, PreviewPrefix+name), previewBody, 0644); err != nil {
		return Saved{}, fmt.Errorf("write preview %s: %w", name, err)
	}
	log.Infof("[photos] saved %s (%d bytes)", full, len(body))

	if s.opts.Mirror != nil {
		if err := s.opts.Mirror.Put(ctx, mirrorKey(profileID, name), body, contentType(ext)); err != nil {
			log.Errorf("[photos] mirror put %s: %v", name, err)
		}
	}
	return Saved{Name: name, Size: int64(len(body))}, nil
}

// DeletePhoto renames the original to delete_<name> and drops its preview.
// A missing original means it was already handled and is not an error.
func (s *Store) DeletePhoto(ctx context.Context, profileID uuid.UUID, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	dir := s.ProfileDir(profileID)
	from := filepath.Join(dir, name)
	if _, err := os.Stat(from); os.IsNotExist(err) {
		log.Warnf("[photos] cant find file %s. Was it deleted manually?", from)
		return nil
	}
	to := filepath.Join(dir, DeletedPrefix+name)
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename %s: %w", from, err)
	}
	if err := touch(to); err != nil {
		return err
	}
	preview := filepath.Join(dir, PreviewPrefix+name)
	if err := os.Remove(preview); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove preview %s: %w", preview, err)
	}
	if s.opts.Mirror != nil {
		if err := s.opts.Mirror.SoftDelete(ctx, mirrorKey(profileID, name)); err != nil {
			log.Errorf("[photos] mirror soft delete %s: %v", name, err)
		}
	}
	return nil
}

// DeleteProfileFolder renames <root>/<id> to <root>/<id>_delete. No folder
// means the profile never had photos.
func (s *Store) DeleteProfileFolder(ctx context.Context, profileID uuid.UUID) error {
	dir := s.ProfileDir(profileID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	target := dir + DeletedFolderSuffix
	if _, err := os.Stat(target); err == nil {
		// an earlier delete of the same id left a tombstone; keep both
		target = fmt.Sprintf("%s_%s", target, uuid.NewString()[:8])
	}
	if err := os.Rename(dir, target); err != nil {
		return fmt.Errorf("rename folder %s: %w", dir, err)
	}
	if err := touch(target); err != nil {
		return err
	}
	log.Infof("[photos] profile folder %s moved to %s", dir, target)
	return nil
}

// touch stamps a tombstone with the deletion time; the sweep measures
// retention from it and a rename keeps the upload time.
func touch(path string) error {
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		return fmt.Errorf("stamp %s: %w", path, err)
	}
	return nil
}

// extensionOf keeps the client's extension only when imaging can encode it.
func extensionOf(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if _, err := imaging.FormatFromExtension(ext); err != nil {
		return DefaultExt
	}
	return ext
}

// encode writes img in the format implied by ext, JPEG when imaging has no
// encoder for it.
func encode(img image.Image, ext string) ([]byte, error) {
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		format = imaging.JPEG
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(90)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid photo name %q", name)
	}
	return nil
}

func mirrorKey(profileID uuid.UUID, name string) string {
	return profileID.String() + "/" + name
}

func contentType(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	case "tif", "tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}
