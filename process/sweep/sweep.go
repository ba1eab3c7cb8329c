// Package sweep purges soft-deleted photo files once their retention period
// has passed, and optionally removes files that never got a database row.
package sweep

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"profilehub/pkg/photostore"
)

// DefaultOrphanGrace keeps fresh files out of the orphan sweep so an upload
// still between its file write and its row insert is never touched.
const DefaultOrphanGrace = 24 * time.Hour

// Names reports the file names a profile has rows for, in any status.
type Names interface {
	KnownPhotoNames(ctx context.Context, profileID uuid.UUID) (map[string]bool, error)
}

type Options struct {
	Root        string
	OlderThan   time.Duration
	Orphans     bool
	OrphanGrace time.Duration
	DryRun      bool
	Now         func() time.Time
}

// Result counts what was (or, in a dry run, would be) removed.
type Result struct {
	Files   int
	Folders int
	Orphans int
	Bytes   int64
}

func (r Result) String() string {
	return fmt.Sprintf("files=%d folders=%d orphans=%d bytes=%d", r.Files, r.Folders, r.Orphans, r.Bytes)
}

type sweeper struct {
	opts  Options
	names Names
	now   time.Time
	res   Result
}

// Run walks the photo root once. names may be nil when Orphans is off.
func Run(ctx context.Context, opts Options, names Names) (Result, error) {
	if opts.Orphans && names == nil {
		return Result{}, fmt.Errorf("orphan sweep needs a name source")
	}
	if opts.OrphanGrace <= 0 {
		opts.OrphanGrace = DefaultOrphanGrace
	}
	now := time.Now()
	if opts.Now != nil {
		now = opts.Now()
	}
	s := &sweeper{opts: opts, names: names, now: now}

	entries, err := os.ReadDir(opts.Root)
	if err != nil {
		return Result{}, fmt.Errorf("read photo root %s: %w", opts.Root, err)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return s.res, err
		}
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(opts.Root, e.Name())
		if strings.Contains(e.Name(), photostore.DeletedFolderSuffix) {
			if err := s.folder(dir); err != nil {
				return s.res, err
			}
			continue
		}
		profileID, err := uuid.Parse(e.Name())
		if err != nil {
			log.Debugf("[sweep] skipping foreign folder %s", dir)
			continue
		}
		if err := s.profile(ctx, dir, profileID); err != nil {
			return s.res, err
		}
	}
	return s.res, nil
}

func (s *sweeper) expired(info os.FileInfo, age time.Duration) bool {
	return s.now.Sub(info.ModTime()) > age
}

func (s *sweeper) folder(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !s.expired(info, s.opts.OlderThan) {
		return nil
	}
	size, err := dirSize(dir)
	if err != nil {
		return err
	}
	log.Infof("[sweep] removing folder %s (%d bytes) dry_run=%t", dir, size, s.opts.DryRun)
	if !s.opts.DryRun {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove folder %s: %w", dir, err)
		}
	}
	s.res.Folders++
	s.res.Bytes += size
	return nil
}

func (s *sweeper) profile(ctx context.Context, dir string, profileID uuid.UUID) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	var known map[string]bool
	if s.opts.Orphans {
		known, err = s.names.KnownPhotoNames(ctx, profileID)
		if err != nil {
			return err
		}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		name := e.Name()
		path := filepath.Join(dir, name)
		switch {
		case strings.HasPrefix(name, photostore.DeletedPrefix):
			if s.expired(info, s.opts.OlderThan) {
				if err := s.remove(path, info.Size()); err != nil {
					return err
				}
				s.res.Files++
			}
		case s.opts.Orphans:
			original := strings.TrimPrefix(name, photostore.PreviewPrefix)
			if !known[original] && s.expired(info, s.opts.OrphanGrace) {
				if err := s.remove(path, info.Size()); err != nil {
					return err
				}
				s.res.Orphans++
			}
		}
	}
	return nil
}

func (s *sweeper) remove(path string, size int64) error {
	log.Infof("[sweep] removing %s (%d bytes) dry_run=%t", path, size, s.opts.DryRun)
	if !s.opts.DryRun {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	s.res.Bytes += size
	return nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
