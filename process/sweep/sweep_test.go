package sweep

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilehub/pkg/photostore"
)

type staticNames map[uuid.UUID]map[string]bool

func (s staticNames) KnownPhotoNames(_ context.Context, id uuid.UUID) (map[string]bool, error) {
	return s[id], nil
}

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	at := now.Add(-age)
	require.NoError(t, os.Chtimes(path, at, at))
}

func ageDir(t *testing.T, dir string, age time.Duration) {
	t.Helper()
	at := now.Add(-age)
	require.NoError(t, os.Chtimes(dir, at, at))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestRunRemovesExpiredTombstones(t *testing.T) {
	root := t.TempDir()
	pid := uuid.New()
	dir := filepath.Join(root, pid.String())
	oldFile := filepath.Join(dir, "delete_a.png")
	freshFile := filepath.Join(dir, "delete_b.png")
	live := filepath.Join(dir, "c.png")
	writeAged(t, oldFile, 40*24*time.Hour)
	writeAged(t, freshFile, time.Hour)
	writeAged(t, live, 40*24*time.Hour)

	gone := filepath.Join(root, uuid.NewString()+"_delete")
	writeAged(t, filepath.Join(gone, "x.png"), 40*24*time.Hour)
	ageDir(t, gone, 40*24*time.Hour)
	recent := filepath.Join(root, uuid.NewString()+"_delete_1a2b3c4d")
	writeAged(t, filepath.Join(recent, "y.png"), time.Hour)
	ageDir(t, recent, time.Hour)

	res, err := Run(context.Background(), Options{Root: root, OlderThan: 720 * time.Hour, Now: func() time.Time { return now }}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 1, res.Folders)
	assert.EqualValues(t, 8, res.Bytes)
	assert.False(t, exists(oldFile))
	assert.True(t, exists(freshFile))
	assert.True(t, exists(live), "live photos are never touched without -orphans")
	assert.False(t, exists(gone))
	assert.True(t, exists(recent))
}

func TestRunDryRunKeepsFiles(t *testing.T) {
	root := t.TempDir()
	f := filepath.Join(root, uuid.NewString(), "delete_a.png")
	writeAged(t, f, 40*24*time.Hour)

	res, err := Run(context.Background(), Options{Root: root, OlderThan: time.Hour, DryRun: true, Now: func() time.Time { return now }}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	assert.True(t, exists(f))
}

func TestRunOrphans(t *testing.T) {
	root := t.TempDir()
	pid := uuid.New()
	dir := filepath.Join(root, pid.String())
	known := filepath.Join(dir, "known.png")
	knownPreview := filepath.Join(dir, "preview_known.png")
	orphan := filepath.Join(dir, "orphan.png")
	orphanPreview := filepath.Join(dir, "preview_orphan.png")
	freshOrphan := filepath.Join(dir, "fresh.png")
	for _, p := range []string{known, knownPreview, orphan, orphanPreview} {
		writeAged(t, p, 48*time.Hour)
	}
	writeAged(t, freshOrphan, time.Hour)
	writeAged(t, filepath.Join(root, "not-a-profile", "z.png"), 48*time.Hour)

	names := staticNames{pid: {"known.png": true}}
	res, err := Run(context.Background(), Options{Root: root, OlderThan: 720 * time.Hour, Orphans: true, Now: func() time.Time { return now }}, names)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Orphans)
	assert.True(t, exists(known))
	assert.True(t, exists(knownPreview))
	assert.False(t, exists(orphan))
	assert.False(t, exists(orphanPreview))
	assert.True(t, exists(freshOrphan), "files inside the grace period are kept")
	assert.True(t, exists(filepath.Join(root, "not-a-profile", "z.png")))
}

func TestRunOrphansNeedsNames(t *testing.T) {
	_, err := Run(context.Background(), Options{Root: t.TempDir(), Orphans: true}, nil)
	assert.Error(t, err)
}

func TestRunKeepsRecentlyDeletedOldUploads(t *testing.T) {
	root := t.TempDir()
	ps := photostore.New(photostore.Options{Root: root})
	ctx := context.Background()
	var img bytes.Buffer
	require.NoError(t, imaging.Encode(&img, imaging.New(8, 8, color.NRGBA{G: 120, A: 255}), imaging.PNG))
	uploaded := time.Now().Add(-60 * 24 * time.Hour)

	pid := uuid.New()
	saved, err := ps.SavePhoto(ctx, bytes.NewReader(img.Bytes()), "a.png", pid)
	require.NoError(t, err)
	dir := filepath.Join(root, pid.String())
	require.NoError(t, os.Chtimes(filepath.Join(dir, saved.Name), uploaded, uploaded))
	require.NoError(t, ps.DeletePhoto(ctx, pid, saved.Name))

	gone := uuid.New()
	_, err = ps.SavePhoto(ctx, bytes.NewReader(img.Bytes()), "b.png", gone)
	require.NoError(t, err)
	goneDir := filepath.Join(root, gone.String())
	require.NoError(t, os.Chtimes(goneDir, uploaded, uploaded))
	require.NoError(t, ps.DeleteProfileFolder(ctx, gone))

	opts := Options{Root: root, OlderThan: 720 * time.Hour}
	res, err := Run(ctx, opts, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Files)
	assert.Zero(t, res.Folders)
	assert.True(t, exists(filepath.Join(dir, photostore.DeletedPrefix+saved.Name)))
	assert.True(t, exists(goneDir+photostore.DeletedFolderSuffix))

	opts.Now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
	res, err = Run(ctx, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 1, res.Folders)
	assert.False(t, exists(filepath.Join(dir, photostore.DeletedPrefix+saved.Name)))
	assert.False(t, exists(goneDir+photostore.DeletedFolderSuffix))
}
