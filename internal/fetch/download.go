package fetch

import (
	"fmt"
	"os"

	"github.com/imgos/swup/internal/config"
	"github.com/imgos/swup/internal/digest"
	"github.com/imgos/swup/internal/manifest"
	"github.com/imgos/swup/internal/status"
)

// packThreshold is the file count above which pack downloads pay off.
const packThreshold = 10

// Downloader moves payloads from a Fetcher into the staging area and
// accounts the bytes moved for telemetry.
type Downloader struct {
	Fetcher  Fetcher
	Unpacker Unpacker

	bytes int64
}

// Bytes returns the total payload bytes pulled so far.
func (d *Downloader) Bytes() int64 { return d.bytes }

// Fullfiles ensures every live record has its content staged under
// <state>/staged/<hash>, fetching whatever is missing.
func (d *Downloader) Fullfiles(ctx *config.Context, files []*manifest.File) error {
	if err := ctx.FS.MkdirAll(ctx.StagedDir(), 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	for _, f := range files {
		if f.IsDeleted() || f.Type == manifest.TypeDir {
			continue
		}
		staged := ctx.FS.Join(ctx.StagedDir(), f.Hash)
		if _, err := ctx.FS.Lstat(staged); err == nil {
			continue
		}

		data, err := d.Fetcher.Fetch(KindFullfile, f.LastChange, f.Hash)
		if err != nil {
			return fmt.Errorf("download fullfile for %s: %w", f.Path, err)
		}
		d.bytes += int64(len(data))

		if f.Type == manifest.TypeLink {
			// A symlink fullfile is the link target itself.
			if err := ctx.FS.Symlink(string(data), staged); err != nil {
				return fmt.Errorf("stage symlink for %s: %w", f.Path, err)
			}
			continue
		}
		if err := writeBlob(ctx, staged, data); err != nil {
			return err
		}
	}
	return nil
}

// Packs pulls the batched pack for every subscribed bundle and extracts it
// into the download scratch dir, expected to populate the staging area.
// Packs are an optimization only: failures fall back to fullfiles.
func (d *Downloader) Packs(ctx *config.Context, subs []Subscription) {
	if d.Unpacker == nil {
		return
	}
	for _, sub := range subs {
		data, err := d.Fetcher.Fetch(KindPack, sub.Version, sub.Component)
		if err != nil {
			ctx.Log.Debug("no pack for %s at %d: %v\n", sub.Component, sub.Version, err)
			continue
		}
		d.bytes += int64(len(data))
		if err := d.Unpacker.Extract(data, ctx.DownloadDir()); err != nil {
			ctx.Log.Warn("could not extract pack for %s: %v\n", sub.Component, err)
		}
	}
}

// WantPacks reports whether the install is large enough to bother with
// pack downloads.
func WantPacks(files []*manifest.File) bool {
	return len(files) > packThreshold
}

// Subscription names a (component, version) pair to pull a pack for.
// Mirrors the resolver's subscription without importing it.
type Subscription struct {
	Component string
	Version   int
}

// Preflight verifies every already-staged payload and unlinks corrupt
// entries so they are re-fetched.
func Preflight(ctx *config.Context, files []*manifest.File) error {
	for _, f := range files {
		if f.IsDeleted() || f.Type == manifest.TypeDir {
			continue
		}
		staged := ctx.FS.Join(ctx.StagedDir(), f.Hash)
		if _, err := ctx.FS.Lstat(staged); err != nil {
			continue
		}
		if digest.Verify(ctx.FS, staged, f.Hash) {
			continue
		}
		ctx.Log.Warn("hash check failed for %s\n", f.Path)
		ctx.Log.Info("         will attempt to download fullfile for %s\n", f.Path)
		if err := ctx.FS.Remove(staged); err != nil && !os.IsNotExist(err) {
			return status.Wrap(status.CouldntRemoveFile, err, "could not remove bad file %s", staged)
		}
	}
	return nil
}

// WipeDownloadDir clears the scratch directory at install start.
func WipeDownloadDir(ctx *config.Context) {
	dir := ctx.DownloadDir()
	entries, err := ctx.FS.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		_ = ctx.FS.Remove(ctx.FS.Join(dir, e.Name()))
	}
}

func writeBlob(ctx *config.Context, path string, data []byte) error {
	f, err := ctx.FS.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
