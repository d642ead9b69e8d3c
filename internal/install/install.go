// Package install commits staged content into the target tree. The commit
// is two-phase: every file is first placed next to its destination under a
// sidecar name, then the whole plan is renamed into place. The only window
// with a partially-updated system is the rename loop, which is atomic per
// file; a crash anywhere leaves a state a re-run converges from.
package install

import (
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/sys/unix"

	"github.com/imgos/swup/internal/config"
	"github.com/imgos/swup/internal/manifest"
)

// sidecarSuffix is appended to a file's final path while it is staged.
const sidecarSuffix = ".update"

// Installer applies an install plan to the target tree.
type Installer struct {
	ctx *config.Context

	// syncFS is swapped out in tests; production syncs the page cache.
	syncFS func()
}

// New builds an installer for one operation.
func New(ctx *config.Context) *Installer {
	return &Installer{ctx: ctx, syncFS: func() { unix.Sync() }}
}

// Install runs both phases over the plan. The MoM's consolidated file view
// backs the staging-name lookup for records repaired out-of-band.
func (in *Installer) Install(plan []*manifest.File, mom *manifest.Manifest) error {
	for _, f := range plan {
		if skip(f) {
			continue
		}
		if err := in.Stage(f); err != nil {
			return err
		}
	}
	return in.Rename(plan, mom)
}

// skip filters records that must be neither staged nor renamed.
func skip(f *manifest.File) bool {
	return f.IsDeleted() || f.DoNotUpdate || f.Ignored
}

// Stage places one record's content next to its destination: regular files
// and symlinks under the sidecar name, directories directly at their final
// path (mkdir is already idempotent).
func (in *Installer) Stage(f *manifest.File) error {
	fs := in.ctx.FS
	target := in.ctx.TargetPath(f.Path)

	if err := fs.MkdirAll(fs.Join(target, ".."), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", f.Path, err)
	}

	if err := in.clearTypeChange(f, target); err != nil {
		return err
	}

	switch f.Type {
	case manifest.TypeDir:
		if err := fs.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", f.Path, err)
		}
		f.Staging = target
		return nil

	case manifest.TypeLink:
		sidecar := target + sidecarSuffix
		linkTarget, err := fs.Readlink(fs.Join(in.ctx.StagedDir(), f.Hash))
		if err != nil {
			return fmt.Errorf("read staged link for %s: %w", f.Path, err)
		}
		_ = fs.Remove(sidecar)
		if err := fs.Symlink(linkTarget, sidecar); err != nil {
			return fmt.Errorf("stage symlink %s: %w", f.Path, err)
		}
		f.Staging = sidecar
		return nil

	default:
		sidecar := target + sidecarSuffix
		if err := in.copyStaged(f.Hash, sidecar); err != nil {
			return fmt.Errorf("stage %s: %w", f.Path, err)
		}
		f.Staging = sidecar
		return nil
	}
}

// Rename commits every staged record to its final name and syncs. Records
// staged by out-of-band path repair carry no staging name; the real record
// is recovered from the MoM's consolidated view.
func (in *Installer) Rename(plan []*manifest.File, mom *manifest.Manifest) error {
	fs := in.ctx.FS
	for _, f := range plan {
		if skip(f) {
			continue
		}

		if f.Staging == "" && f.Type != manifest.TypeDir {
			repaired := findConsolidated(mom, f.Path)
			if repaired == nil || repaired.Staging == "" {
				return fmt.Errorf("no staging record for %s", f.Path)
			}
			f = repaired
		}

		if f.Type == manifest.TypeDir {
			continue
		}

		// rename(2) replaces the target atomically. Backends that refuse
		// to clobber get the target cleared first and a retry.
		target := in.ctx.TargetPath(f.Path)
		if err := fs.Rename(f.Staging, target); err != nil {
			_ = fs.Remove(target)
			if err := fs.Rename(f.Staging, target); err != nil {
				return fmt.Errorf("rename %s into place: %w", f.Path, err)
			}
		}
	}
	in.syncFS()
	return nil
}

// clearTypeChange unlinks an existing target whose kind no longer matches
// the record, so the replacement can land.
func (in *Installer) clearTypeChange(f *manifest.File, target string) error {
	fs := in.ctx.FS
	info, err := fs.Lstat(target)
	if err != nil {
		return nil
	}

	existingDir := info.IsDir()
	existingLink := info.Mode()&os.ModeSymlink != 0
	same := (f.Type == manifest.TypeDir && existingDir) ||
		(f.Type == manifest.TypeLink && existingLink) ||
		(f.Type == manifest.TypeFile && !existingDir && !existingLink)
	if same {
		return nil
	}

	if existingDir {
		if err := util.RemoveAll(fs, target); err != nil {
			return fmt.Errorf("replace directory %s: %w", f.Path, err)
		}
		return nil
	}
	if err := fs.Remove(target); err != nil {
		return fmt.Errorf("replace %s: %w", f.Path, err)
	}
	return nil
}

func (in *Installer) copyStaged(hash, dst string) error {
	fs := in.ctx.FS
	src, err := fs.Open(fs.Join(in.ctx.StagedDir(), hash))
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// findConsolidated looks a path up across the MoM's loaded submanifests,
// preferring a record that has been staged.
func findConsolidated(mom *manifest.Manifest, path string) *manifest.File {
	if mom == nil {
		return nil
	}
	var fallback *manifest.File
	for _, sub := range mom.Submanifests {
		if f := sub.FindFile(path); f != nil {
			if f.Staging != "" {
				return f
			}
			fallback = f
		}
	}
	return fallback
}
