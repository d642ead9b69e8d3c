// Package track persists which bundles the user asked for, as opposed to
// bundles pulled in as dependencies. The system view lives under the target
// tree; the user view is a directory of empty marker files in the state dir.
package track

import (
	"os"
	"sort"

	"github.com/go-git/go-billy/v5/util"

	"github.com/imgos/swup/internal/config"
)

// momSentinel is internal bookkeeping that must never leak into the
// tracking directory when it is seeded from the system view.
const momSentinel = ".MoM"

// IsInstalled reports whether a bundle is installed on the system.
func IsInstalled(ctx *config.Context, bundle string) bool {
	_, err := ctx.FS.Stat(ctx.FS.Join(ctx.BundlesDir(), bundle))
	return err == nil
}

// InstalledBundles lists the system view, sorted by name.
func InstalledBundles(ctx *config.Context) ([]string, error) {
	entries, err := ctx.FS.ReadDir(ctx.BundlesDir())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name() == momSentinel {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Installed creates the system marker for a bundle. The installer calls
// this after the bundle's files have been reconciled.
func Installed(ctx *config.Context, bundle string) error {
	dir := ctx.BundlesDir()
	if err := ctx.FS.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return touch(ctx, ctx.FS.Join(dir, bundle), 0o644)
}

// Tracked marks a bundle as manually installed. The first call seeds the
// tracking directory from the system view so bundles installed before
// tracking existed stay attributed to the user. Failures are swallowed:
// weird tracking state must never fail an operation.
func Tracked(ctx *config.Context, bundle string) {
	dst := ctx.TrackingDir()

	if !isPopulatedDir(ctx, dst) {
		if err := util.RemoveAll(ctx.FS, dst); err != nil {
			ctx.Log.Debug("issue resetting tracking dir %s: %v\n", dst, err)
			return
		}
		if err := seed(ctx, dst); err != nil {
			ctx.Log.Debug("issue seeding tracking dir %s: %v\n", dst, err)
			return
		}
	}

	if err := touch(ctx, ctx.FS.Join(dst, bundle), 0o600); err != nil {
		ctx.Log.Debug("issue creating tracking file in %s for %s: %v\n", dst, bundle, err)
	}
}

// Untracked removes the manual-install marker, best effort.
func Untracked(ctx *config.Context, bundle string) {
	_ = ctx.FS.Remove(ctx.FS.Join(ctx.TrackingDir(), bundle))
}

// IsTracked reports whether a bundle has a manual-install marker.
func IsTracked(ctx *config.Context, bundle string) bool {
	_, err := ctx.FS.Stat(ctx.FS.Join(ctx.TrackingDir(), bundle))
	return err == nil
}

// TrackedBundles lists the manual-install markers, sorted by name.
func TrackedBundles(ctx *config.Context) []string {
	entries, err := ctx.FS.ReadDir(ctx.TrackingDir())
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// seed copies the system bundle directory into the tracking directory,
// dropping the MoM sentinel, and restricts it to owner-only access.
func seed(ctx *config.Context, dst string) error {
	if err := ctx.FS.MkdirAll(dst, 0o700); err != nil {
		return err
	}
	entries, err := ctx.FS.ReadDir(ctx.BundlesDir())
	if err != nil {
		// Nothing installed yet; an empty tracking dir is fine.
		return nil
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() == momSentinel {
			continue
		}
		if err := touch(ctx, ctx.FS.Join(dst, e.Name()), 0o600); err != nil {
			return err
		}
	}
	return nil
}

func isPopulatedDir(ctx *config.Context, dir string) bool {
	entries, err := ctx.FS.ReadDir(dir)
	return err == nil && len(entries) > 0
}

func touch(ctx *config.Context, path string, perm os.FileMode) error {
	f, err := ctx.FS.OpenFile(path, os.O_RDWR|os.O_CREATE, perm)
	if err != nil {
		return err
	}
	return f.Close()
}
