// Package remove computes which files belong only to removed bundles and
// takes them off the target tree.
package remove

import (
	"os"
	"sort"

	"github.com/imgos/swup/internal/config"
	"github.com/imgos/swup/internal/manifest"
	"github.com/imgos/swup/internal/resolve"
	"github.com/imgos/swup/internal/status"
	"github.com/imgos/swup/internal/track"
)

// baseBundle can never be removed; every system needs it.
const baseBundle = "os-core"

// Summary accounts one removal operation.
type Summary struct {
	Total   int
	Bad     int
	Deleted int
}

// Bundles removes the named bundles from the system. The MoM must arrive
// with every installed submanifest loaded. Per-bundle faults are logged
// and skipped; the returned code is the most severe fault seen, with
// required-by outranking invalid outranking not-installed.
func Bundles(ctx *config.Context, mom *manifest.Manifest, names []string) (Summary, error) {
	var sum Summary
	var retErr error
	var toRemove []*manifest.Manifest

	for _, name := range names {
		sum.Total++

		if name == baseBundle {
			ctx.Log.Warn("\nBundle \"%s\" not allowed to be removed, skipping it...\n", baseBundle)
			retErr = worse(retErr, status.Errorf(status.RequiredBundleError,
				"bundle %q not allowed to be removed", baseBundle))
			sum.Bad++
			continue
		}

		if mom.FindBundle(name) == nil {
			ctx.Log.Warn("\nBundle \"%s\" is invalid, skipping it...\n", name)
			retErr = worse(retErr, status.Errorf(status.InvalidBundle, "bundle %q is invalid", name))
			sum.Bad++
			continue
		}

		if !track.IsInstalled(ctx, name) {
			ctx.Log.Warn("\nBundle \"%s\" is not installed, skipping it...\n", name)
			retErr = worse(retErr, status.Errorf(status.BundleNotTracked, "bundle %q is not installed", name))
			sum.Bad++
			continue
		}

		reqd := resolve.RequiredBy(mom, name, names)
		if reqd.Count() > 0 {
			if !ctx.Force {
				ctx.Log.Info("\nBundle \"%s\" is required by the following bundles:\n", name)
				for _, dep := range reqd.Names {
					ctx.Log.Info(" - %s\n", dep)
				}
				ctx.Log.Error("\nBundle \"%s\" is required by %d bundle%s, skipping it...\n",
					name, reqd.Count(), plural(reqd.Count()))
				ctx.Log.Info("Use \"swup bundle-remove --force %s\" to remove \"%s\" and all bundles that require it\n", name, name)
				retErr = worse(retErr, status.Errorf(status.RequiredBundleError,
					"bundle %q is required by %d bundles", name, reqd.Count()))
				sum.Bad++
				continue
			}

			ctx.Log.Info("\nThe --force option was used, bundle \"%s\" and all bundles that require it will be removed from the system\n", name)
			for _, dep := range reqd.Names {
				if m := takeSubmanifest(mom, dep); m != nil {
					toRemove = append(toRemove, m)
				}
				track.Untracked(ctx, dep)
			}
		}

		if m := takeSubmanifest(mom, name); m != nil {
			toRemove = append(toRemove, m)
		}
		ctx.Log.Info("\nRemoving bundle: %s\n", name)
		track.Untracked(ctx, name)
	}

	if len(toRemove) > 0 {
		kept := manifest.Consolidate(mom.Submanifests)
		candidates := manifest.Consolidate(toRemove)
		unlinks := manifest.FilesToUnlink(candidates, kept)

		if len(unlinks) > 0 {
			ctx.Log.Info("\nDeleting bundle files...\n")
			sum.Deleted = unlinkFiles(ctx, unlinks)
			ctx.Log.Info("Total deleted files: %d\n", sum.Deleted)
		}

		// The system markers go last: while files are mid-unlink the
		// bundle still counts as installed, and a crashed run is re-runnable.
		for _, m := range toRemove {
			_ = ctx.FS.Remove(ctx.FS.Join(ctx.BundlesDir(), m.Component))
		}
	}

	if sum.Bad > 0 {
		ctx.Log.Print("\nFailed to remove %d of %d bundles\n", sum.Bad, sum.Total)
	} else {
		ctx.Log.Print("\nSuccessfully removed %d bundle%s\n", sum.Total, plural(sum.Total))
	}
	return sum, retErr
}

// takeSubmanifest moves a bundle's manifest out of the MoM's active list.
func takeSubmanifest(mom *manifest.Manifest, name string) *manifest.Manifest {
	for i, sub := range mom.Submanifests {
		if sub.Component == name {
			mom.Submanifests = append(mom.Submanifests[:i], mom.Submanifests[i+1:]...)
			return sub
		}
	}
	return nil
}

// unlinkFiles removes paths children-first so directories empty out before
// their own removal is attempted. Failures are warned and skipped; a
// re-run converges.
func unlinkFiles(ctx *config.Context, files []*manifest.File) int {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))

	deleted := 0
	for _, p := range paths {
		target := ctx.TargetPath(p)
		if err := ctx.FS.Remove(target); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			ctx.Log.Warn("could not remove %s: %v\n", p, err)
			continue
		}
		deleted++
	}
	return deleted
}

// worse keeps the more severe of two removal faults.
func worse(cur, next error) error {
	if cur == nil {
		return next
	}
	if severity(status.CodeOf(next)) > severity(status.CodeOf(cur)) {
		return next
	}
	return cur
}

func severity(c status.Code) int {
	switch c {
	case status.RequiredBundleError:
		return 3
	case status.InvalidBundle:
		return 2
	case status.BundleNotTracked:
		return 1
	default:
		return 0
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
