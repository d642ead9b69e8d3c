package bundle

import (
	"github.com/imgos/swup/internal/fetch"
	"github.com/imgos/swup/internal/install"
	"github.com/imgos/swup/internal/manifest"
	"github.com/imgos/swup/internal/resolve"
	"github.com/imgos/swup/internal/status"
	"github.com/imgos/swup/internal/track"
)

// Add installs the named bundles and everything they include.
func (m *Manager) Add(names []string) error {
	version, mom, err := m.loadMoM()
	if err != nil {
		m.record("bundleadd", names, version, err, 0)
		return err
	}

	d := &fetch.Downloader{Fetcher: m.fetcher, Unpacker: m.unpacker}
	err = m.installBundles(names, mom, d)
	m.record("bundleadd", names, version, err, d.Bytes())
	return err
}

func (m *Manager) installBundles(names []string, mom *manifest.Manifest, d *fetch.Downloader) error {
	ctx := m.ctx
	requested := len(names)

	ctx.Log.Info("Loading required manifests...\n")
	subs := resolve.NewSubSet()
	r := resolve.AddSubscriptions(ctx, names, subs, mom, m.store, false, 0)

	alreadyInstalled := 0
	for _, name := range names {
		if track.IsInstalled(ctx, name) {
			ctx.Log.Warn("Bundle \"%s\" is already installed, skipping it...\n", name)
			alreadyInstalled++
			// The user asked for it, so it counts as manually installed now.
			track.Tracked(ctx, name)
		}
		if ref := mom.FindBundle(name); ref != nil && ref.Experimental {
			ctx.Log.Warn("Bundle %s is experimental\n", name)
		}
	}

	if !r.New {
		switch {
		case r.Err:
			return status.Errorf(status.CouldntLoadManifest, "could not load required manifests")
		case r.BadName:
			return status.Errorf(status.InvalidBundle, "no valid bundle was provided")
		default:
			// Everything requested was already installed.
			m.printAddSummary(requested, 0, alreadyInstalled, 0)
			return nil
		}
	}
	invalidProvided := r.BadName

	toInstall, err := m.store.Recurse(mom, subs.Components())
	if err != nil {
		ctx.Log.Error("Cannot load to install bundles\n")
		return err
	}

	installedNames, _ := track.InstalledBundles(ctx)
	installedBundles, err := m.store.Recurse(mom, inMoM(mom, installedNames))
	if err != nil {
		ctx.Log.Error("Cannot load installed bundles\n")
		return err
	}
	mom.Submanifests = installedBundles

	installedFiles := manifest.FilterOutDeleted(manifest.Consolidate(installedBundles))
	toInstallFiles := manifest.FilterOutDeleted(manifest.Consolidate(toInstall))
	toInstallFiles = manifest.FilterOutExisting(toInstallFiles, installedFiles)

	if err := install.CheckDiskSpace(ctx, toInstall, m.avail); err != nil {
		return err
	}

	fetch.WipeDownloadDir(ctx)
	if fetch.WantPacks(toInstallFiles) {
		var packSubs []fetch.Subscription
		for _, s := range subs.All() {
			packSubs = append(packSubs, fetch.Subscription{Component: s.Component, Version: s.Version})
		}
		d.Packs(ctx, packSubs)
	} else {
		ctx.Log.Info("No packs need to be downloaded\n")
	}

	if err := fetch.Preflight(ctx, toInstallFiles); err != nil {
		return err
	}
	if err := d.Fullfiles(ctx, toInstallFiles); err != nil {
		ctx.Log.Error("Could not download some files from bundles, aborting bundle installation\n")
		return err
	}

	ctx.Log.Info("Installing bundle(s) files...\n")
	// Holding the full set of loaded manifests lets the renamer recover
	// staging names for path-repaired records.
	mom.Submanifests = mergeManifests(installedBundles, toInstall)
	if err := install.New(ctx).Install(toInstallFiles, mom); err != nil {
		return err
	}

	// Tracking happens only after reconciliation succeeded.
	installedCount, depsInstalled := 0, 0
	for _, b := range toInstall {
		wasInstalled := track.IsInstalled(ctx, b.Component)
		if err := track.Installed(ctx, b.Component); err != nil {
			ctx.Log.Warn("could not mark %s installed: %v\n", b.Component, err)
			continue
		}
		if wasInstalled {
			continue
		}
		if contains(names, b.Component) {
			installedCount++
			track.Tracked(ctx, b.Component)
		} else {
			depsInstalled++
		}
	}

	var finalErr error
	if invalidProvided {
		finalErr = status.Errorf(status.InvalidBundle, "one or more invalid bundles were provided")
	}
	m.printAddSummary(requested, installedCount, alreadyInstalled, depsInstalled)
	return finalErr
}

func (m *Manager) printAddSummary(requested, installed, already, deps int) {
	ctx := m.ctx
	failed := requested - installed - already

	if failed > 0 {
		ctx.Log.Print("Failed to install %d of %d bundles\n", failed, requested-already)
	} else if installed > 0 {
		ctx.Log.Print("Successfully installed %d bundle%s\n", installed, plural(installed))
	}
	if deps > 0 {
		if deps == 1 {
			ctx.Log.Print("1 bundle was installed as dependency\n")
		} else {
			ctx.Log.Print("%d bundles were installed as dependencies\n", deps)
		}
	}
	if already > 0 {
		if already == 1 {
			ctx.Log.Print("1 bundle was already installed\n")
		} else {
			ctx.Log.Print("%d bundles were already installed\n", already)
		}
	}
}

// inMoM filters names down to bundles the MoM actually lists; stale
// markers from older releases must not abort the whole operation.
func inMoM(mom *manifest.Manifest, names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if mom.FindBundle(n) != nil {
			out = append(out, n)
		}
	}
	return out
}

func mergeManifests(a, b []*manifest.Manifest) []*manifest.Manifest {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]*manifest.Manifest, 0, len(a)+len(b))
	for _, m := range append(append([]*manifest.Manifest{}, a...), b...) {
		if seen[m.Component] {
			continue
		}
		seen[m.Component] = true
		out = append(out, m)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
