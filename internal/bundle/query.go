package bundle

import (
	"sort"

	"github.com/imgos/swup/internal/manifest"
	"github.com/imgos/swup/internal/msg"
	"github.com/imgos/swup/internal/resolve"
	"github.com/imgos/swup/internal/status"
	"github.com/imgos/swup/internal/track"
)

// ListAll prints every bundle the current release publishes.
func (m *Manager) ListAll() error {
	_, mom, err := m.loadMoM()
	if err != nil {
		return err
	}

	names := make([]*manifest.File, 0, len(mom.Files))
	for _, f := range mom.Files {
		if f.Type == manifest.TypeManifest {
			names = append(names, f)
		}
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Path < names[j].Path })
	for _, f := range names {
		m.ctx.Log.Print("%s\n", f.PrintableName())
	}
	return nil
}

// ListLocal prints the bundles installed on the system. The MoM is only
// needed to flag experimental bundles; listing proceeds without it.
func (m *Manager) ListLocal() error {
	var mom *manifest.Manifest
	if version, err := m.ctx.CurrentVersion(); err == nil {
		mom, err = m.store.LoadMoM(version, m.ctx.MixEnabled(version))
		if err != nil {
			m.ctx.Log.Warn("Could not determine which installed bundles are experimental\n")
		}
	}

	installed, err := track.InstalledBundles(m.ctx)
	if err != nil {
		m.ctx.Log.Error("couldn't open bundles directory\n")
		return status.Wrap(status.CouldntListDir, err, "couldn't list %s", m.ctx.BundlesDir())
	}

	for _, name := range installed {
		if mom != nil {
			if ref := mom.FindBundle(name); ref != nil {
				m.ctx.Log.Print("%s\n", ref.PrintableName())
				continue
			}
		}
		m.ctx.Log.Print("%s\n", name)
	}
	return nil
}

// ShowIncluded prints the transitive include closure of one bundle.
func (m *Manager) ShowIncluded(name string) error {
	_, mom, err := m.loadMoM()
	if err != nil {
		return err
	}

	subs := resolve.NewSubSet()
	r := resolve.AddSubscriptions(m.ctx, []string{name}, subs, mom, m.store, true, 0)
	if r.Err {
		m.ctx.Log.Error("Processing error - Aborting\n")
		return status.Errorf(status.CouldntLoadManifest, "could not resolve includes of %q", name)
	}
	if r.BadName {
		m.ctx.Log.Error("Bad bundle name detected - Aborting\n")
		return status.Errorf(status.InvalidBundle, "bundle %q is invalid", name)
	}
	if !r.New {
		return status.Errorf(status.UnexpectedCondition, "bundle %q produced no subscriptions", name)
	}

	deps, err := m.store.Recurse(mom, subs.Components())
	if err != nil {
		m.ctx.Log.Error("Cannot load included bundles\n")
		return err
	}

	if len(deps) == 1 {
		m.ctx.Log.Info("No included bundles\n")
		return nil
	}

	m.ctx.Log.Info("Bundles included by %s:\n\n", name)
	for _, dep := range deps {
		if dep.Component == name {
			continue
		}
		m.ctx.Log.Print("%s\n", dep.Component)
	}
	return nil
}

// ShowRequiredBy prints which bundles depend on one bundle. With all set,
// every published bundle is considered; otherwise only installed ones,
// and the target itself must be installed.
func (m *Manager) ShowRequiredBy(name string, all bool) error {
	if !all && !track.IsInstalled(m.ctx, name) {
		m.ctx.Log.Info("Bundle \"%s\" does not seem to be installed\n", name)
		m.ctx.Log.Info("       try passing --all to check uninstalled bundles\n")
		return status.Errorf(status.BundleNotTracked, "bundle %q is not installed", name)
	}

	_, mom, err := m.loadMoM()
	if err != nil {
		return err
	}

	if mom.FindBundle(name) == nil {
		m.ctx.Log.Error("Bundle \"%s\" is invalid, aborting dependency list\n", name)
		return status.Errorf(status.InvalidBundle, "bundle %q is invalid", name)
	}

	var consider []string
	if all {
		for _, f := range mom.Files {
			if f.Type == manifest.TypeManifest {
				consider = append(consider, f.Path)
			}
		}
	} else {
		installed, _ := track.InstalledBundles(m.ctx)
		consider = inMoM(mom, installed)
	}

	mom.Submanifests, err = m.store.Recurse(mom, consider)
	if err != nil {
		m.ctx.Log.Error("Cannot load MoM sub-manifests\n")
		return err
	}

	deps := resolve.RequiredBy(mom, name, nil)
	if deps.Count() == 0 {
		m.ctx.Log.Info("No bundles have %s as a dependency\n", name)
		return nil
	}

	scope := "Installed"
	if all {
		scope = "All installable and installed"
	}
	m.ctx.Log.Info("%s bundles that have %s as a dependency:\n", scope, name)
	if m.ctx.Log.Level() >= msg.Verbose {
		m.ctx.Log.Print("%s", deps.Render())
	} else {
		for _, dep := range deps.Names {
			m.ctx.Log.Print(" - %s\n", dep)
		}
	}
	m.ctx.Log.Info("\nBundle '%s' is required by %d bundle%s\n", name, deps.Count(), plural(deps.Count()))
	return nil
}
