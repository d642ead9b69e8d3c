// Package bundle orchestrates the bundle operations: it drives the
// manifest store, the dependency resolver, the consolidator, disk
// admission, and the staged installer or remover, then settles tracking
// and telemetry.
package bundle

import (
	"github.com/imgos/swup/internal/config"
	"github.com/imgos/swup/internal/fetch"
	"github.com/imgos/swup/internal/install"
	"github.com/imgos/swup/internal/manifest"
	"github.com/imgos/swup/internal/status"
	"github.com/imgos/swup/internal/store"
	"github.com/imgos/swup/internal/telemetry"
)

// Manager wires one operation's collaborators together.
type Manager struct {
	ctx      *config.Context
	store    *store.Store
	fetcher  fetch.Fetcher
	unpacker fetch.Unpacker
	tele     telemetry.Recorder
	avail    install.AvailFunc
}

// Option tweaks a Manager.
type Option func(*Manager)

// WithUnpacker enables pack downloads.
func WithUnpacker(u fetch.Unpacker) Option {
	return func(m *Manager) { m.unpacker = u }
}

// WithTelemetry sets the operation recorder.
func WithTelemetry(r telemetry.Recorder) Option {
	return func(m *Manager) { m.tele = r }
}

// WithAvailFunc overrides the free-space probe.
func WithAvailFunc(f install.AvailFunc) Option {
	return func(m *Manager) { m.avail = f }
}

// NewManager builds a Manager for one invocation.
func NewManager(ctx *config.Context, fetcher fetch.Fetcher, opts ...Option) *Manager {
	m := &Manager{
		ctx:     ctx,
		store:   store.New(ctx, fetcher),
		fetcher: fetcher,
		tele:    telemetry.Nop{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// loadMoM resolves the current version and loads its MoM, honoring any
// local mix overlay.
func (m *Manager) loadMoM() (int, *manifest.Manifest, error) {
	version, err := m.ctx.CurrentVersion()
	if err != nil {
		m.ctx.Log.Error("Unable to determine current OS version\n")
		return -1, nil, err
	}
	mom, err := m.store.LoadMoM(version, m.ctx.MixEnabled(version))
	if err != nil {
		m.ctx.Log.Error("Cannot load official manifest MoM for version %d\n", version)
		return version, nil, err
	}
	return version, mom, nil
}

// record spools the operation outcome; telemetry must never fail the
// operation itself.
func (m *Manager) record(op string, bundles []string, version int, err error, bytes int64) {
	recErr := m.tele.Record(telemetry.Event{
		Operation: op,
		Bundles:   bundles,
		Version:   version,
		Result:    int(status.CodeOf(err)),
		Bytes:     bytes,
	})
	if recErr != nil {
		m.ctx.Log.Debug("telemetry record failed: %v\n", recErr)
	}
}
