// Package config loads the swup client configuration and builds the
// operation context threaded through the core. Construction happens once
// per invocation; nothing here is process-global.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/imgos/swup/internal/msg"
	"github.com/imgos/swup/internal/status"
)

// DefaultConfigPath is where the client config lives on the target system.
const DefaultConfigPath = "/etc/swup/config.hcl"

// Config is the on-disk client configuration.
type Config struct {
	PathPrefix    string `hcl:"path_prefix,optional"`
	StateDir      string `hcl:"state_dir,optional"`
	ContentURL    string `hcl:"content_url,optional"`
	MixDir        string `hcl:"mix_dir,optional"`
	SkipOptional  bool   `hcl:"skip_optional_bundles,optional"`
	SkipDiskCheck bool   `hcl:"skip_diskspace_check,optional"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		PathPrefix: "/",
		StateDir:   "/var/lib/swup",
		ContentURL: "/var/lib/swup/mirror",
		MixDir:     "/usr/share/mix",
	}
}

// Load reads an HCL config file, falling back to defaults when the file
// does not exist.
func Load(fs billy.Filesystem, path string) (Config, error) {
	cfg := Defaults()
	data, err := util.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := hclsimple.Decode("config.hcl", data, nil, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "/"
	}
	return cfg, nil
}

// Context carries everything a core operation needs. One Context is built
// per invocation and passed explicitly; operations never reach for globals.
type Context struct {
	Prefix        string
	StateDir      string
	ContentURL    string
	MixDir        string
	SkipOptional  bool
	SkipDiskCheck bool
	Force         bool

	Log *msg.Logger
	FS  billy.Filesystem
}

// NewContext merges a loaded Config into a Context.
func NewContext(cfg Config, fs billy.Filesystem, log *msg.Logger) *Context {
	return &Context{
		Prefix:        cfg.PathPrefix,
		StateDir:      cfg.StateDir,
		ContentURL:    cfg.ContentURL,
		MixDir:        cfg.MixDir,
		SkipOptional:  cfg.SkipOptional,
		SkipDiskCheck: cfg.SkipDiskCheck,
		Log:           log,
		FS:            fs,
	}
}

// BundlesDir is the system view of installed bundles.
func (c *Context) BundlesDir() string {
	return c.FS.Join(c.Prefix, "usr/share/clear/bundles")
}

// TrackingDir holds the manually-installed markers.
func (c *Context) TrackingDir() string {
	return c.FS.Join(c.StateDir, "bundles")
}

// StagedDir is the content-addressed staging area.
func (c *Context) StagedDir() string {
	return c.FS.Join(c.StateDir, "staged")
}

// DownloadDir is scratch space wiped at install start.
func (c *Context) DownloadDir() string {
	return c.FS.Join(c.StateDir, "download")
}

// ManifestCacheDir holds fetched manifests for one version.
func (c *Context) ManifestCacheDir(version int) string {
	return c.FS.Join(c.StateDir, "manifests", strconv.Itoa(version))
}

// TargetPath maps an absolute manifest path into the target tree.
func (c *Context) TargetPath(path string) string {
	return c.FS.Join(c.Prefix, path)
}

// CurrentVersion reads VERSION_ID from the target's os-release file.
func (c *Context) CurrentVersion() (int, error) {
	path := c.FS.Join(c.Prefix, "usr/lib/os-release")
	data, err := util.ReadFile(c.FS, path)
	if err != nil {
		return -1, status.Wrap(status.CurrentVersionUnknown, err, "unable to determine current OS version")
	}
	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(line, "VERSION_ID="); ok {
			v, err := strconv.Atoi(strings.Trim(rest, `"`))
			if err != nil || v < 0 {
				break
			}
			return v, nil
		}
	}
	return -1, status.Errorf(status.CurrentVersionUnknown, "no VERSION_ID in %s", path)
}

// MixEnabled reports whether a local mix overlay exists for a version.
func (c *Context) MixEnabled(version int) bool {
	if c.MixDir == "" {
		return false
	}
	dir := c.FS.Join(c.MixDir, strconv.Itoa(version))
	info, err := c.FS.Stat(dir)
	return err == nil && info.IsDir()
}
