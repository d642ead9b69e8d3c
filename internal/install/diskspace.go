package install

import (
	"golang.org/x/sys/unix"

	"github.com/imgos/swup/internal/config"
	"github.com/imgos/swup/internal/manifest"
	"github.com/imgos/swup/internal/status"
)

// fudgeFactor pads the declared content size; payloads land twice (staged
// plus final) for a moment and manifests undercount metadata.
const fudgeFactor = 1.1

// AvailFunc reports the free bytes on the filesystem holding path.
type AvailFunc func(path string) (int64, error)

// StatfsAvail is the production probe.
func StatfsAvail(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return -1, err
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}

// CheckDiskSpace admits or rejects a planned install based on the content
// size of the bundles about to land. Only <prefix>/usr/ is consulted;
// bundles placing files elsewhere are not accounted, matching the
// documented limitation.
func CheckDiskSpace(ctx *config.Context, toInstall []*manifest.Manifest, avail AvailFunc) error {
	if ctx.SkipDiskCheck {
		return nil
	}
	if avail == nil {
		avail = StatfsAvail
	}

	required := int64(float64(manifest.TotalContentSize(toInstall)) * fudgeFactor)
	free, err := avail(ctx.FS.Join(ctx.Prefix, "usr"))
	if err != nil || free < 0 {
		ctx.Log.Error("Unable to determine free space on filesystem\n")
		return status.Wrap(status.DiskSpaceError, err, "unable to determine free space")
	}
	if required > free {
		ctx.Log.Error("Bundle too large by %dM\n", (required-free)/1000/1000)
		ctx.Log.Info("NOTE: currently, swup only checks /usr/ (or the passed-in path with /usr/ appended) for available space\n")
		ctx.Log.Info("To skip this error and install anyways, add the --skip-diskspace-check flag to your command\n")
		return status.Errorf(status.DiskSpaceError, "bundle needs %d bytes, %d available", required, free)
	}
	return nil
}
