// Package digest computes and verifies the content hashes that identify
// files in manifests and in the staging area.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	billy "github.com/go-git/go-billy/v5"
)

// ZeroHash is the digest recorded for deleted entries.
var ZeroHash = hex.EncodeToString(make([]byte, sha256.Size))

// Compute returns the hex digest of a byte blob.
func Compute(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ComputeFile hashes a regular file's content, or a symlink's target.
func ComputeFile(fs billy.Filesystem, path string) (string, error) {
	info, err := fs.Lstat(path)
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := fs.Readlink(path)
		if err != nil {
			return "", err
		}
		return Compute([]byte(target)), nil
	}

	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify reports whether the content at path hashes to expected.
func Verify(fs billy.Filesystem, path, expected string) bool {
	got, err := ComputeFile(fs, path)
	if err != nil {
		return false
	}
	return got == expected
}
