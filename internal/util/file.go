package util

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// WriteFileAtomic replaces the file at path with data through a temp file
// in the same directory and a rename. A reader never sees a partially
// written file, and a crash leaves either the old or the new content.
//
// A symlinked path is written through: the link's final target gets the
// new content and the link itself is left in place. An existing target
// keeps its permissions; a new file gets perm.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	target, err := ResolveSymlinks(path)
	if err != nil {
		return err
	}
	if info, err := os.Stat(target); err == nil {
		perm = info.Mode().Perm()
	}
	if err := renameio.WriteFile(target, data, perm, renameio.WithTempDir(filepath.Dir(target))); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}

// maxSymlinkHops bounds link chains so a loop can't spin forever.
const maxSymlinkHops = 40

// ResolveSymlinks follows path through any chain of symlinks and returns
// the final target. The target doesn't have to exist, so a dangling link
// resolves to the file it would create. A path that isn't a link is
// returned unchanged.
func ResolveSymlinks(path string) (string, error) {
	for i := 0; i < maxSymlinkHops; i++ {
		info, err := os.Lstat(path)
		if os.IsNotExist(err) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return path, nil
		}
		dest, err := os.Readlink(path)
		if err != nil {
			return "", fmt.Errorf("read link %s: %w", path, err)
		}
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(filepath.Dir(path), dest)
		}
		path = dest
	}
	return "", fmt.Errorf("too many levels of symlinks at %s", path)
}
