package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	xxhash "github.com/OneOfOne/xxhash"
)

// SourceIdentity pins a progress record to one version of a file.
type SourceIdentity struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// IdentityOf stats path and returns its identity. The path is made absolute
// so the same file always maps to the same record.
func IdentityOf(path string) (SourceIdentity, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return SourceIdentity{}, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return SourceIdentity{}, fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return SourceIdentity{}, fmt.Errorf("source %q is a directory", abs)
	}
	return SourceIdentity{Path: abs, Size: info.Size(), ModTime: info.ModTime().UTC()}, nil
}

// Digest returns a stable hex digest of the identity.
func (id SourceIdentity) Digest() string {
	key := id.Path + "\x00" + strconv.FormatInt(id.Size, 10) + "\x00" + strconv.FormatInt(id.ModTime.UnixNano(), 10)
	return fmt.Sprintf("%016x", xxhash.Checksum64([]byte(key)))
}

// lockName maps a source path to its lock file name. The lock is keyed by
// path alone so an edited file still conflicts with a run on its old self.
func lockName(path string) string {
	return fmt.Sprintf("%016x.lock", xxhash.Checksum64([]byte(path)))
}
