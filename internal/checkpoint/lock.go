package checkpoint

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"setlist/internal/services"
)

// Lock is an exclusive hold on one source.
type Lock struct {
	path string
	lock *flock.Flock
}

// Lock takes the per-source lock for identity without waiting. A source that
// is already locked by another run yields services.ErrSourceBusy.
func (s *Store) Lock(identity SourceIdentity) (*Lock, error) {
	path := filepath.Join(s.lockDir, lockName(identity.Path))
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrCheckpointIO, "checkpoint", "lock", path, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrSourceBusy, "checkpoint", "lock",
			fmt.Sprintf("another run is processing %s", identity.Path), nil)
	}
	return &Lock{path: path, lock: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock. The lock file stays behind for reuse.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
