package syncmgr

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/cellarsync/cellarsync/internal/utils"
)

const lockFileName = "cellarsync.lock"

var ErrDataDirLocked = errors.New("data directory locked by another cellarsync process")

// DataDirLock keeps two processes from syncing the same store.
type DataDirLock struct {
	flock *flock.Flock
}

func NewDataDirLock(dataDir string) *DataDirLock {
	return &DataDirLock{flock: flock.New(filepath.Join(dataDir, lockFileName))}
}

// Lock takes the lock without waiting. It returns ErrDataDirLocked when another process holds it.
func (l *DataDirLock) Lock() error {
	if err := utils.EnsureParent(l.flock.Path()); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock data directory: %w", err)
	}
	if !locked {
		return ErrDataDirLocked
	}
	return nil
}

func (l *DataDirLock) Unlock() error {
	if !l.flock.Locked() {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock data directory: %w", err)
	}
	return nil
}
