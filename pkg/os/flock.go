package os

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("file is locked by another process")

type Flock struct {
	f *flock.Flock
}

// NewFileLock makes an exclusive process lock on the file,
// a temp file is used with an empty path.
func NewFileLock(path string) (*Flock, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), "solive.lock")
	}
	if err := CheckCreateDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return &Flock{f: flock.New(path)}, nil
}

// TryLock takes the lock without waiting.
func (f *Flock) TryLock() error {
	ok, err := f.f.TryLock()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

func (f *Flock) Unlock() error { return f.f.Unlock() }
func (f *Flock) Path() string  { return f.f.Path() }
