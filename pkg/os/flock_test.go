package os

import (
	"path/filepath"
	"testing"
)

func TestFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "solive.lock")

	a, err := NewFileLock(path)
	if err != nil {
		t.Fatal(err)
	}
	if err = a.TryLock(); err != nil {
		t.Fatalf("first lock: %v", err)
	}
	b, _ := NewFileLock(path)
	if err = b.TryLock(); err != ErrLocked {
		t.Errorf("expected locked, got %v", err)
	}
	if err = a.Unlock(); err != nil {
		t.Fatal(err)
	}
	if err = b.TryLock(); err != nil {
		t.Errorf("lock after unlock: %v", err)
	}
	_ = b.Unlock()

	if !Exists(filepath.Dir(path)) {
		t.Errorf("lock dir was not created")
	}
}
