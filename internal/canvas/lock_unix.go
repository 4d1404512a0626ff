//go:build unix

package canvas

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// ProcessLock holds an advisory flock on a lock file inside the workspace
// root so only one canvasd writes a given workspace at a time.
type ProcessLock struct {
	file *os.File
}

const lockFileName = ".canvasd.lock"

// AcquireProcessLock takes the lock without blocking. A held lock reports
// who holds it implicitly via the error.
func AcquireProcessLock(workspaceRoot string) (*ProcessLock, error) {
	if err := os.MkdirAll(workspaceRoot, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(workspaceRoot, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("workspace %s is locked by another process: %w", workspaceRoot, err)
	}
	return &ProcessLock{file: f}, nil
}

// Release drops the lock. Safe to call once.
func (l *ProcessLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return err
	}
	return closeErr
}
