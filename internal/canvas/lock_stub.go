//go:build !unix

package canvas

import "os"

// ProcessLock is a no-op where flock is unavailable.
type ProcessLock struct{}

func AcquireProcessLock(workspaceRoot string) (*ProcessLock, error) {
	if err := os.MkdirAll(workspaceRoot, 0o755); err != nil {
		return nil, err
	}
	return &ProcessLock{}, nil
}

func (l *ProcessLock) Release() error { return nil }
