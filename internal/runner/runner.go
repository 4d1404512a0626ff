package runner

import (
	"context"
	"fmt"
	"os/exec"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opencanvas/canvasd/internal/canvas"
)

const defaultTimeout = 30 * time.Second

// interpreters maps file extensions to the command that runs them. The file
// path is appended as the last argument.
var interpreters = map[string][]string{
	".py": {"python3"},
	".js": {"node"},
	".sh": {"sh"},
	".go": {"go", "run"},
}

// Runner executes a file node inside the workspace root, bounded by a
// timeout, and mirrors the run into node status and the output log.
type Runner struct {
	store   *canvas.Store
	timeout time.Duration
	log     *zap.Logger
}

func New(store *canvas.Store, timeout time.Duration, log *zap.Logger) *Runner {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{store: store, timeout: timeout, log: log}
}

// Run executes the node's file. The node goes running for the duration and
// ends idle on success or error on a nonzero exit.
func (r *Runner) Run(ctx context.Context, fileID string) error {
	view, err := r.store.GetFile(fileID)
	if err != nil {
		return err
	}
	argv, ok := interpreters[strings.ToLower(path.Ext(view.FileName))]
	if !ok {
		return fmt.Errorf("%w: no interpreter for %s", canvas.ErrInvalidInput, view.FileName)
	}
	if err := r.store.UpdateFileStatus(fileID, canvas.StatusRunning); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	args := append(append([]string(nil), argv[1:]...), view.FileName)
	cmd := exec.CommandContext(runCtx, argv[0], args...)
	cmd.Dir = r.store.WorkspaceRoot()
	output, runErr := cmd.CombinedOutput()

	for _, line := range strings.Split(strings.TrimRight(string(output), "\n"), "\n") {
		if line != "" {
			r.store.PublishOutput(fileID, line)
		}
	}

	finalStatus := canvas.StatusIdle
	if runErr != nil {
		finalStatus = canvas.StatusError
		r.store.PublishOutput(fileID, runErr.Error())
		r.log.Warn("run failed", zap.String("file", view.FileName), zap.Error(runErr))
	}
	if err := r.store.UpdateFileStatus(fileID, finalStatus); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("run %s: %w", view.FileName, runErr)
	}
	return nil
}
