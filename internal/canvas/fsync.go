package canvas

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// fileSystemSync performs the physical half of canvas operations. The
// metadata document is the source of truth; these helpers make the workspace
// directory agree with it.
type fileSystemSync struct {
	root string
	log  *zap.Logger
}

// Names in the workspace root that belong to the engine, not the project.
var reservedWorkspaceNames = map[string]bool{
	metadataFileName: true,
	edgesFileName:    true,
}

func newFileSystemSync(root string, log *zap.Logger) (*fileSystemSync, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: workspace root is empty", ErrInvalidInput)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &fileSystemSync{root: abs, log: log}, nil
}

func (s *fileSystemSync) abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// materialize creates the file for a node if it does not exist yet.
// Placeholders are intentionally blank.
func (s *fileSystemSync) materialize(rel string) error {
	target := s.abs(rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("ensure dir for %s: %w", rel, err)
	}
	if _, err := os.Stat(target); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", rel, err)
	}
	if err := os.WriteFile(target, nil, 0o644); err != nil {
		return fmt.Errorf("materialize %s: %w", rel, err)
	}
	return nil
}

// ensureDir creates a folder node's directory.
func (s *fileSystemSync) ensureDir(rel string) error {
	if err := os.MkdirAll(s.abs(rel), 0o755); err != nil {
		return fmt.Errorf("ensure dir %s: %w", rel, err)
	}
	return nil
}

func (s *fileSystemSync) writeContent(rel, content string) error {
	target := s.abs(rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("ensure dir for %s: %w", rel, err)
	}
	return writeFileAtomic(target, []byte(content))
}

func (s *fileSystemSync) readContent(rel string) (string, error) {
	raw, err := os.ReadFile(s.abs(rel))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rel, err)
	}
	return string(raw), nil
}

// move relocates a file, creating the destination directory. A missing
// source is re-materialized at the destination instead of failing.
func (s *fileSystemSync) move(oldRel, newRel string) error {
	if oldRel == newRel {
		return nil
	}
	dst := s.abs(newRel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("ensure dir for %s: %w", newRel, err)
	}
	src := s.abs(oldRel)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		s.log.Warn("source missing on move, materializing destination",
			zap.String("from", oldRel), zap.String("to", newRel))
		return s.materialize(newRel)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move %s to %s: %w", oldRel, newRel, err)
	}
	return nil
}

// remove deletes a node's physical file. Failures are logged and swallowed;
// the leftover file surfaces as an orphan.
func (s *fileSystemSync) remove(rel string) {
	err := os.Remove(s.abs(rel))
	if err != nil && !os.IsNotExist(err) {
		s.log.Warn("failed to delete workspace file", zap.String("path", rel), zap.Error(err))
	}
}

// removeDirIfEmpty prunes a folder node's directory after a cascade. A
// non-empty directory (orphans inside) is left alone.
func (s *fileSystemSync) removeDirIfEmpty(rel string) {
	if rel == "" || rel == "." {
		return
	}
	if err := os.Remove(s.abs(rel)); err != nil && !os.IsNotExist(err) {
		s.log.Debug("keeping non-empty folder directory", zap.String("path", rel))
	}
}

// orphans walks the workspace and returns files no metadata record tracks,
// as sorted workspace-relative paths. Engine documents, temp files, and
// dotfiles are skipped.
func (s *fileSystemSync) orphans(tracked map[string]bool) ([]string, error) {
	found := []string{}
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != s.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if reservedWorkspaceNames[rel] {
			return nil
		}
		if !tracked[rel] {
			found = append(found, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan workspace: %w", err)
	}
	sort.Strings(found)
	return found, nil
}
