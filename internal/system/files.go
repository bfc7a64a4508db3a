package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/rayzilt/aipscan-deploy/internal/models"
)

// FileManager places rendered artifacts and managed directories.
type FileManager interface {
	// EnsureFile places the artifact atomically and reports whether content
	// or metadata had to change.
	EnsureFile(ctx context.Context, artifact models.Artifact) (bool, error)
	// EnsureDir creates the directory with the given ownership and reports
	// whether anything had to change.
	EnsureDir(ctx context.Context, path string, mode fs.FileMode, owner, group string) (bool, error)
}

// OSFileManager manages files on the local filesystem. Writes are atomic:
// content goes to a temporary file in the target directory and is renamed
// into place. An empty artifact owner skips ownership management.
type OSFileManager struct {
	log *zap.SugaredLogger
}

func NewOSFileManager() *OSFileManager {
	return &OSFileManager{log: zap.S().Named("files")}
}

func (m *OSFileManager) EnsureFile(_ context.Context, artifact models.Artifact) (bool, error) {
	current, err := os.ReadFile(artifact.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to read %s: %w", artifact.Path, err)
	}
	exists := err == nil

	contentMatches := exists && bytes.Equal(current, artifact.Content)
	metadataMatches := false
	if exists {
		metadataMatches, err = m.metadataMatches(artifact.Path, artifact.Mode, artifact.Owner, artifact.Group)
		if err != nil {
			return false, err
		}
	}
	if contentMatches && metadataMatches {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(artifact.Path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", filepath.Dir(artifact.Path), err)
	}

	if contentMatches {
		// content is already right, only mode or ownership drifted
		if err := m.applyMetadata(artifact.Path, artifact.Mode, artifact.Owner, artifact.Group); err != nil {
			return false, err
		}
		m.log.Infow("file metadata fixed", "name", artifact.Name, "path", artifact.Path)
		return true, nil
	}

	if err := m.write(artifact); err != nil {
		return false, err
	}
	m.log.Infow("file placed", "name", artifact.Name, "path", artifact.Path)
	return true, nil
}

func (m *OSFileManager) EnsureDir(_ context.Context, path string, mode fs.FileMode, owner, group string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("%s exists and is not a directory", path)
		}
		matches, err := m.metadataMatches(path, mode, owner, group)
		if err != nil {
			return false, err
		}
		if matches {
			return false, nil
		}
		if err := m.applyMetadata(path, mode, owner, group); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := os.MkdirAll(path, mode); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := m.applyMetadata(path, mode, owner, group); err != nil {
		return false, err
	}
	m.log.Infow("directory created", "path", path)
	return true, nil
}

func (m *OSFileManager) write(artifact models.Artifact) error {
	dir := filepath.Dir(artifact.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(artifact.Path)+".*")
	if err != nil {
		return fmt.Errorf("failed to stage %s: %w", artifact.Path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(artifact.Content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to stage %s: %w", artifact.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to stage %s: %w", artifact.Path, err)
	}
	if err := m.applyMetadata(tmp.Name(), artifact.Mode, artifact.Owner, artifact.Group); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), artifact.Path); err != nil {
		return fmt.Errorf("failed to place %s: %w", artifact.Path, err)
	}
	return nil
}

func (m *OSFileManager) metadataMatches(path string, mode fs.FileMode, owner, group string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Mode().Perm() != mode.Perm() {
		return false, nil
	}
	if owner == "" {
		return true, nil
	}

	uid, gid, err := lookupIDs(owner, group)
	if err != nil {
		return false, err
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return true, nil
	}
	return int(stat.Uid) == uid && int(stat.Gid) == gid, nil
}

func (m *OSFileManager) applyMetadata(path string, mode fs.FileMode, owner, group string) error {
	if err := os.Chmod(path, mode.Perm()); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if owner == "" {
		return nil
	}
	uid, gid, err := lookupIDs(owner, group)
	if err != nil {
		return err
	}
	if err := os.Chown(path, uid, gid); err != nil {
		return fmt.Errorf("failed to chown %s: %w", path, err)
	}
	return nil
}

func lookupIDs(owner, group string) (int, int, error) {
	u, err := user.Lookup(owner)
	if err != nil {
		return 0, 0, fmt.Errorf("unknown user %s: %w", owner, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, fmt.Errorf("non-numeric uid for %s: %w", owner, err)
	}

	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return 0, 0, fmt.Errorf("non-numeric gid for %s: %w", owner, err)
	}
	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			return 0, 0, fmt.Errorf("unknown group %s: %w", group, err)
		}
		gid, err = strconv.Atoi(g.Gid)
		if err != nil {
			return 0, 0, fmt.Errorf("non-numeric gid for %s: %w", group, err)
		}
	}
	return uid, gid, nil
}
