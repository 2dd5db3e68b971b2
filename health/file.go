package health

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// FileCheckConfig configures the file health check.
type FileCheckConfig struct {
	// Interval is the sleep between periodic runs.
	// Default: 30 seconds
	Interval time.Duration

	// Files are checked in order. Empty means the check always passes.
	Files []string
}

// FileCheck verifies that every configured file exists and is non-empty.
type FileCheck struct {
	config FileCheckConfig
}

// NewFileCheck creates a new file health check.
func NewFileCheck(config FileCheckConfig) *FileCheck {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	files := make([]string, len(config.Files))
	copy(files, config.Files)
	config.Files = files

	return &FileCheck{config: config}
}

// Name returns the name of this check.
func (c *FileCheck) Name() string {
	return "FileCheck"
}

// Interval returns the sleep between periodic runs.
func (c *FileCheck) Interval() time.Duration {
	return c.config.Interval
}

// IsQuickCheck reports true: a stat per file is cheap.
func (c *FileCheck) IsQuickCheck() bool {
	return true
}

// IsEnabled reports true; an empty file list passes vacuously.
func (c *FileCheck) IsEnabled() bool {
	return true
}

// Files returns the configured paths.
func (c *FileCheck) Files() []string {
	files := make([]string, len(c.config.Files))
	copy(files, c.config.Files)
	return files
}

// Run stats each file in order and fails on the first inaccessible or empty one.
func (c *FileCheck) Run(ctx context.Context) error {
	for _, path := range c.config.Files {
		if err := ctx.Err(); err != nil {
			return err
		}

		info, err := os.Stat(path)
		if err != nil {
			return &ProbeError{
				Target: path,
				Reason: fmt.Sprintf("failed to access %s: %v", path, pathCause(err)),
				Err:    err,
			}
		}
		if info.Size() == 0 {
			return &ProbeError{
				Target: path,
				Reason: fmt.Sprintf("file %s is empty", path),
				Err:    ErrFileEmpty,
			}
		}
	}
	return nil
}

// pathCause strips the "stat <path>:" prefix, since the message already names the path.
func pathCause(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}
