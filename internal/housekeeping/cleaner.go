// Package housekeeping removes temporary upload artefacts in the background.
package housekeeping

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Cleaner runs best-effort deletion passes off the request path.
type Cleaner struct {
	enabled bool
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewCleaner returns a cleaner. A disabled cleaner ignores Schedule calls.
func NewCleaner(enabled bool, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{enabled: enabled, logger: logger.With("component", "housekeeping")}
}

// Schedule starts a background pass over paths and returns immediately.
// Failures are logged, never reported to the caller.
func (c *Cleaner) Schedule(paths ...string) {
	if c == nil || !c.enabled || len(paths) == 0 {
		return
	}
	paths = append([]string(nil), paths...)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.logger.Info("housekeeping started", "paths", len(paths))
		if err := RemovePaths(paths); err != nil {
			c.logger.Error("housekeeping failed", "paths", paths, "err", err)
			return
		}
		c.logger.Info("housekeeping completed", "paths", len(paths))
	}()
}

// Wait blocks until every scheduled pass has finished.
func (c *Cleaner) Wait() {
	if c == nil {
		return
	}
	c.wg.Wait()
}

// RemovePaths deletes files and whole directory trees. Missing paths are
// skipped. It stops at the first failure.
func RemovePaths(paths []string) error {
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		info, err := os.Lstat(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		if info.IsDir() {
			if err := removeTree(p); err != nil {
				return err
			}
			continue
		}
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

// removeTree deletes children depth-first, then the directory itself.
// Symlinks are unlinked, never followed.
func removeTree(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		child := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := removeTree(child); err != nil {
				return err
			}
			continue
		}
		if err := os.Remove(child); err != nil {
			return fmt.Errorf("remove %s: %w", child, err)
		}
	}
	if err := os.Remove(dir); err != nil {
		return fmt.Errorf("remove dir %s: %w", dir, err)
	}
	return nil
}
