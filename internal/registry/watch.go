package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"pagetree-cli/internal/model"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Check vets a parsed definition set before it replaces the current one.
type Check func(defs []model.Definition) error

// Watch reloads s from path whenever the file is written or recreated, until ctx is done.
// A file that fails to parse or is rejected by check keeps the previous definitions in place.
// A nil check accepts every set that parses.
func (s *Static) Watch(ctx context.Context, path string, logger *log.Logger, check Check) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors often replace the file instead of writing in place.
	if err := w.Add(filepath.Dir(absPath)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(absPath), err)
	}
	if logger == nil {
		logger = log.Default()
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != absPath {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if err := s.reload(absPath, check); err != nil {
					logger.Warn("components reload failed", "path", absPath, "err", err)
					continue
				}
				logger.Info("components reloaded", "path", absPath, "count", len(s.List()))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("components watcher error", "err", err)
			}
		}
	}()
	return nil
}

func (s *Static) reload(path string, check Check) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	defs, err := Parse(string(b))
	if err != nil {
		return err
	}
	if check != nil {
		if err := check(defs); err != nil {
			return fmt.Errorf("rejected: %w", err)
		}
	}
	s.Replace(defs)
	return nil
}
