package memstore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchFile reloads path whenever it is written, until ctx is done.
// The parent directory is watched so editors that replace the file are handled.
func (s *Store) WatchFile(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create seed watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	s.log.Info("watching seed file", "path", abs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := s.LoadFile(abs); err != nil {
				s.log.Error(err, "failed to reload seed file")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Error(err, "seed watcher error")
		}
	}
}
