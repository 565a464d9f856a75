package faq

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type watcher struct {
	fs   *fsnotify.Watcher
	done chan struct{}
}

// Watch reloads the store whenever its backing file is written or
// replaced. The parent directory is watched so that atomic replacements
// (including Save) are picked up. A file that fails to parse is logged and
// the previous entries stay in place.
func (s *Store) Watch() error {
	if s.path == "" {
		return fmt.Errorf("faq store has no backing file")
	}

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher != nil {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(s.path)); err != nil {
		fw.Close()
		return fmt.Errorf("failed to watch faq directory: %w", err)
	}

	w := &watcher{fs: fw, done: make(chan struct{})}
	s.watcher = w
	go s.watch(w)
	return nil
}

func (s *Store) watch(w *watcher) {
	defer close(w.done)
	target := filepath.Clean(s.path)
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			s.logger.Info("Detected faq file change, reloading...")
			if err := s.Reload(); err != nil {
				s.logger.Error("Failed to reload faq file", zap.Error(err))
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			s.logger.Error("FAQ watcher error", zap.Error(err))
		}
	}
}

// Close stops watching. It is a no-op when Watch was never called.
func (s *Store) Close() error {
	s.watchMu.Lock()
	w := s.watcher
	s.watcher = nil
	s.watchMu.Unlock()

	if w == nil {
		return nil
	}
	err := w.fs.Close()
	<-w.done
	return err
}
