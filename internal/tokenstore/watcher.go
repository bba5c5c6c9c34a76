package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"outlookmcp/pkg/logging"
)

// Watch reports writes of identity's token file. The returned channel
// receives a value after each observed write (bursts are coalesced) and is
// closed when ctx is done. Watch uses fsnotify on the token directory and
// falls back to polling the file's modification time.
func (s *Store) Watch(ctx context.Context, identity string) (<-chan struct{}, error) {
	path, err := s.Path(identity)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, err
	}

	ch := make(chan struct{}, 1)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("TokenStore", "fsnotify not available, falling back to polling: %v", err)
		go s.poll(ctx, path, ch)
		return ch, nil
	}
	if err := watcher.Add(s.dir); err != nil {
		logging.Warn("TokenStore", "Failed to watch directory %s, falling back to polling: %v", s.dir, err)
		watcher.Close()
		go s.poll(ctx, path, ch)
		return ch, nil
	}

	go s.processEvents(ctx, watcher, filepath.Base(path), ch)
	return ch, nil
}

func (s *Store) processEvents(ctx context.Context, watcher *fsnotify.Watcher, name string, ch chan struct{}) {
	defer close(ch)
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			// an atomic save shows up as Create on the target name
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			notify(ch)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("TokenStore", err, "fsnotify error")
		}
	}
}

func (s *Store) poll(ctx context.Context, path string, ch chan struct{}) {
	defer close(ch)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var last time.Time
	if info, err := os.Stat(path); err == nil {
		last = info.ModTime()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if info.ModTime().After(last) {
				last = info.ModTime()
				notify(ch)
			}
		}
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
