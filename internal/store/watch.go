package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces bursts of events such as the write+rename pair
// produced by a single Save.
const watchDebounce = 150 * time.Millisecond

// Watch reports changes to project files in the store directory. One value
// is sent per quiet period after a burst of changes; sends never block, so
// a slow reader sees a single pending notification. The channel is closed
// when ctx is done.
func (s *FileStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: watch: create directory: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("store: watch: %w", err)
	}
	if err := fw.Add(s.dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("store: watch %s: %w", s.dir, err)
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer fw.Close()

		timer := time.NewTimer(watchDebounce)
		timer.Stop()
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if !isProjectFile(filepath.Base(ev.Name)) {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) ||
					ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					timer.Reset(watchDebounce)
				}
			case <-timer.C:
				select {
				case changes <- struct{}{}:
				default:
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				log.Printf("WARNING: store watch %s: %v", s.dir, err)
			}
		}
	}()
	return changes, nil
}
