package bundler

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch adds every directory in dirs to an fsnotify watcher and triggers a
// debounced rebuild (~100ms, §4.6) whenever a file inside changes, until
// ctx is done.
//
// Grounded on the wider pack's fsnotify-based debounced-rebuild pattern
// (a pending flag plus a timer reset on every event, drained once by the
// timer firing instead of firing a rebuild per raw event).
func (s *Server) Watch(ctx context.Context, dirs []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return err
		}
	}

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		pending := false

		for {
			var timerCh <-chan time.Time
			if timer != nil {
				timerCh = timer.C
			}

			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				pending = true
				if timer == nil {
					timer = time.NewTimer(s.watchDebounce)
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(s.watchDebounce)
				}
			case <-timerCh:
				timer = nil
				if !pending {
					continue
				}
				pending = false
				if err := s.Build(ctx); err != nil {
					s.logger.Errorf("bundler", "rebuild after file change: %s", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Errorf("bundler", "watcher: %s", err)
			}
		}
	}()

	return nil
}
