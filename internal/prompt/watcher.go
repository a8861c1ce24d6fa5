package prompt

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"vigil/internal/logging"
)

// Watch reloads the pack whenever the template file changes on disk.
// A reload that fails validation is rejected and the previous templates
// stay live. Returns when ctx is cancelled.
func (p *Pack) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}
	log := logging.Get(logging.CategoryBoot)
	log.Infow("watching template pack", "path", path)

	// Editors write in bursts; coalesce events within a short window.
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				pending = time.After(250 * time.Millisecond)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnw("template watcher error", "error", err)
		case <-pending:
			pending = nil
			if err := p.reload(path); err != nil {
				log.Errorw("template pack reload rejected, keeping previous", "error", err)
			}
		}
	}
}
