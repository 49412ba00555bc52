// Package watcher monitors the git directory for operation-state changes and
// tells the dashboard to re-query. Only paths inside the git directory are
// watched, never the working tree, so large repositories do not exhaust
// inotify/kqueue watches.
//
// Watched paths:
//   - <gitdir>              → HEAD, index, MERGE_HEAD, REBASE_HEAD, BISECT_*
//   - <gitdir>/refs/heads   → local branch updates
//   - <gitdir>/refs/tags    → tag creation/deletion
//   - <gitdir>/refs/bisect  → good/bad/skip marks
//   - <gitdir>/rebase-merge, rebase-apply → rebase progress
//
// Operation directories come and go; they are added to the watch list as
// soon as they are created.
package watcher

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Event is sent when the watcher detects relevant state changes. Changed
// holds the base names touched during the debounce window, sorted.
type Event struct {
	Changed []string
}

// Touches reports whether any of names changed.
func (e Event) Touches(names ...string) bool {
	for _, n := range names {
		if slices.Contains(e.Changed, n) {
			return true
		}
	}
	return false
}

// operationDirs are created by git while an operation runs.
var operationDirs = []string{"rebase-merge", "rebase-apply", filepath.Join("refs", "bisect")}

// Watch monitors gitDir and sends Event values on the returned channel.
// Rapid bursts are coalesced via the debounce window.
//
// Call the returned stop function to tear down the watcher; the channel is
// closed afterwards.
func Watch(gitDir string, debounce time.Duration, log *zap.Logger) (<-chan Event, func(), error) {
	if log == nil {
		log = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, cerr.Wrap(err, "creating fsnotify watcher")
	}
	if err := w.Add(gitDir); err != nil {
		_ = w.Close()
		return nil, nil, cerr.Wrapf(err, "watching %s", gitDir)
	}

	targets := []string{
		filepath.Join(gitDir, "refs"),
		filepath.Join(gitDir, "refs", "heads"),
		filepath.Join(gitDir, "refs", "tags"),
	}
	for _, d := range operationDirs {
		targets = append(targets, filepath.Join(gitDir, d))
	}
	for _, t := range targets {
		addDir(w, t, log)
	}

	ch := make(chan Event, 1)
	done := make(chan struct{})

	// Jitter spreads the git load when several instances watch one repo.
	jitterRange := int64(debounce / 2)

	go func() {
		defer close(ch)
		var timer *time.Timer
		pending := map[string]struct{}{}

		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if shouldIgnore(ev.Name) {
					continue
				}
				if ev.Has(fsnotify.Create) && isOperationDir(gitDir, ev.Name) {
					addDir(w, ev.Name, log)
				}
				pending[filepath.Base(ev.Name)] = struct{}{}

				d := debounce
				if jitterRange > 0 {
					d += time.Duration(rand.Int64N(jitterRange))
				}
				if timer == nil {
					timer = time.NewTimer(d)
				} else {
					timer.Reset(d)
				}
			case <-timerChan(timer):
				timer = nil
				ev := Event{Changed: make([]string, 0, len(pending))}
				for name := range pending {
					ev.Changed = append(ev.Changed, name)
				}
				slices.Sort(ev.Changed)
				clear(pending)
				select {
				case ch <- ev:
				default:
					// A refresh is already queued; it will re-read everything.
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("watcher error", zap.Error(err))
			case <-done:
				return
			}
		}
	}()

	stop := func() {
		close(done)
		_ = w.Close()
	}

	return ch, stop, nil
}

func addDir(w *fsnotify.Watcher, dir string, log *zap.Logger) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.Add(dir); err != nil {
		log.Debug("watch skipped", zap.String("dir", dir), zap.Error(err))
	}
}

func isOperationDir(gitDir, path string) bool {
	rel, err := filepath.Rel(gitDir, path)
	if err != nil {
		return false
	}
	return slices.Contains(operationDirs, rel)
}

// timerChan returns the timer's channel, or a nil channel if timer is nil.
func timerChan(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// shouldIgnore returns true for events that should not trigger a refresh.
func shouldIgnore(path string) bool {
	base := filepath.Base(path)

	// Lock files are transient; git still holds them when the event fires.
	if strings.HasSuffix(base, ".lock") {
		return true
	}

	if strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".swo") ||
		strings.HasSuffix(base, "~") || strings.HasPrefix(base, ".#") {
		return true
	}

	switch base {
	case "COMMIT_EDITMSG", "gc.log", "FETCH_HEAD", "ORIG_HEAD":
		return true
	}
	return strings.HasPrefix(base, "fsmonitor")
}
