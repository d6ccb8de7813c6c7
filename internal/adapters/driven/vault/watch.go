package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Op is the kind of change a watch event reports.
type Op int

const (
	// OpCreated means a file appeared.
	OpCreated Op = iota + 1
	// OpUpdated means a file was written.
	OpUpdated
	// OpRemoved means a file was deleted or renamed away.
	OpRemoved
)

func (o Op) String() string {
	switch o {
	case OpCreated:
		return "created"
	case OpUpdated:
		return "updated"
	case OpRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a file change seen by Watch. It is delivered after the link
// index has been refreshed.
type Event struct {
	Path string
	Op   Op
}

// settleDelay batches bursts of filesystem events into one rescan.
const settleDelay = 100 * time.Millisecond

// Watch refreshes the link index whenever files under the vault change and
// reports each change on the returned channel. The channel is closed when
// ctx is done. Only one watch may run at a time.
func (v *Vault) Watch(ctx context.Context) (<-chan Event, error) {
	v.watchMu.Lock()
	defer v.watchMu.Unlock()

	if v.closed {
		return nil, ErrClosed
	}
	if v.watcher != nil {
		return nil, errors.New("vault is already being watched")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := v.addDirs(w, v.root); err != nil {
		_ = w.Close()
		return nil, err
	}
	v.watcher = w

	events := make(chan Event, 16)
	go v.watchLoop(ctx, w, events)
	return events, nil
}

func (v *Vault) watchLoop(ctx context.Context, w *fsnotify.Watcher, out chan<- Event) {
	defer close(out)
	defer v.stopWatcher(w)

	timer := time.NewTimer(settleDelay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	var pending []Event
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			change, ok := v.handleFsEvent(w, event)
			if !ok {
				continue
			}
			pending = append(pending, change)
			timer.Reset(settleDelay)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("vault: watcher: %v", err)

		case <-timer.C:
			if err := v.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("vault: refreshing index: %v", err)
			}
			for _, change := range pending {
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
			pending = pending[:0]
		}
	}
}

// handleFsEvent maps a raw fsnotify event to a vault change. Hidden paths,
// directories and attribute changes are dropped; new directories are added
// to the watcher.
func (v *Vault) handleFsEvent(w *fsnotify.Watcher, event fsnotify.Event) (Event, bool) {
	rel, err := filepath.Rel(v.root, event.Name)
	if err != nil {
		return Event{}, false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || isHidden(rel) {
		return Event{}, false
	}

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return Event{}, false
		}
		if info.IsDir() {
			if err := v.addDirs(w, event.Name); err != nil {
				logger.Warn("vault: watching %s: %v", rel, err)
			}
			return Event{}, false
		}
		return Event{Path: rel, Op: OpCreated}, true

	case event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return Event{}, false
		}
		return Event{Path: rel, Op: OpUpdated}, true

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return Event{Path: rel, Op: OpRemoved}, true

	default:
		return Event{}, false
	}
}

// addDirs registers dir and its non-hidden subdirectories with w.
func (v *Vault) addDirs(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return fmt.Errorf("root path error: %w", err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(v.root, p); relErr == nil && rel != "." && isHidden(rel) {
			return filepath.SkipDir
		}
		if err := w.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

func (v *Vault) stopWatcher(w *fsnotify.Watcher) {
	v.watchMu.Lock()
	defer v.watchMu.Unlock()

	if v.watcher == w {
		v.watcher = nil
	}
	_ = w.Close()
}
