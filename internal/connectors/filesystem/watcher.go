package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/ragchat/internal/logger"
)

// DefaultDebounce is how long the watcher waits for events to settle.
const DefaultDebounce = 500 * time.Millisecond

// ChangeType classifies a file change.
type ChangeType string

// Change types.
const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Change is a single file change.
type Change struct {
	Path string
	Type ChangeType
}

// ChangeFunc receives a debounced batch of changes ordered by path.
type ChangeFunc func(ctx context.Context, changes []Change)

// Watcher reports corpus changes under a root with fsnotify.
type Watcher struct {
	root     string
	file     string // set when the root is a single file
	debounce time.Duration
	onChange ChangeFunc
	ignore   *ignoreMatcher
	ready    chan struct{}
}

// NewWatcher creates a watcher. A non-positive debounce uses DefaultDebounce.
func NewWatcher(root string, debounce time.Duration, onChange ChangeFunc) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		onChange: onChange,
		ready:    make(chan struct{}),
	}
}

// Ready is closed once all watches are registered.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is done. onChange runs on the watcher goroutine,
// so events arriving during a callback are batched into the next one.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("root path error: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if info.IsDir() {
		if w.ignore, err = newIgnoreMatcher(w.root); err != nil {
			return err
		}
		if err := w.addTree(fsw, w.root); err != nil {
			return err
		}
	} else {
		w.file = w.root
		if err := fsw.Add(filepath.Dir(w.root)); err != nil {
			return fmt.Errorf("watch %s: %w", w.root, err)
		}
	}
	close(w.ready)

	pending := make(map[string]Change)
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && w.file == "" {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := w.addTree(fsw, event.Name); err != nil {
						logger.Warn("Cannot watch %s: %v", event.Name, err)
					}
				}
			}
			change := w.handleFsEvent(event)
			if change == nil {
				continue
			}
			if prev, seen := pending[change.Path]; seen && prev.Type == ChangeCreated && change.Type == ChangeUpdated {
				change.Type = ChangeCreated
			}
			pending[change.Path] = *change

			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			batch := make([]Change, 0, len(pending))
			for _, c := range pending {
				batch = append(batch, c)
			}
			sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
			pending = make(map[string]Change)

			logger.Debug("Corpus changed: %d files", len(batch))
			w.onChange(ctx, batch)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watch error: %v", err)
		}
	}
}

// addTree watches dir and every visible, non-ignored directory beneath it.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root {
			rel, relErr := filepath.Rel(w.root, path)
			if relErr == nil && (isHidden(rel) || w.ignore.Ignored(rel)) {
				return fs.SkipDir
			}
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// handleFsEvent converts an fsnotify event into a change, or nil when it is not relevant.
func (w *Watcher) handleFsEvent(event fsnotify.Event) *Change {
	if w.file != "" {
		if filepath.Clean(event.Name) != filepath.Clean(w.file) {
			return nil
		}
	} else {
		rel, err := filepath.Rel(w.root, event.Name)
		if err != nil || isHidden(rel) || w.ignore.Ignored(rel) {
			return nil
		}
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &Change{Path: event.Name, Type: ChangeDeleted}

	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return nil
		}
		if event.Has(fsnotify.Create) {
			return &Change{Path: event.Name, Type: ChangeCreated}
		}
		return &Change{Path: event.Name, Type: ChangeUpdated}
	}

	// Chmod alone does not change content.
	return nil
}
