// Package watch triggers rebuilds when project sources change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/themepack/internal/telemetry"
)

// DefaultDebounce groups bursts of events, such as an editor's save, into a
// single rebuild.
const DefaultDebounce = 100 * time.Millisecond

var skipDirs = []string{"node_modules", ".git"}

// RebuildFunc is called with the sorted set of changed paths.
type RebuildFunc func(ctx context.Context, changed []string) error

type Options struct {
	Root string
	// Ignore lists directories, such as the output directory, whose events
	// never trigger a rebuild.
	Ignore   []string
	Debounce time.Duration
}

type Watcher struct {
	opts    Options
	fsw     *fsnotify.Watcher
	rebuild RebuildFunc
}

// New watches every directory below opts.Root except the skipped ones.
func New(opts Options, rebuild RebuildFunc) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	opts.Root = root

	for i, dir := range opts.Ignore {
		if opts.Ignore[i], err = filepath.Abs(dir); err != nil {
			return nil, err
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{opts: opts, fsw: fsw, rebuild: rebuild}

	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return w, nil
}

// Run delivers debounced changes to the rebuild func until ctx is done. A
// failing rebuild is logged and watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	timer := time.NewTimer(w.opts.Debounce)
	timer.Stop()
	defer timer.Stop()

	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
					}
				}
			}

			log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("File changed")

			pending[event.Name] = struct{}{}
			timer.Reset(w.opts.Debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Watcher error")

		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			slices.Sort(changed)
			clear(pending)

			telemetry.GetMetrics().RebuildsTriggeredTotal.Add(ctx, 1)
			log.Info().Strs("changed", changed).Msg("Rebuilding")

			if err := w.rebuild(ctx, changed); err != nil {
				log.Error().Err(err).Msg("Rebuild failed, waiting for changes")
			}
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if w.ignored(event.Name) {
		return false
	}

	rel, err := filepath.Rel(w.opts.Root, event.Name)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if slices.Contains(skipDirs, part) {
			return false
		}
	}

	return true
}

func (w *Watcher) ignored(path string) bool {
	for _, dir := range w.opts.Ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// directories can vanish between the event and the walk
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.opts.Root && (slices.Contains(skipDirs, d.Name()) || w.ignored(p)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}
