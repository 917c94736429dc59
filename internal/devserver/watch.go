package devserver

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// treeWatcher reports changes below a set of directories, coalescing bursts
// of events into one callback.
type treeWatcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(paths []string)
}

func newTreeWatcher(roots []string, debounce time.Duration, onChange func(paths []string)) (*treeWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	tw := &treeWatcher{watcher: w, debounce: debounce, onChange: onChange}
	for _, root := range roots {
		if err := tw.addTree(root); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	return tw, nil
}

// addTree watches root and every directory below it. Missing roots are
// skipped; they are optional copy sources.
func (tw *treeWatcher) addTree(root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return tw.watcher.Add(path)
	})
	if errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("dir", root).Msg("Not watching missing directory")
		return nil
	}
	return err
}

// run delivers changes until ctx is cancelled, then closes the watcher.
func (tw *treeWatcher) run(ctx context.Context) {
	defer tw.watcher.Close()

	pending := map[string]struct{}{}
	timer := time.NewTimer(tw.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-tw.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := tw.addTree(ev.Name); err != nil {
						log.Warn().Err(err).Str("dir", ev.Name).Msg("Failed to watch new directory")
					}
				}
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(tw.debounce)

		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("File watcher error")

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			tw.onChange(paths)
		}
	}
}
