package loader

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the directories of a FileSource and calls back, once
// per burst of changes, with the manifests that changed.
type Watcher struct {
	w        *fsnotify.Watcher
	src      *FileSource
	log      *slog.Logger
	debounce time.Duration
	onChange func(paths []string)
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewWatcher starts watching every directory below the dirs of src.
// onChange runs on the watcher goroutine.
func NewWatcher(src *FileSource, debounce time.Duration, log *slog.Logger, onChange func(paths []string)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	fw := &Watcher{
		w:        w,
		src:      src,
		log:      log,
		debounce: debounce,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, dir := range src.Dirs() {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return w.Add(path)
			}
			return nil
		})
		if err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	fw.wg.Add(1)
	go fw.loop()
	return fw, nil
}

func (fw *Watcher) loop() {
	defer fw.wg.Done()
	pending := make(map[string]bool)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-fw.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if !IsManifestFile(ev.Name) || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			fw.log.Info("manifest changed", "path", ev.Name, "op", ev.Op.String())
			fw.src.Invalidate(ev.Name)
			pending[ev.Name] = true
			if timer == nil {
				timer = time.NewTimer(fw.debounce)
			} else {
				timer.Reset(fw.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]bool)
			fw.onChange(paths)
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			fw.log.Warn("watch error", "error", err)
		}
	}
}

// Close stops watching and waits for the callback goroutine to exit.
func (fw *Watcher) Close() error {
	var err error
	fw.once.Do(func() {
		close(fw.done)
		err = fw.w.Close()
		fw.wg.Wait()
	})
	return err
}
