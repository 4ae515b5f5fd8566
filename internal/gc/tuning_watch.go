package gc

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// TuningWatcher hot-reloads collector tunables from a file using
// OS-native change notifications, so an embedding host can adjust
// pacing on a live runtime without restarting it.
type TuningWatcher struct {
	w       *fsnotify.Watcher
	c       *Context
	path    string
	updates chan Tuning
	errC    chan error
}

// WatchTuning applies the tuning file at path (if it exists) and starts
// watching it for changes. The watch covers the parent directory so
// editor rename-and-replace saves are picked up.
func WatchTuning(c *Context, path string) (*TuningWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if t, err := ParseTuningFile(abs); err == nil {
		c.ApplyTuning(t)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}
	tw := &TuningWatcher{
		w:       w,
		c:       c,
		path:    abs,
		updates: make(chan Tuning, 16),
		errC:    make(chan error, 1),
	}
	go tw.loop()
	return tw, nil
}

func (tw *TuningWatcher) loop() {
	for {
		select {
		case ev, ok := <-tw.w.Events:
			if !ok {
				return
			}
			if ev.Name != tw.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			t, err := ParseTuningFile(tw.path)
			if err != nil {
				select {
				case tw.errC <- err:
				default:
				}
				continue
			}
			tw.c.ApplyTuning(t)
			select {
			case tw.updates <- t:
			default:
			}
		case err, ok := <-tw.w.Errors:
			if !ok {
				return
			}
			select {
			case tw.errC <- err:
			default:
			}
		}
	}
}

// Updates delivers tunings that were successfully applied.
func (tw *TuningWatcher) Updates() <-chan Tuning { return tw.updates }

// Errors delivers parse and watcher errors.
func (tw *TuningWatcher) Errors() <-chan error { return tw.errC }

// Close stops the watcher.
func (tw *TuningWatcher) Close() error { return tw.w.Close() }
