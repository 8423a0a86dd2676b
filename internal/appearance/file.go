package appearance

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// File reads the signal from a small text file containing "dark" or
// "light". Desktop hooks (or a user) rewrite it to switch modes. A missing
// or unreadable file counts as light.
type File struct {
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	dark bool
}

// NewFile returns a File source reading path.
func NewFile(path string, logger *zap.Logger) *File {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &File{path: path, logger: logger}
	f.dark = f.read()
	return f
}

func (f *File) Dark() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dark
}

// Watch watches the file's directory, so editors that replace the file by
// rename are picked up too.
func (f *File) Watch(ctx context.Context, fn func(bool)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		return err
	}

	target := filepath.Clean(f.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				if dark, changed := f.refresh(); changed {
					fn(dark)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Warn("appearance watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

func (f *File) refresh() (bool, bool) {
	dark := f.read()
	f.mu.Lock()
	defer f.mu.Unlock()
	if dark == f.dark {
		return dark, false
	}
	f.dark = dark
	return dark, true
}

func (f *File) read() bool {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(string(data)), "dark")
}
