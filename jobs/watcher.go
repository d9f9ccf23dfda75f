package jobs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"moviecollection/apperrors"
	"moviecollection/filename"
	"moviecollection/models"
)

// FileImporter imports a single file into the catalog.
type FileImporter interface {
	ImportFile(ctx context.Context, path string) (*models.MediaFile, error)
}

const defaultDebounce = 2 * time.Second

// FolderWatcher imports video files that appear below the watched folders.
// A file is imported once it has seen no write for the debounce interval.
type FolderWatcher struct {
	watcher  *fsnotify.Watcher
	importer FileImporter
	debounce time.Duration
	logger   hclog.Logger
}

// NewFolderWatcher creates a watcher; folders are added with Add.
func NewFolderWatcher(importer FileImporter, debounce time.Duration, logger hclog.Logger) (*FolderWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &FolderWatcher{
		watcher:  watcher,
		importer: importer,
		debounce: debounce,
		logger:   logger,
	}, nil
}

// Add watches dir and every non-hidden folder below it.
func (w *FolderWatcher) Add(dir string) error {
	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	stat, err := os.Stat(root)
	if err != nil {
		return apperrors.Wrap(apperrors.NotFound, err, "cannot watch %s", root)
	}
	if !stat.IsDir() {
		return apperrors.New(apperrors.Validation, "%s is not a folder", root)
	}
	_, err = w.addTree(root)
	return err
}

// addTree watches root recursively and returns the video files found in it.
func (w *FolderWatcher) addTree(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("cannot read path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if filename.IsVideoFile(path) && !strings.HasPrefix(d.Name(), ".") {
				files = append(files, path)
			}
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		w.logger.Debug("watching folder", "path", path)
		return nil
	})
	return files, err
}

// Close releases the watcher. Run closes it on its own.
func (w *FolderWatcher) Close() error {
	return w.watcher.Close()
}

// Run processes file system events until ctx is done. It closes the
// underlying watcher on return.
func (w *FolderWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	// path -> time of the latest event
	pending := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			if len(pending) > 0 {
				w.logger.Debug("dropping pending files on shutdown", "count", len(pending))
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, pending)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", "error", err)

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.debounce {
					continue
				}
				delete(pending, path)
				w.importFile(ctx, path)
			}
		}
	}
}

func (w *FolderWatcher) handleEvent(event fsnotify.Event, pending map[string]time.Time) {
	path := event.Name
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		delete(pending, path)

	case event.Has(fsnotify.Create):
		stat, err := os.Stat(path)
		if err != nil {
			return
		}
		if stat.IsDir() {
			// A folder moved in brings its files without further events.
			files, err := w.addTree(path)
			if err != nil {
				w.logger.Error("failed to watch new folder", "path", path, "error", err)
			}
			for _, f := range files {
				pending[f] = time.Now()
			}
			return
		}
		if filename.IsVideoFile(path) {
			pending[path] = time.Now()
		}

	case event.Has(fsnotify.Write):
		if filename.IsVideoFile(path) {
			pending[path] = time.Now()
		}
	}
}

func (w *FolderWatcher) importFile(ctx context.Context, path string) {
	file, err := w.importer.ImportFile(ctx, path)
	switch {
	case err == nil:
		w.logger.Info("imported new file", "path", path, "movie_id", file.MovieID)
	case apperrors.IsConflict(err), apperrors.IsNotFound(err):
		w.logger.Debug("ignoring file", "path", path, "reason", err)
	default:
		w.logger.Error("failed to import new file", "path", path, "error", err)
	}
}
