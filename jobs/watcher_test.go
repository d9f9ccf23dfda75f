package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"moviecollection/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingImporter struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingImporter) ImportFile(ctx context.Context, path string) (*models.MediaFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return &models.MediaFile{Path: path, MovieID: len(r.paths)}, nil
}

func (r *recordingImporter) imported() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func startWatcher(t *testing.T, importer FileImporter, dirs ...string) func() {
	t.Helper()
	w, err := NewFolderWatcher(importer, 50*time.Millisecond, nil)
	require.NoError(t, err)
	for _, dir := range dirs {
		require.NoError(t, w.Add(dir))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, w.Run(ctx))
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestFolderWatcher_ImportsNewFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Existing.1990.mkv", 1)

	importer := &recordingImporter{}
	stop := startWatcher(t, importer, dir)
	defer stop()

	path := writeFile(t, dir, "Heat (1995).avi", 10)
	writeFile(t, dir, "Heat (1995).nfo", 10)
	writeFile(t, dir, ".partial.mkv", 10)

	assert.Eventually(t, func() bool {
		return len(importer.imported()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Debounced: several writes still give one import.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []string{path}, importer.imported())
}

func TestFolderWatcher_WatchesNewFolders(t *testing.T) {
	dir := t.TempDir()
	importer := &recordingImporter{}
	stop := startWatcher(t, importer, dir)
	defer stop()

	nested := writeFile(t, dir, "Sci-Fi/Alien (1979)/Alien.1979.mkv", 10)

	assert.Eventually(t, func() bool {
		for _, p := range importer.imported() {
			if p == nested {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFolderWatcher_AddErrors(t *testing.T) {
	w, err := NewFolderWatcher(&recordingImporter{}, 0, nil)
	require.NoError(t, err)
	defer w.Close()

	assert.Error(t, w.Add(t.TempDir()+"/missing"))
	assert.Error(t, w.Add(writeFile(t, t.TempDir(), "Heat.1995.mkv", 1)))
	assert.Equal(t, defaultDebounce, w.debounce)
}
