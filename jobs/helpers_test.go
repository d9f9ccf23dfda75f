package jobs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"moviecollection/database"
	"moviecollection/mediainfo"
	"moviecollection/repository"

	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db     *database.DB
	movies *repository.MovieRepository
	files  *repository.MediaFileRepository
	events *repository.MovieEventRepository
	users  *repository.UserRepository
}

func setupTestEnv(t *testing.T) (*testEnv, func()) {
	// Create a temporary test database
	testDB, err := database.NewDB(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	// Initialize schema
	if err := testDB.InitSchema(); err != nil {
		t.Fatalf("Failed to initialize test schema: %v", err)
	}

	env := &testEnv{
		db:     testDB,
		movies: repository.NewMovieRepository(testDB, repository.NewRefCache(64)),
		files:  repository.NewMediaFileRepository(testDB),
		events: repository.NewMovieEventRepository(testDB),
		users:  repository.NewUserRepository(testDB),
	}

	cleanup := func() {
		if err := testDB.Close(); err != nil {
			t.Logf("Failed to close test database: %v", err)
		}
	}

	return env, cleanup
}

func (e *testEnv) importer(prober mediainfo.Prober) *ImportJob {
	return NewImportJob(e.movies, e.files, e.events, prober, nil, nil)
}

// fakeProber answers every probe with a 1080p H.264 file unless err is set.
type fakeProber struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (p *fakeProber) Probe(ctx context.Context, path string) (*mediainfo.Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, path)
	if p.err != nil {
		return nil, p.err
	}

	info := mediainfo.NewInfo(path)
	info.Set(mediainfo.StreamGeneral, 0, "Format", "Matroska")
	info.Set(mediainfo.StreamGeneral, 0, "Duration", "5400000")
	v := info.AddStream(mediainfo.StreamVideo)
	info.Set(mediainfo.StreamVideo, v, "Format", "AVC")
	info.Set(mediainfo.StreamVideo, v, "Width", "1920")
	info.Set(mediainfo.StreamVideo, v, "Height", "1080")
	a := info.AddStream(mediainfo.StreamAudio)
	info.Set(mediainfo.StreamAudio, a, "Format", "AC-3")
	info.Set(mediainfo.StreamAudio, a, "Language", "en")
	info.Set(mediainfo.StreamAudio, a, "Channel(s)", "6")
	return info, nil
}

func (p *fakeProber) probed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}
