package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"moviecollection/apperrors"
	"moviecollection/metrics"
	"moviecollection/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportJob_ImportFile(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	prober := &fakeProber{}
	job := env.importer(prober)
	path := writeFile(t, t.TempDir(), "The.Matrix.1999.1080p.BluRay.x264-GROUP.mkv", 2048)

	file, err := job.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.NotZero(t, file.ID)
	assert.Equal(t, int64(2048), file.Size)
	assert.Equal(t, "Matroska", file.Container)
	require.NotNil(t, file.Video)
	assert.Equal(t, 1920, file.Video.Width)
	require.Len(t, file.Audio, 1)
	assert.Equal(t, 6, file.Audio[0].Channels)

	movie, err := env.movies.GetByID(file.MovieID)
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", movie.Title)
	assert.Equal(t, 1999, movie.Year)
	require.Len(t, movie.Files, 1)
	assert.Equal(t, path, movie.Files[0].Path)
	require.NotNil(t, movie.Files[0].Video)
	assert.Equal(t, "AVC", movie.Files[0].Video.Codec)

	counts, err := env.events.CountByType(movie.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.EventImported])
	assert.Equal(t, 1, counts[models.EventFileAdded])
	assert.Zero(t, counts[models.EventProbeFailed])
}

func TestImportJob_ReusesExistingMovie(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	existing := &models.Movie{Title: "Heat", Year: 1995}
	require.NoError(t, env.movies.Create(existing))

	job := env.importer(&fakeProber{})
	dir := t.TempDir()

	first, err := job.ImportFile(context.Background(), writeFile(t, dir, "Heat (1995).avi", 10))
	require.NoError(t, err)
	second, err := job.ImportFile(context.Background(), writeFile(t, dir, "heat.1995.720p.mkv", 10))
	require.NoError(t, err)

	assert.Equal(t, existing.ID, first.MovieID)
	assert.Equal(t, existing.ID, second.MovieID)

	count, err := env.movies.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	files, err := env.files.GetByMovieID(existing.ID)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestImportJob_ProbeFailure(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	job := env.importer(&fakeProber{err: errors.New("invalid data found when processing input")})
	path := writeFile(t, t.TempDir(), "Casablanca.mkv", 512)

	file, err := job.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Nil(t, file.Video)
	assert.Empty(t, file.Audio)
	assert.Equal(t, int64(512), file.Size)

	counts, err := env.events.CountByType(file.MovieID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.EventProbeFailed])
	assert.Equal(t, 1, counts[models.EventFileAdded])
}

func TestImportJob_FileInsertFailureRemovesNewMovie(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	_, err := env.db.Exec(`
		CREATE TRIGGER reject_file BEFORE INSERT ON media_files
		BEGIN SELECT RAISE(ABORT, 'disk full'); END`)
	require.NoError(t, err)

	existing := &models.Movie{Title: "Heat", Year: 1995}
	require.NoError(t, env.movies.Create(existing))

	job := env.importer(&fakeProber{})
	dir := t.TempDir()

	_, err = job.ImportFile(context.Background(), writeFile(t, dir, "Alien.1979.mkv", 10))
	require.Error(t, err)
	_, err = job.ImportFile(context.Background(), writeFile(t, dir, "Heat (1995).avi", 10))
	require.Error(t, err)

	// The movie created for the failed file is gone; the existing one stays.
	movies, err := env.movies.GetAll()
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, existing.ID, movies[0].ID)

	counts, err := env.events.CountByType(existing.ID)
	require.NoError(t, err)
	assert.Zero(t, counts[models.EventFileAdded])
}

func TestImportJob_ReprobeFile(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	prober := &fakeProber{err: errors.New("file is still being copied")}
	job := env.importer(prober)
	ctx := context.Background()

	file, err := job.ImportFile(ctx, writeFile(t, t.TempDir(), "Casablanca.1942.mkv", 512))
	require.NoError(t, err)
	require.Nil(t, file.Video)

	_, err = job.ReprobeFile(ctx, file.ID)
	require.Error(t, err)

	prober.err = nil
	reprobed, err := job.ReprobeFile(ctx, file.ID)
	require.NoError(t, err)
	require.NotNil(t, reprobed.Video)
	assert.Equal(t, "1080p", reprobed.Video.Resolution())
	require.Len(t, reprobed.Audio, 1)
	assert.Equal(t, "AC-3", reprobed.Audio[0].Codec)

	counts, err := env.events.CountByType(file.MovieID)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.EventProbeFailed])
	assert.Equal(t, 1, counts[models.EventFileReprobed])

	_, err = job.ReprobeFile(ctx, 9999)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = env.importer(nil).ReprobeFile(ctx, file.ID)
	assert.Equal(t, apperrors.Unavailable, apperrors.CodeOf(err))
}

func TestImportJob_ImportFile_Rejects(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	job := NewImportJob(env.movies, env.files, env.events, &fakeProber{}, nil, m)
	dir := t.TempDir()
	ctx := context.Background()

	_, err := job.ImportFile(ctx, filepath.Join(dir, "missing.mkv"))
	assert.True(t, apperrors.IsNotFound(err))

	_, err = job.ImportFile(ctx, writeFile(t, dir, "notes.txt", 1))
	assert.True(t, apperrors.IsValidation(err))

	_, err = job.ImportFile(ctx, dir)
	assert.True(t, apperrors.IsValidation(err))

	path := writeFile(t, dir, "Alien.1979.mkv", 1)
	_, err = job.ImportFile(ctx, path)
	require.NoError(t, err)
	_, err = job.ImportFile(ctx, path)
	assert.True(t, apperrors.IsConflict(err))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = job.ImportFile(cancelled, writeFile(t, dir, "Aliens.1986.mkv", 1))
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ImportFilesTotal.WithLabelValues("imported")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ImportFilesTotal.WithLabelValues("skipped")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.ImportFilesTotal.WithLabelValues("failed")))
}

func TestImportJob_ImportFolder(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	prober := &fakeProber{}
	job := env.importer(prober)
	dir := t.TempDir()
	writeFile(t, dir, "Heat (1995).avi", 10)
	writeFile(t, dir, "Sci-Fi/Alien.1979.1080p.mkv", 10)
	writeFile(t, dir, "Sci-Fi/Alien.1979.1080p.nfo", 10)
	writeFile(t, dir, "Sci-Fi/Alien (1979)/Alien.1979.DVDRip.avi", 10)
	writeFile(t, dir, ".trash/Deleted.2001.mkv", 10)
	writeFile(t, dir, ".hidden.mkv", 10)

	result, err := job.ImportFolder(context.Background(), dir)
	require.NoError(t, err)
	assert.NotEmpty(t, result.JobID)
	assert.Equal(t, 3, result.Imported)
	assert.Zero(t, result.Skipped)
	assert.Zero(t, result.Failed)
	assert.Len(t, result.MovieIDs, 2)
	assert.Equal(t, 3, prober.probed())

	// A second pass finds nothing new.
	again, err := job.ImportFolder(context.Background(), dir)
	require.NoError(t, err)
	assert.NotEqual(t, result.JobID, again.JobID)
	assert.Zero(t, again.Imported)
	assert.Equal(t, 3, again.Skipped)

	count, err := env.movies.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestImportJob_ImportFolder_Errors(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	job := env.importer(nil)
	dir := t.TempDir()

	_, err := job.ImportFolder(context.Background(), filepath.Join(dir, "missing"))
	assert.True(t, apperrors.IsNotFound(err))

	file := writeFile(t, dir, "Heat.1995.mkv", 1)
	_, err = job.ImportFolder(context.Background(), file)
	assert.True(t, apperrors.IsValidation(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := job.ImportFolder(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Zero(t, result.Imported)
}

func TestImportJob_NilProber(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	job := env.importer(nil)
	path := writeFile(t, t.TempDir(), "Vertigo.1958.mkv", 64)

	file, err := job.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Nil(t, file.Video)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), file.Size)
}
