package jobs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"moviecollection/apperrors"
	"moviecollection/filename"
	"moviecollection/mediainfo"
	"moviecollection/metrics"
	"moviecollection/models"
	"moviecollection/repository"
)

// ImportJob adds movie files on disk to the catalog.
type ImportJob struct {
	movies  *repository.MovieRepository
	files   *repository.MediaFileRepository
	events  *repository.MovieEventRepository
	prober  mediainfo.Prober
	logger  hclog.Logger
	metrics *metrics.Metrics

	// serializes the lookup-then-create of a single file
	mu sync.Mutex
}

// NewImportJob creates an import job. A nil prober imports files without
// technical properties.
func NewImportJob(movies *repository.MovieRepository, files *repository.MediaFileRepository,
	events *repository.MovieEventRepository, prober mediainfo.Prober, logger hclog.Logger, m *metrics.Metrics) *ImportJob {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &ImportJob{
		movies:  movies,
		files:   files,
		events:  events,
		prober:  prober,
		logger:  logger,
		metrics: m,
	}
}

// ImportFile catalogues a single video file. A path that is already in the
// catalog yields a Conflict error.
func (j *ImportJob) ImportFile(ctx context.Context, path string) (*models.MediaFile, error) {
	file, err := j.importFile(ctx, path)
	switch {
	case err == nil:
		j.metrics.ImportFile("imported")
	case apperrors.IsConflict(err):
		j.metrics.ImportFile("skipped")
	default:
		j.metrics.ImportFile("failed")
	}
	return file, err
}

func (j *ImportJob) importFile(ctx context.Context, path string) (*models.MediaFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	stat, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.New(apperrors.NotFound, "file %s does not exist", abs)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	if stat.IsDir() {
		return nil, apperrors.New(apperrors.Validation, "%s is a directory", abs)
	}
	if !filename.IsVideoFile(abs) {
		return nil, apperrors.New(apperrors.Validation, "%s is not a video file", abs)
	}

	guess := filename.TitleFromFilename(abs)
	if guess.Title == "" {
		return nil, apperrors.New(apperrors.Validation, "no title could be derived from %s", filepath.Base(abs))
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	exists, err := j.files.Exists(abs)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.New(apperrors.Conflict, "%s is already in the catalog", abs)
	}

	// Probing runs outside any transaction; it may take seconds.
	file, probeErr := j.probe(ctx, abs, stat.Size())
	if probeErr != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	movie, created, err := j.movieFor(guess)
	if err != nil {
		return nil, err
	}

	file.MovieID = movie.ID
	if err := j.files.Create(file); err != nil {
		if created {
			// A movie is only created together with its first file.
			if delErr := j.movies.Delete(movie.ID); delErr != nil {
				j.logger.Error("failed to remove movie without file", "movie_id", movie.ID, "error", delErr)
			}
		}
		return nil, err
	}
	if created {
		j.record(movie.ID, models.EventImported, fmt.Sprintf("Movie %q imported from file", movie.Title),
			map[string]interface{}{"path": abs, "year": guess.Year})
	}

	details := map[string]interface{}{"path": abs, "size": file.Size}
	if q := guess.Quality; q != "" {
		details["quality"] = q
	}
	if file.Video != nil {
		details["resolution"] = file.Video.Resolution()
	}
	j.record(movie.ID, models.EventFileAdded, fmt.Sprintf("Added file %s", filepath.Base(abs)), details)

	if probeErr != nil {
		j.record(movie.ID, models.EventProbeFailed, fmt.Sprintf("Could not read media information of %s", filepath.Base(abs)),
			map[string]string{"path": abs, "error": probeErr.Error()})
	}

	j.logger.Info("imported file", "path", abs, "movie_id", movie.ID, "title", movie.Title, "year", movie.Year)
	return file, nil
}

// probe always returns a usable file; the error reports why it carries no
// technical properties.
func (j *ImportJob) probe(ctx context.Context, path string, size int64) (*models.MediaFile, error) {
	if j.prober == nil {
		return &models.MediaFile{Path: path, Size: size}, nil
	}
	info, err := j.prober.Probe(ctx, path)
	if err != nil {
		j.logger.Warn("probe failed, importing without media information", "path", path, "error", err)
		return &models.MediaFile{Path: path, Size: size}, err
	}
	return mediainfo.ToMediaFile(info, path, size), nil
}

// ReprobeFile reads the media information of a catalogued file again and
// replaces its stored stream properties.
func (j *ImportJob) ReprobeFile(ctx context.Context, fileID int) (*models.MediaFile, error) {
	if j.prober == nil {
		return nil, apperrors.New(apperrors.Unavailable, "media probing is not configured")
	}
	file, err := j.files.GetByID(fileID)
	if err != nil {
		return nil, err
	}
	info, err := j.prober.Probe(ctx, file.Path)
	if err != nil {
		j.record(file.MovieID, models.EventProbeFailed, fmt.Sprintf("Could not read media information of %s", filepath.Base(file.Path)),
			map[string]string{"path": file.Path, "error": err.Error()})
		return nil, fmt.Errorf("failed to probe %s: %w", file.Path, err)
	}

	probed := mediainfo.ToMediaFile(info, file.Path, file.Size)
	if err := j.files.ReplaceProperties(file.ID, probed.Video, probed.Audio); err != nil {
		return nil, err
	}

	details := map[string]interface{}{"path": file.Path, "audio_streams": len(probed.Audio)}
	if probed.Video != nil {
		details["resolution"] = probed.Video.Resolution()
	}
	j.record(file.MovieID, models.EventFileReprobed, fmt.Sprintf("Read media information of %s again", filepath.Base(file.Path)), details)
	j.logger.Info("reprobed file", "file_id", file.ID, "path", file.Path)
	return j.files.GetByID(file.ID)
}

func (j *ImportJob) movieFor(guess filename.Guess) (*models.Movie, bool, error) {
	movie, err := j.movies.FindByTitleYear(guess.Title, guess.Year)
	if err == nil {
		return movie, false, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, false, err
	}

	movie = &models.Movie{Title: guess.Title, Year: guess.Year}
	if err := j.movies.Create(movie); err != nil {
		return nil, false, err
	}
	return movie, true, nil
}

func (j *ImportJob) record(movieID int, eventType models.MovieEventType, message string, details interface{}) {
	if j.events == nil {
		return
	}
	if err := j.events.Create(movieID, eventType, message, details); err != nil {
		j.logger.Error("failed to record movie event", "movie_id", movieID, "type", eventType, "error", err)
	}
}

// ImportFolder imports every video file below dir. Files already in the
// catalog are counted as skipped. Cancelling ctx stops the walk and returns
// the partial result together with the context error.
func (j *ImportJob) ImportFolder(ctx context.Context, dir string) (*models.ImportResult, error) {
	return j.importFolder(ctx, uuid.NewString(), dir)
}

func (j *ImportJob) importFolder(ctx context.Context, jobID, dir string) (*models.ImportResult, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	stat, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.New(apperrors.NotFound, "folder %s does not exist", root)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !stat.IsDir() {
		return nil, apperrors.New(apperrors.Validation, "%s is not a folder", root)
	}

	result := &models.ImportResult{JobID: jobID, Root: root, StartedAt: time.Now().UTC()}
	logger := j.logger.With("job_id", jobID, "root", root)
	logger.Info("folder import started")

	seen := make(map[int]bool)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			logger.Warn("cannot read path", "path", path, "error", err)
			result.Failed++
			result.Errors = append(result.Errors, err.Error())
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !filename.IsVideoFile(path) {
			return nil
		}

		file, err := j.ImportFile(ctx, path)
		switch {
		case err == nil:
			result.Imported++
			if !seen[file.MovieID] {
				seen[file.MovieID] = true
				result.MovieIDs = append(result.MovieIDs, file.MovieID)
			}
		case apperrors.IsConflict(err):
			result.Skipped++
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			logger.Error("failed to import file", "path", path, "error", err)
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
		}
		return nil
	})

	result.FinishedAt = time.Now().UTC()
	result.Elapsed = result.FinishedAt.Sub(result.StartedAt)
	j.metrics.ObserveImport(result.Elapsed)

	logger.Info("folder import finished",
		"imported", result.Imported, "skipped", result.Skipped, "failed", result.Failed, "elapsed", result.Elapsed)

	if walkErr != nil {
		return result, fmt.Errorf("folder import %s interrupted: %w", jobID, walkErr)
	}
	return result, nil
}
