package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"moviecollection/apperrors"
	"moviecollection/database"
	"moviecollection/models"
)

// MediaFileRepository handles media files and their stream properties.
type MediaFileRepository struct {
	db *database.DB
}

// NewMediaFileRepository creates a new media file repository
func NewMediaFileRepository(db *database.DB) *MediaFileRepository {
	return &MediaFileRepository{db: db}
}

const mediaFileColumns = `id, movie_id, path, size, container, duration_ms, created_at`

// Create inserts file together with its video and audio properties.
func (r *MediaFileRepository) Create(file *models.MediaFile) error {
	if strings.TrimSpace(file.Path) == "" {
		return apperrors.New(apperrors.Validation, "media file path is required")
	}
	file.CreatedAt = time.Now().UTC()

	return withTx(r.db, func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO media_files (movie_id, path, size, container, duration_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			file.MovieID, file.Path, file.Size, nullString(file.Container),
			nullInt64(file.Duration.Milliseconds()), file.CreatedAt,
		)
		if err != nil {
			switch {
			case isUniqueViolation(err):
				return apperrors.Wrap(apperrors.Conflict, err, "media file %q is already catalogued", file.Path)
			case isForeignKeyViolation(err):
				return apperrors.Wrap(apperrors.NotFound, err, "movie with id %d not found", file.MovieID)
			}
			return fmt.Errorf("failed to create media file: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		file.ID = int(id)

		return insertProperties(tx, file.ID, file.Video, file.Audio)
	})
}

func insertProperties(q querier, fileID int, video *models.VideoProperties, audio []models.AudioProperties) error {
	if video != nil {
		_, err := q.Exec(`
			INSERT INTO video_properties (media_file_id, codec, width, height, frame_rate, bit_rate, aspect_ratio)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			fileID, nullString(video.Codec), nullInt(video.Width), nullInt(video.Height),
			nullFloat64(video.FrameRate), nullInt64(video.BitRate), nullString(video.AspectRatio),
		)
		if err != nil {
			return fmt.Errorf("failed to create video properties: %w", err)
		}
	}

	for i, a := range audio {
		_, err := q.Exec(`
			INSERT INTO audio_properties (media_file_id, stream_index, codec, language, channels, sample_rate, bit_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			fileID, i, nullString(a.Codec), nullString(a.Language), nullInt(a.Channels),
			nullInt(a.SampleRate), nullInt64(a.BitRate),
		)
		if err != nil {
			return fmt.Errorf("failed to create audio properties: %w", err)
		}
	}
	return nil
}

// ReplaceProperties swaps the stored stream properties of a file, for
// example after the file has been probed again.
func (r *MediaFileRepository) ReplaceProperties(fileID int, video *models.VideoProperties, audio []models.AudioProperties) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		if _, err := getMediaFile(tx, fileID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM video_properties WHERE media_file_id = ?`, fileID); err != nil {
			return fmt.Errorf("failed to clear video properties: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM audio_properties WHERE media_file_id = ?`, fileID); err != nil {
			return fmt.Errorf("failed to clear audio properties: %w", err)
		}
		return insertProperties(tx, fileID, video, audio)
	})
}

// GetByID retrieves a media file with its properties.
func (r *MediaFileRepository) GetByID(id int) (*models.MediaFile, error) {
	file, err := getMediaFile(r.db, id)
	if err != nil {
		return nil, err
	}
	if err := loadProperties(r.db, file); err != nil {
		return nil, err
	}
	return file, nil
}

// GetByPath retrieves the media file catalogued at path.
func (r *MediaFileRepository) GetByPath(path string) (*models.MediaFile, error) {
	file, err := scanMediaFile(r.db.QueryRow(
		`SELECT `+mediaFileColumns+` FROM media_files WHERE path = ?`, path))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.NotFound, "media file %q not found", path)
		}
		return nil, fmt.Errorf("failed to get media file: %w", err)
	}
	if err := loadProperties(r.db, file); err != nil {
		return nil, err
	}
	return file, nil
}

// Exists reports whether path is already catalogued.
func (r *MediaFileRepository) Exists(path string) (bool, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM media_files WHERE path = ?`, path).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check media file: %w", err)
	}
	return n > 0, nil
}

// GetByMovieID returns every file of a movie.
func (r *MediaFileRepository) GetByMovieID(movieID int) ([]models.MediaFile, error) {
	return loadMediaFiles(r.db, movieID)
}

// Move reassigns a file to another movie.
func (r *MediaFileRepository) Move(fileID, movieID int) error {
	result, err := r.db.Exec(`UPDATE media_files SET movie_id = ? WHERE id = ?`, movieID, fileID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.Wrap(apperrors.NotFound, err, "movie with id %d not found", movieID)
		}
		return fmt.Errorf("failed to move media file: %w", err)
	}
	return expectAffected(result, "media file", fileID)
}

// Delete removes a file record and its properties. The file on disk is untouched.
func (r *MediaFileRepository) Delete(id int) error {
	result, err := r.db.Exec(`DELETE FROM media_files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete media file: %w", err)
	}
	return expectAffected(result, "media file", id)
}

func expectAffected(result sql.Result, kind string, id int) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.New(apperrors.NotFound, "%s with id %d not found", kind, id)
	}
	return nil
}

func getMediaFile(q querier, id int) (*models.MediaFile, error) {
	file, err := scanMediaFile(q.QueryRow(`SELECT `+mediaFileColumns+` FROM media_files WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.NotFound, "media file with id %d not found", id)
		}
		return nil, fmt.Errorf("failed to get media file: %w", err)
	}
	return file, nil
}

func scanMediaFile(row rowScanner) (*models.MediaFile, error) {
	var file models.MediaFile
	var container sql.NullString
	var durationMS sql.NullInt64
	if err := row.Scan(&file.ID, &file.MovieID, &file.Path, &file.Size, &container, &durationMS, &file.CreatedAt); err != nil {
		return nil, err
	}
	file.Container = container.String
	file.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	return &file, nil
}

// loadMediaFiles materializes the files of a movie including properties.
// Rows are fully read before the property queries run.
func loadMediaFiles(q querier, movieID int) ([]models.MediaFile, error) {
	rows, err := q.Query(`SELECT `+mediaFileColumns+` FROM media_files WHERE movie_id = ? ORDER BY path`, movieID)
	if err != nil {
		return nil, fmt.Errorf("failed to query media files: %w", err)
	}

	var files []models.MediaFile
	for rows.Next() {
		file, err := scanMediaFile(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan media file: %w", err)
		}
		files = append(files, *file)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating media files: %w", err)
	}
	rows.Close()

	for i := range files {
		if err := loadProperties(q, &files[i]); err != nil {
			return nil, err
		}
	}
	return files, nil
}

func loadProperties(q querier, file *models.MediaFile) error {
	var video models.VideoProperties
	var codec, aspect sql.NullString
	var width, height, bitRate sql.NullInt64
	var frameRate sql.NullFloat64
	err := q.QueryRow(`
		SELECT codec, width, height, frame_rate, bit_rate, aspect_ratio
		FROM video_properties WHERE media_file_id = ?`, file.ID,
	).Scan(&codec, &width, &height, &frameRate, &bitRate, &aspect)
	switch {
	case err == nil:
		video.Codec = codec.String
		video.Width = int(width.Int64)
		video.Height = int(height.Int64)
		video.FrameRate = frameRate.Float64
		video.BitRate = bitRate.Int64
		video.AspectRatio = aspect.String
		file.Video = &video
	case errors.Is(err, sql.ErrNoRows):
		file.Video = nil
	default:
		return fmt.Errorf("failed to get video properties: %w", err)
	}

	rows, err := q.Query(`
		SELECT codec, language, channels, sample_rate, bit_rate
		FROM audio_properties WHERE media_file_id = ? ORDER BY stream_index`, file.ID)
	if err != nil {
		return fmt.Errorf("failed to query audio properties: %w", err)
	}
	defer rows.Close()

	file.Audio = nil
	for rows.Next() {
		var codec, language sql.NullString
		var channels, sampleRate, bitRate sql.NullInt64
		if err := rows.Scan(&codec, &language, &channels, &sampleRate, &bitRate); err != nil {
			return fmt.Errorf("failed to scan audio properties: %w", err)
		}
		file.Audio = append(file.Audio, models.AudioProperties{
			Codec:      codec.String,
			Language:   language.String,
			Channels:   int(channels.Int64),
			SampleRate: int(sampleRate.Int64),
			BitRate:    bitRate.Int64,
		})
	}
	return rows.Err()
}
