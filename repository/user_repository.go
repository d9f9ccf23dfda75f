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

// UserRepository handles user profiles and their per-movie settings.
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateProfile adds a user profile.
func (r *UserRepository) CreateProfile(name string) (*models.UserProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.New(apperrors.Validation, "user name is required")
	}

	profile := &models.UserProfile{Name: name, CreatedAt: time.Now().UTC()}
	result, err := r.db.Exec(`INSERT INTO user_profiles (name, created_at) VALUES (?, ?)`, profile.Name, profile.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.Wrap(apperrors.Conflict, err, "user %q already exists", name)
		}
		return nil, fmt.Errorf("failed to create user profile: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	profile.ID = int(id)
	return profile, nil
}

// GetProfile retrieves a user profile by ID.
func (r *UserRepository) GetProfile(id int) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.QueryRow(`SELECT id, name, created_at FROM user_profiles WHERE id = ?`, id).
		Scan(&profile.ID, &profile.Name, &profile.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.NotFound, "user with id %d not found", id)
		}
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	return &profile, nil
}

// GetProfiles returns every user profile ordered by name.
func (r *UserRepository) GetProfiles() ([]models.UserProfile, error) {
	rows, err := r.db.Query(`SELECT id, name, created_at FROM user_profiles ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("failed to query user profiles: %w", err)
	}
	defer rows.Close()

	profiles := []models.UserProfile{}
	for rows.Next() {
		var profile models.UserProfile
		if err := rows.Scan(&profile.ID, &profile.Name, &profile.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user profiles: %w", err)
	}
	return profiles, nil
}

// DeleteProfile removes a user profile and its settings.
func (r *UserRepository) DeleteProfile(id int) error {
	result, err := r.db.Exec(`DELETE FROM user_profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user profile: %w", err)
	}
	return expectAffected(result, "user", id)
}

// SetSeen records whether a user has seen a movie.
func (r *UserRepository) SetSeen(userID, movieID int, seen bool) error {
	var seenAt interface{}
	if seen {
		seenAt = time.Now().UTC()
	}
	_, err := r.db.Exec(`
		INSERT INTO user_movie_settings (user_id, movie_id, seen, seen_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, movie_id) DO UPDATE SET
			seen = excluded.seen,
			seen_at = CASE
				WHEN excluded.seen = 0 THEN NULL
				WHEN user_movie_settings.seen = 1 THEN user_movie_settings.seen_at
				ELSE excluded.seen_at
			END`,
		userID, movieID, seen, seenAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.Wrap(apperrors.NotFound, err, "user %d or movie %d not found", userID, movieID)
		}
		return fmt.Errorf("failed to set seen state: %w", err)
	}
	return nil
}

// GetSettings returns a user's settings for a movie. Movies the user never
// touched report the zero settings.
func (r *UserRepository) GetSettings(userID, movieID int) (*models.UserMovieSettings, error) {
	settings := &models.UserMovieSettings{UserID: userID, MovieID: movieID}
	var seenAt sql.NullTime
	err := r.db.QueryRow(`
		SELECT seen, seen_at FROM user_movie_settings WHERE user_id = ? AND movie_id = ?`,
		userID, movieID).Scan(&settings.Seen, &seenAt)
	switch {
	case err == nil:
		if seenAt.Valid {
			t := seenAt.Time
			settings.SeenAt = &t
		}
		return settings, nil
	case errors.Is(err, sql.ErrNoRows):
		if _, err := r.GetProfile(userID); err != nil {
			return nil, err
		}
		return settings, nil
	default:
		return nil, fmt.Errorf("failed to get user settings: %w", err)
	}
}

// SettingsForMovie returns the settings every user has for a movie.
func (r *UserRepository) SettingsForMovie(movieID int) ([]models.UserMovieSettings, error) {
	rows, err := r.db.Query(`
		SELECT user_id, movie_id, seen, seen_at FROM user_movie_settings
		WHERE movie_id = ? ORDER BY user_id`, movieID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user settings: %w", err)
	}
	defer rows.Close()

	var all []models.UserMovieSettings
	for rows.Next() {
		var s models.UserMovieSettings
		var seenAt sql.NullTime
		if err := rows.Scan(&s.UserID, &s.MovieID, &s.Seen, &seenAt); err != nil {
			return nil, fmt.Errorf("failed to scan user settings: %w", err)
		}
		if seenAt.Valid {
			t := seenAt.Time
			s.SeenAt = &t
		}
		all = append(all, s)
	}
	return all, rows.Err()
}

// SeenMovies returns the movies a user has marked as seen, most recent first.
func (r *UserRepository) SeenMovies(userID int) ([]models.Movie, error) {
	if _, err := r.GetProfile(userID); err != nil {
		return nil, err
	}
	movies, err := queryMovies(r.db, `
		SELECT m.`+strings.ReplaceAll(movieColumns, ", ", ", m.")+`
		FROM movies m JOIN user_movie_settings s ON s.movie_id = m.id
		WHERE s.user_id = ? AND s.seen = 1
		ORDER BY s.seen_at DESC, m.title`, userID)
	if err != nil {
		return nil, err
	}
	if err := attachRelations(r.db, movies); err != nil {
		return nil, err
	}
	return movies, nil
}
