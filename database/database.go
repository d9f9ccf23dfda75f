// Package database provides database connectivity and schema management.
package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // Import sqlite3 driver
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// NewDB opens the SQLite database at dataSourceName with foreign keys enabled.
func NewDB(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite3", withPragmas(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

// Wrap adapts an existing *sql.DB, for example one created by sqlmock.
func Wrap(db *sql.DB) *DB {
	return &DB{db}
}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// InitSchema initializes the database schema
func (db *DB) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS movies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		original_title TEXT,
		year INTEGER,
		plot TEXT,
		runtime INTEGER,
		rating REAL,
		imdb_id TEXT,
		tmdb_id INTEGER,
		poster TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_movies_title ON movies(title);
	CREATE INDEX IF NOT EXISTS idx_movies_year ON movies(year);
	CREATE INDEX IF NOT EXISTS idx_movies_imdb_id ON movies(imdb_id);
	CREATE INDEX IF NOT EXISTS idx_movies_tmdb_id ON movies(tmdb_id);

	CREATE TABLE IF NOT EXISTS persons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE
	);

	CREATE TABLE IF NOT EXISTS genres (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE
	);

	CREATE TABLE IF NOT EXISTS movies_persons (
		movie_id INTEGER NOT NULL,
		person_id INTEGER NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('director', 'cast')),
		ordinal INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (movie_id, person_id, role),
		FOREIGN KEY (movie_id) REFERENCES movies (id) ON DELETE CASCADE,
		FOREIGN KEY (person_id) REFERENCES persons (id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_movies_persons_person_id ON movies_persons(person_id);

	CREATE TABLE IF NOT EXISTS movies_genres (
		movie_id INTEGER NOT NULL,
		genre_id INTEGER NOT NULL,
		PRIMARY KEY (movie_id, genre_id),
		FOREIGN KEY (movie_id) REFERENCES movies (id) ON DELETE CASCADE,
		FOREIGN KEY (genre_id) REFERENCES genres (id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_movies_genres_genre_id ON movies_genres(genre_id);

	CREATE TABLE IF NOT EXISTS media_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		movie_id INTEGER NOT NULL,
		path TEXT NOT NULL UNIQUE,
		size INTEGER NOT NULL DEFAULT 0,
		container TEXT,
		duration_ms INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (movie_id) REFERENCES movies (id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_media_files_movie_id ON media_files(movie_id);

	CREATE TABLE IF NOT EXISTS video_properties (
		media_file_id INTEGER PRIMARY KEY,
		codec TEXT,
		width INTEGER,
		height INTEGER,
		frame_rate REAL,
		bit_rate INTEGER,
		aspect_ratio TEXT,
		FOREIGN KEY (media_file_id) REFERENCES media_files (id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS audio_properties (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		media_file_id INTEGER NOT NULL,
		stream_index INTEGER NOT NULL,
		codec TEXT,
		language TEXT,
		channels INTEGER,
		sample_rate INTEGER,
		bit_rate INTEGER,
		FOREIGN KEY (media_file_id) REFERENCES media_files (id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_audio_properties_media_file_id ON audio_properties(media_file_id);

	CREATE TABLE IF NOT EXISTS user_profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS user_movie_settings (
		user_id INTEGER NOT NULL,
		movie_id INTEGER NOT NULL,
		seen INTEGER NOT NULL DEFAULT 0,
		seen_at DATETIME,
		PRIMARY KEY (user_id, movie_id),
		FOREIGN KEY (user_id) REFERENCES user_profiles (id) ON DELETE CASCADE,
		FOREIGN KEY (movie_id) REFERENCES movies (id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_user_movie_settings_movie_id ON user_movie_settings(movie_id);

	CREATE TABLE IF NOT EXISTS movie_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		movie_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		message TEXT NOT NULL,
		details TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_movie_events_movie_id ON movie_events(movie_id);
	CREATE INDEX IF NOT EXISTS idx_movie_events_type ON movie_events(type);
	CREATE INDEX IF NOT EXISTS idx_movie_events_created_at ON movie_events(created_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}
