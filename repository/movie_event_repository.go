package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"moviecollection/database"
	"moviecollection/models"
)

// MovieEventRepository handles movie event data operations
type MovieEventRepository struct {
	db *database.DB
}

// NewMovieEventRepository creates a new movie event repository
func NewMovieEventRepository(db *database.DB) *MovieEventRepository {
	return &MovieEventRepository{db: db}
}

// Create adds a new movie event
func (r *MovieEventRepository) Create(movieID int, eventType models.MovieEventType, message string, details interface{}) error {
	var detailsJSON sql.NullString
	if details != nil {
		detailsBytes, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to marshal event details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(detailsBytes), Valid: true}
	}

	query := `INSERT INTO movie_events (movie_id, type, message, details, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query, movieID, string(eventType), message, detailsJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create movie event: %w", err)
	}

	return nil
}

// GetByMovieID returns all events for a specific movie, newest first
func (r *MovieEventRepository) GetByMovieID(movieID int) ([]models.MovieEvent, error) {
	query := `SELECT id, movie_id, type, message, details, created_at
			  FROM movie_events
			  WHERE movie_id = ?
			  ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(query, movieID)
	if err != nil {
		return nil, fmt.Errorf("failed to query movie events: %w", err)
	}
	defer rows.Close()

	events := []models.MovieEvent{}
	for rows.Next() {
		var event models.MovieEvent
		var details sql.NullString

		err := rows.Scan(&event.ID, &event.MovieID, &event.Type, &event.Message, &details, &event.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movie event: %w", err)
		}
		event.Details = details.String

		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating movie events: %w", err)
	}

	return events, nil
}

// CountByType returns how many events of each type a movie has.
func (r *MovieEventRepository) CountByType(movieID int) (map[models.MovieEventType]int, error) {
	rows, err := r.db.Query(`SELECT type, COUNT(*) FROM movie_events WHERE movie_id = ? GROUP BY type`, movieID)
	if err != nil {
		return nil, fmt.Errorf("failed to count movie events: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.MovieEventType]int)
	for rows.Next() {
		var eventType models.MovieEventType
		var n int
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[eventType] = n
	}
	return counts, rows.Err()
}

// DeleteOldEvents removes events older than the specified duration
func (r *MovieEventRepository) DeleteOldEvents(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := r.db.Exec(`DELETE FROM movie_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted events: %w", err)
	}
	return n, nil
}
