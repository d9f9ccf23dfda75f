package models

import "time"

// MovieEventType represents the type of movie event
type MovieEventType string

const (
	EventCreated           MovieEventType = "created"
	EventImported          MovieEventType = "imported"
	EventFileAdded         MovieEventType = "file_added"
	EventFileRemoved       MovieEventType = "file_removed"
	EventProbeFailed       MovieEventType = "probe_failed"
	EventFileReprobed      MovieEventType = "file_reprobed"
	EventMetadataRefreshed MovieEventType = "metadata_refreshed"
	EventSeenChanged       MovieEventType = "seen_changed"
	EventWriteFailed       MovieEventType = "write_failed"
	EventUpdated           MovieEventType = "updated"
)

// MovieEvent is an entry in a movie's activity log.
type MovieEvent struct {
	ID        int            `json:"id"`
	MovieID   int            `json:"movie_id"`
	Type      MovieEventType `json:"type"`
	Message   string         `json:"message"`
	Details   string         `json:"details,omitempty"` // JSON string for additional data
	CreatedAt time.Time      `json:"created_at"`
}

// DetailedMovieResponse is a movie with its activity log and viewer state.
type DetailedMovieResponse struct {
	Movie       *Movie                 `json:"movie"`
	Events      []MovieEvent           `json:"events"`
	EventCounts map[MovieEventType]int `json:"event_counts"`
	SeenBy      []UserMovieSettings    `json:"seen_by,omitempty"`
}
