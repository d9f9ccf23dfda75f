package models

import "time"

// UserProfile is a viewer of the collection.
type UserProfile struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// UserMovieSettings tracks per-user state for one movie.
type UserMovieSettings struct {
	UserID  int        `json:"user_id"`
	MovieID int        `json:"movie_id"`
	Seen    bool       `json:"seen"`
	SeenAt  *time.Time `json:"seen_at,omitempty"`
}
