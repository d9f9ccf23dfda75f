// Package models defines the data structures used throughout the catalog.
package models

import "time"

// Movie represents a movie in the collection.
type Movie struct {
	ID            int         `json:"id"`
	Title         string      `json:"title"`
	OriginalTitle string      `json:"original_title,omitempty"`
	Year          int         `json:"year,omitempty"`
	Plot          string      `json:"plot,omitempty"`
	Runtime       int         `json:"runtime,omitempty"` // in minutes
	Rating        float64     `json:"rating,omitempty"`
	IMDBID        string      `json:"imdb_id,omitempty"`
	TMDBID        int         `json:"tmdb_id,omitempty"`
	Poster        string      `json:"poster,omitempty"`
	Directors     []Person    `json:"directors,omitempty"`
	Cast          []Person    `json:"cast,omitempty"`
	Genres        []Genre     `json:"genres,omitempty"`
	Files         []MediaFile `json:"files,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// DirectorNames returns the director names in billing order.
func (m *Movie) DirectorNames() []string {
	return personNames(m.Directors)
}

// CastNames returns the cast names in billing order.
func (m *Movie) CastNames() []string {
	return personNames(m.Cast)
}

// GenreNames returns the genre names.
func (m *Movie) GenreNames() []string {
	names := make([]string, 0, len(m.Genres))
	for _, g := range m.Genres {
		names = append(names, g.Name)
	}
	return names
}

func personNames(people []Person) []string {
	names := make([]string, 0, len(people))
	for _, p := range people {
		names = append(names, p.Name)
	}
	return names
}
