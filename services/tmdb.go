package services

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"moviecollection/apperrors"
	"moviecollection/models"
)

const (
	tmdbBaseURL  = "https://api.themoviedb.org/3"
	tmdbImageURL = "https://image.tmdb.org/t/p/w500"
	// tmdbCastLimit caps how many billed actors are imported.
	tmdbCastLimit = 10
)

// TMDBService handles interactions with The Movie Database API
type TMDBService struct {
	apiClient
	apiKey  string
	baseURL string
}

// TMDBMovie represents a movie response from TMDB API
type TMDBMovie struct {
	ID            int         `json:"id"`
	Title         string      `json:"title"`
	OriginalTitle string      `json:"original_title"`
	Overview      string      `json:"overview"`
	ReleaseDate   string      `json:"release_date"`
	PosterPath    string      `json:"poster_path"`
	VoteAverage   float64     `json:"vote_average"`
	Runtime       int         `json:"runtime"`
	Genres        []Genre     `json:"genres"`
	Credits       Credits     `json:"credits"`
	ExternalIDs   ExternalIDs `json:"external_ids"`
}

// Genre represents a movie genre from TMDB
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Credits contains cast and crew information
type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// CastMember represents an actor in a movie
type CastMember struct {
	Name      string `json:"name"`
	Character string `json:"character"`
	Order     int    `json:"order"`
}

// CrewMember represents a crew member in a movie
type CrewMember struct {
	Job  string `json:"job"`
	Name string `json:"name"`
}

// ExternalIDs contains external IDs for a movie
type ExternalIDs struct {
	IMDBID string `json:"imdb_id"`
}

type tmdbSearchResponse struct {
	Results []TMDBMovie `json:"results"`
}

// NewTMDBService creates a new TMDB service instance. An empty baseURL
// uses the public API.
func NewTMDBService(apiKey, baseURL string, rps float64, logger hclog.Logger) *TMDBService {
	if baseURL == "" {
		baseURL = tmdbBaseURL
	}
	return &TMDBService{
		apiClient: newAPIClient("tmdb", rps, logger),
		apiKey:    apiKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
	}
}

// Name implements WebSource.
func (t *TMDBService) Name() string { return "tmdb" }

// Search finds movies by title, optionally narrowed to a release year.
func (t *TMDBService) Search(ctx context.Context, title string, year int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("api_key", t.apiKey)
	params.Set("query", title)
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	var resp tmdbSearchResponse
	if err := t.getJSON(ctx, t.baseURL+"/search/movie?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(resp.Results))
	for _, m := range resp.Results {
		results = append(results, SearchResult{
			Source:   t.Name(),
			ID:       strconv.Itoa(m.ID),
			Title:    m.Title,
			Year:     parseYear(m.ReleaseDate),
			Overview: m.Overview,
			Poster:   t.posterURL(m.PosterPath),
		})
	}
	t.logger.Debug("searched movies", "query", title, "year", year, "results", len(results))
	return results, nil
}

// Fetch implements WebSource; id is the numeric TMDB ID.
func (t *TMDBService) Fetch(ctx context.Context, id string) (*models.Movie, error) {
	tmdbID, err := strconv.Atoi(id)
	if err != nil || tmdbID <= 0 {
		return nil, apperrors.New(apperrors.Validation, "invalid TMDB id %q", id)
	}
	return t.GetMovie(ctx, tmdbID)
}

// GetMovie fetches movie details from TMDB by ID
func (t *TMDBService) GetMovie(ctx context.Context, tmdbID int) (*models.Movie, error) {
	params := url.Values{}
	params.Set("api_key", t.apiKey)
	params.Set("append_to_response", "credits,external_ids")

	var tmdbMovie TMDBMovie
	if err := t.getJSON(ctx, fmt.Sprintf("%s/movie/%d?%s", t.baseURL, tmdbID, params.Encode()), &tmdbMovie); err != nil {
		return nil, fmt.Errorf("failed to fetch movie %d from TMDB: %w", tmdbID, err)
	}

	return t.convertToMovie(tmdbMovie), nil
}

func (t *TMDBService) posterURL(path string) string {
	if path == "" {
		return ""
	}
	return tmdbImageURL + path
}

func (t *TMDBService) convertToMovie(tmdbMovie TMDBMovie) *models.Movie {
	movie := &models.Movie{
		Title:   tmdbMovie.Title,
		TMDBID:  tmdbMovie.ID,
		Plot:    tmdbMovie.Overview,
		Rating:  tmdbMovie.VoteAverage,
		Runtime: tmdbMovie.Runtime,
		IMDBID:  tmdbMovie.ExternalIDs.IMDBID,
		Year:    parseYear(tmdbMovie.ReleaseDate),
		Poster:  t.posterURL(tmdbMovie.PosterPath),
	}
	if tmdbMovie.OriginalTitle != tmdbMovie.Title {
		movie.OriginalTitle = tmdbMovie.OriginalTitle
	}

	movie.Genres = []models.Genre{}
	for _, g := range tmdbMovie.Genres {
		movie.Genres = append(movie.Genres, models.Genre{Name: g.Name})
	}

	movie.Directors = []models.Person{}
	for _, crew := range tmdbMovie.Credits.Crew {
		if crew.Job == "Director" {
			movie.Directors = append(movie.Directors, models.Person{Name: crew.Name})
		}
	}

	cast := append([]CastMember(nil), tmdbMovie.Credits.Cast...)
	sort.SliceStable(cast, func(i, j int) bool { return cast[i].Order < cast[j].Order })
	if len(cast) > tmdbCastLimit {
		cast = cast[:tmdbCastLimit]
	}
	movie.Cast = []models.Person{}
	for _, c := range cast {
		movie.Cast = append(movie.Cast, models.Person{Name: c.Name})
	}

	return movie
}
