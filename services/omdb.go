package services

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"moviecollection/apperrors"
	"moviecollection/models"
)

const omdbBaseURL = "https://www.omdbapi.com/"

// OMDBService queries the Open Movie Database.
type OMDBService struct {
	apiClient
	apiKey  string
	baseURL string
}

// OmdbResponse represents the response from the OMDB API
type OmdbResponse struct {
	Response   string `json:"Response"`
	Error      string `json:"Error"`
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Runtime    string `json:"Runtime"`
	Plot       string `json:"Plot"`
	Director   string `json:"Director"`
	Poster     string `json:"Poster"`
	Genre      string `json:"Genre"`
	Actors     string `json:"Actors"`
	ImdbRating string `json:"imdbRating"`
	ImdbID     string `json:"imdbID"`
}

type omdbSearchResponse struct {
	Response string `json:"Response"`
	Error    string `json:"Error"`
	Search   []struct {
		Title  string `json:"Title"`
		Year   string `json:"Year"`
		ImdbID string `json:"imdbID"`
		Poster string `json:"Poster"`
	} `json:"Search"`
}

// NewOMDBService creates an OMDb client. An empty baseURL uses the public API.
func NewOMDBService(apiKey, baseURL string, rps float64, logger hclog.Logger) *OMDBService {
	if baseURL == "" {
		baseURL = omdbBaseURL
	}
	return &OMDBService{
		apiClient: newAPIClient("omdb", rps, logger),
		apiKey:    apiKey,
		baseURL:   baseURL,
	}
}

// Name implements WebSource.
func (o *OMDBService) Name() string { return "omdb" }

// Search finds movies by title, optionally narrowed to a release year.
func (o *OMDBService) Search(ctx context.Context, title string, year int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("apikey", o.apiKey)
	params.Set("s", title)
	params.Set("type", "movie")
	if year > 0 {
		params.Set("y", strconv.Itoa(year))
	}

	var resp omdbSearchResponse
	if err := o.getJSON(ctx, o.baseURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	results := []SearchResult{}
	if resp.Response == "False" {
		// OMDb reports an empty result set as an error.
		if strings.Contains(strings.ToLower(resp.Error), "not found") {
			return results, nil
		}
		return nil, apperrors.New(apperrors.Unavailable, "omdb: %s", resp.Error)
	}

	for _, m := range resp.Search {
		results = append(results, SearchResult{
			Source: o.Name(),
			ID:     m.ImdbID,
			Title:  m.Title,
			Year:   parseYear(m.Year),
			Poster: notAvailable(m.Poster),
		})
	}
	o.logger.Debug("searched movies", "query", title, "year", year, "results", len(results))
	return results, nil
}

// Fetch implements WebSource; id is an IMDb ID such as tt0133093.
func (o *OMDBService) Fetch(ctx context.Context, id string) (*models.Movie, error) {
	if !strings.HasPrefix(id, "tt") {
		return nil, apperrors.New(apperrors.Validation, "invalid IMDb id %q", id)
	}
	params := url.Values{}
	params.Set("apikey", o.apiKey)
	params.Set("i", id)
	params.Set("plot", "full")

	var resp OmdbResponse
	if err := o.getJSON(ctx, o.baseURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Response == "False" {
		return nil, apperrors.New(apperrors.NotFound, "omdb: %s", resp.Error)
	}
	return convertOmdb(resp), nil
}

func convertOmdb(resp OmdbResponse) *models.Movie {
	movie := &models.Movie{
		Title:  resp.Title,
		Year:   parseYear(resp.Year),
		Plot:   notAvailable(resp.Plot),
		Poster: notAvailable(resp.Poster),
		IMDBID: resp.ImdbID,
	}
	if runtime := strings.TrimSuffix(notAvailable(resp.Runtime), " min"); runtime != "" {
		movie.Runtime, _ = strconv.Atoi(runtime)
	}
	if rating, err := strconv.ParseFloat(resp.ImdbRating, 64); err == nil {
		movie.Rating = rating
	}

	movie.Directors = []models.Person{}
	for _, name := range splitList(resp.Director) {
		movie.Directors = append(movie.Directors, models.Person{Name: name})
	}
	movie.Cast = []models.Person{}
	for _, name := range splitList(resp.Actors) {
		movie.Cast = append(movie.Cast, models.Person{Name: name})
	}
	movie.Genres = []models.Genre{}
	for _, name := range splitList(resp.Genre) {
		movie.Genres = append(movie.Genres, models.Genre{Name: name})
	}
	return movie
}

// notAvailable maps OMDb's "N/A" placeholder to an empty string.
func notAvailable(s string) string {
	if s == "N/A" {
		return ""
	}
	return s
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(notAvailable(s), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
