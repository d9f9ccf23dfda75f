package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"moviecollection/apperrors"
	"moviecollection/config"
	"moviecollection/database"
	"moviecollection/jobs"
	"moviecollection/mediainfo"
	"moviecollection/metrics"
	"moviecollection/models"
	"moviecollection/services"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource knows a single movie with ID "42".
type fakeSource struct{}

func (fakeSource) Name() string { return "fake" }

func (fakeSource) Search(ctx context.Context, title string, year int) ([]services.SearchResult, error) {
	if !strings.Contains(strings.ToLower(title), "alien") {
		return nil, nil
	}
	return []services.SearchResult{{Source: "fake", ID: "42", Title: "Alien", Year: 1979}}, nil
}

func (fakeSource) Fetch(ctx context.Context, id string) (*models.Movie, error) {
	if id != "42" {
		return nil, apperrors.New(apperrors.NotFound, "movie %s not found", id)
	}
	return &models.Movie{
		Title:     "Alien",
		Year:      1979,
		Runtime:   117,
		IMDBID:    "tt0078748",
		Directors: []models.Person{{Name: "Ridley Scott"}},
		Cast:      []models.Person{{Name: "Sigourney Weaver"}, {Name: "Tom Skerritt"}},
		Genres:    []models.Genre{{Name: "Horror"}, {Name: "Science Fiction"}},
	}, nil
}

// fakeProber reports a 1080p H.264 video stream and two audio streams.
type fakeProber struct{}

func (fakeProber) Probe(ctx context.Context, path string) (*mediainfo.Info, error) {
	info := mediainfo.NewInfo(path)
	info.Set(mediainfo.StreamGeneral, 0, "Format", "Matroska")
	v := info.AddStream(mediainfo.StreamVideo)
	info.Set(mediainfo.StreamVideo, v, "Format", "AVC")
	info.Set(mediainfo.StreamVideo, v, "Width", "1920")
	info.Set(mediainfo.StreamVideo, v, "Height", "1080")
	for _, lang := range []string{"en", "de"} {
		a := info.AddStream(mediainfo.StreamAudio)
		info.Set(mediainfo.StreamAudio, a, "Format", "AC-3")
		info.Set(mediainfo.StreamAudio, a, "Language", lang)
	}
	return info, nil
}

func setupTestApp(t *testing.T) (*App, http.Handler, func()) {
	return setupTestAppWithProber(t, nil)
}

func setupTestAppWithProber(t *testing.T, prober mediainfo.Prober) (*App, http.Handler, func()) {
	// Create a temporary test database
	testDB, err := database.NewDB(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	// Initialize schema
	if err := testDB.InitSchema(); err != nil {
		t.Fatalf("Failed to initialize test schema: %v", err)
	}

	cfg := config.Config{CacheSize: 64, WriteQueueSize: 8}
	app := newApp(testDB, cfg, hclog.NewNullLogger(), metrics.New(prometheus.NewRegistry()), prober)
	app.sources.Register(fakeSource{})
	app.jobs.Start()

	// Return cleanup function
	cleanup := func() {
		app.jobs.Stop()
		app.jobs.Queue().Stop()
		if err := testDB.Close(); err != nil {
			t.Logf("Failed to close test database: %v", err)
		}
	}

	return app, app.routes(), cleanup
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst), rr.Body.String())
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decode(t, rr, &body)
	return body.Error.Code, body.Error.Message
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	code, _ := errorBody(t, rr)
	return code
}

func createTestMovie(t *testing.T, h http.Handler, body string) models.Movie {
	t.Helper()
	rr := doRequest(t, h, http.MethodPost, "/api/v1/movies", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var movie models.Movie
	decode(t, rr, &movie)
	return movie
}

func TestHealthHandler(t *testing.T) {
	_, h, cleanup := setupTestApp(t)
	defer cleanup()

	rr := doRequest(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]interface{}
	decode(t, rr, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["jobs_running"])
	assert.Equal(t, []interface{}{"fake"}, body["sources"])
	assert.Equal(t, float64(0), body["movies"])
}

func TestListMoviesHandler_EmptyDatabase(t *testing.T) {
	_, h, cleanup := setupTestApp(t)
	defer cleanup()

	rr := doRequest(t, h, http.MethodGet, "/api/v1/movies", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var movies []models.Movie
	decode(t, rr, &movies)
	assert.Empty(t, movies)
}

func TestMovieLifecycle(t *testing.T) {
	app, h, cleanup := setupTestApp(t)
	defer cleanup()

	movie := createTestMovie(t, h, `{"title":"Heat","year":1995,"directors":["Michael Mann"],
		"cast":["Al Pacino","Robert De Niro"],"genres":["Crime"]}`)
	assert.NotZero(t, movie.ID)
	assert.Equal(t, []string{"Michael Mann"}, movie.DirectorNames())
	assert.Equal(t, []string{"Al Pacino", "Robert De Niro"}, movie.CastNames())
	createTestMovie(t, h, `{"title":"Collateral","year":2004}`)

	rr := doRequest(t, h, http.MethodGet, "/api/v1/movies", "")
	var movies []models.Movie
	decode(t, rr, &movies)
	assert.Len(t, movies, 2)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/movies?q=hea", "")
	decode(t, rr, &movies)
	require.Len(t, movies, 1)
	assert.Equal(t, "Heat", movies[0].Title)

	path := fmt.Sprintf("/api/v1/movies/%d", movie.ID)
	rr = doRequest(t, h, http.MethodPut, path, `{"title":"Heat","year":1995,"rating":8.3,"genres":["Crime","Thriller"]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated models.Movie
	decode(t, rr, &updated)
	assert.Equal(t, 8.3, updated.Rating)
	assert.Equal(t, []string{"Crime", "Thriller"}, updated.GenreNames())
	assert.Equal(t, []string{"Michael Mann"}, updated.DirectorNames(), "omitted credits stay")

	rr = doRequest(t, h, http.MethodGet, path+"/details", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var details models.DetailedMovieResponse
	decode(t, rr, &details)
	assert.Equal(t, "Heat", details.Movie.Title)
	require.Len(t, details.Events, 2)
	assert.Equal(t, models.EventUpdated, details.Events[0].Type)
	assert.Equal(t, models.EventCreated, details.Events[1].Type)
	assert.Equal(t, map[models.MovieEventType]int{models.EventCreated: 1, models.EventUpdated: 1}, details.EventCounts)

	rr = doRequest(t, h, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(t, h, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rr))

	// Credits of the deleted movie are pruned.
	persons, err := app.persons.GetAll()
	require.NoError(t, err)
	assert.Empty(t, persons)
}

func TestCreateMovieHandler_Validation(t *testing.T) {
	_, h, cleanup := setupTestApp(t)
	defer cleanup()

	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"year":1995}`},
		{"blank title", `{"title":"   "}`},
		{"year out of range", `{"title":"Heat","year":1066}`},
		{"rating out of range", `{"title":"Heat","rating":11}`},
		{"bad imdb id", `{"title":"Heat","imdb_id":"0113277"}`},
		{"long director name", `{"title":"Heat","directors":["` + strings.Repeat("x", 201) + `"]}`},
		{"unknown field", `{"title":"Heat","director":"Michael Mann"}`},
		{"malformed", `{"title":`},
		{"wrong type", `{"title":"Heat","year":"1995"}`},
		{"two values", `{"title":"Heat"}{"title":"Ronin"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, h, http.MethodPost, "/api/v1/movies", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "VALIDATION", errorCode(t, rr))
		})
	}

	rr := doRequest(t, h, http.MethodPost, "/api/v1/movies", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAddMovieFromSourceHandler(t *testing.T) {
	_, h, cleanup := setupTestApp(t)
	defer cleanup()

	rr := doRequest(t, h, http.MethodPost, "/api/v1/movies/web/fake/42", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var movie models.Movie
	decode(t, rr, &movie)
	assert.Equal(t, "Alien", movie.Title)
	assert.Equal(t, "tt0078748", movie.IMDBID)
	assert.Equal(t, []string{"Ridley Scott"}, movie.DirectorNames())

	rr = doRequest(t, h, http.MethodPost, "/api/v1/movies/web/fake/42", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doRequest(t, h, http.MethodPost, "/api/v1/movies/web/fake/7", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, h, http.MethodPost, "/api/v1/movies/web/imdb/42", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRefreshMovieHandler(t *testing.T) {
	app, h, cleanup := setupTestApp(t)
	defer cleanup()

	movie := createTestMovie(t, h, `{"title":"alien","year":1979,"genres":["Horror"]}`)

	rr := doRequest(t, h, http.MethodPost, fmt.Sprintf("/api/v1/movies/%d/refresh/fake", movie.ID), "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var refreshed models.Movie
	decode(t, rr, &refreshed)
	assert.Equal(t, "Alien", refreshed.Title)
	assert.Equal(t, 117, refreshed.Runtime)
	assert.Equal(t, "tt0078748", refreshed.IMDBID)
	assert.Equal(t, []string{"Horror", "Science Fiction"}, refreshed.GenreNames())

	counts, err := app.events.CountByType(movie.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.EventMetadataRefreshed])

	unknown := createTestMovie(t, h, `{"title":"Heat"}`)
	rr = doRequest(t, h, http.MethodPost, fmt.Sprintf("/api/v1/movies/%d/refresh/fake", unknown.ID), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPersonAndGenreHandlers(t *testing.T) {
	_, h, cleanup := setupTestApp(t)
	defer cleanup()

	heat := createTestMovie(t, h, `{"title":"Heat","directors":["Michael Mann"],"cast":["Al Pacino"],"genres":["Crime"]}`)
	createTestMovie(t, h, `{"title":"The Insider","directors":["Michael Mann"],"cast":["Al Pacino"],"genres":["Drama"]}`)

	rr := doRequest(t, h, http.MethodGet, "/api/v1/persons", "")
	var persons []models.Person
	decode(t, rr, &persons)
	require.Len(t, persons, 2)

	mann := heat.Directors[0]
	rr = doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/v1/persons/%d/movies", mann.ID), "")
	var movies []models.Movie
	decode(t, rr, &movies)
	assert.Len(t, movies, 2)

	rr = doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/v1/persons/%d/movies?role=cast", mann.ID), "")
	decode(t, rr, &movies)
	assert.Empty(t, movies)

	rr = doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/v1/persons/%d/movies?role=writer", mann.ID), "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, h, http.MethodPut, fmt.Sprintf("/api/v1/persons/%d", mann.ID), `{"name":"Michael K. Mann"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/v1/movies/%d", heat.ID), "")
	var movie models.Movie
	decode(t, rr, &movie)
	assert.Equal(t, []string{"Michael K. Mann"}, movie.DirectorNames())

	crime := heat.Genres[0]
	rr = doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/v1/genres/%d/movies", crime.ID), "")
	decode(t, rr, &movies)
	require.Len(t, movies, 1)
	assert.Equal(t, "Heat", movies[0].Title)

	rr = doRequest(t, h, http.MethodDelete, fmt.Sprintf("/api/v1/genres/%d", crime.ID), "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/genres", "")
	var genres []models.Genre
	decode(t, rr, &genres)
	require.Len(t, genres, 1)
	assert.Equal(t, "Drama", genres[0].Name)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/genres/999/movies", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSeenHandlers(t *testing.T) {
	app, h, cleanup := setupTestApp(t)
	defer cleanup()

	movie := createTestMovie(t, h, `{"title":"Heat","year":1995}`)

	rr := doRequest(t, h, http.MethodPost, "/api/v1/users", `{"name":"alice"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var user models.UserProfile
	decode(t, rr, &user)

	seenPath := fmt.Sprintf("/api/v1/users/%d/seen/%d", user.ID, movie.ID)
	rr = doRequest(t, h, http.MethodPut, seenPath, `{"seen":true}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	require.NoError(t, app.jobs.Queue().Flush(context.Background()))

	rr = doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/seen", user.ID), "")
	var seen []models.Movie
	decode(t, rr, &seen)
	require.Len(t, seen, 1)
	assert.Equal(t, "Heat", seen[0].Title)

	counts, err := app.events.CountByType(movie.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.EventSeenChanged])

	rr = doRequest(t, h, http.MethodGet, seenPath, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var settings models.UserMovieSettings
	decode(t, rr, &settings)
	assert.True(t, settings.Seen)
	assert.NotNil(t, settings.SeenAt)

	rr = doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/seen/%d", user.ID, movie.ID+1), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/seen/%d", user.ID+1, movie.ID), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, h, http.MethodPut, seenPath, `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, h, http.MethodPut, fmt.Sprintf("/api/v1/users/%d/seen/%d", user.ID+1, movie.ID), `{"seen":true}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, h, http.MethodPut, fmt.Sprintf("/api/v1/users/%d/seen/%d", user.ID, movie.ID+1), `{"seen":true}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/users", "")
	var users []models.UserProfile
	decode(t, rr, &users)
	assert.Len(t, users, 1)

	rr = doRequest(t, h, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", user.ID), "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestCreateUserHandler_ConflictHidesDriverError(t *testing.T) {
	_, h, cleanup := setupTestApp(t)
	defer cleanup()

	rr := doRequest(t, h, http.MethodPost, "/api/v1/users", `{"name":"alice"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doRequest(t, h, http.MethodPost, "/api/v1/users", `{"name":"alice"}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	code, message := errorBody(t, rr)
	assert.Equal(t, "CONFLICT", code)
	assert.Equal(t, `user "alice" already exists`, message)
	assert.NotContains(t, rr.Body.String(), "UNIQUE")
}

func TestSeenHandler_QueueStopped(t *testing.T) {
	app, h, cleanup := setupTestApp(t)
	defer cleanup()

	movie := createTestMovie(t, h, `{"title":"Heat"}`)
	user, err := app.users.CreateProfile("bob")
	require.NoError(t, err)

	app.jobs.Queue().Stop()
	rr := doRequest(t, h, http.MethodPut, fmt.Sprintf("/api/v1/users/%d/seen/%d", user.ID, movie.ID), `{"seen":true}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "UNAVAILABLE", errorCode(t, rr))
}

func TestImportHandlers(t *testing.T) {
	_, h, cleanup := setupTestApp(t)
	defer cleanup()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Heat (1995).mkv"), []byte("data"), 0o644))

	rr := doRequest(t, h, http.MethodPost, "/api/v1/import", fmt.Sprintf(`{"path":%q}`, dir))
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	var accepted struct {
		JobID string `json:"job_id"`
	}
	decode(t, rr, &accepted)
	require.NotEmpty(t, accepted.JobID)

	var status jobs.ImportStatus
	require.Eventually(t, func() bool {
		rr := doRequest(t, h, http.MethodGet, "/api/v1/import/"+accepted.JobID, "")
		if rr.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
			return false
		}
		return status.State != jobs.ImportRunning
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, jobs.ImportDone, status.State)
	require.NotNil(t, status.Result)
	require.Len(t, status.Result.MovieIDs, 1)

	rr = doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/v1/movies/%d/files", status.Result.MovieIDs[0]), "")
	var files []models.MediaFile
	decode(t, rr, &files)
	require.Len(t, files, 1)
	assert.Equal(t, int64(4), files[0].Size)

	// No prober is configured in tests.
	rr = doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/v1/files/%d/mediainfo", files[0].ID), "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = doRequest(t, h, http.MethodDelete, fmt.Sprintf("/api/v1/files/%d", files[0].ID), "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/import", "")
	var imports []jobs.ImportStatus
	decode(t, rr, &imports)
	assert.Len(t, imports, 1)

	rr = doRequest(t, h, http.MethodPost, "/api/v1/import", `{"path":""}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, h, http.MethodPost, "/api/v1/import", fmt.Sprintf(`{"path":%q}`, filepath.Join(dir, "missing")))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/import/unknown", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMoveFileHandler(t *testing.T) {
	app, h, cleanup := setupTestApp(t)
	defer cleanup()

	wrong := createTestMovie(t, h, `{"title":"Heat 2"}`)
	right := createTestMovie(t, h, `{"title":"Heat","year":1995}`)
	file := &models.MediaFile{MovieID: wrong.ID, Path: "/movies/Heat.2.mkv", Size: 10}
	require.NoError(t, app.files.Create(file))

	rr := doRequest(t, h, http.MethodPut, fmt.Sprintf("/api/v1/files/%d/movie", file.ID), fmt.Sprintf(`{"movie_id":%d}`, right.ID))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var moved models.MediaFile
	decode(t, rr, &moved)
	assert.Equal(t, right.ID, moved.MovieID)

	rr = doRequest(t, h, http.MethodPut, fmt.Sprintf("/api/v1/files/%d/movie", file.ID), `{"movie_id":999}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, h, http.MethodPut, fmt.Sprintf("/api/v1/files/%d/movie", file.ID), `{"movie_id":0}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "VALIDATION", errorCode(t, rr))
}

func TestFileProbeHandlers(t *testing.T) {
	app, h, cleanup := setupTestAppWithProber(t, fakeProber{})
	defer cleanup()

	movie := createTestMovie(t, h, `{"title":"Heat","year":1995}`)
	file := &models.MediaFile{MovieID: movie.ID, Path: "/movies/Heat.1995.mkv", Size: 10}
	require.NoError(t, app.files.Create(file))
	base := fmt.Sprintf("/api/v1/files/%d", file.ID)

	rr := doRequest(t, h, http.MethodGet, base+"/mediainfo", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var report mediainfo.Report
	decode(t, rr, &report)
	assert.Equal(t, "Matroska", report.General.Format)
	assert.Len(t, report.Audio, 2)

	rr = doRequest(t, h, http.MethodGet, base+"/mediainfo?kind=audio", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var audioOnly struct {
		Audio []mediainfo.AudioStream `json:"audio"`
		Video []mediainfo.VideoStream `json:"video"`
	}
	decode(t, rr, &audioOnly)
	require.Len(t, audioOnly.Audio, 2)
	assert.Equal(t, "de", audioOnly.Audio[1].Language)
	assert.Empty(t, audioOnly.Video)

	rr = doRequest(t, h, http.MethodGet, base+"/mediainfo?kind=video&format=text", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Body.String(), "Video\n"))
	assert.NotContains(t, rr.Body.String(), "AC-3")

	rr = doRequest(t, h, http.MethodGet, base+"/mediainfo?kind=subtitles", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, h, http.MethodPost, base+"/probe", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var reprobed models.MediaFile
	decode(t, rr, &reprobed)
	require.NotNil(t, reprobed.Video)
	assert.Equal(t, 1920, reprobed.Video.Width)
	assert.Len(t, reprobed.Audio, 2)

	counts, err := app.events.CountByType(movie.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.EventFileReprobed])

	rr = doRequest(t, h, http.MethodPost, "/api/v1/files/9999/probe", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDirSizeHandler(t *testing.T) {
	_, h, cleanup := setupTestApp(t)
	defer cleanup()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Heat.1995.mkv"), make([]byte, 100), 0o644))

	rr := doRequest(t, h, http.MethodGet, "/api/v1/dirsize?path="+dir, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var stats models.DirectoryStats
	decode(t, rr, &stats)
	assert.Equal(t, int64(100), stats.TotalBytes)
	assert.Equal(t, 1, stats.VideoFiles)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/dirsize", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSearchHandler(t *testing.T) {
	_, h, cleanup := setupTestApp(t)
	defer cleanup()

	rr := doRequest(t, h, http.MethodGet, "/api/v1/search?q=alien&year=1979", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var results []services.SearchResult
	decode(t, rr, &results)
	require.Len(t, results, 1)
	assert.Equal(t, "42", results[0].ID)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/search?q=alien&source=fake", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/search", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/search?q=alien&year=soon", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/search?q=alien&source=imdb", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, h, http.MethodGet, "/api/v1/sources", "")
	var names []string
	decode(t, rr, &names)
	assert.Equal(t, []string{"fake"}, names)
}

func TestInstrument_RecordsRouteTemplate(t *testing.T) {
	app, h, cleanup := setupTestApp(t)
	defer cleanup()

	doRequest(t, h, http.MethodGet, "/api/v1/movies/41", "")
	doRequest(t, h, http.MethodGet, "/api/v1/movies/42", "")

	counter := app.metrics.HTTPRequestTotal.WithLabelValues(http.MethodGet, "/api/v1/movies/{id:[0-9]+}", "404")
	assert.Equal(t, float64(2), testutil.ToFloat64(counter))
}

func TestRecoverPanic(t *testing.T) {
	app, _, cleanup := setupTestApp(t)
	defer cleanup()

	h := app.recoverPanic(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := doRequest(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "close", rr.Header().Get("Connection"))
	assert.Equal(t, "INTERNAL", errorCode(t, rr))
}
