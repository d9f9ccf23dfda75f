package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"moviecollection/apperrors"
	"moviecollection/jobs"
	"moviecollection/mediainfo"
	"moviecollection/models"
)

func (app *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := envelope{"status": "ok", "sources": app.sources.Names()}
	if err := app.db.PingContext(r.Context()); err != nil {
		app.errorResponse(w, r, apperrors.Wrap(apperrors.Unavailable, err, "database unreachable"))
		return
	}
	count, err := app.movies.Count()
	if err != nil {
		app.errorResponse(w, r, apperrors.Wrap(apperrors.Unavailable, err, "database unreachable"))
		return
	}
	status["movies"] = count
	if app.jobs != nil {
		status["jobs_running"] = app.jobs.IsRunning()
		if q := app.jobs.Queue(); q != nil {
			status["pending_writes"] = q.Pending()
		}
	}
	app.writeJSON(w, http.StatusOK, status)
}

// movieInput is the writable part of a movie. Nil credit or genre lists
// leave the stored ones untouched on update.
type movieInput struct {
	Title         string   `json:"title" validate:"notblank,max=500"`
	OriginalTitle string   `json:"original_title" validate:"max=500"`
	Year          int      `json:"year" validate:"releaseyear"`
	Plot          string   `json:"plot"`
	Runtime       int      `json:"runtime" validate:"gte=0"`
	Rating        float64  `json:"rating" validate:"gte=0,lte=10"`
	IMDBID        string   `json:"imdb_id" validate:"omitempty,startswith=tt"`
	TMDBID        int      `json:"tmdb_id" validate:"gte=0"`
	Poster        string   `json:"poster"`
	Directors     []string `json:"directors" validate:"dive,max=200"`
	Cast          []string `json:"cast" validate:"dive,max=200"`
	Genres        []string `json:"genres" validate:"dive,max=100"`
}

func (in movieInput) toMovie() *models.Movie {
	movie := &models.Movie{
		Title:         in.Title,
		OriginalTitle: in.OriginalTitle,
		Year:          in.Year,
		Plot:          in.Plot,
		Runtime:       in.Runtime,
		Rating:        in.Rating,
		IMDBID:        in.IMDBID,
		TMDBID:        in.TMDBID,
		Poster:        in.Poster,
	}
	if in.Directors != nil {
		movie.Directors = people(in.Directors)
	}
	if in.Cast != nil {
		movie.Cast = people(in.Cast)
	}
	if in.Genres != nil {
		movie.Genres = make([]models.Genre, 0, len(in.Genres))
		for _, name := range in.Genres {
			movie.Genres = append(movie.Genres, models.Genre{Name: name})
		}
	}
	return movie
}

func people(names []string) []models.Person {
	list := make([]models.Person, 0, len(names))
	for _, name := range names {
		list = append(list, models.Person{Name: name})
	}
	return list
}

func (app *App) listMoviesHandler(w http.ResponseWriter, r *http.Request) {
	var movies []models.Movie
	var err error
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		movies, err = app.movies.Search(q)
	} else {
		movies, err = app.movies.GetAll()
	}
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, movies)
}

func (app *App) getMovieHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "id")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	movie, err := app.movies.GetByID(id)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, movie)
}

// getMovieDetailsHandler returns a movie together with its activity log and
// the viewers' seen state.
func (app *App) getMovieDetailsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "id")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	movie, err := app.movies.GetByID(id)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	events, err := app.events.GetByMovieID(id)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	counts, err := app.events.CountByType(id)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	seenBy, err := app.users.SettingsForMovie(id)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, models.DetailedMovieResponse{
		Movie:       movie,
		Events:      events,
		EventCounts: counts,
		SeenBy:      seenBy,
	})
}

func (app *App) createMovieHandler(w http.ResponseWriter, r *http.Request) {
	var in movieInput
	if err := app.readJSON(w, r, &in); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if err := validateInput(in); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	movie := in.toMovie()
	if err := app.movies.Create(movie); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.recordEvent(movie.ID, models.EventCreated, fmt.Sprintf("Movie %q created", movie.Title), nil)

	created, err := app.movies.GetByID(movie.ID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/movies/%d", movie.ID))
	app.writeJSON(w, http.StatusCreated, created)
}

func (app *App) updateMovieHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "id")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	var in movieInput
	if err := app.readJSON(w, r, &in); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if err := validateInput(in); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	movie := in.toMovie()
	movie.ID = id
	if err := app.movies.Update(movie); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.recordEvent(id, models.EventUpdated, fmt.Sprintf("Movie %q updated", movie.Title), nil)

	updated, err := app.movies.GetByID(id)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, updated)
}

func (app *App) deleteMovieHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "id")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if err := app.movies.Delete(id); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) movieEventsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "id")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if _, err := app.movies.GetByID(id); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	events, err := app.events.GetByMovieID(id)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, events)
}

// addMovieFromSourceHandler creates a movie from a web source record.
func (app *App) addMovieFromSourceHandler(w http.ResponseWriter, r *http.Request) {
	source, id := mux.Vars(r)["source"], mux.Vars(r)["id"]

	movie, err := app.sources.Fetch(r.Context(), source, id)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if existing, err := app.findExisting(movie); err != nil {
		app.errorResponse(w, r, err)
		return
	} else if existing != nil {
		app.errorResponse(w, r, apperrors.New(apperrors.Conflict,
			"movie %q is already in the collection with id %d", existing.Title, existing.ID))
		return
	}

	if err := app.movies.Create(movie); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.recordEvent(movie.ID, models.EventCreated, fmt.Sprintf("Movie %q added from %s", movie.Title, source),
		map[string]string{"source": source, "id": id})

	created, err := app.movies.GetByID(movie.ID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/movies/%d", movie.ID))
	app.writeJSON(w, http.StatusCreated, created)
}

func (app *App) findExisting(movie *models.Movie) (*models.Movie, error) {
	lookups := []func() (*models.Movie, error){}
	if movie.TMDBID != 0 {
		lookups = append(lookups, func() (*models.Movie, error) { return app.movies.FindByTMDBID(movie.TMDBID) })
	}
	if movie.IMDBID != "" {
		lookups = append(lookups, func() (*models.Movie, error) { return app.movies.FindByIMDBID(movie.IMDBID) })
	}
	for _, lookup := range lookups {
		existing, err := lookup()
		if err == nil {
			return existing, nil
		}
		if !apperrors.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, nil
}

// refreshMovieHandler overwrites a movie's metadata with a web source
// record. The record is located by the stored external ID when the source
// knows it, and by title and year otherwise.
func (app *App) refreshMovieHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "id")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	source := mux.Vars(r)["source"]

	movie, err := app.movies.GetByID(id)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	remote, err := app.fetchFor(r.Context(), source, movie)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	mergeMovie(movie, remote)
	if err := app.movies.Update(movie); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.recordEvent(id, models.EventMetadataRefreshed, fmt.Sprintf("Metadata refreshed from %s", source),
		map[string]interface{}{"source": source, "tmdb_id": movie.TMDBID, "imdb_id": movie.IMDBID})

	updated, err := app.movies.GetByID(id)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, updated)
}

func (app *App) fetchFor(ctx context.Context, source string, movie *models.Movie) (*models.Movie, error) {
	src, err := app.sources.Get(source)
	if err != nil {
		return nil, err
	}
	switch {
	case src.Name() == "tmdb" && movie.TMDBID != 0:
		return app.sources.Fetch(ctx, source, strconv.Itoa(movie.TMDBID))
	case src.Name() == "omdb" && movie.IMDBID != "":
		return app.sources.Fetch(ctx, source, movie.IMDBID)
	}

	results, err := app.sources.Search(ctx, source, movie.Title, movie.Year)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, apperrors.New(apperrors.NotFound, "%s has no match for %q", source, movie.Title)
	}
	return app.sources.Fetch(ctx, source, results[0].ID)
}

// mergeMovie copies every field remote knows into movie.
func mergeMovie(movie, remote *models.Movie) {
	if remote.Title != "" {
		movie.Title = remote.Title
	}
	if remote.OriginalTitle != "" {
		movie.OriginalTitle = remote.OriginalTitle
	}
	if remote.Year != 0 {
		movie.Year = remote.Year
	}
	if remote.Plot != "" {
		movie.Plot = remote.Plot
	}
	if remote.Runtime != 0 {
		movie.Runtime = remote.Runtime
	}
	if remote.Rating != 0 {
		movie.Rating = remote.Rating
	}
	if remote.IMDBID != "" {
		movie.IMDBID = remote.IMDBID
	}
	if remote.TMDBID != 0 {
		movie.TMDBID = remote.TMDBID
	}
	if remote.Poster != "" {
		movie.Poster = remote.Poster
	}

	// nil leaves the stored credits alone on Update
	movie.Directors, movie.Cast, movie.Genres = nil, nil, nil
	if len(remote.Directors) > 0 {
		movie.Directors = remote.Directors
	}
	if len(remote.Cast) > 0 {
		movie.Cast = remote.Cast
	}
	if len(remote.Genres) > 0 {
		movie.Genres = remote.Genres
	}
}

func (app *App) listPersonsHandler(w http.ResponseWriter, r *http.Request) {
	persons, err := app.persons.GetAll()
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, persons)
}

func (app *App) personMoviesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "id")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if _, err := app.persons.GetByID(id); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	var movies []models.Movie
	if role := r.URL.Query().Get("role"); role != "" {
		if !models.PersonRole(role).Valid() {
			app.errorResponse(w, r, apperrors.New(apperrors.Validation, "invalid role %q", role))
			return
		}
		movies, err = app.movies.GetByPerson(id, models.PersonRole(role))
	} else {
		movies, err = app.persons.MoviesFor(id)
	}
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, movies)
}

type renameInput struct {
	Name string `json:"name" validate:"notblank,max=200"`
}

func (app *App) renamePersonHandler(w http.ResponseWriter, r *http.Request) {
	app.rename(w, r, app.persons.Rename)
}

func (app *App) renameGenreHandler(w http.ResponseWriter, r *http.Request) {
	app.rename(w, r, app.genres.Rename)
}

func (app *App) rename(w http.ResponseWriter, r *http.Request, rename func(int, string) error) {
	id, err := readIDParam(r, "id")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	var in renameInput
	if err := app.readJSON(w, r, &in); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if err := validateInput(in); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if err := rename(id, in.Name); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, envelope{"id": id, "name": strings.TrimSpace(in.Name)})
}

func (app *App) deletePersonHandler(w http.ResponseWriter, r *http.Request) {
	app.deleteByID(w, r, app.persons.Delete)
}

func (app *App) deleteGenreHandler(w http.ResponseWriter, r *http.Request) {
	app.deleteByID(w, r, app.genres.Delete)
}

func (app *App) deleteByID(w http.ResponseWriter, r *http.Request, del func(int) error) {
	id, err := readIDParam(r, "id")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if err := del(id); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) listGenresHandler(w http.ResponseWriter, r *http.Request) {
	genres, err := app.genres.GetAll()
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, genres)
}

func (app *App) genreMoviesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "id")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if _, err := app.genres.GetByID(id); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	movies, err := app.genres.MoviesFor(id)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, movies)
}

func (app *App) movieFilesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "id")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if _, err := app.movies.GetByID(id); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	files, err := app.files.GetByMovieID(id)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, files)
}

func (app *App) deleteFileHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "id")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	file, err := app.files.GetByID(id)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if err := app.files.Delete(id); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.recordEvent(file.MovieID, models.EventFileRemoved, fmt.Sprintf("Removed file %s", file.Path),
		map[string]string{"path": file.Path})
	w.WriteHeader(http.StatusNoContent)
}

type moveFileInput struct {
	MovieID int `json:"movie_id" validate:"gt=0"`
}

// moveFileHandler reassigns a file to another movie, e.g. after a wrong
// title guess during import.
func (app *App) moveFileHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "id")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	var in moveFileInput
	if err := app.readJSON(w, r, &in); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if err := validateInput(in); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	file, err := app.files.GetByID(id)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if err := app.files.Move(id, in.MovieID); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.recordEvent(file.MovieID, models.EventFileRemoved, fmt.Sprintf("Moved file %s to movie %d", file.Path, in.MovieID),
		map[string]interface{}{"path": file.Path, "movie_id": in.MovieID})
	app.recordEvent(in.MovieID, models.EventFileAdded, fmt.Sprintf("Moved file %s from movie %d", file.Path, file.MovieID),
		map[string]interface{}{"path": file.Path, "movie_id": file.MovieID})

	moved, err := app.files.GetByID(id)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, moved)
}

// fileMediaInfoHandler probes a catalogued file now and reports every
// stream, or only the streams named by ?kind=.
func (app *App) fileMediaInfoHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "id")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	var kind mediainfo.StreamKind
	filtered := false
	if raw := r.URL.Query().Get("kind"); raw != "" {
		var ok bool
		if kind, ok = mediainfo.ParseStreamKind(raw); !ok {
			app.errorResponse(w, r, apperrors.New(apperrors.Validation, "unknown stream kind %q", raw))
			return
		}
		filtered = true
	}
	file, err := app.files.GetByID(id)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if app.prober == nil {
		app.errorResponse(w, r, apperrors.New(apperrors.Unavailable, "media probing is not configured"))
		return
	}
	info, err := app.prober.Probe(r.Context(), file.Path)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		text := info.Inform()
		if filtered {
			text = info.InformKind(kind)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := w.Write([]byte(text)); err != nil {
			app.logger.Debug("failed to write response", "error", err)
		}
		return
	}
	report := mediainfo.NewReport(info)
	if filtered {
		app.writeJSON(w, http.StatusOK, envelope{strings.ToLower(kind.String()): report.Section(kind)})
		return
	}
	app.writeJSON(w, http.StatusOK, report)
}

// reprobeFileHandler reads a catalogued file's media information again and
// stores the new stream properties.
func (app *App) reprobeFileHandler(w http.ResponseWriter, r *http.Request) {
	id, err := readIDParam(r, "id")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	file, err := app.importer.ReprobeFile(r.Context(), id)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, file)
}

func (app *App) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := app.users.GetProfiles()
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, users)
}

type userInput struct {
	Name string `json:"name" validate:"notblank,max=100"`
}

func (app *App) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var in userInput
	if err := app.readJSON(w, r, &in); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if err := validateInput(in); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	user, err := app.users.CreateProfile(in.Name)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusCreated, user)
}

func (app *App) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	app.deleteByID(w, r, app.users.DeleteProfile)
}

type seenInput struct {
	Seen *bool `json:"seen" validate:"required"`
}

// setSeenHandler validates the request and hands the write to the
// background queue. A full queue is reported as 503 so clients retry.
func (app *App) setSeenHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := readIDParam(r, "uid")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	movieID, err := readIDParam(r, "mid")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	var in seenInput
	if err := app.readJSON(w, r, &in); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if err := validateInput(in); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	user, err := app.users.GetProfile(userID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if _, err := app.movies.GetByID(movieID); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	seen := *in.Seen
	op := jobs.WriteOp{
		Name:    "set seen",
		MovieID: movieID,
		Apply: func() error {
			if err := app.users.SetSeen(userID, movieID, seen); err != nil {
				return err
			}
			app.recordEvent(movieID, models.EventSeenChanged, fmt.Sprintf("%s marked the movie as %s", user.Name, seenWord(seen)),
				map[string]interface{}{"user_id": userID, "seen": seen})
			return nil
		},
	}
	if err := app.jobs.Queue().Enqueue(op); err != nil {
		if errors.Is(err, jobs.ErrQueueFull) || errors.Is(err, jobs.ErrQueueStopped) {
			err = apperrors.Wrap(apperrors.Unavailable, err, "cannot accept writes right now")
		}
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusAccepted, envelope{"user_id": userID, "movie_id": movieID, "seen": seen})
}

func seenWord(seen bool) string {
	if seen {
		return "seen"
	}
	return "unseen"
}

func (app *App) seenMoviesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := readIDParam(r, "uid")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if _, err := app.users.GetProfile(userID); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	movies, err := app.users.SeenMovies(userID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, movies)
}

// getSeenHandler reports whether a user has seen a movie. Writes queued by
// setSeenHandler show up once the queue has applied them.
func (app *App) getSeenHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := readIDParam(r, "uid")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	movieID, err := readIDParam(r, "mid")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if _, err := app.movies.GetByID(movieID); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	settings, err := app.users.GetSettings(userID, movieID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, settings)
}

type importInput struct {
	Path string `json:"path" validate:"notblank"`
}

func (app *App) triggerImportHandler(w http.ResponseWriter, r *http.Request) {
	var in importInput
	if err := app.readJSON(w, r, &in); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if err := validateInput(in); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	jobID, err := app.jobs.TriggerImport(in.Path)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/import/"+jobID)
	app.writeJSON(w, http.StatusAccepted, envelope{"job_id": jobID})
}

func (app *App) listImportsHandler(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, http.StatusOK, app.jobs.Imports())
}

func (app *App) importStatusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := app.jobs.ImportStatus(mux.Vars(r)["id"])
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, status)
}

func (app *App) cancelImportHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.jobs.CancelImport(mux.Vars(r)["id"]); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) dirSizeHandler(w http.ResponseWriter, r *http.Request) {
	path, err := requireParam(r, "path")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	stats, err := jobs.DirectorySize(ctx, path)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, stats)
}

func (app *App) searchHandler(w http.ResponseWriter, r *http.Request) {
	query, err := requireParam(r, "q")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	year, err := readYear(r)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	results, err := app.sources.Search(r.Context(), r.URL.Query().Get("source"), query, year)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, results)
}

func (app *App) listSourcesHandler(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, http.StatusOK, app.sources.Names())
}

// recordEvent logs instead of failing the request: the write it describes
// has already happened.
func (app *App) recordEvent(movieID int, eventType models.MovieEventType, message string, details interface{}) {
	if err := app.events.Create(movieID, eventType, message, details); err != nil {
		app.logger.Error("failed to record movie event", "movie_id", movieID, "type", eventType, "error", err)
	}
}
