// Package main provides the entry point of the movie collection service.
//
// Usage:
//
//	moviecollection [database-path]
//
// The optional argument overrides MOVIES_DB_PATH.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"moviecollection/config"
	"moviecollection/database"
	"moviecollection/jobs"
	"moviecollection/mediainfo"
	"moviecollection/metrics"
	"moviecollection/repository"
	"moviecollection/services"
)

// App represents the application with its dependencies
type App struct {
	logger  hclog.Logger
	metrics *metrics.Metrics
	db      *database.DB

	movies  *repository.MovieRepository
	persons *repository.PersonRepository
	genres  *repository.GenreRepository
	files   *repository.MediaFileRepository
	users   *repository.UserRepository
	events  *repository.MovieEventRepository

	sources  *services.Registry
	prober   mediainfo.Prober
	importer *jobs.ImportJob
	jobs     *jobs.JobManager
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "moviecollection:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: moviecollection [database-path]")
	}
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.DBPath = args[0]
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "moviecollection",
		Level:      hclog.LevelFromString(cfg.LogLevel),
		JSONFormat: cfg.LogJSON,
	})

	db, err := database.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()
	if err := db.InitSchema(); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	m := metrics.Default()
	var prober mediainfo.Prober
	if cfg.FFProbePath != "" {
		prober = mediainfo.NewFFProbe(cfg.FFProbePath, logger.Named("ffprobe"))
	}
	app := newApp(db, cfg, logger, m, prober)

	queue := app.jobs.Queue()
	defer queue.Stop()
	app.jobs.Start()
	defer app.jobs.Stop()

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      app.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // directory sizes and live probes can be slow
		IdleTimeout:  60 * time.Second,
		ErrorLog:     logger.StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true}),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "env", cfg.Env, "db", cfg.DBPath)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// newApp wires repositories, web sources and background jobs around db. A
// nil prober imports files without technical properties.
func newApp(db *database.DB, cfg config.Config, logger hclog.Logger, m *metrics.Metrics, prober mediainfo.Prober) *App {
	refs := repository.NewRefCache(cfg.CacheSize)
	app := &App{
		logger:  logger,
		metrics: m,
		db:      db,
		movies:  repository.NewMovieRepository(db, refs),
		persons: repository.NewPersonRepository(db, refs),
		genres:  repository.NewGenreRepository(db, refs),
		files:   repository.NewMediaFileRepository(db),
		users:   repository.NewUserRepository(db),
		events:  repository.NewMovieEventRepository(db),
		sources: services.NewRegistry(m),
		prober:  prober,
	}

	if cfg.TMDBAPIKey != "" {
		app.sources.Register(services.NewTMDBService(cfg.TMDBAPIKey, "", cfg.WebRPS, logger))
	} else {
		logger.Warn("TMDB_API_KEY not set, TMDB search disabled")
	}
	if cfg.OMDBAPIKey != "" {
		app.sources.Register(services.NewOMDBService(cfg.OMDBAPIKey, cfg.OMDBURL, cfg.WebRPS, logger))
	} else {
		logger.Warn("OMDB_API_KEY not set, OMDb search disabled")
	}

	queue := jobs.NewWriteQueue(cfg.WriteQueueSize, logger.Named("writes"), m,
		jobs.RecordWriteFailures(app.events, logger))
	importer := jobs.NewImportJob(app.movies, app.files, app.events, app.prober, logger.Named("import"), m)
	app.importer = importer
	app.jobs = jobs.NewJobManager(importer, queue, app.events, jobs.ManagerConfig{
		WatchDirs:      cfg.WatchDirs,
		RescanInterval: cfg.RescanInterval,
		EventRetention: cfg.EventRetention,
	}, logger.Named("jobs"))

	return app
}

func (app *App) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(app.instrument)

	r.HandleFunc("/health", app.healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	// Movie endpoints
	api.HandleFunc("/movies", app.listMoviesHandler).Methods(http.MethodGet)
	api.HandleFunc("/movies", app.createMovieHandler).Methods(http.MethodPost)
	api.HandleFunc("/movies/{id:[0-9]+}", app.getMovieHandler).Methods(http.MethodGet)
	api.HandleFunc("/movies/{id:[0-9]+}", app.updateMovieHandler).Methods(http.MethodPut)
	api.HandleFunc("/movies/{id:[0-9]+}", app.deleteMovieHandler).Methods(http.MethodDelete)
	api.HandleFunc("/movies/{id:[0-9]+}/details", app.getMovieDetailsHandler).Methods(http.MethodGet)
	api.HandleFunc("/movies/{id:[0-9]+}/events", app.movieEventsHandler).Methods(http.MethodGet)
	api.HandleFunc("/movies/{id:[0-9]+}/files", app.movieFilesHandler).Methods(http.MethodGet)
	api.HandleFunc("/movies/{id:[0-9]+}/refresh/{source}", app.refreshMovieHandler).Methods(http.MethodPost)
	api.HandleFunc("/movies/web/{source}/{id}", app.addMovieFromSourceHandler).Methods(http.MethodPost)

	// People and genres
	api.HandleFunc("/persons", app.listPersonsHandler).Methods(http.MethodGet)
	api.HandleFunc("/persons/{id:[0-9]+}", app.renamePersonHandler).Methods(http.MethodPut)
	api.HandleFunc("/persons/{id:[0-9]+}", app.deletePersonHandler).Methods(http.MethodDelete)
	api.HandleFunc("/persons/{id:[0-9]+}/movies", app.personMoviesHandler).Methods(http.MethodGet)
	api.HandleFunc("/genres", app.listGenresHandler).Methods(http.MethodGet)
	api.HandleFunc("/genres/{id:[0-9]+}", app.renameGenreHandler).Methods(http.MethodPut)
	api.HandleFunc("/genres/{id:[0-9]+}", app.deleteGenreHandler).Methods(http.MethodDelete)
	api.HandleFunc("/genres/{id:[0-9]+}/movies", app.genreMoviesHandler).Methods(http.MethodGet)

	// Media files
	api.HandleFunc("/files/{id:[0-9]+}", app.deleteFileHandler).Methods(http.MethodDelete)
	api.HandleFunc("/files/{id:[0-9]+}/movie", app.moveFileHandler).Methods(http.MethodPut)
	api.HandleFunc("/files/{id:[0-9]+}/mediainfo", app.fileMediaInfoHandler).Methods(http.MethodGet)
	api.HandleFunc("/files/{id:[0-9]+}/probe", app.reprobeFileHandler).Methods(http.MethodPost)

	// Users
	api.HandleFunc("/users", app.listUsersHandler).Methods(http.MethodGet)
	api.HandleFunc("/users", app.createUserHandler).Methods(http.MethodPost)
	api.HandleFunc("/users/{id:[0-9]+}", app.deleteUserHandler).Methods(http.MethodDelete)
	api.HandleFunc("/users/{uid:[0-9]+}/seen", app.seenMoviesHandler).Methods(http.MethodGet)
	api.HandleFunc("/users/{uid:[0-9]+}/seen/{mid:[0-9]+}", app.getSeenHandler).Methods(http.MethodGet)
	api.HandleFunc("/users/{uid:[0-9]+}/seen/{mid:[0-9]+}", app.setSeenHandler).Methods(http.MethodPut)

	// Import and folders
	api.HandleFunc("/import", app.triggerImportHandler).Methods(http.MethodPost)
	api.HandleFunc("/import", app.listImportsHandler).Methods(http.MethodGet)
	api.HandleFunc("/import/{id}", app.importStatusHandler).Methods(http.MethodGet)
	api.HandleFunc("/import/{id}", app.cancelImportHandler).Methods(http.MethodDelete)
	api.HandleFunc("/dirsize", app.dirSizeHandler).Methods(http.MethodGet)

	// Web sources
	api.HandleFunc("/search", app.searchHandler).Methods(http.MethodGet)
	api.HandleFunc("/sources", app.listSourcesHandler).Methods(http.MethodGet)

	return app.recoverPanic(r)
}
