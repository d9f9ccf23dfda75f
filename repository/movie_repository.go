package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"moviecollection/apperrors"
	"moviecollection/database"
	"moviecollection/models"
)

// MovieRepository handles database operations for movies and materializes
// the movie graph (credits, genres, files).
type MovieRepository struct {
	db      *database.DB
	refs    *RefCache
	persons *PersonRepository
	genres  *GenreRepository
}

// NewMovieRepository creates a new movie repository
func NewMovieRepository(db *database.DB, refs *RefCache) *MovieRepository {
	return &MovieRepository{
		db:      db,
		refs:    refs,
		persons: NewPersonRepository(db, refs),
		genres:  NewGenreRepository(db, refs),
	}
}

const movieColumns = `id, title, original_title, year, plot, runtime, rating, imdb_id, tmdb_id, poster, created_at, updated_at`

func scanMovie(row rowScanner) (*models.Movie, error) {
	var movie models.Movie
	var originalTitle, plot, imdbID, poster sql.NullString
	var year, runtime, tmdbID sql.NullInt64
	var rating sql.NullFloat64

	err := row.Scan(
		&movie.ID, &movie.Title, &originalTitle, &year, &plot,
		&runtime, &rating, &imdbID, &tmdbID, &poster,
		&movie.CreatedAt, &movie.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	movie.OriginalTitle = originalTitle.String
	movie.Year = int(year.Int64)
	movie.Plot = plot.String
	movie.Runtime = int(runtime.Int64)
	movie.Rating = rating.Float64
	movie.IMDBID = imdbID.String
	movie.TMDBID = int(tmdbID.Int64)
	movie.Poster = poster.String
	return &movie, nil
}

// queryMovies runs query and returns flat movie rows.
func queryMovies(q querier, query string, args ...interface{}) ([]models.Movie, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movies: %w", err)
	}
	defer rows.Close()

	movies := []models.Movie{}
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movie: %w", err)
		}
		movies = append(movies, *movie)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}
	return movies, nil
}

// GetAll retrieves all movies with their credits and genres.
func (r *MovieRepository) GetAll() ([]models.Movie, error) {
	movies, err := queryMovies(r.db, `SELECT `+movieColumns+` FROM movies ORDER BY title COLLATE NOCASE, year`)
	if err != nil {
		return nil, err
	}
	if err := attachRelations(r.db, movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// Search returns movies whose title or original title contains query.
func (r *MovieRepository) Search(query string) ([]models.Movie, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return r.GetAll()
	}
	pattern := "%" + escapeLike(query) + "%"
	movies, err := queryMovies(r.db, `
		SELECT `+movieColumns+` FROM movies
		WHERE title LIKE ? ESCAPE '\' OR original_title LIKE ? ESCAPE '\'
		ORDER BY title COLLATE NOCASE, year`, pattern, pattern)
	if err != nil {
		return nil, err
	}
	if err := attachRelations(r.db, movies); err != nil {
		return nil, err
	}
	return movies, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// GetByPerson returns the movies a person is credited on in role. An empty
// role matches both directing and acting credits.
func (r *MovieRepository) GetByPerson(personID int, role models.PersonRole) ([]models.Movie, error) {
	if _, err := r.persons.GetByID(personID); err != nil {
		return nil, err
	}
	query := `SELECT DISTINCT m.` + strings.ReplaceAll(movieColumns, ", ", ", m.") + `
		FROM movies m JOIN movies_persons mp ON mp.movie_id = m.id
		WHERE mp.person_id = ?`
	args := []interface{}{personID}
	if role != "" {
		query += ` AND mp.role = ?`
		args = append(args, string(role))
	}
	query += ` ORDER BY m.year, m.title`

	movies, err := queryMovies(r.db, query, args...)
	if err != nil {
		return nil, err
	}
	if err := attachRelations(r.db, movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// GetByID retrieves a movie by its ID with the full graph: directors, cast,
// genres and media files including stream properties.
func (r *MovieRepository) GetByID(id int) (*models.Movie, error) {
	movie, err := getMovie(r.db, id)
	if err != nil {
		return nil, err
	}

	movies := []models.Movie{*movie}
	if err := attachRelations(r.db, movies); err != nil {
		return nil, err
	}
	movie = &movies[0]

	files, err := loadMediaFiles(r.db, id)
	if err != nil {
		return nil, err
	}
	movie.Files = files
	return movie, nil
}

func getMovie(q querier, id int) (*models.Movie, error) {
	movie, err := scanMovie(q.QueryRow(`SELECT `+movieColumns+` FROM movies WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.NotFound, "movie with id %d not found", id)
		}
		return nil, fmt.Errorf("failed to get movie: %w", err)
	}
	return movie, nil
}

// FindByIMDBID returns the movie with the given IMDb ID.
func (r *MovieRepository) FindByIMDBID(imdbID string) (*models.Movie, error) {
	return r.findOne(`imdb_id = ?`, imdbID)
}

// FindByTMDBID returns the movie with the given TMDB ID.
func (r *MovieRepository) FindByTMDBID(tmdbID int) (*models.Movie, error) {
	return r.findOne(`tmdb_id = ?`, tmdbID)
}

// FindByTitleYear returns the movie with a case-insensitively equal title
// and the same year. A zero year only matches movies without a year.
func (r *MovieRepository) FindByTitleYear(title string, year int) (*models.Movie, error) {
	return r.findOne(`title = ? COLLATE NOCASE AND IFNULL(year, 0) = ?`, strings.TrimSpace(title), year)
}

func (r *MovieRepository) findOne(where string, args ...interface{}) (*models.Movie, error) {
	movies, err := queryMovies(r.db, `SELECT `+movieColumns+` FROM movies WHERE `+where+` ORDER BY id LIMIT 1`, args...)
	if err != nil {
		return nil, err
	}
	if len(movies) == 0 {
		return nil, apperrors.New(apperrors.NotFound, "movie not found")
	}
	return r.GetByID(movies[0].ID)
}

// Create inserts a new movie into the database together with any directors,
// cast and genres set on it.
func (r *MovieRepository) Create(movie *models.Movie) error {
	if strings.TrimSpace(movie.Title) == "" {
		return apperrors.New(apperrors.Validation, "title is required")
	}
	movie.Title = strings.TrimSpace(movie.Title)

	now := time.Now().UTC()
	movie.CreatedAt = now
	movie.UpdatedAt = now

	return withRefTx(r.db, r.refs, func(tx *sql.Tx, staged *refBatch) error {
		result, err := tx.Exec(`
			INSERT INTO movies (title, original_title, year, plot, runtime, rating,
								imdb_id, tmdb_id, poster, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			movie.Title, nullString(movie.OriginalTitle), nullInt(movie.Year),
			nullString(movie.Plot), nullInt(movie.Runtime), nullFloat64(movie.Rating),
			nullString(movie.IMDBID), nullInt(movie.TMDBID), nullString(movie.Poster),
			movie.CreatedAt, movie.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create movie: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		movie.ID = int(id)

		return r.syncRelations(tx, staged, movie)
	})
}

// Update writes the scalar fields of movie. Directors, Cast and Genres are
// replaced when non-nil and left untouched when nil.
func (r *MovieRepository) Update(movie *models.Movie) error {
	if strings.TrimSpace(movie.Title) == "" {
		return apperrors.New(apperrors.Validation, "title is required")
	}
	movie.Title = strings.TrimSpace(movie.Title)
	movie.UpdatedAt = time.Now().UTC()

	return withRefTx(r.db, r.refs, func(tx *sql.Tx, staged *refBatch) error {
		result, err := tx.Exec(`
			UPDATE movies SET title = ?, original_title = ?, year = ?, plot = ?, runtime = ?,
				rating = ?, imdb_id = ?, tmdb_id = ?, poster = ?, updated_at = ?
			WHERE id = ?`,
			movie.Title, nullString(movie.OriginalTitle), nullInt(movie.Year),
			nullString(movie.Plot), nullInt(movie.Runtime), nullFloat64(movie.Rating),
			nullString(movie.IMDBID), nullInt(movie.TMDBID), nullString(movie.Poster),
			movie.UpdatedAt, movie.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update movie: %w", err)
		}
		if err := expectAffected(result, "movie", movie.ID); err != nil {
			return err
		}
		return r.syncRelations(tx, staged, movie)
	})
}

func (r *MovieRepository) syncRelations(tx *sql.Tx, staged *refBatch, movie *models.Movie) error {
	if movie.Directors != nil {
		people, err := r.setPersons(tx, staged, movie.ID, models.RoleDirector, movie.DirectorNames())
		if err != nil {
			return err
		}
		movie.Directors = people
	}
	if movie.Cast != nil {
		people, err := r.setPersons(tx, staged, movie.ID, models.RoleCast, movie.CastNames())
		if err != nil {
			return err
		}
		movie.Cast = people
	}
	if movie.Genres != nil {
		genres, err := r.setGenres(tx, staged, movie.ID, movie.GenreNames())
		if err != nil {
			return err
		}
		movie.Genres = genres
	}
	return nil
}

// SetPersons replaces the movie's credits for role with names, in order.
func (r *MovieRepository) SetPersons(movieID int, role models.PersonRole, names []string) ([]models.Person, error) {
	if !role.Valid() {
		return nil, apperrors.New(apperrors.Validation, "unknown role %q", role)
	}
	var people []models.Person
	err := withRefTx(r.db, r.refs, func(tx *sql.Tx, staged *refBatch) error {
		if _, err := getMovie(tx, movieID); err != nil {
			return err
		}
		var err error
		people, err = r.setPersons(tx, staged, movieID, role, names)
		if err != nil {
			return err
		}
		return touchMovie(tx, movieID)
	})
	return people, err
}

func (r *MovieRepository) setPersons(tx *sql.Tx, staged *refBatch, movieID int, role models.PersonRole, names []string) ([]models.Person, error) {
	if _, err := tx.Exec(`DELETE FROM movies_persons WHERE movie_id = ? AND role = ?`, movieID, string(role)); err != nil {
		return nil, fmt.Errorf("failed to clear %s credits: %w", role, err)
	}

	people := []models.Person{}
	seen := make(map[int]bool)
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		id, err := r.persons.t.resolve(tx, staged, name)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := tx.Exec(`INSERT INTO movies_persons (movie_id, person_id, role, ordinal) VALUES (?, ?, ?, ?)`,
			movieID, id, string(role), len(people)); err != nil {
			return nil, fmt.Errorf("failed to credit person: %w", err)
		}
		people = append(people, models.Person{ID: id, Name: strings.TrimSpace(name)})
	}
	return people, nil
}

// SetGenres replaces the movie's genres with names.
func (r *MovieRepository) SetGenres(movieID int, names []string) ([]models.Genre, error) {
	var genres []models.Genre
	err := withRefTx(r.db, r.refs, func(tx *sql.Tx, staged *refBatch) error {
		if _, err := getMovie(tx, movieID); err != nil {
			return err
		}
		var err error
		genres, err = r.setGenres(tx, staged, movieID, names)
		if err != nil {
			return err
		}
		return touchMovie(tx, movieID)
	})
	return genres, err
}

func (r *MovieRepository) setGenres(tx *sql.Tx, staged *refBatch, movieID int, names []string) ([]models.Genre, error) {
	if _, err := tx.Exec(`DELETE FROM movies_genres WHERE movie_id = ?`, movieID); err != nil {
		return nil, fmt.Errorf("failed to clear genres: %w", err)
	}

	genres := []models.Genre{}
	seen := make(map[int]bool)
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		id, err := r.genres.t.resolve(tx, staged, name)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := tx.Exec(`INSERT INTO movies_genres (movie_id, genre_id) VALUES (?, ?)`, movieID, id); err != nil {
			return nil, fmt.Errorf("failed to tag genre: %w", err)
		}
		genres = append(genres, models.Genre{ID: id, Name: strings.TrimSpace(name)})
	}
	return genres, nil
}

func touchMovie(q querier, movieID int) error {
	if _, err := q.Exec(`UPDATE movies SET updated_at = ? WHERE id = ?`, time.Now().UTC(), movieID); err != nil {
		return fmt.Errorf("failed to touch movie: %w", err)
	}
	return nil
}

// Delete removes a movie. Credits, genre links, media files, stream
// properties and per-user settings are removed by cascade; people and
// genres no longer referenced by any movie are pruned.
func (r *MovieRepository) Delete(id int) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		result, err := tx.Exec(`DELETE FROM movies WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete movie: %w", err)
		}
		if err := expectAffected(result, "movie", id); err != nil {
			return err
		}
		if _, err := r.persons.t.pruneOrphans(tx); err != nil {
			return err
		}
		if _, err := r.genres.t.pruneOrphans(tx); err != nil {
			return err
		}
		return nil
	})
}

// Count returns the number of movies.
func (r *MovieRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM movies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count movies: %w", err)
	}
	return n, nil
}

// attachRelations loads directors, cast and genres for movies in bulk.
func attachRelations(q querier, movies []models.Movie) error {
	if len(movies) == 0 {
		return nil
	}

	index := make(map[int]*models.Movie, len(movies))
	ids := make([]int, 0, len(movies))
	for i := range movies {
		index[movies[i].ID] = &movies[i]
		ids = append(ids, movies[i].ID)
	}

	for _, chunk := range chunkIDs(ids) {
		if err := attachPersons(q, index, chunk); err != nil {
			return err
		}
		if err := attachGenres(q, index, chunk); err != nil {
			return err
		}
	}
	return nil
}

func attachPersons(q querier, index map[int]*models.Movie, ids []int) error {
	rows, err := q.Query(`
		SELECT mp.movie_id, mp.role, p.id, p.name
		FROM movies_persons mp JOIN persons p ON p.id = mp.person_id
		WHERE mp.movie_id IN (`+placeholders(len(ids))+`)
		ORDER BY mp.movie_id, mp.role, mp.ordinal`, intArgs(ids)...)
	if err != nil {
		return fmt.Errorf("failed to query credits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var movieID int
		var role string
		var person models.Person
		if err := rows.Scan(&movieID, &role, &person.ID, &person.Name); err != nil {
			return fmt.Errorf("failed to scan credit: %w", err)
		}
		movie := index[movieID]
		if movie == nil {
			continue
		}
		switch models.PersonRole(role) {
		case models.RoleDirector:
			movie.Directors = append(movie.Directors, person)
		case models.RoleCast:
			movie.Cast = append(movie.Cast, person)
		}
	}
	return rows.Err()
}

func attachGenres(q querier, index map[int]*models.Movie, ids []int) error {
	rows, err := q.Query(`
		SELECT mg.movie_id, g.id, g.name
		FROM movies_genres mg JOIN genres g ON g.id = mg.genre_id
		WHERE mg.movie_id IN (`+placeholders(len(ids))+`)
		ORDER BY mg.movie_id, g.name COLLATE NOCASE`, intArgs(ids)...)
	if err != nil {
		return fmt.Errorf("failed to query genres: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var movieID int
		var genre models.Genre
		if err := rows.Scan(&movieID, &genre.ID, &genre.Name); err != nil {
			return fmt.Errorf("failed to scan genre: %w", err)
		}
		if movie := index[movieID]; movie != nil {
			movie.Genres = append(movie.Genres, genre)
		}
	}
	return rows.Err()
}
