package repository

import (
	"moviecollection/database"
	"moviecollection/models"
)

// GenreRepository handles genres.
type GenreRepository struct {
	t namedTable
}

// NewGenreRepository creates a new genre repository
func NewGenreRepository(db *database.DB, refs *RefCache) *GenreRepository {
	return &GenreRepository{t: namedTable{
		db: db, refs: refs,
		table: "genres", joinTable: "movies_genres", joinCol: "genre_id", kind: "genre",
	}}
}

func (r *GenreRepository) GetOrCreate(name string) (*models.Genre, error) {
	row, err := r.t.getOrCreate(name)
	if err != nil {
		return nil, err
	}
	return &models.Genre{ID: row.ID, Name: row.Name}, nil
}

func (r *GenreRepository) GetByID(id int) (*models.Genre, error) {
	row, err := r.t.getByID(r.t.db, id)
	if err != nil {
		return nil, err
	}
	return &models.Genre{ID: row.ID, Name: row.Name}, nil
}

func (r *GenreRepository) GetAll() ([]models.Genre, error) {
	rows, err := r.t.getAll()
	if err != nil {
		return nil, err
	}
	genres := make([]models.Genre, 0, len(rows))
	for _, row := range rows {
		genres = append(genres, models.Genre{ID: row.ID, Name: row.Name})
	}
	return genres, nil
}

func (r *GenreRepository) Rename(id int, name string) error {
	return r.t.rename(id, name)
}

func (r *GenreRepository) Delete(id int) error {
	return r.t.delete(id)
}

// MoviesFor returns the movies tagged with a genre.
func (r *GenreRepository) MoviesFor(id int) ([]models.Movie, error) {
	return r.t.moviesFor(id)
}
