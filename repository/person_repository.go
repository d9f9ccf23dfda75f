package repository

import (
	"moviecollection/database"
	"moviecollection/models"
)

// PersonRepository handles directors and cast members.
type PersonRepository struct {
	t namedTable
}

// NewPersonRepository creates a new person repository
func NewPersonRepository(db *database.DB, refs *RefCache) *PersonRepository {
	return &PersonRepository{t: namedTable{
		db: db, refs: refs,
		table: "persons", joinTable: "movies_persons", joinCol: "person_id", kind: "person",
	}}
}

// GetOrCreate returns the person called name, creating it if needed.
func (r *PersonRepository) GetOrCreate(name string) (*models.Person, error) {
	row, err := r.t.getOrCreate(name)
	if err != nil {
		return nil, err
	}
	return &models.Person{ID: row.ID, Name: row.Name}, nil
}

// GetByID retrieves a person by its ID
func (r *PersonRepository) GetByID(id int) (*models.Person, error) {
	row, err := r.t.getByID(r.t.db, id)
	if err != nil {
		return nil, err
	}
	return &models.Person{ID: row.ID, Name: row.Name}, nil
}

// GetAll returns every person ordered by name.
func (r *PersonRepository) GetAll() ([]models.Person, error) {
	rows, err := r.t.getAll()
	if err != nil {
		return nil, err
	}
	people := make([]models.Person, 0, len(rows))
	for _, row := range rows {
		people = append(people, models.Person{ID: row.ID, Name: row.Name})
	}
	return people, nil
}

// Rename changes a person's name.
func (r *PersonRepository) Rename(id int, name string) error {
	return r.t.rename(id, name)
}

// Delete removes a person and all of their credits.
func (r *PersonRepository) Delete(id int) error {
	return r.t.delete(id)
}

// MoviesFor returns the movies a person is credited on, in any role.
func (r *PersonRepository) MoviesFor(id int) ([]models.Movie, error) {
	return r.t.moviesFor(id)
}
