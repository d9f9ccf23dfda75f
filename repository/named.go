package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"moviecollection/apperrors"
	"moviecollection/database"
	"moviecollection/models"
)

// namedTable implements the shared behaviour of the persons and genres
// tables: rows with a unique, case-insensitive name linked to movies
// through a join table.
type namedTable struct {
	db        *database.DB
	refs      *RefCache
	table     string // persons, genres
	joinTable string // movies_persons, movies_genres
	joinCol   string // person_id, genre_id
	kind      string // person, genre
}

type namedRow struct {
	ID   int
	Name string
}

// resolve returns the ID for name, inserting the row when it does not exist.
// Looked-up and inserted IDs are staged, not cached.
func (t *namedTable) resolve(q querier, staged *refBatch, name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, apperrors.New(apperrors.Validation, "%s name is required", t.kind)
	}

	if id, ok := t.refs.Get(t.table, name); ok {
		return id, nil
	}

	var id int
	err := q.QueryRow(fmt.Sprintf(`SELECT id FROM %s WHERE name = ?`, t.table), name).Scan(&id)
	switch {
	case err == nil:
		staged.add(t.table, name, id)
		return id, nil
	case errors.Is(err, sql.ErrNoRows):
	default:
		return 0, fmt.Errorf("failed to look up %s %q: %w", t.kind, name, err)
	}

	result, err := q.Exec(fmt.Sprintf(`INSERT INTO %s (name) VALUES (?)`, t.table), name)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s %q: %w", t.kind, name, err)
	}
	lastID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	staged.add(t.table, name, int(lastID))
	return int(lastID), nil
}

func (t *namedTable) getOrCreate(name string) (namedRow, error) {
	var row namedRow
	err := withRefTx(t.db, t.refs, func(tx *sql.Tx, staged *refBatch) error {
		id, err := t.resolve(tx, staged, name)
		if err != nil {
			return err
		}
		row, err = t.getByID(tx, id)
		return err
	})
	return row, err
}

func (t *namedTable) getByID(q querier, id int) (namedRow, error) {
	var row namedRow
	err := q.QueryRow(fmt.Sprintf(`SELECT id, name FROM %s WHERE id = ?`, t.table), id).Scan(&row.ID, &row.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return row, apperrors.New(apperrors.NotFound, "%s with id %d not found", t.kind, id)
		}
		return row, fmt.Errorf("failed to get %s: %w", t.kind, err)
	}
	return row, nil
}

func (t *namedTable) getAll() ([]namedRow, error) {
	rows, err := t.db.Query(fmt.Sprintf(`SELECT id, name FROM %s ORDER BY name COLLATE NOCASE`, t.table))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", t.table, err)
	}
	defer rows.Close()

	var all []namedRow
	for rows.Next() {
		var row namedRow
		if err := rows.Scan(&row.ID, &row.Name); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", t.kind, err)
		}
		all = append(all, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", t.table, err)
	}
	return all, nil
}

func (t *namedTable) rename(id int, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.New(apperrors.Validation, "%s name is required", t.kind)
	}

	return withTx(t.db, func(tx *sql.Tx) error {
		old, err := t.getByID(tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(fmt.Sprintf(`UPDATE %s SET name = ? WHERE id = ?`, t.table), name, id); err != nil {
			if isUniqueViolation(err) {
				return apperrors.Wrap(apperrors.Conflict, err, "%s %q already exists", t.kind, name)
			}
			return fmt.Errorf("failed to rename %s: %w", t.kind, err)
		}
		t.refs.Remove(t.table, old.Name)
		return nil
	})
}

func (t *namedTable) delete(id int) error {
	return withTx(t.db, func(tx *sql.Tx) error {
		old, err := t.getByID(tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, t.table), id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", t.kind, err)
		}
		t.refs.Remove(t.table, old.Name)
		return nil
	})
}

// pruneOrphans deletes rows no movie references any more.
func (t *namedTable) pruneOrphans(q querier) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id NOT IN (SELECT DISTINCT %s FROM %s)`,
		t.table, t.joinCol, t.joinTable)
	result, err := q.Exec(query)
	if err != nil {
		return 0, fmt.Errorf("failed to prune %s: %w", t.table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned %s: %w", t.table, err)
	}
	if n > 0 {
		t.refs.Purge()
	}
	return n, nil
}

// moviesFor returns the movies linked to row id, with their relations.
func (t *namedTable) moviesFor(id int) ([]models.Movie, error) {
	if _, err := t.getByID(t.db, id); err != nil {
		return nil, err
	}
	movies, err := queryMovies(t.db, fmt.Sprintf(`
		SELECT DISTINCT m.%s
		FROM movies m JOIN %s j ON j.movie_id = m.id
		WHERE j.%s = ?
		ORDER BY m.title COLLATE NOCASE, m.year`,
		strings.ReplaceAll(movieColumns, ", ", ", m."), t.joinTable, t.joinCol), id)
	if err != nil {
		return nil, err
	}
	if err := attachRelations(t.db, movies); err != nil {
		return nil, err
	}
	return movies, nil
}
