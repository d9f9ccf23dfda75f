package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"moviecollection/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOMDBServer(t *testing.T) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "omdb-key", q.Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		switch {
		case q.Get("s") == "heat":
			fmt.Fprint(w, `{"Response":"True","totalResults":"2","Search":[
				{"Title":"Heat","Year":"1995","imdbID":"tt0113277","Type":"movie","Poster":"https://img/heat.jpg"},
				{"Title":"Heat","Year":"1986","imdbID":"tt0091183","Type":"movie","Poster":"N/A"}]}`)
		case q.Get("s") != "":
			fmt.Fprint(w, `{"Response":"False","Error":"Movie not found!"}`)
		case q.Get("i") == "tt0113277":
			fmt.Fprint(w, `{"Response":"True","Title":"Heat","Year":"1995","Runtime":"170 min",
				"Genre":"Action, Crime, Drama","Director":"Michael Mann",
				"Actors":"Al Pacino, Robert De Niro, Val Kilmer","Plot":"A group of thieves.",
				"Poster":"N/A","imdbRating":"8.3","imdbID":"tt0113277"}`)
		default:
			fmt.Fprint(w, `{"Response":"False","Error":"Incorrect IMDb ID."}`)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOMDBService_Search(t *testing.T) {
	omdb := NewOMDBService("omdb-key", newOMDBServer(t).URL, 100, nil)

	results, err := omdb.Search(context.Background(), "heat", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "tt0113277", results[0].ID)
	assert.Equal(t, 1995, results[0].Year)
	assert.Empty(t, results[1].Poster)

	none, err := omdb.Search(context.Background(), "zzzz", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOMDBService_Fetch(t *testing.T) {
	omdb := NewOMDBService("omdb-key", newOMDBServer(t).URL, 100, nil)

	movie, err := omdb.Fetch(context.Background(), "tt0113277")
	require.NoError(t, err)
	assert.Equal(t, "Heat", movie.Title)
	assert.Equal(t, 1995, movie.Year)
	assert.Equal(t, 170, movie.Runtime)
	assert.InDelta(t, 8.3, movie.Rating, 0.001)
	assert.Empty(t, movie.Poster)
	assert.Equal(t, []string{"Michael Mann"}, movie.DirectorNames())
	assert.Equal(t, []string{"Al Pacino", "Robert De Niro", "Val Kilmer"}, movie.CastNames())
	assert.Equal(t, []string{"Action", "Crime", "Drama"}, movie.GenreNames())

	_, err = omdb.Fetch(context.Background(), "tt0000000")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = omdb.Fetch(context.Background(), "603")
	assert.True(t, apperrors.IsValidation(err))
}

func TestParseYear(t *testing.T) {
	assert.Equal(t, 1999, parseYear("1999-03-30"))
	assert.Equal(t, 2005, parseYear("2005–2007"))
	assert.Equal(t, 0, parseYear("N/A"))
	assert.Equal(t, 0, parseYear(""))
}
