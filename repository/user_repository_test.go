package repository

import (
	"testing"

	"moviecollection/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_Profiles(t *testing.T) {
	testDB, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(testDB)

	bob, err := users.CreateProfile("Bob")
	require.NoError(t, err)
	_, err = users.CreateProfile("alice")
	require.NoError(t, err)

	_, err = users.CreateProfile("BOB")
	assert.True(t, apperrors.IsConflict(err))
	_, err = users.CreateProfile(" ")
	assert.True(t, apperrors.IsValidation(err))

	profiles, err := users.GetProfiles()
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "alice", profiles[0].Name)

	require.NoError(t, users.DeleteProfile(bob.ID))
	assert.True(t, apperrors.IsNotFound(users.DeleteProfile(bob.ID)))
	_, err = users.GetProfile(bob.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUserRepository_SeenState(t *testing.T) {
	testDB, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(testDB)
	movies := NewMovieRepository(testDB, nil)

	user, err := users.CreateProfile("viewer")
	require.NoError(t, err)
	first, err := createTestMovieForRepo(movies, "First")
	require.NoError(t, err)
	second, err := createTestMovieForRepo(movies, "Second")
	require.NoError(t, err)

	settings, err := users.GetSettings(user.ID, first.ID)
	require.NoError(t, err)
	assert.False(t, settings.Seen)
	assert.Nil(t, settings.SeenAt)

	require.NoError(t, users.SetSeen(user.ID, first.ID, true))
	settings, err = users.GetSettings(user.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, settings.Seen)
	require.NotNil(t, settings.SeenAt)
	firstSeenAt := *settings.SeenAt

	// Marking again keeps the original timestamp.
	require.NoError(t, users.SetSeen(user.ID, first.ID, true))
	settings, err = users.GetSettings(user.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, firstSeenAt.Equal(*settings.SeenAt))

	require.NoError(t, users.SetSeen(user.ID, second.ID, true))
	seen, err := users.SeenMovies(user.ID)
	require.NoError(t, err)
	assert.Len(t, seen, 2)

	require.NoError(t, users.SetSeen(user.ID, first.ID, false))
	settings, err = users.GetSettings(user.ID, first.ID)
	require.NoError(t, err)
	assert.False(t, settings.Seen)
	assert.Nil(t, settings.SeenAt)

	seen, err = users.SeenMovies(user.ID)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, "Second", seen[0].Title)
	assert.Equal(t, []string{"Action"}, seen[0].GenreNames())

	perMovie, err := users.SettingsForMovie(second.ID)
	require.NoError(t, err)
	require.Len(t, perMovie, 1)
	assert.Equal(t, user.ID, perMovie[0].UserID)
}

func TestUserRepository_SeenState_Unknown(t *testing.T) {
	testDB, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(testDB)
	movies := NewMovieRepository(testDB, nil)
	user, err := users.CreateProfile("viewer")
	require.NoError(t, err)
	movie, err := createTestMovieForRepo(movies, "Known")
	require.NoError(t, err)

	assert.True(t, apperrors.IsNotFound(users.SetSeen(user.ID, 999, true)))
	assert.True(t, apperrors.IsNotFound(users.SetSeen(999, movie.ID, true)))

	_, err = users.GetSettings(999, movie.ID)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = users.SeenMovies(999)
	assert.True(t, apperrors.IsNotFound(err))
}
