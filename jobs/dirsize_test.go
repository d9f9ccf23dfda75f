package jobs

import (
	"context"
	"path/filepath"
	"testing"

	"moviecollection/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectorySize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Heat (1995).avi", 1000)
	writeFile(t, dir, "Heat (1995).nfo", 24)
	writeFile(t, dir, "extras/Alien.1979.mkv", 2000)
	writeFile(t, dir, "extras/empty/.keep", 0)

	stats, err := DirectorySize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, int64(3024), stats.TotalBytes)
	assert.Equal(t, 4, stats.Files)
	assert.Equal(t, 2, stats.VideoFiles)
	assert.NotZero(t, stats.VolumeTotal)
	assert.GreaterOrEqual(t, stats.VolumeTotal, stats.VolumeFree)
}

func TestDirectorySize_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := DirectorySize(context.Background(), filepath.Join(dir, "missing"))
	assert.True(t, apperrors.IsNotFound(err))

	file := writeFile(t, dir, "Heat.1995.mkv", 1)
	_, err = DirectorySize(context.Background(), file)
	assert.True(t, apperrors.IsValidation(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = DirectorySize(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}
