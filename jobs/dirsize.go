package jobs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/disk"

	"moviecollection/apperrors"
	"moviecollection/filename"
	"moviecollection/models"
)

// DirectorySize walks dir and totals the size of the regular files below it.
// Volume usage is filled in when the platform reports it.
func DirectorySize(ctx context.Context, dir string) (*models.DirectoryStats, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	stat, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.New(apperrors.NotFound, "folder %s does not exist", root)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !stat.IsDir() {
		return nil, apperrors.New(apperrors.Validation, "%s is not a folder", root)
	}

	stats := &models.DirectoryStats{Path: root}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// unreadable entries do not abort the total
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		stats.TotalBytes += info.Size()
		stats.Files++
		if filename.IsVideoFile(path) {
			stats.VideoFiles++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to measure %s: %w", root, err)
	}

	if usage, err := disk.UsageWithContext(ctx, root); err == nil {
		stats.VolumeTotal = usage.Total
		stats.VolumeFree = usage.Free
		stats.VolumeUsed = usage.UsedPercent
	}

	return stats, nil
}
