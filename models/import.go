package models

import "time"

// ImportResult summarises a folder import.
type ImportResult struct {
	JobID      string        `json:"job_id"`
	Root       string        `json:"root"`
	Imported   int           `json:"imported"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	MovieIDs   []int         `json:"movie_ids,omitempty"`
	Errors     []string      `json:"errors,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Elapsed    time.Duration `json:"elapsed"`
}

// DirectoryStats is the outcome of walking a directory.
type DirectoryStats struct {
	Path       string `json:"path"`
	TotalBytes int64  `json:"total_bytes"`
	Files      int    `json:"files"`
	VideoFiles int    `json:"video_files"`
	// Volume usage of the filesystem holding Path.
	VolumeTotal uint64  `json:"volume_total,omitempty"`
	VolumeFree  uint64  `json:"volume_free,omitempty"`
	VolumeUsed  float64 `json:"volume_used_percent,omitempty"`
}
