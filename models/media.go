package models

import "time"

// MediaFile is a file on disk that belongs to a movie.
type MediaFile struct {
	ID        int               `json:"id"`
	MovieID   int               `json:"movie_id"`
	Path      string            `json:"path"`
	Size      int64             `json:"size"`
	Container string            `json:"container,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Video     *VideoProperties  `json:"video,omitempty"`
	Audio     []AudioProperties `json:"audio,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// VideoProperties describes the primary video stream of a media file.
type VideoProperties struct {
	Codec       string  `json:"codec,omitempty"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	FrameRate   float64 `json:"frame_rate,omitempty"`
	BitRate     int64   `json:"bit_rate,omitempty"`
	AspectRatio string  `json:"aspect_ratio,omitempty"`
}

// Resolution returns a short label such as 1080p or 2160p.
func (v *VideoProperties) Resolution() string {
	if v == nil || v.Height == 0 {
		return ""
	}
	switch {
	case v.Height >= 2000 || v.Width >= 3800:
		return "2160p"
	case v.Height >= 1000 || v.Width >= 1900:
		return "1080p"
	case v.Height >= 700 || v.Width >= 1270:
		return "720p"
	case v.Height >= 560:
		return "576p"
	case v.Height >= 470:
		return "480p"
	default:
		return "SD"
	}
}

// AudioProperties describes one audio stream of a media file.
type AudioProperties struct {
	Codec      string `json:"codec,omitempty"`
	Language   string `json:"language,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	BitRate    int64  `json:"bit_rate,omitempty"`
}
