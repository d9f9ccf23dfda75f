package mediainfo

import (
	"math"
	"time"
)

// VideoStream describes one video stream.
type VideoStream struct {
	ID                      int           `json:"id"`
	Format                  string        `json:"format,omitempty"`
	CodecID                 string        `json:"codec_id,omitempty"`
	Profile                 string        `json:"profile,omitempty"`
	Width                   int           `json:"width,omitempty"`
	Height                  int           `json:"height,omitempty"`
	DisplayAspectRatio      float64       `json:"display_aspect_ratio,omitempty"`
	AspectRatio             string        `json:"aspect_ratio,omitempty"`
	FrameRate               float64       `json:"frame_rate,omitempty"`
	BitRate                 int64         `json:"bit_rate,omitempty"`
	BitDepth                int           `json:"bit_depth,omitempty"`
	FrameCount              int64         `json:"frame_count,omitempty"`
	PixelFormat             string        `json:"pixel_format,omitempty"`
	ScanType                string        `json:"scan_type,omitempty"`
	ColorPrimaries          string        `json:"colour_primaries,omitempty"`
	TransferCharacteristics string        `json:"transfer_characteristics,omitempty"`
	HDR                     bool          `json:"hdr"`
	Duration                time.Duration `json:"duration,omitempty"`
	Language                string        `json:"language,omitempty"`
	Title                   string        `json:"title,omitempty"`
	Default                 bool          `json:"default"`
	Forced                  bool          `json:"forced"`
}

// NewVideoStream projects video stream number stream of info.
func NewVideoStream(info *Info, stream int) VideoStream {
	get := func(p string) string { return info.Get(StreamVideo, stream, p) }
	v := VideoStream{
		Format:                  get("Format"),
		CodecID:                 get("CodecID"),
		Profile:                 get("Format_Profile"),
		AspectRatio:             get("DisplayAspectRatio/String"),
		PixelFormat:             get("PixelFormat"),
		ScanType:                get("ScanType"),
		ColorPrimaries:          get("colour_primaries"),
		TransferCharacteristics: get("transfer_characteristics"),
		Language:                get("Language"),
		Title:                   get("Title"),
	}
	v.ID, _ = parseInt(get("ID"))
	v.Width, _ = parseInt(get("Width"))
	v.Height, _ = parseInt(get("Height"))
	v.DisplayAspectRatio, _ = parseFloat(get("DisplayAspectRatio"))
	v.FrameRate, _ = parseFloat(get("FrameRate"))
	v.BitRate, _ = parseInt64(get("BitRate"))
	v.BitDepth, _ = parseInt(get("BitDepth"))
	v.FrameCount, _ = parseInt64(get("FrameCount"))
	v.Duration, _ = parseMillis(get("Duration"))
	v.Default, _ = parseYesNo(get("Default"))
	v.Forced, _ = parseYesNo(get("Forced"))
	if v.AspectRatio == "" && v.Width > 0 && v.Height > 0 {
		v.DisplayAspectRatio = math.Round(float64(v.Width)/float64(v.Height)*1000) / 1000
	}
	// PQ and HLG are the high dynamic range transfer functions.
	v.HDR = v.TransferCharacteristics == "PQ" || v.TransferCharacteristics == "HLG"
	return v
}

// AudioStream describes one audio stream.
type AudioStream struct {
	ID            int           `json:"id"`
	Format        string        `json:"format,omitempty"`
	CodecID       string        `json:"codec_id,omitempty"`
	Profile       string        `json:"profile,omitempty"`
	Channels      int           `json:"channels,omitempty"`
	ChannelLayout string        `json:"channel_layout,omitempty"`
	SamplingRate  int           `json:"sampling_rate,omitempty"`
	BitRate       int64         `json:"bit_rate,omitempty"`
	BitDepth      int           `json:"bit_depth,omitempty"`
	Duration      time.Duration `json:"duration,omitempty"`
	Language      string        `json:"language,omitempty"`
	Title         string        `json:"title,omitempty"`
	Default       bool          `json:"default"`
	Forced        bool          `json:"forced"`
}

// NewAudioStream projects audio stream number stream of info.
func NewAudioStream(info *Info, stream int) AudioStream {
	get := func(p string) string { return info.Get(StreamAudio, stream, p) }
	a := AudioStream{
		Format:        get("Format"),
		CodecID:       get("CodecID"),
		Profile:       get("Format_Profile"),
		ChannelLayout: get("ChannelLayout"),
		Language:      get("Language"),
		Title:         get("Title"),
	}
	a.ID, _ = parseInt(get("ID"))
	a.Channels, _ = parseInt(get("Channel(s)"))
	a.SamplingRate, _ = parseInt(get("SamplingRate"))
	a.BitRate, _ = parseInt64(get("BitRate"))
	a.BitDepth, _ = parseInt(get("BitDepth"))
	a.Duration, _ = parseMillis(get("Duration"))
	a.Default, _ = parseYesNo(get("Default"))
	a.Forced, _ = parseYesNo(get("Forced"))
	return a
}

// TextStream describes one subtitle stream.
type TextStream struct {
	ID       int           `json:"id"`
	Format   string        `json:"format,omitempty"`
	CodecID  string        `json:"codec_id,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Language string        `json:"language,omitempty"`
	Title    string        `json:"title,omitempty"`
	Default  bool          `json:"default"`
	Forced   bool          `json:"forced"`
}

// NewTextStream projects text stream number stream of info.
func NewTextStream(info *Info, stream int) TextStream {
	get := func(p string) string { return info.Get(StreamText, stream, p) }
	t := TextStream{
		Format:   get("Format"),
		CodecID:  get("CodecID"),
		Language: get("Language"),
		Title:    get("Title"),
	}
	t.ID, _ = parseInt(get("ID"))
	t.Duration, _ = parseMillis(get("Duration"))
	t.Default, _ = parseYesNo(get("Default"))
	t.Forced, _ = parseYesNo(get("Forced"))
	return t
}

// Chapter is a named position in the file.
type Chapter struct {
	ID     int64         `json:"id"`
	Start  time.Duration `json:"start"`
	End    time.Duration `json:"end,omitempty"`
	Length time.Duration `json:"length,omitempty"` // zero when the end is unknown
	Title  string        `json:"title,omitempty"`
}

// NewChapter projects chapter number stream of info.
func NewChapter(info *Info, stream int) Chapter {
	get := func(p string) string { return info.Get(StreamChapters, stream, p) }
	c := Chapter{Title: get("Title")}
	c.ID, _ = parseInt64(get("ID"))
	c.Start, _ = parseMillis(get("Start"))
	c.End, _ = parseMillis(get("End"))
	if c.End > c.Start {
		c.Length = c.End - c.Start
	}
	return c
}

// Image describes cover art or another embedded picture.
type Image struct {
	ID       int    `json:"id"`
	Format   string `json:"format,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Title    string `json:"title,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// NewImage projects image number stream of info.
func NewImage(info *Info, stream int) Image {
	get := func(p string) string { return info.Get(StreamImage, stream, p) }
	img := Image{
		Format:   get("Format"),
		Title:    get("Title"),
		MimeType: get("MimeType"),
	}
	img.ID, _ = parseInt(get("ID"))
	img.Width, _ = parseInt(get("Width"))
	img.Height, _ = parseInt(get("Height"))
	return img
}
