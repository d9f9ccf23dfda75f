package mediainfo

import "time"

// GeneralInformation describes the container of a media file.
type GeneralInformation struct {
	CompleteName       string        `json:"complete_name"`
	Format             string        `json:"format,omitempty"`
	FormatCommercial   string        `json:"format_commercial,omitempty"`
	FileSize           int64         `json:"file_size,omitempty"`
	Duration           time.Duration `json:"duration,omitempty"`
	OverallBitRate     int64         `json:"overall_bit_rate,omitempty"`
	Title              string        `json:"title,omitempty"`
	EncodedDate        string        `json:"encoded_date,omitempty"`
	EncodedApplication string        `json:"encoded_application,omitempty"`
	VideoCount         int           `json:"video_count"`
	AudioCount         int           `json:"audio_count"`
	TextCount          int           `json:"text_count"`
	ChapterCount       int           `json:"chapter_count"`
}

// NewGeneralInformation projects the General stream of info.
func NewGeneralInformation(info *Info) GeneralInformation {
	get := func(p string) string { return info.Get(StreamGeneral, 0, p) }
	g := GeneralInformation{
		CompleteName:       get("CompleteName"),
		Format:             get("Format"),
		FormatCommercial:   get("Format_Commercial"),
		Title:              get("Title"),
		EncodedDate:        get("Encoded_Date"),
		EncodedApplication: get("Encoded_Application"),
		VideoCount:         info.Count(StreamVideo),
		AudioCount:         info.Count(StreamAudio),
		TextCount:          info.Count(StreamText),
		ChapterCount:       info.Count(StreamChapters),
	}
	g.FileSize, _ = parseInt64(get("FileSize"))
	g.Duration, _ = parseMillis(get("Duration"))
	g.OverallBitRate, _ = parseInt64(get("OverallBitRate"))
	return g
}
