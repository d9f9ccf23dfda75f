package mediainfo

import (
	"sort"
	"time"
)

// MenuEntry is one item of a chapter menu.
type MenuEntry struct {
	Start time.Duration `json:"start"`
	Title string        `json:"title"`
}

// Menu is a chapter menu. Its parameters are keyed by start time.
type Menu struct {
	Entries []MenuEntry `json:"entries"`
}

// NewMenu projects menu number stream of info.
func NewMenu(info *Info, stream int) Menu {
	var m Menu
	for _, key := range info.Parameters(StreamMenu, stream) {
		start, ok := parseClock(key)
		if !ok {
			continue
		}
		m.Entries = append(m.Entries, MenuEntry{Start: start, Title: info.Get(StreamMenu, stream, key)})
	}
	sort.Slice(m.Entries, func(i, j int) bool { return m.Entries[i].Start < m.Entries[j].Start })
	return m
}

// Report is every typed projection of an Info.
type Report struct {
	General  GeneralInformation `json:"general"`
	Video    []VideoStream      `json:"video,omitempty"`
	Audio    []AudioStream      `json:"audio,omitempty"`
	Text     []TextStream       `json:"text,omitempty"`
	Chapters []Chapter          `json:"chapters,omitempty"`
	Images   []Image            `json:"images,omitempty"`
	Menus    []Menu             `json:"menus,omitempty"`
}

// NewReport projects every stream of info.
func NewReport(info *Info) Report {
	r := Report{General: NewGeneralInformation(info)}
	for i := 0; i < info.Count(StreamVideo); i++ {
		r.Video = append(r.Video, NewVideoStream(info, i))
	}
	for i := 0; i < info.Count(StreamAudio); i++ {
		r.Audio = append(r.Audio, NewAudioStream(info, i))
	}
	for i := 0; i < info.Count(StreamText); i++ {
		r.Text = append(r.Text, NewTextStream(info, i))
	}
	for i := 0; i < info.Count(StreamChapters); i++ {
		r.Chapters = append(r.Chapters, NewChapter(info, i))
	}
	for i := 0; i < info.Count(StreamImage); i++ {
		r.Images = append(r.Images, NewImage(info, i))
	}
	for i := 0; i < info.Count(StreamMenu); i++ {
		r.Menus = append(r.Menus, NewMenu(info, i))
	}
	return r
}

// Section returns the projections of one stream kind: General for
// StreamGeneral and a slice for every other kind.
func (r Report) Section(kind StreamKind) interface{} {
	switch kind {
	case StreamGeneral:
		return r.General
	case StreamVideo:
		return r.Video
	case StreamAudio:
		return r.Audio
	case StreamText:
		return r.Text
	case StreamChapters:
		return r.Chapters
	case StreamImage:
		return r.Images
	case StreamMenu:
		return r.Menus
	default:
		return nil
	}
}
