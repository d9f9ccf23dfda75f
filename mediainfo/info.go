// Package mediainfo reads technical metadata from media files. Metadata is
// held in an untyped table addressed by stream kind, stream number and
// parameter name, with typed projections for each kind of stream.
package mediainfo

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// StreamKind identifies a category of streams within a media file.
type StreamKind int

const (
	StreamGeneral StreamKind = iota
	StreamVideo
	StreamAudio
	StreamText
	StreamChapters
	StreamImage
	StreamMenu
)

var kindNames = []string{"General", "Video", "Audio", "Text", "Chapters", "Image", "Menu"}

// allKinds lists every stream kind in report order.
var allKinds = []StreamKind{StreamGeneral, StreamVideo, StreamAudio, StreamText, StreamChapters, StreamImage, StreamMenu}

func (k StreamKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("StreamKind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseStreamKind parses a kind name such as "video", case-insensitively.
func ParseStreamKind(s string) (StreamKind, bool) {
	for i, name := range kindNames {
		if strings.EqualFold(s, name) {
			return StreamKind(i), true
		}
	}
	return 0, false
}

// Prober extracts metadata from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*Info, error)
}

// Info is the metadata of one media file.
type Info struct {
	Path    string
	streams map[StreamKind][]map[string]string
}

// NewInfo returns an empty Info with a single General stream.
func NewInfo(path string) *Info {
	info := &Info{Path: path, streams: make(map[StreamKind][]map[string]string)}
	info.AddStream(StreamGeneral)
	return info
}

// AddStream appends an empty stream of kind and returns its number.
func (i *Info) AddStream(kind StreamKind) int {
	i.streams[kind] = append(i.streams[kind], make(map[string]string))
	return len(i.streams[kind]) - 1
}

// Set stores a parameter value. Empty values are not stored.
func (i *Info) Set(kind StreamKind, stream int, parameter, value string) {
	streams := i.streams[kind]
	if stream < 0 || stream >= len(streams) || value == "" {
		return
	}
	streams[stream][parameter] = value
}

// Get returns the value of parameter for stream number stream of kind, or
// "" when the stream or parameter does not exist.
func (i *Info) Get(kind StreamKind, stream int, parameter string) string {
	if i == nil {
		return ""
	}
	streams := i.streams[kind]
	if stream < 0 || stream >= len(streams) {
		return ""
	}
	return streams[stream][parameter]
}

// Count returns the number of streams of kind.
func (i *Info) Count(kind StreamKind) int {
	if i == nil {
		return 0
	}
	return len(i.streams[kind])
}

// Parameters returns the parameter names set on a stream, sorted.
func (i *Info) Parameters(kind StreamKind, stream int) []string {
	streams := i.streams[kind]
	if stream < 0 || stream >= len(streams) {
		return nil
	}
	names := make([]string, 0, len(streams[stream]))
	for name := range streams[stream] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Inform renders every stream as a plain text report.
func (i *Info) Inform() string {
	return i.inform(allKinds)
}

// InformKind renders only the streams of kind.
func (i *Info) InformKind(kind StreamKind) string {
	return i.inform([]StreamKind{kind})
}

func (i *Info) inform(kinds []StreamKind) string {
	var b strings.Builder
	for _, kind := range kinds {
		n := i.Count(kind)
		for stream := 0; stream < n; stream++ {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(kind.String())
			if n > 1 {
				fmt.Fprintf(&b, " #%d", stream+1)
			}
			b.WriteString("\n")
			for _, name := range i.Parameters(kind, stream) {
				fmt.Fprintf(&b, "%-32s: %s\n", name, i.Get(kind, stream, name))
			}
		}
	}
	return b.String()
}
