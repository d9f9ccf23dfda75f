package mediainfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"moviecollection/apperrors"
)

// FFProbeOutput represents the JSON output from ffprobe
type FFProbeOutput struct {
	Format   FFProbeFormat    `json:"format"`
	Streams  []FFProbeStream  `json:"streams"`
	Chapters []FFProbeChapter `json:"chapters"`
}

type FFProbeFormat struct {
	Filename       string            `json:"filename"`
	NbStreams      int               `json:"nb_streams"`
	FormatName     string            `json:"format_name"`
	FormatLongName string            `json:"format_long_name"`
	Duration       string            `json:"duration"`
	Size           string            `json:"size"`
	BitRate        string            `json:"bit_rate"`
	Tags           map[string]string `json:"tags"`
}

type FFProbeStream struct {
	Index              int               `json:"index"`
	CodecName          string            `json:"codec_name"`
	CodecLongName      string            `json:"codec_long_name"`
	Profile            string            `json:"profile"`
	CodecType          string            `json:"codec_type"`
	CodecTagString     string            `json:"codec_tag_string"`
	Width              int               `json:"width"`
	Height             int               `json:"height"`
	DisplayAspectRatio string            `json:"display_aspect_ratio"`
	PixFmt             string            `json:"pix_fmt"`
	FieldOrder         string            `json:"field_order"`
	ColorPrimaries     string            `json:"color_primaries"`
	ColorTransfer      string            `json:"color_transfer"`
	SampleRate         string            `json:"sample_rate"`
	Channels           int               `json:"channels"`
	ChannelLayout      string            `json:"channel_layout"`
	BitsPerSample      int               `json:"bits_per_sample"`
	BitsPerRawSample   string            `json:"bits_per_raw_sample"`
	RFrameRate         string            `json:"r_frame_rate"`
	AvgFrameRate       string            `json:"avg_frame_rate"`
	Duration           string            `json:"duration"`
	BitRate            string            `json:"bit_rate"`
	NbFrames           string            `json:"nb_frames"`
	Disposition        map[string]int    `json:"disposition"`
	Tags               map[string]string `json:"tags"`
}

type FFProbeChapter struct {
	ID        int64             `json:"id"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	Tags      map[string]string `json:"tags"`
}

// FFProbe probes files with the ffprobe executable.
type FFProbe struct {
	path    string
	timeout time.Duration
	logger  hclog.Logger
}

// NewFFProbe creates a prober running the ffprobe binary at path. An empty
// path looks ffprobe up in PATH.
func NewFFProbe(path string, logger hclog.Logger) *FFProbe {
	if path == "" {
		path = "ffprobe"
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &FFProbe{path: path, timeout: 60 * time.Second, logger: logger}
}

// Probe runs ffprobe on path and returns its metadata.
func (p *FFProbe) Probe(ctx context.Context, path string) (*Info, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.Wrap(apperrors.NotFound, err, "media file %q not found", path)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.path,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-show_chapters",
		path)

	p.logger.Debug("running ffprobe", "path", path)
	output, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, apperrors.Wrap(apperrors.Unavailable, err, "ffprobe is not installed")
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("ffprobe interrupted for %s: %w", path, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe failed for %s with exit code %d: %s",
				path, exitErr.ExitCode(), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe command failed: %w", err)
	}

	info, err := Parse(path, output)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("probed media file", "path", path,
		"video", info.Count(StreamVideo), "audio", info.Count(StreamAudio), "text", info.Count(StreamText))
	return info, nil
}

// Parse converts ffprobe JSON output into an Info.
func Parse(path string, data []byte) (*Info, error) {
	var out FFProbeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if out.Format.FormatName == "" && len(out.Streams) == 0 {
		return nil, apperrors.New(apperrors.Validation, "%s is not a recognised media file", path)
	}

	info := NewInfo(path)
	setGeneral(info, path, out.Format)
	for _, s := range out.Streams {
		switch {
		case s.CodecType == "video" && s.Disposition["attached_pic"] == 1:
			setImage(info, s)
		case s.CodecType == "video":
			setVideo(info, s)
		case s.CodecType == "audio":
			setAudio(info, s)
		case s.CodecType == "subtitle":
			setText(info, s)
		case s.CodecType == "attachment" && strings.HasPrefix(s.Tags["mimetype"], "image/"):
			setImage(info, s)
		}
	}
	setChapters(info, out.Chapters)

	for _, kind := range []StreamKind{StreamVideo, StreamAudio, StreamText, StreamImage, StreamMenu} {
		if n := info.Count(kind); n > 0 {
			info.Set(StreamGeneral, 0, kind.String()+"Count", strconv.Itoa(n))
		}
	}
	if n := info.Count(StreamChapters); n > 0 {
		info.Set(StreamGeneral, 0, "ChapterCount", strconv.Itoa(n))
	}
	return info, nil
}

var containerNames = map[string]string{
	"matroska,webm":           "Matroska",
	"mov,mp4,m4a,3gp,3g2,mj2": "MPEG-4",
	"avi":                     "AVI",
	"mpegts":                  "MPEG-TS",
	"mpeg":                    "MPEG-PS",
	"asf":                     "Windows Media",
	"flv":                     "Flash Video",
	"ogg":                     "Ogg",
	"rm":                      "RealMedia",
}

var codecNames = map[string]string{
	"h264": "AVC", "hevc": "HEVC", "mpeg4": "MPEG-4 Visual", "mpeg2video": "MPEG Video",
	"mpeg1video": "MPEG Video", "vp8": "VP8", "vp9": "VP9", "av1": "AV1", "vc1": "VC-1",
	"wmv3": "VC-1", "msmpeg4v3": "MPEG-4 Visual",
	"ac3": "AC-3", "eac3": "E-AC-3", "dts": "DTS", "aac": "AAC", "mp3": "MPEG Audio",
	"mp2": "MPEG Audio", "truehd": "MLP FBA", "flac": "FLAC", "opus": "Opus", "vorbis": "Vorbis",
	"subrip": "UTF-8", "ass": "ASS", "ssa": "SSA", "hdmv_pgs_subtitle": "PGS",
	"dvd_subtitle": "VobSub", "mov_text": "Timed Text", "webvtt": "WebVTT",
	"mjpeg": "JPEG", "png": "PNG", "bmp": "BMP", "gif": "GIF",
}

var transferNames = map[string]string{
	"smpte2084":    "PQ",
	"arib-std-b67": "HLG",
	"bt709":        "BT.709",
}

func friendly(names map[string]string, raw string) string {
	if name, ok := names[raw]; ok {
		return name
	}
	if strings.HasPrefix(raw, "pcm_") {
		return "PCM"
	}
	return strings.ToUpper(raw)
}

func setGeneral(info *Info, path string, f FFProbeFormat) {
	info.Set(StreamGeneral, 0, "CompleteName", path)
	if f.FormatName != "" {
		if name, ok := containerNames[f.FormatName]; ok {
			info.Set(StreamGeneral, 0, "Format", name)
		} else {
			info.Set(StreamGeneral, 0, "Format", f.FormatName)
		}
	}
	info.Set(StreamGeneral, 0, "Format_Commercial", f.FormatLongName)
	info.Set(StreamGeneral, 0, "FileSize", f.Size)
	if d, ok := parseSeconds(f.Duration); ok {
		info.Set(StreamGeneral, 0, "Duration", formatMillis(d))
	}
	info.Set(StreamGeneral, 0, "OverallBitRate", f.BitRate)
	info.Set(StreamGeneral, 0, "Title", tag(f.Tags, "title"))
	info.Set(StreamGeneral, 0, "Encoded_Date", tag(f.Tags, "creation_time"))
	info.Set(StreamGeneral, 0, "Encoded_Application", tag(f.Tags, "encoder"))
	if f.NbStreams > 0 {
		info.Set(StreamGeneral, 0, "StreamCount", strconv.Itoa(f.NbStreams))
	}
}

// setCommon records parameters shared by every stream kind.
func setCommon(info *Info, kind StreamKind, n int, s FFProbeStream) {
	info.Set(kind, n, "ID", strconv.Itoa(s.Index))
	info.Set(kind, n, "Format", friendly(codecNames, s.CodecName))
	info.Set(kind, n, "CodecID", s.CodecTagString)
	info.Set(kind, n, "Language", tag(s.Tags, "language"))
	info.Set(kind, n, "Title", tag(s.Tags, "title"))
	if s.Disposition != nil {
		info.Set(kind, n, "Default", yesNo(s.Disposition["default"] == 1))
		info.Set(kind, n, "Forced", yesNo(s.Disposition["forced"] == 1))
	}
	if d, ok := streamDuration(s); ok {
		info.Set(kind, n, "Duration", formatMillis(d))
	}
}

func setVideo(info *Info, s FFProbeStream) {
	n := info.AddStream(StreamVideo)
	setCommon(info, StreamVideo, n, s)
	info.Set(StreamVideo, n, "Format_Profile", s.Profile)
	if s.Width > 0 {
		info.Set(StreamVideo, n, "Width", strconv.Itoa(s.Width))
	}
	if s.Height > 0 {
		info.Set(StreamVideo, n, "Height", strconv.Itoa(s.Height))
	}
	if s.DisplayAspectRatio != "" && s.DisplayAspectRatio != "0:1" {
		info.Set(StreamVideo, n, "DisplayAspectRatio/String", s.DisplayAspectRatio)
		if r, ok := parseRational(s.DisplayAspectRatio); ok {
			info.Set(StreamVideo, n, "DisplayAspectRatio", strconv.FormatFloat(r, 'f', 3, 64))
		}
	}
	rate, ok := parseRational(s.AvgFrameRate)
	if !ok || rate == 0 {
		rate, ok = parseRational(s.RFrameRate)
	}
	if ok && rate > 0 {
		info.Set(StreamVideo, n, "FrameRate", strconv.FormatFloat(rate, 'f', 3, 64))
	}
	info.Set(StreamVideo, n, "BitRate", streamBitRate(s))
	info.Set(StreamVideo, n, "BitDepth", s.BitsPerRawSample)
	info.Set(StreamVideo, n, "FrameCount", s.NbFrames)
	info.Set(StreamVideo, n, "PixelFormat", s.PixFmt)
	switch s.FieldOrder {
	case "":
	case "progressive":
		info.Set(StreamVideo, n, "ScanType", "Progressive")
	default:
		info.Set(StreamVideo, n, "ScanType", "Interlaced")
	}
	info.Set(StreamVideo, n, "colour_primaries", s.ColorPrimaries)
	if s.ColorTransfer != "" {
		info.Set(StreamVideo, n, "transfer_characteristics", friendly(transferNames, s.ColorTransfer))
	}
}

func setAudio(info *Info, s FFProbeStream) {
	n := info.AddStream(StreamAudio)
	setCommon(info, StreamAudio, n, s)
	info.Set(StreamAudio, n, "Format_Profile", s.Profile)
	if s.Channels > 0 {
		info.Set(StreamAudio, n, "Channel(s)", strconv.Itoa(s.Channels))
	}
	info.Set(StreamAudio, n, "ChannelLayout", s.ChannelLayout)
	info.Set(StreamAudio, n, "SamplingRate", s.SampleRate)
	info.Set(StreamAudio, n, "BitRate", streamBitRate(s))
	if s.BitsPerRawSample != "" && s.BitsPerRawSample != "0" {
		info.Set(StreamAudio, n, "BitDepth", s.BitsPerRawSample)
	} else if s.BitsPerSample > 0 {
		info.Set(StreamAudio, n, "BitDepth", strconv.Itoa(s.BitsPerSample))
	}
}

func setText(info *Info, s FFProbeStream) {
	n := info.AddStream(StreamText)
	setCommon(info, StreamText, n, s)
}

func setImage(info *Info, s FFProbeStream) {
	n := info.AddStream(StreamImage)
	info.Set(StreamImage, n, "ID", strconv.Itoa(s.Index))
	info.Set(StreamImage, n, "Format", friendly(codecNames, s.CodecName))
	if s.Width > 0 {
		info.Set(StreamImage, n, "Width", strconv.Itoa(s.Width))
		info.Set(StreamImage, n, "Height", strconv.Itoa(s.Height))
	}
	title := tag(s.Tags, "title")
	if title == "" {
		title = tag(s.Tags, "filename")
	}
	info.Set(StreamImage, n, "Title", title)
	info.Set(StreamImage, n, "MimeType", tag(s.Tags, "mimetype"))
}

// setChapters records chapters both as Chapters streams and, the way
// container menus list them, as one Menu stream keyed by start time.
func setChapters(info *Info, chapters []FFProbeChapter) {
	if len(chapters) == 0 {
		return
	}
	menu := info.AddStream(StreamMenu)
	for i, c := range chapters {
		n := info.AddStream(StreamChapters)
		info.Set(StreamChapters, n, "ID", strconv.FormatInt(c.ID, 10))
		start, ok := parseSeconds(c.StartTime)
		if ok {
			info.Set(StreamChapters, n, "Start", formatMillis(start))
		}
		if end, ok := parseSeconds(c.EndTime); ok {
			info.Set(StreamChapters, n, "End", formatMillis(end))
		}
		title := tag(c.Tags, "title")
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		info.Set(StreamChapters, n, "Title", title)
		if ok {
			info.Set(StreamMenu, menu, formatClock(start), title)
		}
	}
}

// streamDuration prefers the stream duration and falls back to the
// Matroska DURATION tag.
func streamDuration(s FFProbeStream) (time.Duration, bool) {
	if d, ok := parseSeconds(s.Duration); ok {
		return d, true
	}
	return parseClock(tag(s.Tags, "DURATION"))
}

func streamBitRate(s FFProbeStream) string {
	if s.BitRate != "" {
		return s.BitRate
	}
	return tag(s.Tags, "BPS")
}

// tag looks key up in ffprobe tags, which vary in case between containers
// and may carry a language suffix such as "BPS-eng".
func tag(tags map[string]string, key string) string {
	if v, ok := tags[key]; ok {
		return v
	}
	for k, v := range tags {
		if strings.EqualFold(k, key) || strings.HasPrefix(strings.ToUpper(k), strings.ToUpper(key)+"-") {
			return v
		}
	}
	return ""
}
