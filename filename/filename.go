// Package filename derives a movie title, release year and quality from a
// media file name.
package filename

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Guess is the result of parsing a file name.
type Guess struct {
	Title   string `json:"title"`
	Year    int    `json:"year,omitempty"`
	Quality string `json:"quality,omitempty"`
}

// firstFilmYear is the year of the oldest surviving motion picture.
const firstFilmYear = 1888

// now is replaced in tests.
var now = time.Now

var videoExtensions = map[string]bool{
	".avi": true, ".mkv": true, ".mp4": true, ".m4v": true, ".mov": true,
	".wmv": true, ".mpg": true, ".mpeg": true, ".m2ts": true, ".ts": true,
	".vob": true, ".divx": true, ".flv": true, ".webm": true, ".ogm": true,
	".ogv": true, ".3gp": true, ".iso": true, ".rmvb": true,
}

// IsVideoFile reports whether path has a known video extension.
func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// releaseTags mark the start of the release description in a file name.
// Everything from the first tag onwards is discarded.
var releaseTags = map[string]bool{
	"4K": true, "UHD": true, "HDR": true, "HDR10": true, "10BIT": true,
	"BLURAY": true, "BLU-RAY": true, "BDRIP": true, "BRRIP": true, "BDREMUX": true, "REMUX": true,
	"DVDRIP": true, "DVD": true, "DVD5": true, "DVD9": true, "DVDSCR": true, "SCREENER": true,
	"WEB-DL": true, "WEBDL": true, "WEBRIP": true, "HDRIP": true,
	"HDTV": true, "PDTV": true, "SDTV": true, "HDCAM": true, "CAM": true, "TELESYNC": true, "TELECINE": true,
	"X264": true, "X265": true, "H264": true, "H265": true, "HEVC": true, "AVC": true, "XVID": true, "DIVX": true,
	"AC3": true, "DTS": true, "DTS-HD": true, "AAC": true, "MP3": true, "FLAC": true,
	"TRUEHD": true, "ATMOS": true, "DD5": true, "DDP5": true,
	"PROPER": true, "REPACK": true, "EXTENDED": true, "UNRATED": true, "REMASTERED": true,
	"SUBBED": true, "DUBBED": true, "KORSUB": true,
}

var (
	resolutionTag = regexp.MustCompile(`(?i)^(\d{3,4})[pi]$`)
	yearToken     = regexp.MustCompile(`^\d{4}$`)
	spaces        = regexp.MustCompile(`\s+`)
)

// TitleFromFilename guesses title, year and quality from the file name in
// path. The directory and extension are ignored.
func TitleFromFilename(path string) Guess {
	name := filepath.Base(path)
	if ext := filepath.Ext(name); ext != "" && len(ext) <= 6 && !strings.ContainsAny(ext, " ") {
		name = strings.TrimSuffix(name, ext)
	}
	name = strings.NewReplacer(".", " ", "_", " ").Replace(name)

	tokens := strings.Fields(name)
	var guess Guess

	cut := len(tokens)
	for i, tok := range tokens {
		tag := strings.ToUpper(strings.Trim(tok, "()[]{}-"))
		if q := quality(tag); q != "" {
			if guess.Quality == "" {
				guess.Quality = q
			}
			if i < cut {
				cut = i
			}
			continue
		}
		if releaseTags[tag] && i < cut {
			cut = i
		}
	}
	// A leading tag, e.g. "[1080p] Title", must not swallow the whole name.
	if cut == 0 {
		tokens = dropTags(tokens)
		cut = len(tokens)
	}
	title, tail := tokens[:cut], tokens[cut:]

	maxYear := now().Year() + 1
	if at := lastYear(title, maxYear); at > 0 {
		guess.Year = yearOf(title[at])
		title = title[:at]
	} else if at := lastYear(tail, maxYear); at >= 0 {
		// "Aliens.EXTENDED.1986" puts the year after a release tag.
		guess.Year = yearOf(tail[at])
	}

	guess.Title = cleanTitle(strings.Join(title, " "))
	return guess
}

// lastYear returns the index of the last token holding a plausible release
// year, or -1.
func lastYear(tokens []string, maxYear int) int {
	at := -1
	for i, tok := range tokens {
		if y := yearOf(tok); y >= firstFilmYear && y <= maxYear {
			at = i
		}
	}
	return at
}

func yearOf(tok string) int {
	raw := strings.Trim(tok, "()[]{}")
	if !yearToken.MatchString(raw) {
		return 0
	}
	y, _ := strconv.Atoi(raw)
	return y
}

// quality maps a resolution tag to its canonical label.
func quality(tag string) string {
	switch tag {
	case "4K", "UHD", "2160P":
		return "2160p"
	}
	if m := resolutionTag.FindStringSubmatch(tag); m != nil {
		switch m[1] {
		case "2160", "1080", "720", "576", "480":
			return m[1] + "p"
		}
	}
	return ""
}

func dropTags(tokens []string) []string {
	kept := tokens[:0:0]
	for _, tok := range tokens {
		tag := strings.ToUpper(strings.Trim(tok, "()[]{}-"))
		if quality(tag) != "" || releaseTags[tag] {
			continue
		}
		kept = append(kept, tok)
	}
	return kept
}

func cleanTitle(title string) string {
	title = strings.NewReplacer("()", "", "[]", "", "{}", "").Replace(title)
	title = spaces.ReplaceAllString(title, " ")
	return strings.TrimRight(strings.TrimSpace(title), " -([{")
}
