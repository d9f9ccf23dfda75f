package mediainfo

import (
	"math"
	"strconv"
	"strings"
	"time"
)

func parseInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseInt64(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseRational parses ffprobe ratios such as "24000/1001" or "16:9".
func parseRational(s string) (float64, bool) {
	sep := strings.IndexAny(s, "/:")
	if sep < 0 {
		return parseFloat(s)
	}
	num, ok1 := parseFloat(s[:sep])
	den, ok2 := parseFloat(s[sep+1:])
	if !ok1 || !ok2 || den == 0 {
		return 0, false
	}
	return num / den, true
}

// parseSeconds parses a decimal number of seconds.
func parseSeconds(s string) (time.Duration, bool) {
	f, ok := parseFloat(s)
	if !ok || f < 0 {
		return 0, false
	}
	return time.Duration(f * float64(time.Second)).Round(time.Millisecond), true
}

// parseClock parses "HH:MM:SS[.fraction]" as written in Matroska tags.
func parseClock(s string) (time.Duration, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, ok1 := parseInt(parts[0])
	m, ok2 := parseInt(parts[1])
	sec, ok3 := parseFloat(parts[2])
	if !ok1 || !ok2 || !ok3 || h < 0 || m < 0 || m > 59 || sec < 0 || sec >= 60 {
		return 0, false
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(sec*float64(time.Second))
	return d.Round(time.Millisecond), true
}

// parseMillis parses a duration stored in milliseconds.
func parseMillis(s string) (time.Duration, bool) {
	ms, ok := parseInt64(s)
	if !ok || ms < 0 {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

func parseYesNo(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1":
		return true, true
	case "no", "false", "0":
		return false, true
	}
	return false, false
}

func formatMillis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}

func formatClock(d time.Duration) string {
	ms := d.Milliseconds()
	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	s := ms / 1000
	ms -= s * 1000
	return pad(h, 2) + ":" + pad(m, 2) + ":" + pad(s, 2) + "." + pad(ms, 3)
}

func pad(n int64, width int) string {
	s := strconv.FormatInt(n, 10)
	for len(s) < width {
		s = "0" + s
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
