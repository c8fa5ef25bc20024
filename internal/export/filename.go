package export

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/laptrace/internal/fsutil"
)

// DatePrefix is the lower-case month abbreviation and two-digit day of t,
// e.g. "jan21".
func DatePrefix(t time.Time) string {
	return strings.ToLower(t.Format("Jan")) + t.Format("02")
}

// NextFilename returns "<prefix>Session<N>.json" for the day of t, with N one
// more than the highest session number already in dir for that day.
// Telemetry files are ignored. A missing dir starts at 1.
func NextFilename(fsys fsutil.FileSystem, dir string, t time.Time) (string, error) {
	prefix := DatePrefix(t)

	entries, err := fsys.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("list sessions in %s: %w", dir, err)
	}

	highest := 0
	for _, e := range entries {
		if n, ok := sessionNumber(e.Name(), prefix); ok && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%sSession%d.json", prefix, highest+1), nil
}

// sessionNumber extracts N from "<prefix>Session<N>.json", case-insensitive.
func sessionNumber(name, prefix string) (int, bool) {
	lower := strings.ToLower(name)
	if !strings.HasPrefix(lower, prefix) || !strings.HasSuffix(lower, ".json") || strings.HasSuffix(lower, TelemetrySuffix) {
		return 0, false
	}
	rest := strings.TrimSuffix(lower[len(prefix):], ".json")
	if !strings.HasPrefix(rest, "session") {
		return 0, false
	}
	n, err := strconv.Atoi(rest[len("session"):])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
