package units

import (
	"fmt"
	"time"
)

// IsTimezoneValid checks the name against the system tz database.
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// ResolveLocation maps a configured timezone name to a location. An empty
// name or "Local" selects the process's local zone, which is what session
// filenames use unless configured otherwise.
func ResolveLocation(tz string) (*time.Location, error) {
	if tz == "" || tz == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", tz, err)
	}
	return loc, nil
}
