package units

import (
	"testing"
	"time"
)

func TestIsTimezoneValid(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		expected bool
	}{
		{"valid UTC", "UTC", true},
		{"valid Kolkata", "Asia/Kolkata", true},
		{"invalid", "Invalid/Timezone", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := IsTimezoneValid(tt.timezone); res != tt.expected {
				t.Errorf("IsTimezoneValid(%s) = %v, want %v", tt.timezone, res, tt.expected)
			}
		})
	}
}

func TestResolveLocation(t *testing.T) {
	for _, name := range []string{"", "Local"} {
		loc, err := ResolveLocation(name)
		if err != nil || loc != time.Local {
			t.Errorf("ResolveLocation(%q) = %v, %v; want time.Local", name, loc, err)
		}
	}

	loc, err := ResolveLocation("UTC")
	if err != nil || loc.String() != "UTC" {
		t.Errorf("ResolveLocation(UTC) = %v, %v", loc, err)
	}

	if _, err := ResolveLocation("Mars/Olympus"); err == nil {
		t.Error("expected error for unknown timezone")
	}
}
