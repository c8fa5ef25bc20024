package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// LoggerVersion identifies the producing build inside exported documents.
func LoggerVersion() string {
	if GitSHA == "unknown" || GitSHA == "" {
		return Version
	}
	short := GitSHA
	if len(short) > 7 {
		short = short[:7]
	}
	return fmt.Sprintf("%s+%s", Version, short)
}
