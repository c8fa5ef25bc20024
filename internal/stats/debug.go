package stats

import "github.com/banshee-data/laptrace/internal/monitoring"

var logger = monitoring.NewLogger("stats")

func tracef(format string, args ...interface{}) { logger.Tracef(format, args...) }
