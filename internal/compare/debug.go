package compare

import "github.com/banshee-data/laptrace/internal/monitoring"

var logger = monitoring.NewLogger("compare")

func tracef(format string, args ...interface{}) { logger.Tracef(format, args...) }
