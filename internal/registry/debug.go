package registry

import "github.com/banshee-data/laptrace/internal/monitoring"

var logger = monitoring.NewLogger("registry")

func opsf(format string, args ...interface{}) { logger.Opsf(format, args...) }
