package export

import "github.com/banshee-data/laptrace/internal/monitoring"

var logger = monitoring.NewLogger("export")

func opsf(format string, args ...interface{}) { logger.Opsf(format, args...) }
