package ingest

import "github.com/banshee-data/laptrace/internal/monitoring"

var logger = monitoring.NewLogger("ingest")

func diagf(format string, args ...interface{})  { logger.Diagf(format, args...) }
func tracef(format string, args ...interface{}) { logger.Tracef(format, args...) }
