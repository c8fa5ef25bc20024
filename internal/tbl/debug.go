package tbl

import "github.com/banshee-data/laptrace/internal/monitoring"

var logger = monitoring.NewLogger("tbl")

func opsf(format string, args ...interface{})  { logger.Opsf(format, args...) }
func diagf(format string, args ...interface{}) { logger.Diagf(format, args...) }
