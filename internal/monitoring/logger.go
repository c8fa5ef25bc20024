// Package monitoring routes pipeline log output into three streams.
//
//   - ops: actionable events (track generated, TBL improved, export written, stage failures)
//   - diag: calibration numbers, loop-closure details, axis search results
//   - trace: per-sample and per-crossing chatter
//
// Every stream is disabled until SetLogWriters gives it a writer.
package monitoring

import (
	"fmt"
	"io"
	"log"
	"sync"
)

// Logf is the command-level logger used for user-facing progress lines.
// It defaults to log.Printf and may be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

var (
	mu          sync.RWMutex
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures all three streams at once. A nil writer disables
// that stream.
func SetLogWriters(w LogWriters) {
	mu.Lock()
	defer mu.Unlock()
	opsLogger = newLogger(w.Ops)
	diagLogger = newLogger(w.Diag)
	traceLogger = newLogger(w.Trace)
}

func newLogger(w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, "", log.LstdFlags|log.Lmicroseconds)
}

// Logger tags every line with a component prefix such as "[track] ".
type Logger struct {
	prefix string
}

// NewLogger returns a Logger for one component.
func NewLogger(component string) Logger {
	return Logger{prefix: "[" + component + "] "}
}

func (l Logger) emit(stream **log.Logger, format string, args []interface{}) {
	mu.RLock()
	out := *stream
	mu.RUnlock()
	if out == nil {
		return
	}
	_ = out.Output(3, l.prefix+fmt.Sprintf(format, args...))
}

// Opsf logs to the ops stream.
func (l Logger) Opsf(format string, args ...interface{}) { l.emit(&opsLogger, format, args) }

// Diagf logs to the diag stream.
func (l Logger) Diagf(format string, args ...interface{}) { l.emit(&diagLogger, format, args) }

// Tracef logs to the trace stream.
func (l Logger) Tracef(format string, args ...interface{}) { l.emit(&traceLogger, format, args) }
