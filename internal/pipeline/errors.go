package pipeline

import "fmt"

// ErrorKind classifies a stage failure.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindLoad
	KindNoTrack
	KindFusion
	KindPersistence
	KindDiagnostics
	KindExport
	KindCatalog
	KindCanceled
)

var kindNames = map[ErrorKind]string{
	KindNone:        "none",
	KindLoad:        "load",
	KindNoTrack:     "no_track",
	KindFusion:      "fusion",
	KindPersistence: "persistence",
	KindDiagnostics: "diagnostics",
	KindExport:      "export",
	KindCatalog:     "catalog",
	KindCanceled:    "canceled",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Fatal reports whether a failure of this kind stops the run.
func (k ErrorKind) Fatal() bool {
	return k == KindLoad || k == KindNoTrack || k == KindCanceled
}

// StageError is a failure the run continued past.
type StageError struct {
	Kind ErrorKind
	Err  error
}

func (e StageError) Error() string { return e.Kind.String() + ": " + e.Err.Error() }

func (e StageError) Unwrap() error { return e.Err }
