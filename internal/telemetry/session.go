package telemetry

import (
	"fmt"
	"sort"
)

// Session is a time-ascending run of samples plus everything derived from
// them during one processing run.
type Session struct {
	Name    string
	Samples []Sample

	Laps        []Lap
	Signals     *Signals
	Calibration Calibration
	Metrics     *Metrics
}

// NewSession wraps samples in a Session. The slice is not copied.
func NewSession(name string, samples []Sample) *Session {
	return &Session{Name: name, Samples: samples}
}

// Len returns the number of samples.
func (s *Session) Len() int { return len(s.Samples) }

// StartTime is the first sample timestamp, or 0 for an empty session.
func (s *Session) StartTime() float64 {
	if len(s.Samples) == 0 {
		return 0
	}
	return s.Samples[0].Timestamp
}

// EndTime is the last sample timestamp, or 0 for an empty session.
func (s *Session) EndTime() float64 {
	if len(s.Samples) == 0 {
		return 0
	}
	return s.Samples[len(s.Samples)-1].Timestamp
}

// Duration is EndTime - StartTime.
func (s *Session) Duration() float64 {
	if len(s.Samples) == 0 {
		return 0
	}
	return s.EndTime() - s.StartTime()
}

// Range returns the index range [start, end) of samples whose timestamps
// fall within [startTS, endTS].
func (s *Session) Range(startTS, endTS float64) (int, int) {
	n := len(s.Samples)
	start := sort.Search(n, func(i int) bool { return s.Samples[i].Timestamp >= startTS })
	end := sort.Search(n, func(i int) bool { return s.Samples[i].Timestamp > endTS })
	if end < start {
		end = start
	}
	return start, end
}

// Slice returns a sub-session holding the samples within [startTS, endTS].
// The returned session shares the underlying sample array.
func (s *Session) Slice(startTS, endTS float64) *Session {
	start, end := s.Range(startTS, endTS)
	return &Session{
		Name:    fmt.Sprintf("Slice of %s", s.Name),
		Samples: s.Samples[start:end:end],
	}
}

// Timestamps returns every sample timestamp.
func (s *Session) Timestamps() []float64 {
	out := make([]float64, len(s.Samples))
	for i, smp := range s.Samples {
		out[i] = smp.Timestamp
	}
	return out
}
