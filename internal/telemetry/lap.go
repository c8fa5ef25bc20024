package telemetry

import "fmt"

// Lap is the sample range [Start, End) of its parent session between two
// consecutive start-line crossings.
type Lap struct {
	Number int
	Start  int
	End    int

	// SectorTimes maps sector id ("S1".."SN") to seconds. A nil value is a
	// missed sector gate.
	SectorTimes map[string]*float64

	parent *Session
}

// NewLap builds lap number n over parent.Samples[start:end].
func NewLap(parent *Session, start, end, number int) Lap {
	if start < 0 {
		start = 0
	}
	if end > len(parent.Samples) {
		end = len(parent.Samples)
	}
	if end < start {
		end = start
	}
	return Lap{
		Number:      number,
		Start:       start,
		End:         end,
		SectorTimes: make(map[string]*float64),
		parent:      parent,
	}
}

// Samples returns the lap's samples.
func (l Lap) Samples() []Sample {
	if l.parent == nil {
		return nil
	}
	return l.parent.Samples[l.Start:l.End]
}

// Len returns the number of samples in the lap.
func (l Lap) Len() int { return l.End - l.Start }

// StartTime is the timestamp of the lap's first sample.
func (l Lap) StartTime() float64 {
	s := l.Samples()
	if len(s) == 0 {
		return 0
	}
	return s[0].Timestamp
}

// Duration is the span between the lap's first and last samples.
func (l Lap) Duration() float64 {
	s := l.Samples()
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].Timestamp - s[0].Timestamp
}

// Name describes the lap for logs.
func (l Lap) Name() string {
	if l.parent == nil {
		return fmt.Sprintf("Lap %d", l.Number)
	}
	return fmt.Sprintf("Lap %d of %s", l.Number, l.parent.Name)
}

// SectorID returns the canonical id of the 1-based sector k.
func SectorID(k int) string { return fmt.Sprintf("S%d", k) }
