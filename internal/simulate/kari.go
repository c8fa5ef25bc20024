// Package simulate generates synthetic logger recordings for testing and
// demos.
package simulate

import (
	"bytes"
	"encoding/csv"
	"io"
	"math"
	"math/rand"
	"strconv"

	"github.com/banshee-data/laptrace/internal/fsutil"
	"github.com/banshee-data/laptrace/internal/telemetry"
)

// Waypoint is a corner of the simulated circuit.
type Waypoint struct {
	Lat, Lon float64
}

// KariWaypoints approximates Kari Motor Speedway: start/finish straight,
// C1, C2, the back straight and back to the line.
var KariWaypoints = []Waypoint{
	{10.92650, 77.06200},
	{10.92500, 77.06200},
	{10.92480, 77.06220},
	{10.92500, 77.06250},
	{10.92550, 77.06300},
	{10.92600, 77.06300},
	{10.92650, 77.06200},
}

// Header is the column row of generated CSV files.
var Header = []string{"timestamp", "latitude", "longitude", "speed", "satellites",
	"imu_x", "imu_y", "imu_z", "pressure", "temp"}

const (
	straightSpeedKmh = 100.0
	cornerSpeedKmh   = 40.0
	straightMinDeg   = 0.001
)

// Generator produces laps around a closed waypoint loop.
type Generator struct {
	Waypoints       []Waypoint
	Laps            int
	StepsPerSegment int
	Hz              float64
	StartTime       float64 // unix seconds

	NoiseDeg float64 // uniform position jitter, degrees
	NoiseKmh float64 // uniform speed jitter

	rng *rand.Rand
}

// NewKari returns a 3-lap Kari generator. Noise is reproducible for a
// given seed.
func NewKari(seed int64) *Generator {
	return &Generator{
		Waypoints:       KariWaypoints,
		Laps:            3,
		StepsPerSegment: 50,
		Hz:              10,
		StartTime:       1700000000,
		NoiseDeg:        0.00001,
		NoiseKmh:        1,
		rng:             rand.New(rand.NewSource(seed)),
	}
}

func (g *Generator) jitter(amount float64) float64 {
	if amount == 0 {
		return 0
	}
	return (g.rng.Float64()*2 - 1) * amount
}

// Samples interpolates every segment linearly, excluding its end point,
// and applies the configured noise. Speeds are fast on long segments and
// slow on short ones.
func (g *Generator) Samples() []telemetry.Sample {
	if len(g.Waypoints) < 2 || g.Laps < 1 || g.StepsPerSegment < 1 {
		return nil
	}
	hz := g.Hz
	if hz <= 0 {
		hz = 10
	}

	out := make([]telemetry.Sample, 0, g.Laps*(len(g.Waypoints)-1)*g.StepsPerSegment)
	ts := g.StartTime
	for lap := 0; lap < g.Laps; lap++ {
		for i := 0; i < len(g.Waypoints)-1; i++ {
			p1, p2 := g.Waypoints[i], g.Waypoints[i+1]
			speed := cornerSpeedKmh
			if math.Hypot(p2.Lat-p1.Lat, p2.Lon-p1.Lon) > straightMinDeg {
				speed = straightSpeedKmh
			}
			for step := 0; step < g.StepsPerSegment; step++ {
				f := float64(step) / float64(g.StepsPerSegment)
				lat := p1.Lat + (p2.Lat-p1.Lat)*f + g.jitter(g.NoiseDeg)
				lon := p1.Lon + (p2.Lon-p1.Lon)*f + g.jitter(g.NoiseDeg)
				out = append(out, telemetry.Sample{
					Timestamp: round(ts, 2),
					GPS: telemetry.GPS{
						Lat:        round(lat, 6),
						Lon:        round(lon, 6),
						SpeedKmh:   round(speed+g.jitter(g.NoiseKmh), 1),
						Satellites: 10,
					},
					IMU: telemetry.IMU{AccelX: 0.1, AccelY: 0.2, AccelZ: 9.8},
					Env: telemetry.Env{Temp: 30.5, Pressure: 1013.2},
				})
				ts += 1 / hz
			}
		}
	}
	return out
}

// Session wraps Samples in a session called name.
func (g *Generator) Session(name string) *telemetry.Session {
	return telemetry.NewSession(name, g.Samples())
}

// WriteCSV writes a logger-format CSV of Samples to w.
func (g *Generator) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, s := range g.Samples() {
		row := []string{
			strconv.FormatFloat(s.Timestamp, 'f', 2, 64),
			strconv.FormatFloat(s.GPS.Lat, 'f', 6, 64),
			strconv.FormatFloat(s.GPS.Lon, 'f', 6, 64),
			strconv.FormatFloat(s.GPS.SpeedKmh, 'f', 1, 64),
			strconv.Itoa(s.GPS.Satellites),
			"0.1", "0.2", "9.8",
			"1013.2", "30.5",
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the CSV to path on fsys.
func (g *Generator) WriteFile(fsys fsutil.FileSystem, path string) error {
	var buf bytes.Buffer
	if err := g.WriteCSV(&buf); err != nil {
		return err
	}
	return fsys.WriteFile(path, buf.Bytes(), 0644)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
