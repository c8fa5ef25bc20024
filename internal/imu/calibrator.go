package imu

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/laptrace/internal/telemetry"
)

// Static calibration defaults, in raw sensor counts.
const (
	DefaultCalibrationWindow    = 2.0
	DefaultStillnessThreshold   = 2000.0
	highConfidenceStdDev        = 500.0
	calibrationSearchWindowSecs = 120.0
)

// StaticCalibration is the result of searching a session's opening for a
// period where the bike stood still.
type StaticCalibration struct {
	Calibrated bool
	Confidence string
	Reason     string
	// Gravity is the mean accelerometer vector over the still window.
	Gravity [3]float64
	// GyroBias is the mean gyro reading over the still window.
	GyroBias [3]float64
	// Epoch is the timestamp at which the still window starts.
	Epoch  float64
	StdDev float64
}

// Calibrate looks for the lowest-variance accelerometer window of the given
// length (seconds) in the first two minutes of samples, stepping by half a
// window. A window whose deviation exceeds threshold is not still enough.
func Calibrate(samples []telemetry.Sample, window, threshold float64) StaticCalibration {
	if window <= 0 {
		window = DefaultCalibrationWindow
	}
	if threshold <= 0 {
		threshold = DefaultStillnessThreshold
	}
	if len(samples) == 0 {
		return StaticCalibration{Reason: "no samples"}
	}

	t0 := samples[0].Timestamp
	limit := t0 + calibrationSearchWindowSecs
	bestStart, bestEnd, bestStd := -1, -1, math.Inf(1)

	for start := 0; start < len(samples) && samples[start].Timestamp+window <= limit; {
		end := start
		for end < len(samples) && samples[end].Timestamp < samples[start].Timestamp+window {
			end++
		}
		if end == len(samples) {
			break
		}
		if end-start >= 2 {
			if s := windowStdDev(samples[start:end]); s < bestStd {
				bestStart, bestEnd, bestStd = start, end, s
			}
		}
		next := start
		for next < len(samples) && samples[next].Timestamp < samples[start].Timestamp+window/2 {
			next++
		}
		if next == start {
			next++
		}
		start = next
	}

	if bestStart < 0 {
		return StaticCalibration{Reason: "session shorter than calibration window"}
	}
	if bestStd > threshold {
		diagf("no still window: best std %.1f > %.1f", bestStd, threshold)
		return StaticCalibration{StdDev: bestStd, Reason: fmt.Sprintf("no still period (std %.1f)", bestStd)}
	}

	win := samples[bestStart:bestEnd]
	cal := StaticCalibration{
		Calibrated: true,
		Confidence: "MEDIUM",
		Epoch:      win[0].Timestamp,
		StdDev:     bestStd,
	}
	if bestStd < highConfidenceStdDev {
		cal.Confidence = "HIGH"
	}
	for _, s := range win {
		cal.Gravity[0] += s.IMU.AccelX
		cal.Gravity[1] += s.IMU.AccelY
		cal.Gravity[2] += s.IMU.AccelZ
		cal.GyroBias[0] += telemetry.Deref(s.IMU.GyroX)
		cal.GyroBias[1] += telemetry.Deref(s.IMU.GyroY)
		cal.GyroBias[2] += telemetry.Deref(s.IMU.GyroZ)
	}
	for k := 0; k < 3; k++ {
		cal.Gravity[k] /= float64(len(win))
		cal.GyroBias[k] /= float64(len(win))
	}
	diagf("static calibration at %.1f: std %.1f gravity %v", cal.Epoch, bestStd, cal.Gravity)
	return cal
}

// windowStdDev is the mean of the per-axis accelerometer standard
// deviations.
func windowStdDev(win []telemetry.Sample) float64 {
	axes := [3][]float64{}
	for _, s := range win {
		axes[0] = append(axes[0], s.IMU.AccelX)
		axes[1] = append(axes[1], s.IMU.AccelY)
		axes[2] = append(axes[2], s.IMU.AccelZ)
	}
	sum := 0.0
	for _, a := range axes {
		sum += stat.StdDev(a, nil)
	}
	return sum / 3
}

// RotationToVertical returns the rotation matrix that maps the direction
// of gravity onto +Z.
func RotationToVertical(gravity [3]float64) *mat.Dense {
	g := mat.NewVecDense(3, gravity[:])
	norm := mat.Norm(g, 2)
	if norm == 0 {
		return identity()
	}
	g.ScaleVec(1/norm, g)

	// v = g × z, c = g · z
	v := [3]float64{g.AtVec(1), -g.AtVec(0), 0}
	c := g.AtVec(2)
	s := math.Hypot(v[0], v[1])

	if s < 1e-9 {
		if c > 0 {
			return identity()
		}
		return mat.NewDense(3, 3, []float64{1, 0, 0, 0, -1, 0, 0, 0, -1})
	}

	vx := mat.NewDense(3, 3, []float64{
		0, -v[2], v[1],
		v[2], 0, -v[0],
		-v[1], v[0], 0,
	})
	var vx2 mat.Dense
	vx2.Mul(vx, vx)
	vx2.Scale((1-c)/(s*s), &vx2)

	r := identity()
	r.Add(r, vx)
	r.Add(r, &vx2)
	return r
}

// Rotate applies r to v.
func Rotate(r mat.Matrix, v [3]float64) [3]float64 {
	var out mat.VecDense
	out.MulVec(r, mat.NewVecDense(3, []float64{v[0], v[1], v[2]}))
	return [3]float64{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

func identity() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}
