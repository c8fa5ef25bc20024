// Package imu turns raw accelerometer and gyro streams into lean angle and
// G channels by fusing them with the GPS track.
package imu

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/laptrace/internal/geo"
	"github.com/banshee-data/laptrace/internal/telemetry"
)

// Gravity in m/s².
const Gravity = 9.81

// Raw sensor scaling for 16-bit parts at ±2 g and ±250 °/s.
const (
	AccelLSBPerG   = 16384.0
	GyroLSBPerDegS = 131.0
)

// Fusion methods reported in Result.Method.
const (
	MethodFusion     = "gps_imu_fusion"
	MethodGPSPhysics = "gps_physics_lean"
	MethodAccelOnly  = "accel_only"
)

var (
	ErrInsufficientData = errors.New("imu: not enough samples")
	ErrLengthMismatch   = errors.New("imu: channel lengths differ")
)

// Config tunes the fusion engine. Zero fields take the defaults.
type Config struct {
	MinSamples         int
	LeanLimitDeg       float64
	Leak               float64
	StraightYawDegS    float64
	StraightMinM       float64
	MinStraightSamples int
	TurnLeanDeg        float64
	MinTurnSamples     int
	RefineBelow        float64
	BlendThreshold     float64
	MaxBlend           float64
	MaxIterations      int
	CompressAboveDeg   float64
	CompressToDeg      float64
	DeadZoneG          float64
	LateralLimitG      float64
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		MinSamples:         20,
		LeanLimitDeg:       60,
		Leak:               0.98,
		StraightYawDegS:    3,
		StraightMinM:       50,
		MinStraightSamples: 10,
		TurnLeanDeg:        5,
		MinTurnSamples:     50,
		RefineBelow:        0.6,
		BlendThreshold:     0.5,
		MaxBlend:           0.6,
		MaxIterations:      100,
		CompressAboveDeg:   55,
		CompressToDeg:      52,
		DeadZoneG:          0.02,
		LateralLimitG:      1.5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	setInt := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	setFloat := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	setInt(&c.MinSamples, d.MinSamples)
	setFloat(&c.LeanLimitDeg, d.LeanLimitDeg)
	setFloat(&c.Leak, d.Leak)
	setFloat(&c.StraightYawDegS, d.StraightYawDegS)
	setFloat(&c.StraightMinM, d.StraightMinM)
	setInt(&c.MinStraightSamples, d.MinStraightSamples)
	setFloat(&c.TurnLeanDeg, d.TurnLeanDeg)
	setInt(&c.MinTurnSamples, d.MinTurnSamples)
	setFloat(&c.RefineBelow, d.RefineBelow)
	setFloat(&c.BlendThreshold, d.BlendThreshold)
	setFloat(&c.MaxBlend, d.MaxBlend)
	setInt(&c.MaxIterations, d.MaxIterations)
	setFloat(&c.CompressAboveDeg, d.CompressAboveDeg)
	setFloat(&c.CompressToDeg, d.CompressToDeg)
	setFloat(&c.DeadZoneG, d.DeadZoneG)
	setFloat(&c.LateralLimitG, d.LateralLimitG)
	return c
}

// Input is one session's raw channels. Gyro and GPS channels are optional
// and either absent (nil) or as long as Timestamps.
type Input struct {
	Timestamps             []float64
	AccelX, AccelY, AccelZ []float64
	GyroX, GyroY, GyroZ    []float64
	SpeedsKmh              []float64
	Lats, Lons             []float64
}

// InputFromSession collects the raw channels of s. Gyro channels are only
// filled when every sample carries them.
func InputFromSession(s *telemetry.Session) Input {
	n := len(s.Samples)
	in := Input{
		Timestamps: make([]float64, n),
		AccelX:     make([]float64, n),
		AccelY:     make([]float64, n),
		AccelZ:     make([]float64, n),
		SpeedsKmh:  make([]float64, n),
		Lats:       make([]float64, n),
		Lons:       make([]float64, n),
	}
	hasGyro := n > 0
	for _, smp := range s.Samples {
		if !smp.IMU.HasGyro() {
			hasGyro = false
			break
		}
	}
	if hasGyro {
		in.GyroX = make([]float64, n)
		in.GyroY = make([]float64, n)
		in.GyroZ = make([]float64, n)
	}
	for i, smp := range s.Samples {
		in.Timestamps[i] = smp.Timestamp
		in.AccelX[i] = smp.IMU.AccelX
		in.AccelY[i] = smp.IMU.AccelY
		in.AccelZ[i] = smp.IMU.AccelZ
		in.SpeedsKmh[i] = smp.GPS.SpeedKmh
		in.Lats[i] = smp.GPS.Lat
		in.Lons[i] = smp.GPS.Lon
		if hasGyro {
			in.GyroX[i] = *smp.IMU.GyroX
			in.GyroY[i] = *smp.IMU.GyroY
			in.GyroZ[i] = *smp.IMU.GyroZ
		}
	}
	return in
}

func (in Input) hasGyro() bool { return in.GyroX != nil && in.GyroY != nil && in.GyroZ != nil }

func (in Input) hasGPS() bool {
	if in.SpeedsKmh == nil || in.Lats == nil || in.Lons == nil {
		return false
	}
	for i := range in.Lats {
		if in.Lats[i] != 0 || in.Lons[i] != 0 {
			return true
		}
	}
	return false
}

func (in Input) validate() error {
	n := len(in.Timestamps)
	for _, ch := range [][]float64{in.AccelX, in.AccelY, in.AccelZ} {
		if len(ch) != n {
			return ErrLengthMismatch
		}
	}
	for _, ch := range [][]float64{in.GyroX, in.GyroY, in.GyroZ, in.SpeedsKmh, in.Lats, in.Lons} {
		if ch != nil && len(ch) != n {
			return ErrLengthMismatch
		}
	}
	return nil
}

// Result is the output of one fusion run.
type Result struct {
	Signals     *telemetry.Signals
	Method      string
	RollAxis    string
	Correlation float64
	// StraightSamples is the number of samples used for bias estimation;
	// zero means the GPS-only calibration was used.
	StraightSamples int
}

// Calibration converts r into the session calibration status.
func (r *Result) Calibration() telemetry.Calibration {
	conf := "HIGH"
	if r.Method == MethodAccelOnly || r.StraightSamples == 0 {
		conf = "LOW"
	}
	return telemetry.Calibration{Calibrated: true, Confidence: conf, Method: r.Method}
}

// Engine runs the GPS+IMU fusion.
type Engine struct {
	cfg Config
}

// NewEngine returns an Engine using cfg; zero fields take defaults.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Process fuses one session's channels. Every output channel has one value
// per input sample.
func (e *Engine) Process(in Input) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	n := len(in.Timestamps)
	if n < e.cfg.MinSamples {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, n, e.cfg.MinSamples)
	}

	ax, ay, az := slices.Clone(in.AccelX), slices.Clone(in.AccelY), slices.Clone(in.AccelZ)
	if meanAbs(az) > 1000 {
		for _, ch := range [][]float64{ax, ay, az} {
			floats.Scale(1/AccelLSBPerG, ch)
		}
		diagf("accel scaled from raw counts")
	}
	var gyro [3][]float64
	if in.hasGyro() {
		gyro = [3][]float64{slices.Clone(in.GyroX), slices.Clone(in.GyroY), slices.Clone(in.GyroZ)}
		if maxAbs(gyro[0]) > 100 {
			for _, ch := range gyro {
				floats.Scale(1/GyroLSBPerDegS, ch)
			}
			diagf("gyro scaled from raw counts")
		}
	}

	dt, fs := sampleSpacing(in.Timestamps)

	if !in.hasGPS() {
		opsf("no GPS track, falling back to accelerometer only")
		return e.accelOnly(ax, ay, az, fs), nil
	}

	v := make([]float64, n)
	for i, s := range in.SpeedsKmh {
		v[i] = s / 3.6
	}

	heading := make([]float64, n)
	for i := 1; i < n; i++ {
		heading[i] = geo.Bearing(in.Lats[i-1], in.Lons[i-1], in.Lats[i], in.Lons[i])
	}
	yaw := gradient(unwrap(heading, 360))
	floats.Scale(fs, yaw)
	yaw = LowPass(yaw, 1, fs)

	straight := e.straights(yaw, v, dt)
	nStraight := countTrue(straight)

	gpsAccel := gradient(v)
	floats.Scale(fs/Gravity, gpsAccel)

	var biasX, biasY float64
	var gyroBias [3]float64
	usedStraights := 0
	if nStraight > e.cfg.MinStraightSamples {
		biasY = maskedMean(ay, straight)
		diffX := make([]float64, n)
		floats.SubTo(diffX, ax, gpsAccel)
		biasX = maskedMean(diffX, straight)
		if gyro[0] != nil {
			for k := range gyro {
				gyroBias[k] = maskedMean(gyro[k], straight)
			}
		}
		usedStraights = nStraight
		diagf("biases from %d straight samples: ax=%.4f ay=%.4f gyro=%v", nStraight, biasX, biasY, gyroBias)
	} else {
		opsf("no qualifying straights (%d samples), using GPS-only calibration", nStraight)
	}
	sig := &telemetry.Signals{}

	gpsLean := make([]float64, n)
	for i := range gpsLean {
		if v[i] < 2 {
			continue
		}
		omega := yaw[i] * math.Pi / 180
		gpsLean[i] = math.Atan(v[i]*omega/Gravity) * 180 / math.Pi
	}
	clip(gpsLean, e.cfg.LeanLimitDeg)
	gpsLean = LowPass(gpsLean, 1, fs)
	clip(gpsLean, e.cfg.LeanLimitDeg)

	res := &Result{Method: MethodGPSPhysics, StraightSamples: usedStraights}
	lean := gpsLean

	if gyro[0] != nil {
		for k := range gyro {
			floats.AddConst(-gyroBias[k], gyro[k])
			gyro[k] = LowPass(gyro[k], 2, fs)
		}
		turn := make([]bool, n)
		for i, l := range gpsLean {
			turn[i] = math.Abs(l) > e.cfg.TurnLeanDeg
		}
		if nTurn := countTrue(turn); nTurn > e.cfg.MinTurnSamples {
			search := axisSearch{
				gyro:      gyro,
				reference: gpsLean,
				mask:      turn,
				integrate: func(rate []float64) []float64 { return e.integrate(rate, dt, fs) },
			}
			axis, corr := search.best(e.cfg.RefineBelow, e.cfg.MaxIterations)
			res.RollAxis, res.Correlation = axis.Name, corr
			if corr > e.cfg.BlendThreshold {
				lean = e.blend(search.integrate(combine(gyro, axis.Coeffs)), gpsLean, turn, corr)
				res.Method = MethodFusion
			} else {
				diagf("best roll axis %s r=%.3f below threshold, using GPS lean", axis.Name, corr)
			}
		} else {
			diagf("only %d turning samples, using GPS lean", nTurn)
		}
	}

	clip(lean, e.cfg.LeanLimitDeg)
	e.compress(lean)
	sig.LeanAngle = lean

	longG := gradient(v)
	floats.Scale(fs, longG)
	longG = LowPass(longG, 0.5, fs)
	floats.Scale(1/Gravity, longG)
	sig.LongitudinalG = longG
	sig.Acceleration, sig.Braking = e.splitLongitudinal(longG)

	sig.LateralG = make([]float64, n)
	for i, l := range lean {
		sig.LateralG[i] = math.Tan(l * math.Pi / 180)
	}
	clip(sig.LateralG, e.cfg.LateralLimitG)

	sig.Pitch = make([]float64, n)
	sig.Yaw = make([]float64, n)
	sig.VerticalG = ones(n)
	sig.Confidence = 1.0

	// Vehicle frame, independent of the sensor mount.
	sig.AlignedAccelX = slices.Clone(sig.LongitudinalG)
	sig.AlignedAccelY = slices.Clone(sig.LateralG)
	sig.AlignedAccelZ = slices.Clone(sig.VerticalG)

	roundSignals(sig)
	res.Signals = sig
	return res, nil
}

// integrate turns a roll rate (°/s) into a leaky-integrated, low-passed
// lean estimate.
func (e *Engine) integrate(rate, dt []float64, fs float64) []float64 {
	out := make([]float64, len(rate))
	l := 0.0
	lim := e.cfg.LeanLimitDeg
	for i, r := range rate {
		l = math.Max(-lim, math.Min(lim, l*e.cfg.Leak+r*dt[i]))
		out[i] = l
	}
	return LowPass(out, 1, fs)
}

// blend corrects the IMU lean against the GPS lean over turning samples and
// mixes the two.
func (e *Engine) blend(imuLean, gpsLean []float64, turn []bool, corr float64) []float64 {
	n := len(imuLean)
	diff := make([]float64, n)
	floats.SubTo(diff, imuLean, gpsLean)
	floats.AddConst(-maskedMean(diff, turn), imuLean)

	sGPS, sIMU := maskedStdDev(gpsLean, turn), maskedStdDev(imuLean, turn)
	if sIMU > 0 {
		if ratio := sGPS / sIMU; ratio < 0.7 || ratio > 1.4 {
			diagf("rescaling IMU lean by %.3f", ratio)
			floats.Scale(ratio, imuLean)
		}
	}

	alpha := math.Min(e.cfg.MaxBlend, corr)
	out := slices.Clone(imuLean)
	floats.Scale(alpha, out)
	floats.AddScaled(out, 1-alpha, gpsLean)
	return out
}

// compress rescales lean when its 99th percentile magnitude is above the
// compression threshold.
func (e *Engine) compress(lean []float64) {
	abs := make([]float64, len(lean))
	for i, l := range lean {
		abs[i] = math.Abs(l)
	}
	slices.Sort(abs)
	p99 := stat.Quantile(0.99, stat.LinInterp, abs, nil)
	if p99 > e.cfg.CompressAboveDeg {
		diagf("compressing lean range, p99=%.1f", p99)
		floats.Scale(e.cfg.CompressToDeg/p99, lean)
	}
}

// straights marks samples on runs with |yaw| below the threshold that cover
// more than the minimum distance.
func (e *Engine) straights(yaw, v, dt []float64) []bool {
	n := len(yaw)
	mask := make([]bool, n)
	for i := 0; i < n; {
		if math.Abs(yaw[i]) >= e.cfg.StraightYawDegS {
			i++
			continue
		}
		j, dist := i, 0.0
		for j < n && math.Abs(yaw[j]) < e.cfg.StraightYawDegS {
			dist += v[j] * dt[j]
			j++
		}
		if dist > e.cfg.StraightMinM {
			for k := i; k < j; k++ {
				mask[k] = true
			}
			tracef("straight %d..%d: %.0f m", i, j, dist)
		}
		i = j
	}
	return mask
}

func (e *Engine) splitLongitudinal(longG []float64) (accel, braking []float64) {
	accel = make([]float64, len(longG))
	braking = make([]float64, len(longG))
	for i, g := range longG {
		switch {
		case g > e.cfg.DeadZoneG:
			accel[i] = g
		case g < -e.cfg.DeadZoneG:
			braking[i] = -g
		}
	}
	return accel, braking
}

// accelOnly is the no-GPS path: filtered accelerometer channels and no lean.
func (e *Engine) accelOnly(ax, ay, az []float64, fs float64) *Result {
	n := len(ax)
	sig := &telemetry.Signals{
		AlignedAccelX: LowPass(ax, 0.5, fs),
		AlignedAccelY: LowPass(ay, 0.5, fs),
		AlignedAccelZ: LowPass(az, 0.5, fs),
		LeanAngle:     make([]float64, n),
		Pitch:         make([]float64, n),
		Yaw:           make([]float64, n),
		Confidence:    0.3,
	}
	sig.LongitudinalG = slices.Clone(sig.AlignedAccelX)
	sig.LateralG = slices.Clone(sig.AlignedAccelY)
	sig.VerticalG = slices.Clone(sig.AlignedAccelZ)
	sig.Acceleration, sig.Braking = e.splitLongitudinal(sig.LongitudinalG)
	roundSignals(sig)
	return &Result{Signals: sig, Method: MethodAccelOnly}
}

// sampleSpacing returns per-sample dt (non-positive gaps replaced by the
// mean) and the sampling rate.
func sampleSpacing(ts []float64) ([]float64, float64) {
	n := len(ts)
	mean := 0.0
	if n > 1 {
		mean = (ts[n-1] - ts[0]) / float64(n-1)
	}
	if mean <= 0 {
		mean = 0.1
	}
	dt := make([]float64, n)
	dt[0] = mean
	for i := 1; i < n; i++ {
		dt[i] = ts[i] - ts[i-1]
		if dt[i] <= 0 {
			dt[i] = mean
		}
	}
	return dt, 1 / mean
}

func roundSignals(s *telemetry.Signals) {
	roundTo(s.LeanAngle, 1)
	for _, ch := range [][]float64{
		s.AlignedAccelX, s.AlignedAccelY, s.AlignedAccelZ,
		s.LongitudinalG, s.LateralG, s.VerticalG, s.Acceleration, s.Braking,
	} {
		roundTo(ch, 2)
	}
}

func meanAbs(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	s := 0.0
	for _, v := range x {
		s += math.Abs(v)
	}
	return s / float64(len(x))
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

func countTrue(mask []bool) int {
	c := 0
	for _, m := range mask {
		if m {
			c++
		}
	}
	return c
}

func maskedMean(x []float64, mask []bool) float64 {
	w := make([]float64, len(x))
	for i, m := range mask {
		if m {
			w[i] = 1
		}
	}
	if floats.Sum(w) == 0 {
		return 0
	}
	return stat.Mean(x, w)
}

func maskedStdDev(x []float64, mask []bool) float64 {
	var sel []float64
	for i, m := range mask {
		if m {
			sel = append(sel, x[i])
		}
	}
	if len(sel) < 2 {
		return 0
	}
	return stat.StdDev(sel, nil)
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
