package imu

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// Axis is a roll-rate signal expressed as a linear combination of the
// three gyro axes.
type Axis struct {
	Name   string
	Coeffs [3]float64
}

var signedAxes = []Axis{
	{"+X", [3]float64{1, 0, 0}},
	{"-X", [3]float64{-1, 0, 0}},
	{"+Y", [3]float64{0, 1, 0}},
	{"-Y", [3]float64{0, -1, 0}},
	{"+Z", [3]float64{0, 0, 1}},
	{"-Z", [3]float64{0, 0, -1}},
}

// refineStarts seed Nelder-Mead at each single axis, each two-axis
// diagonal and the three-axis diagonal.
var refineStarts = [][]float64{
	{1, 0, 0}, {0, 1, 0}, {0, 0, 1},
	{1, 1, 0}, {1, 0, 1}, {0, 1, 1},
	{1, 1, 1},
}

// combine returns Σ c[k]·gyro[k] per sample.
func combine(gyro [3][]float64, c [3]float64) []float64 {
	out := make([]float64, len(gyro[0]))
	for k := 0; k < 3; k++ {
		if c[k] != 0 {
			floats.AddScaled(out, c[k], gyro[k])
		}
	}
	return out
}

// maskedCorrelation is the Pearson correlation of a and b over the samples
// where mask is set. Degenerate inputs give 0.
func maskedCorrelation(a, b []float64, mask []bool) float64 {
	var xs, ys []float64
	for i, m := range mask {
		if m {
			xs = append(xs, a[i])
			ys = append(ys, b[i])
		}
	}
	if len(xs) < 2 {
		return 0
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// axisSearch scores candidate roll axes against the GPS lean reference.
type axisSearch struct {
	gyro      [3][]float64
	reference []float64
	mask      []bool
	integrate func(rate []float64) []float64
}

func (s axisSearch) score(c [3]float64) float64 {
	return maskedCorrelation(s.integrate(combine(s.gyro, c)), s.reference, s.mask)
}

// best evaluates the six signed axes and, when none reaches
// refineBelow, refines a mixed axis with Nelder-Mead.
func (s axisSearch) best(refineBelow float64, maxIter int) (Axis, float64) {
	best, bestCorr := signedAxes[0], math.Inf(-1)
	for _, a := range signedAxes {
		r := s.score(a.Coeffs)
		diagf("roll axis %s: r=%.3f", a.Name, r)
		if r > bestCorr {
			best, bestCorr = a, r
		}
	}
	if bestCorr >= refineBelow {
		return best, bestCorr
	}

	objective := func(x []float64) float64 {
		norm := floats.Norm(x, 2)
		if norm < 0.01 {
			return 1
		}
		return -s.score([3]float64{x[0] / norm, x[1] / norm, x[2] / norm})
	}
	for _, x0 := range refineStarts {
		res, err := optimize.Minimize(
			optimize.Problem{Func: objective},
			append([]float64(nil), x0...),
			&optimize.Settings{MajorIterations: maxIter},
			&optimize.NelderMead{},
		)
		if res == nil {
			if err != nil {
				tracef("nelder-mead from %v: %v", x0, err)
			}
			continue
		}
		if r := -res.F; r > bestCorr {
			norm := floats.Norm(res.X, 2)
			if norm < 0.01 {
				continue
			}
			bestCorr = r
			best = Axis{
				Name:   "mixed",
				Coeffs: [3]float64{res.X[0] / norm, res.X[1] / norm, res.X[2] / norm},
			}
		}
	}
	diagf("roll axis refined: %s %v r=%.3f", best.Name, best.Coeffs, bestCorr)
	return best, bestCorr
}
