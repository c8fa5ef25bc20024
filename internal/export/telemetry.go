package export

import "github.com/banshee-data/laptrace/internal/telemetry"

// File suffixes written next to a session document.
const (
	TelemetrySuffix = "_telemetry.json"
	ReportSuffix    = "_report.html"
)

// Telemetry is the columnar per-sample export. Time is relative to the
// first sample.
type Telemetry struct {
	Time  []float64 `json:"time"`
	Lat   []float64 `json:"lat"`
	Lon   []float64 `json:"lon"`
	Speed []float64 `json:"speed"`

	RawAX []float64 `json:"raw_ax"`
	RawAY []float64 `json:"raw_ay"`
	RawAZ []float64 `json:"raw_az"`
	RawGX []float64 `json:"raw_gx,omitempty"`
	RawGY []float64 `json:"raw_gy,omitempty"`
	RawGZ []float64 `json:"raw_gz,omitempty"`

	AX        []float64 `json:"ax,omitempty"`
	AY        []float64 `json:"ay,omitempty"`
	LeanAngle []float64 `json:"lean_angle,omitempty"`
}

// BuildTelemetry returns the columnar telemetry of s, or nil when s has no
// samples. Gyro columns are present when the first sample carries gyro.
func BuildTelemetry(s *telemetry.Session) *Telemetry {
	n := s.Len()
	if n == 0 {
		return nil
	}
	t0 := s.StartTime()
	col := func() []float64 { return make([]float64, n) }
	out := &Telemetry{
		Time: col(), Lat: col(), Lon: col(), Speed: col(),
		RawAX: col(), RawAY: col(), RawAZ: col(),
	}
	hasGyro := s.Samples[0].IMU.HasGyro()
	if hasGyro {
		out.RawGX, out.RawGY, out.RawGZ = col(), col(), col()
	}

	for i, smp := range s.Samples {
		out.Time[i] = round(smp.Timestamp-t0, 3)
		out.Lat[i] = round(smp.GPS.Lat, 6)
		out.Lon[i] = round(smp.GPS.Lon, 6)
		out.Speed[i] = round(smp.GPS.SpeedKmh, 1)
		out.RawAX[i] = round(smp.IMU.AccelX, 3)
		out.RawAY[i] = round(smp.IMU.AccelY, 3)
		out.RawAZ[i] = round(smp.IMU.AccelZ, 3)
		if hasGyro {
			out.RawGX[i] = round(telemetry.Deref(smp.IMU.GyroX), 2)
			out.RawGY[i] = round(telemetry.Deref(smp.IMU.GyroY), 2)
			out.RawGZ[i] = round(telemetry.Deref(smp.IMU.GyroZ), 2)
		}
	}

	if sig := s.Signals; !sig.Empty() {
		if len(sig.AlignedAccelX) == n && len(sig.AlignedAccelY) == n {
			out.AX = roundAll(sig.AlignedAccelX, 2)
			out.AY = roundAll(sig.AlignedAccelY, 2)
		}
		if len(sig.LeanAngle) == n {
			out.LeanAngle = roundAll(sig.LeanAngle, 1)
		}
	}
	return out
}

func roundAll(x []float64, decimals int) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = round(v, decimals)
	}
	return out
}
