// Package units holds the physical constants and conversions shared by the
// timing and fusion stages.
package units

// Speed unit identifiers.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// Gravity is standard gravity in m/s².
const Gravity = 9.81

// ValidUnits contains all valid unit values.
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units.
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// KmphToMps converts km/h, the logger's native speed unit, to m/s.
func KmphToMps(kmph float64) float64 {
	return kmph / 3.6
}

// ConvertSpeed converts a speed in m/s to the target units.
// Unknown units leave the value in m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// AccelToG expresses an acceleration in m/s² as a multiple of Gravity.
func AccelToG(accel float64) float64 {
	return accel / Gravity
}
