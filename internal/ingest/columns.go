package ingest

import "strings"

// Field is a canonical sample field the loader understands.
type Field int

const (
	FieldTimestamp Field = iota
	FieldLat
	FieldLon
	FieldSpeed
	FieldSatellites
	FieldAccelX
	FieldAccelY
	FieldAccelZ
	FieldGyroX
	FieldGyroY
	FieldGyroZ
	FieldTemp
	FieldPressure
	numFields
)

var fieldNames = [numFields]string{
	"timestamp", "latitude", "longitude", "speed", "satellites",
	"accel_x", "accel_y", "accel_z", "gyro_x", "gyro_y", "gyro_z",
	"temp", "pressure",
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return "unknown"
	}
	return fieldNames[f]
}

// Aliases lists the recognised header names for each field in priority
// order. When several aliases are present the first non-empty value wins.
var Aliases = map[Field][]string{
	FieldTimestamp:  {"timestamp", "time"},
	FieldLat:        {"latitude", "lat"},
	FieldLon:        {"longitude", "lon"},
	FieldSpeed:      {"speed"},
	FieldSatellites: {"satellites"},
	FieldAccelX:     {"imu_x", "accel_x", "acc_x"},
	FieldAccelY:     {"imu_y", "accel_y", "acc_y"},
	FieldAccelZ:     {"imu_z", "accel_z", "acc_z"},
	FieldGyroX:      {"gyro_x"},
	FieldGyroY:      {"gyro_y"},
	FieldGyroZ:      {"gyro_z"},
	FieldTemp:       {"temp", "temperature"},
	FieldPressure:   {"pressure"},
}

// ColumnMap resolves each field to the header columns that carry it.
type ColumnMap struct {
	cols [numFields][]int
}

// NewColumnMap resolves a header row once. Header names are matched
// case-insensitively after trimming whitespace and a UTF-8 byte order mark.
func NewColumnMap(header []string) ColumnMap {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var m ColumnMap
	for f := Field(0); f < numFields; f++ {
		for _, alias := range Aliases[f] {
			if i, ok := index[alias]; ok {
				m.cols[f] = append(m.cols[f], i)
			}
		}
	}
	return m
}

// Has reports whether any column carries f.
func (m ColumnMap) Has(f Field) bool { return len(m.cols[f]) > 0 }

// Value returns the first non-empty value for f in record, or "".
func (m ColumnMap) Value(record []string, f Field) string {
	for _, i := range m.cols[f] {
		if i < len(record) {
			if v := strings.TrimSpace(record[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

// Missing lists the position fields the header does not provide.
func (m ColumnMap) Missing() []Field {
	var out []Field
	for _, f := range []Field{FieldTimestamp, FieldLat, FieldLon} {
		if !m.Has(f) {
			out = append(out, f)
		}
	}
	return out
}
