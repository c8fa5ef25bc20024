// Package ingest loads logger CSV files into telemetry sessions.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/laptrace/internal/fsutil"
	"github.com/banshee-data/laptrace/internal/telemetry"
)

// ErrEmpty is returned when a file yields no usable samples.
var ErrEmpty = errors.New("no samples in input")

// Stats counts what happened to each data row.
type Stats struct {
	Rows    int
	Loaded  int
	Skipped int
}

// Load reads the CSV at path. The session is named after the file's base
// name.
func Load(fsys fsutil.FileSystem, path string) (*telemetry.Session, Stats, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return Read(f, filepath.Base(path))
}

// Read parses CSV rows from r. Missing or empty fields default to zero;
// a row with a malformed number is skipped. Gyro channels are populated only
// when the header carries gyro columns.
func Read(r io.Reader, name string) (*telemetry.Session, Stats, error) {
	var st Stats

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, st, fmt.Errorf("%s: %w", name, ErrEmpty)
	}
	if err != nil {
		return nil, st, fmt.Errorf("failed to read header of %s: %w", name, err)
	}

	cols := NewColumnMap(header)
	if missing := cols.Missing(); len(missing) > 0 {
		diagf("%s: header has no column for %v", name, missing)
	}
	hasGyro := cols.Has(FieldGyroX) || cols.Has(FieldGyroY) || cols.Has(FieldGyroZ)

	session := telemetry.NewSession(name, nil)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		st.Rows++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				st.Skipped++
				tracef("%s: skipping malformed line: %v", name, err)
				continue
			}
			return nil, st, fmt.Errorf("failed to read %s: %w", name, err)
		}

		sample, err := parseRow(cols, record, hasGyro)
		if err != nil {
			st.Skipped++
			tracef("%s: skipping row %d: %v", name, st.Rows, err)
			continue
		}
		session.Samples = append(session.Samples, sample)
	}

	st.Loaded = len(session.Samples)
	if st.Skipped > 0 {
		diagf("%s: loaded %d rows, skipped %d", name, st.Loaded, st.Skipped)
	}
	if st.Loaded == 0 {
		return nil, st, fmt.Errorf("%s: %w", name, ErrEmpty)
	}
	return session, st, nil
}

// rowParser accumulates the first parse error so parseRow reads straight.
type rowParser struct {
	cols   ColumnMap
	record []string
	err    error
}

func (p *rowParser) float(f Field) float64 {
	v := p.cols.Value(p.record, f)
	if v == "" || p.err != nil {
		return 0
	}
	x, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", f, err)
		return 0
	}
	return x
}

func (p *rowParser) int(f Field) int {
	v := p.cols.Value(p.record, f)
	if v == "" || p.err != nil {
		return 0
	}
	x, err := strconv.Atoi(v)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", f, err)
		return 0
	}
	return x
}

func parseRow(cols ColumnMap, record []string, hasGyro bool) (telemetry.Sample, error) {
	p := &rowParser{cols: cols, record: record}

	s := telemetry.Sample{
		Timestamp: p.float(FieldTimestamp),
		GPS: telemetry.GPS{
			Lat:        p.float(FieldLat),
			Lon:        p.float(FieldLon),
			SpeedKmh:   p.float(FieldSpeed),
			Satellites: p.int(FieldSatellites),
		},
		IMU: telemetry.IMU{
			AccelX: p.float(FieldAccelX),
			AccelY: p.float(FieldAccelY),
			AccelZ: p.float(FieldAccelZ),
		},
		Env: telemetry.Env{
			Temp:     p.float(FieldTemp),
			Pressure: p.float(FieldPressure),
		},
	}
	if hasGyro {
		s.IMU.GyroX = telemetry.Float(p.float(FieldGyroX))
		s.IMU.GyroY = telemetry.Float(p.float(FieldGyroY))
		s.IMU.GyroZ = telemetry.Float(p.float(FieldGyroZ))
	}
	return s, p.err
}
