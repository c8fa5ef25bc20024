package track

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/laptrace/internal/geo"
)

var sectorColors = []color.Color{
	color.RGBA{R: 220, A: 255},
	color.RGBA{B: 220, A: 255},
	color.RGBA{R: 200, B: 200, A: 255},
	color.RGBA{G: 190, B: 190, A: 255},
	color.RGBA{R: 210, G: 190, A: 255},
}

// RenderMap draws the smoothed path with the start line and sector gates
// and returns it as a PNG.
func RenderMap(t *Track, g *Geometry) ([]byte, error) {
	if len(g.Coordinates) == 0 {
		return nil, fmt.Errorf("track %d has no geometry", t.TrackID)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Track Map: %s", t.TrackName)
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, 0, len(g.Coordinates)+1)
	for _, c := range g.Coordinates {
		pts = append(pts, plotter.XY{X: c[1], Y: c[0]})
	}
	first, last := g.Coordinates[0], g.Coordinates[len(g.Coordinates)-1]
	if geo.DistanceMeters(first[0], first[1], last[0], last[1]) > 5 {
		pts = append(pts, pts[0])
	}

	path, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build track path: %w", err)
	}
	path.Color = color.Black
	path.Width = vg.Points(2)
	p.Add(path)
	p.Legend.Add("Track Geometry", path)

	if t.StartLine != nil {
		start, err := plotter.NewScatter(plotter.XYs{{X: t.StartLine.Lon, Y: t.StartLine.Lat}})
		if err != nil {
			return nil, err
		}
		start.GlyphStyle.Color = color.RGBA{G: 160, A: 255}
		start.GlyphStyle.Radius = vg.Points(7)
		start.GlyphStyle.Shape = draw.PyramidGlyph{}
		p.Add(start)
		p.Legend.Add("Start/Finish", start)
	}

	for i, s := range t.Sectors {
		gate, err := plotter.NewScatter(plotter.XYs{{X: s.EndLon, Y: s.EndLat}})
		if err != nil {
			return nil, err
		}
		gate.GlyphStyle.Color = sectorColors[i%len(sectorColors)]
		gate.GlyphStyle.Radius = vg.Points(5)
		gate.GlyphStyle.Shape = draw.BoxGlyph{}
		p.Add(gate)

		label, err := plotter.NewLabels(plotter.XYLabels{
			XYs:    plotter.XYs{{X: s.EndLon, Y: s.EndLat}},
			Labels: []string{" " + s.ID},
		})
		if err != nil {
			return nil, err
		}
		p.Add(label)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	canvas := vgimg.New(10*vg.Inch, 8*vg.Inch)
	p.Draw(draw.New(canvas))

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode track map: %w", err)
	}
	return buf.Bytes(), nil
}
