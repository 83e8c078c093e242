package preview

import (
	"fmt"
	"io"
	"math"

	"github.com/JhanXXX/webGIS-for-GVI/internal/features"
	"github.com/JhanXXX/webGIS-for-GVI/internal/raster"
	"github.com/fogleman/gg"
)

// CellSize is the edge length in pixels each composite cell is blown up to;
// a raw 4x4 image is unreadable.
const CellSize = 64

// RenderNDVI draws the composite's NDVI grid as a PNG heat map: brown for
// bare ground through green for dense vegetation, gray for missing pixels.
func RenderNDVI(composite raster.Composite, w io.Writer) error {
	stack, err := features.Compute(composite)
	if err != nil {
		return fmt.Errorf("failed to compute indices for preview: %w", err)
	}

	side := raster.GridSize * CellSize
	dc := gg.NewContext(side, side)

	for i := 0; i < raster.GridSize; i++ {
		for j := 0; j < raster.GridSize; j++ {
			ndvi := stack[0][i][j]
			r, g, b := ndviColor(ndvi)
			dc.SetRGB(r, g, b)
			dc.DrawRectangle(float64(j*CellSize), float64(i*CellSize), CellSize, CellSize)
			dc.Fill()
		}
	}

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	return nil
}

// ndviColor interpolates brown (NDVI -1) to green (NDVI 1).
func ndviColor(ndvi float64) (float64, float64, float64) {
	if math.IsNaN(ndvi) {
		return 0.5, 0.5, 0.5
	}
	t := (ndvi + 1) / 2
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return 0.55 - 0.45*t, 0.35 + 0.45*t, 0.15
}
