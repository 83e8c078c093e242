package raster

import "math"

// GridSize is the fixed edge length of every composite band grid. The scoring
// model was trained on 4x4 tiles, so this is a hard contract.
const GridSize = 4

// Bands lists the required Sentinel-2 bands in cache layer order:
// blue, green, red, red-edge, NIR, SWIR1, SWIR2.
var Bands = []string{"B02", "B03", "B04", "B05", "B08", "B11", "B12"}

// Composite maps a band identifier to its merged GridSize x GridSize
// reflectance grid. Missing pixels are NaN.
type Composite map[string][][]float64

// NewGrid allocates a GridSize x GridSize grid filled with NaN.
func NewGrid() [][]float64 {
	grid := make([][]float64, GridSize)
	for i := range grid {
		grid[i] = make([]float64, GridSize)
		for j := range grid[i] {
			grid[i][j] = math.NaN()
		}
	}
	return grid
}

// Valid reports whether the composite carries every required band with the
// expected shape.
func (c Composite) Valid() bool {
	for _, band := range Bands {
		grid, ok := c[band]
		if !ok || len(grid) != GridSize {
			return false
		}
		for _, row := range grid {
			if len(row) != GridSize {
				return false
			}
		}
	}
	return true
}
