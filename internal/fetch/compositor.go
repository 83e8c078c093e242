package fetch

import (
	"errors"
	"math"
	"sort"

	"github.com/JhanXXX/webGIS-for-GVI/internal/raster"
)

// ErrNoUsableScenes is returned when no scene passed the completeness gate.
var ErrNoUsableScenes = errors.New("no scene with a complete band set")

// CompleteScenes keeps only scenes for which every required band was fetched.
// Partial scenes are discarded entirely: mixing scenes with different band
// coverage would skew the per-band medians against each other.
func CompleteScenes(scenes []map[string][][]float64, required []string) []map[string][][]float64 {
	complete := make([]map[string][][]float64, 0, len(scenes))
	for _, scene := range scenes {
		ok := true
		for _, band := range required {
			if _, present := scene[band]; !present {
				ok = false
				break
			}
		}
		if ok {
			complete = append(complete, scene)
		}
	}
	return complete
}

// Composite merges per-scene band grids into one composite via per-pixel
// median, ignoring NaN. A pixel missing in every scene stays NaN.
func Composite(scenes []map[string][][]float64) (raster.Composite, error) {
	qualified := CompleteScenes(scenes, raster.Bands)
	if len(qualified) == 0 {
		return nil, ErrNoUsableScenes
	}

	composite := make(raster.Composite, len(raster.Bands))
	for _, band := range raster.Bands {
		grid := raster.NewGrid()
		for i := 0; i < raster.GridSize; i++ {
			for j := 0; j < raster.GridSize; j++ {
				values := make([]float64, 0, len(qualified))
				for _, scene := range qualified {
					if v := scene[band][i][j]; !math.IsNaN(v) {
						values = append(values, v)
					}
				}
				grid[i][j] = median(values)
			}
		}
		composite[band] = grid
	}
	return composite, nil
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}
