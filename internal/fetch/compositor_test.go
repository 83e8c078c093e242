package fetch

import (
	"math"
	"testing"

	"github.com/JhanXXX/webGIS-for-GVI/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sceneWithBands(fill float64, bands ...string) map[string][][]float64 {
	scene := make(map[string][][]float64, len(bands))
	for _, band := range bands {
		grid := make([][]float64, raster.GridSize)
		for i := range grid {
			grid[i] = make([]float64, raster.GridSize)
			for j := range grid[i] {
				grid[i][j] = fill
			}
		}
		scene[band] = grid
	}
	return scene
}

func TestCompleteScenesGate(t *testing.T) {
	full := sceneWithBands(0.2, raster.Bands...)
	partial := sceneWithBands(0.3, "B02", "B03", "B04")
	empty := map[string][][]float64{}

	kept := CompleteScenes([]map[string][][]float64{full, partial, empty}, raster.Bands)
	require.Len(t, kept, 1)
	assert.Equal(t, 0.2, kept[0]["B02"][0][0])
}

func TestCompositeRejectsWhenNothingQualifies(t *testing.T) {
	partial := sceneWithBands(0.3, "B02", "B08")
	_, err := Composite([]map[string][][]float64{partial})
	assert.ErrorIs(t, err, ErrNoUsableScenes)

	_, err = Composite(nil)
	assert.ErrorIs(t, err, ErrNoUsableScenes)
}

func TestCompositeMedianOddCount(t *testing.T) {
	scenes := []map[string][][]float64{
		sceneWithBands(0.1, raster.Bands...),
		sceneWithBands(0.5, raster.Bands...),
		sceneWithBands(0.3, raster.Bands...),
	}
	composite, err := Composite(scenes)
	require.NoError(t, err)
	for _, band := range raster.Bands {
		assert.InDelta(t, 0.3, composite[band][2][1], 1e-12)
	}
}

func TestCompositeMedianEvenCount(t *testing.T) {
	scenes := []map[string][][]float64{
		sceneWithBands(0.2, raster.Bands...),
		sceneWithBands(0.4, raster.Bands...),
	}
	composite, err := Composite(scenes)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, composite["B08"][0][0], 1e-12)
}

func TestCompositeSkipsNaNPerPixel(t *testing.T) {
	a := sceneWithBands(0.2, raster.Bands...)
	b := sceneWithBands(0.6, raster.Bands...)
	a["B08"][1][1] = math.NaN()

	composite, err := Composite([]map[string][][]float64{a, b})
	require.NoError(t, err)

	// Present in one scene only: that scene's value wins.
	assert.InDelta(t, 0.6, composite["B08"][1][1], 1e-12)
	// Present in both elsewhere.
	assert.InDelta(t, 0.4, composite["B08"][0][0], 1e-12)
}

func TestCompositeAllMissingStaysNaN(t *testing.T) {
	a := sceneWithBands(0.2, raster.Bands...)
	b := sceneWithBands(0.6, raster.Bands...)
	a["B11"][3][3] = math.NaN()
	b["B11"][3][3] = math.NaN()

	composite, err := Composite([]map[string][][]float64{a, b})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(composite["B11"][3][3]))
}

func TestResamplingMethodByResolution(t *testing.T) {
	// 10 m bands are finer than the 20 m target and get averaged down.
	assert.Equal(t, "average", resamplingMethod("B02"))
	assert.Equal(t, "average", resamplingMethod("B08"))
	// 20 m bands are already at target resolution.
	assert.Equal(t, "bilinear", resamplingMethod("B05"))
	assert.Equal(t, "bilinear", resamplingMethod("B12"))
	// Unknown bands fall back to bilinear.
	assert.Equal(t, "bilinear", resamplingMethod("B99"))
}

func TestToReflectanceMasksOutOfRange(t *testing.T) {
	f := NewFetcher(10000, zap.NewNop())
	buf := make([]float64, raster.GridSize*raster.GridSize)
	for i := range buf {
		buf[i] = 2000 // 0.2 reflectance
	}
	buf[0] = 0     // zero DN is not a legitimate reflectance
	buf[1] = 10000 // exactly 1.0 is masked, the interval is open
	buf[2] = 12000 // above range
	buf[3] = -500  // negative artifact

	grid := f.toReflectance(buf)
	assert.True(t, math.IsNaN(grid[0][0]))
	assert.True(t, math.IsNaN(grid[0][1]))
	assert.True(t, math.IsNaN(grid[0][2]))
	assert.True(t, math.IsNaN(grid[0][3]))
	assert.InDelta(t, 0.2, grid[1][0], 1e-12)
}
