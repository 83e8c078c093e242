package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/JhanXXX/webGIS-for-GVI/internal/raster"
)

// Count is the number of spectral indices in a feature stack.
const Count = 8

// Names fixes the stack order. The scoring model was trained on this exact
// order; reordering silently corrupts scores.
var Names = [Count]string{"NDVI", "EVI", "MSAVI", "GNDVI", "NDRE", "MNDWI", "UI", "BSI"}

// Stack is a model-ready feature tensor: Count indices over the fixed grid,
// in Names order.
type Stack [Count][raster.GridSize][raster.GridSize]float64

// ErrInvalid is returned when a stack fails validation before inference.
var ErrInvalid = errors.New("invalid feature stack")

// Compute derives the eight spectral indices from a seven-band composite.
// Every formula divides safely: a zero denominator yields NaN for that pixel,
// never infinity. MSAVI additionally guards its square root against a
// negative discriminant.
func Compute(c raster.Composite) (Stack, error) {
	var stack Stack
	if !c.Valid() {
		return stack, fmt.Errorf("%w: composite is missing bands or misshapen", ErrInvalid)
	}

	blue := c["B02"]
	green := c["B03"]
	red := c["B04"]
	redEdge := c["B05"]
	nir := c["B08"]
	swir1 := c["B11"]
	swir2 := c["B12"]

	for i := 0; i < raster.GridSize; i++ {
		for j := 0; j < raster.GridSize; j++ {
			b := blue[i][j]
			g := green[i][j]
			r := red[i][j]
			re := redEdge[i][j]
			n := nir[i][j]
			s1 := swir1[i][j]
			s2 := swir2[i][j]

			ndvi := safeDivide(n-r, n+r)
			evi := safeDivide(2.5*(n-r), n+6*r-7.5*b+1)
			gndvi := safeDivide(n-g, n+g)
			ndre := safeDivide(n-re, n+re)
			mndwi := safeDivide(g-s1, g+s1)
			ui := safeDivide(s2-n, s2+n)
			bsi := safeDivide((s1+r)-(n+b), (s1+r)+(n+b))

			for fi, v := range [Count]float64{ndvi, evi, msavi(n, r), gndvi, ndre, mndwi, ui, bsi} {
				stack[fi][i][j] = v
			}
		}
	}
	return stack, nil
}

func safeDivide(num, denom float64) float64 {
	if denom == 0 {
		return math.NaN()
	}
	return num / denom
}

func msavi(nir, red float64) float64 {
	discriminant := (2*nir+1)*(2*nir+1) - 8*(nir-red)
	if discriminant < 0 {
		return math.NaN()
	}
	return (2*nir + 1 - math.Sqrt(discriminant)) / 2
}

// Validate enforces the zero-tolerance policy before inference: the median
// composite is trusted to have compensated for gaps already, so any residual
// NaN means unrecoverable data loss for the tile.
func Validate(s Stack) error {
	for fi := range s {
		for i := range s[fi] {
			for j := range s[fi][i] {
				if math.IsNaN(s[fi][i][j]) {
					return fmt.Errorf("%w: %s contains NaN at (%d,%d)", ErrInvalid, Names[fi], i, j)
				}
			}
		}
	}
	return nil
}
