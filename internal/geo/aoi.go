package geo

import (
	"fmt"
	"math"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
)

// AOI is the square query window around a point: its geographic bounding box
// (used for catalog search) plus the square's extent in the locally accurate
// UTM system (used as the warp target grid and the cache geotransform).
type AOI struct {
	Bound    orb.Bound
	EPSG     int
	ProjMinX float64
	ProjMinY float64
	ProjMaxX float64
	ProjMaxY float64
}

// UTMEPSG returns the EPSG code of the UTM zone containing the point,
// northern hemisphere codes 32601-32660, southern 32701-32760.
func UTMEPSG(lat, lon float64) int {
	zone := int(math.Floor((lon+180)/6)) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > 60 {
		zone = 60
	}
	if lat >= 0 {
		return 32600 + zone
	}
	return 32700 + zone
}

// BuildAOI projects the point into its UTM zone, buffers it into a square of
// 2*bufferMeters per side and reprojects the square's envelope back to
// geographic coordinates.
func BuildAOI(lat, lon, bufferMeters float64) (*AOI, error) {
	epsg := UTMEPSG(lat, lon)

	wgs84, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		return nil, fmt.Errorf("failed to create WGS84 spatial ref: %w", err)
	}
	defer wgs84.Close()

	utm, err := godal.NewSpatialRefFromEPSG(epsg)
	if err != nil {
		return nil, fmt.Errorf("failed to create EPSG:%d spatial ref: %w", epsg, err)
	}
	defer utm.Close()

	forward, err := godal.NewTransform(wgs84, utm)
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinate transform: %w", err)
	}
	defer forward.Close()

	xs := []float64{lon}
	ys := []float64{lat}
	if err := forward.TransformEx(xs, ys, make([]float64, 1), make([]bool, 1)); err != nil {
		return nil, fmt.Errorf("failed to project point to EPSG:%d: %w", epsg, err)
	}

	minX := xs[0] - bufferMeters
	minY := ys[0] - bufferMeters
	maxX := xs[0] + bufferMeters
	maxY := ys[0] + bufferMeters

	inverse, err := godal.NewTransform(utm, wgs84)
	if err != nil {
		return nil, fmt.Errorf("failed to create inverse transform: %w", err)
	}
	defer inverse.Close()

	cornerX := []float64{minX, maxX, minX, maxX}
	cornerY := []float64{minY, minY, maxY, maxY}
	if err := inverse.TransformEx(cornerX, cornerY, make([]float64, 4), make([]bool, 4)); err != nil {
		return nil, fmt.Errorf("failed to reproject AOI envelope: %w", err)
	}

	bound := orb.Bound{
		Min: orb.Point{cornerX[0], cornerY[0]},
		Max: orb.Point{cornerX[0], cornerY[0]},
	}
	for i := 1; i < 4; i++ {
		bound = bound.Extend(orb.Point{cornerX[i], cornerY[i]})
	}

	return &AOI{
		Bound:    bound,
		EPSG:     epsg,
		ProjMinX: minX,
		ProjMinY: minY,
		ProjMaxX: maxX,
		ProjMaxY: maxY,
	}, nil
}
