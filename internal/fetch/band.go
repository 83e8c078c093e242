package fetch

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/JhanXXX/webGIS-for-GVI/internal/catalog"
	"github.com/JhanXXX/webGIS-for-GVI/internal/geo"
	"github.com/JhanXXX/webGIS-for-GVI/internal/raster"
	"github.com/airbusgeo/godal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// nativeResolution maps each required band to its sensor resolution in
// meters. It selects the resampling method: finer-than-target bands are
// averaged down, the rest are interpolated bilinearly.
var nativeResolution = map[string]int{
	"B02": 10, "B03": 10, "B04": 10, "B08": 10,
	"B05": 20, "B11": 20, "B12": 20,
}

const targetResolution = 20

func resamplingMethod(band string) string {
	if res, ok := nativeResolution[band]; ok && res < targetResolution {
		return "average"
	}
	return "bilinear"
}

// Fetcher reads per-scene band windows and reprojects them onto the AOI's
// fixed output grid.
type Fetcher struct {
	reflectanceScale float64
	log              *zap.Logger
}

func NewFetcher(reflectanceScale float64, log *zap.Logger) *Fetcher {
	return &Fetcher{reflectanceScale: reflectanceScale, log: log}
}

// FetchScene fetches every required band of one scene concurrently. A band
// that fails to download or reproject is simply absent from the result; it
// never aborts the scene's other bands.
func (f *Fetcher) FetchScene(scene catalog.Scene, aoi *geo.AOI) map[string][][]float64 {
	var (
		mu    sync.Mutex
		grids = make(map[string][][]float64, len(raster.Bands))
		group errgroup.Group
	)

	for _, band := range raster.Bands {
		band := band
		group.Go(func() error {
			grid, err := f.fetchBand(scene, band, aoi)
			if err != nil {
				f.log.Debug("band fetch failed",
					zap.String("scene", scene.ID),
					zap.String("band", band),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			grids[band] = grid
			mu.Unlock()
			return nil
		})
	}
	group.Wait()
	return grids
}

func (f *Fetcher) fetchBand(scene catalog.Scene, band string, aoi *geo.AOI) (grid [][]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			grid, err = nil, fmt.Errorf("band read panicked: %v", r)
		}
	}()

	href, ok := scene.AssetHref(band)
	if !ok {
		return nil, fmt.Errorf("scene has no asset for band %s", band)
	}

	src, err := godal.Open(assetPath(href))
	if err != nil {
		return nil, fmt.Errorf("failed to open asset: %w", err)
	}
	defer src.Close()

	// Crop to the AOI window first so the warp below never touches the full
	// scene. -projwin takes upper-left / lower-right in the given SRS.
	window, err := src.Translate("", []string{
		"-of", "MEM",
		"-projwin_srs", "EPSG:4326",
		"-projwin",
		formatCoord(aoi.Bound.Min[0]), formatCoord(aoi.Bound.Max[1]),
		formatCoord(aoi.Bound.Max[0]), formatCoord(aoi.Bound.Min[1]),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to crop asset window: %w", err)
	}
	defer window.Close()

	warped, err := window.Warp("", []string{
		"-of", "MEM",
		"-t_srs", fmt.Sprintf("EPSG:%d", aoi.EPSG),
		"-te",
		formatCoord(aoi.ProjMinX), formatCoord(aoi.ProjMinY),
		formatCoord(aoi.ProjMaxX), formatCoord(aoi.ProjMaxY),
		"-ts", strconv.Itoa(raster.GridSize), strconv.Itoa(raster.GridSize),
		"-r", resamplingMethod(band),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reproject band: %w", err)
	}
	defer warped.Close()

	buf := make([]float64, raster.GridSize*raster.GridSize)
	if err := warped.Bands()[0].Read(0, 0, buf, raster.GridSize, raster.GridSize); err != nil {
		return nil, fmt.Errorf("failed to read warped band: %w", err)
	}

	return f.toReflectance(buf), nil
}

// toReflectance converts digital numbers to reflectance and masks everything
// outside the open interval (0, 1) as missing: values at or beyond the bounds
// are sensor or processing artifacts, not legitimate extremes.
func (f *Fetcher) toReflectance(buf []float64) [][]float64 {
	grid := make([][]float64, raster.GridSize)
	for i := range grid {
		grid[i] = make([]float64, raster.GridSize)
		for j := range grid[i] {
			v := buf[i*raster.GridSize+j] / f.reflectanceScale
			if v <= 0 || v >= 1 {
				v = math.NaN()
			}
			grid[i][j] = v
		}
	}
	return grid
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func assetPath(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return "/vsicurl/" + href
	}
	return href
}
