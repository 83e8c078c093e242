package raster

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// TileCache persists band composites as multi-layer GeoTIFFs keyed by a
// geometry/month fingerprint. Cache failures are never fatal: corrupt entries
// are deleted and reported as misses, failed writes are cleaned up and the
// request proceeds uncached.
type TileCache struct {
	dir string
	log *zap.Logger
}

type CacheStats struct {
	Dir         string  `json:"cache_dir"`
	Files       int     `json:"cached_files"`
	TotalSizeMB float64 `json:"total_size_mb"`
}

func NewTileCache(dir string, log *zap.Logger) (*TileCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &TileCache{dir: dir, log: log}, nil
}

// Key fingerprints a fetch. Coordinates are quantized to 4 decimal places so
// that nearly identical AOIs share one entry.
func (tc *TileCache) Key(bound orb.Bound, month string) string {
	keyData := fmt.Sprintf("%s_%.4f_%.4f_%.4f_%.4f",
		month, bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1])
	h := sha1.New()
	h.Write([]byte(keyData))
	return hex.EncodeToString(h.Sum(nil))
}

func (tc *TileCache) path(key string) string {
	return filepath.Join(tc.dir, key+".tif")
}

// Load returns the cached composite for key, or ok=false on a miss. A file
// that cannot be opened or does not match the expected layout is deleted so
// the next miss rebuilds it instead of failing again.
func (tc *TileCache) Load(key string) (Composite, bool) {
	path := tc.path(key)
	if _, err := os.Stat(path); err != nil {
		return nil, false
	}

	composite, err := tc.read(path)
	if err != nil {
		tc.log.Warn("deleting corrupt cache entry",
			zap.String("path", path), zap.Error(err))
		os.Remove(path)
		return nil, false
	}
	return composite, true
}

func (tc *TileCache) read(path string) (Composite, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file: %w", err)
	}
	defer ds.Close()

	structure := ds.Structure()
	if structure.NBands != len(Bands) {
		return nil, fmt.Errorf("unexpected band count %d", structure.NBands)
	}
	if structure.SizeX != GridSize || structure.SizeY != GridSize {
		return nil, fmt.Errorf("unexpected raster shape %dx%d", structure.SizeX, structure.SizeY)
	}
	if got := ds.Metadata("BANDS"); got != strings.Join(Bands, ",") {
		return nil, fmt.Errorf("unexpected band tags %q", got)
	}

	composite := make(Composite, len(Bands))
	bands := ds.Bands()
	for i, name := range Bands {
		buf := make([]float64, GridSize*GridSize)
		if err := bands[i].Read(0, 0, buf, GridSize, GridSize); err != nil {
			return nil, fmt.Errorf("failed to read band %s: %w", name, err)
		}
		grid := make([][]float64, GridSize)
		for row := range grid {
			grid[row] = buf[row*GridSize : (row+1)*GridSize]
		}
		composite[name] = grid
	}
	return composite, nil
}

// Save writes the composite as a losslessly compressed GeoTIFF georeferenced
// in the AOI's projected CRS. Write errors leave no partial file behind.
func (tc *TileCache) Save(composite Composite, key string, epsg int, projMinX, projMinY, projMaxX, projMaxY float64) {
	path := tc.path(key)
	tmp := path + ".tmp"

	if err := tc.write(composite, tmp, epsg, projMinX, projMinY, projMaxX, projMaxY); err != nil {
		tc.log.Warn("failed to write cache entry", zap.String("key", key), zap.Error(err))
		os.Remove(tmp)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		tc.log.Warn("failed to finalize cache entry", zap.String("key", key), zap.Error(err))
		os.Remove(tmp)
	}
}

func (tc *TileCache) write(composite Composite, path string, epsg int, minX, minY, maxX, maxY float64) error {
	ds, err := godal.Create(godal.GTiff, path, len(Bands), godal.Float32, GridSize, GridSize,
		godal.CreationOption("COMPRESS=LZW"))
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}

	sr, err := godal.NewSpatialRefFromEPSG(epsg)
	if err != nil {
		ds.Close()
		return fmt.Errorf("failed to create spatial ref: %w", err)
	}
	defer sr.Close()

	if err := ds.SetSpatialRef(sr); err != nil {
		ds.Close()
		return fmt.Errorf("failed to set spatial ref: %w", err)
	}

	gt := [6]float64{minX, (maxX - minX) / GridSize, 0, maxY, 0, -(maxY - minY) / GridSize}
	if err := ds.SetGeoTransform(gt); err != nil {
		ds.Close()
		return fmt.Errorf("failed to set geotransform: %w", err)
	}

	if err := ds.SetMetadata("BANDS", strings.Join(Bands, ",")); err != nil {
		ds.Close()
		return fmt.Errorf("failed to tag bands: %w", err)
	}

	bands := ds.Bands()
	for i, name := range Bands {
		grid, ok := composite[name]
		if !ok {
			ds.Close()
			return fmt.Errorf("composite is missing band %s", name)
		}
		if err := ds.SetMetadata(fmt.Sprintf("BAND_%d", i+1), name); err != nil {
			ds.Close()
			return fmt.Errorf("failed to tag band %s: %w", name, err)
		}
		buf := make([]float64, 0, GridSize*GridSize)
		for _, row := range grid {
			buf = append(buf, row...)
		}
		if err := bands[i].Write(0, 0, buf, GridSize, GridSize); err != nil {
			ds.Close()
			return fmt.Errorf("failed to write band %s: %w", name, err)
		}
	}

	if err := ds.Close(); err != nil {
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	return nil
}

func (tc *TileCache) Stats() CacheStats {
	stats := CacheStats{Dir: tc.dir}
	entries, err := filepath.Glob(filepath.Join(tc.dir, "*.tif"))
	if err != nil {
		return stats
	}
	var total int64
	for _, entry := range entries {
		info, err := os.Stat(entry)
		if err != nil {
			continue
		}
		total += info.Size()
	}
	stats.Files = len(entries)
	stats.TotalSizeMB = float64(total) / (1024 * 1024)
	return stats
}
