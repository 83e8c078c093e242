package gvi

import (
	"context"
	"fmt"

	"github.com/JhanXXX/webGIS-for-GVI/internal/catalog"
	"github.com/JhanXXX/webGIS-for-GVI/internal/features"
	"github.com/JhanXXX/webGIS-for-GVI/internal/fetch"
	"github.com/JhanXXX/webGIS-for-GVI/internal/geo"
	"github.com/JhanXXX/webGIS-for-GVI/internal/raster"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// FeatureSource produces a model-ready feature stack for one point and month.
type FeatureSource interface {
	Collect(ctx context.Context, point CoordinatePoint, month Month) (features.Stack, error)
}

// SceneFetcher fetches the band grids of one scene. *fetch.Fetcher is the
// production implementation.
type SceneFetcher interface {
	FetchScene(scene catalog.Scene, aoi *geo.AOI) map[string][][]float64
}

// FeatureProvider is the production FeatureSource: AOI construction, tile
// cache lookup, catalog search and composite build on a miss, then index
// computation. Concurrent misses for the same cache key are coalesced so only
// one fetch is in flight per key.
type FeatureProvider struct {
	cache         *raster.TileCache
	catalog       catalog.Searcher
	fetcher       SceneFetcher
	bufferMeters  float64
	maxCloudCover float64
	group         singleflight.Group
	log           *zap.Logger
}

func NewFeatureProvider(
	cache *raster.TileCache,
	searcher catalog.Searcher,
	fetcher SceneFetcher,
	bufferMeters, maxCloudCover float64,
	log *zap.Logger,
) *FeatureProvider {
	return &FeatureProvider{
		cache:         cache,
		catalog:       searcher,
		fetcher:       fetcher,
		bufferMeters:  bufferMeters,
		maxCloudCover: maxCloudCover,
		log:           log,
	}
}

func (p *FeatureProvider) Collect(ctx context.Context, point CoordinatePoint, month Month) (features.Stack, error) {
	var zero features.Stack

	aoi, err := geo.BuildAOI(point.Lat, point.Lon, p.bufferMeters)
	if err != nil {
		return zero, fmt.Errorf("failed to build AOI: %w", err)
	}

	key := p.cache.Key(aoi.Bound, month.String())
	result, err, _ := p.group.Do(key, func() (interface{}, error) {
		return p.composite(ctx, aoi, key, month)
	})
	if err != nil {
		return zero, err
	}
	composite := result.(raster.Composite)

	stack, err := features.Compute(composite)
	if err != nil {
		return zero, ErrInvalidFeatures
	}
	if err := features.Validate(stack); err != nil {
		p.log.Debug("feature stack rejected",
			zap.Float64("lat", point.Lat), zap.Float64("lon", point.Lon), zap.Error(err))
		return zero, ErrInvalidFeatures
	}
	return stack, nil
}

func (p *FeatureProvider) composite(ctx context.Context, aoi *geo.AOI, key string, month Month) (raster.Composite, error) {
	if cached, ok := p.cache.Load(key); ok {
		p.log.Debug("tile cache hit", zap.String("key", key))
		return cached, nil
	}
	p.log.Debug("tile cache miss", zap.String("key", key))

	start, end := month.DateRange()
	scenes, err := p.catalog.Search(ctx, aoi.Bound, start, end, p.maxCloudCover)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	if len(scenes) == 0 {
		return nil, ErrNoSatelliteData
	}

	perScene := make([]map[string][][]float64, 0, len(scenes))
	for _, scene := range scenes {
		perScene = append(perScene, p.fetcher.FetchScene(scene, aoi))
	}

	composite, err := fetch.Composite(perScene)
	if err != nil {
		// Scenes existed but none had a complete band set.
		return nil, ErrNoSatelliteData
	}

	p.cache.Save(composite, key, aoi.EPSG, aoi.ProjMinX, aoi.ProjMinY, aoi.ProjMaxX, aoi.ProjMaxY)
	return composite, nil
}
