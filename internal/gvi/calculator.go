package gvi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JhanXXX/webGIS-for-GVI/internal/features"
	"github.com/JhanXXX/webGIS-for-GVI/internal/model"
	"github.com/gammazero/workerpool"
	"go.uber.org/zap"
)

// Confidence is a reserved extension point, constant until a real estimator
// is specified.
const placeholderConfidence = 1.0

// Calculator runs the two-phase batch pipeline: concurrent per-point feature
// collection, then one batched scoring call with ordered reassembly.
type Calculator struct {
	source  FeatureSource
	scorer  model.Scorer
	workers int
	log     *zap.Logger
}

func NewCalculator(source FeatureSource, scorer model.Scorer, workers int, log *zap.Logger) *Calculator {
	if workers < 1 {
		workers = 1
	}
	return &Calculator{source: source, scorer: scorer, workers: workers, log: log}
}

// CalculateBatch produces exactly one result per input point, in input order,
// regardless of which points succeed, fail or finish first. A per-point
// failure never aborts the batch.
func (c *Calculator) CalculateBatch(ctx context.Context, points []CoordinatePoint, month Month) *BatchResult {
	start := time.Now()

	results := make([]GVIResult, len(points))
	stacks := make([]*features.Stack, len(points))

	c.log.Info("starting batch GVI calculation",
		zap.Int("points", len(points)), zap.String("month", month.String()))

	// Phase 1: independent feature collection, bounded fan-out. Results land
	// in index-addressed slots so completion order is irrelevant.
	wp := workerpool.New(c.workers)
	for i, point := range points {
		i, point := i, point.Rounded()
		wp.Submit(func() {
			stack, err := c.collect(ctx, point, month)
			if err != nil {
				results[i] = failure(point, classify(err))
				return
			}
			stacks[i] = stack
			results[i] = GVIResult{Lat: point.Lat, Lon: point.Lon}
		})
	}
	wp.StopWait()

	// Phase 2: one batched inference call over every surviving point.
	c.score(ctx, points, stacks, results)

	result := &BatchResult{
		Results:        results,
		ProcessingTime: time.Since(start).Seconds(),
		Month:          month.String(),
	}
	for _, r := range results {
		if r.Success {
			result.ProcessedCount++
		} else {
			result.FailedCount++
		}
	}

	c.log.Info("batch GVI calculation completed",
		zap.Int("successful", result.ProcessedCount),
		zap.Int("failed", result.FailedCount),
		zap.Float64("seconds", result.ProcessingTime))
	return result
}

// CalculateSingle wraps a one-element batch.
func (c *Calculator) CalculateSingle(ctx context.Context, point CoordinatePoint, month Month) GVIResult {
	return c.CalculateBatch(ctx, []CoordinatePoint{point}, month).Results[0]
}

// collect shields the batch from a misbehaving feature source: a panic while
// processing one point degrades to that point's processing_error outcome.
func (c *Calculator) collect(ctx context.Context, point CoordinatePoint, month Month) (stack *features.Stack, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic during feature collection",
				zap.Float64("lat", point.Lat), zap.Float64("lon", point.Lon),
				zap.Any("panic", r))
			stack, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	s, err := c.source.Collect(ctx, point, month)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Calculator) score(ctx context.Context, points []CoordinatePoint, stacks []*features.Stack, results []GVIResult) {
	batch := make([]features.Stack, 0, len(points))
	indices := make([]int, 0, len(points))
	for i, stack := range stacks {
		if stack != nil {
			batch = append(batch, *stack)
			indices = append(indices, i)
		}
	}
	if len(batch) == 0 {
		return
	}

	predictions, err := c.scorer.Score(ctx, batch)
	if err != nil {
		c.log.Error("batch inference failed", zap.Error(err))
		for _, i := range indices {
			point := points[i].Rounded()
			results[i] = failure(point, ErrCodeModelInferenceFailed)
		}
		return
	}

	for bi, i := range indices {
		point := points[i].Rounded()
		gvi := predictions[bi]
		confidence := placeholderConfidence
		results[i] = GVIResult{
			Lat:        point.Lat,
			Lon:        point.Lon,
			GVI:        &gvi,
			Success:    true,
			Confidence: &confidence,
		}
	}
}

func classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoSatelliteData):
		return ErrCodeNoSatelliteData
	case errors.Is(err, ErrInvalidFeatures):
		return ErrCodeInvalidFeatures
	default:
		return ErrCodeProcessingPrefix + err.Error()
	}
}

func failure(point CoordinatePoint, code string) GVIResult {
	return GVIResult{Lat: point.Lat, Lon: point.Lon, Success: false, Error: code}
}
