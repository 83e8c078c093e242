package gvi

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/JhanXXX/webGIS-for-GVI/internal/features"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSource resolves each point from a scripted outcome table keyed by
// latitude, with optional jitter to shuffle completion order.
type fakeSource struct {
	outcomes map[float64]error
	jitter   time.Duration
	mu       sync.Mutex
	calls    int
}

func (f *fakeSource) Collect(ctx context.Context, point CoordinatePoint, month Month) (features.Stack, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.jitter > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(f.jitter))))
	}

	var stack features.Stack
	if err, ok := f.outcomes[point.Lat]; ok && err != nil {
		return stack, err
	}
	// Encode the latitude into the stack so scores are traceable per point.
	stack[0][0][0] = point.Lat
	return stack, nil
}

type fakeScorer struct {
	err    error
	called int
}

func (f *fakeScorer) Score(ctx context.Context, stacks []features.Stack) ([]float64, error) {
	f.called++
	if f.err != nil {
		return nil, f.err
	}
	scores := make([]float64, len(stacks))
	for i, s := range stacks {
		scores[i] = s[0][0][0] / 100
	}
	return scores, nil
}

func testMonth(t *testing.T) Month {
	t.Helper()
	m, err := ParseMonth("2023-06")
	require.NoError(t, err)
	return m
}

func TestBatchOrderPreservedUnderConcurrency(t *testing.T) {
	source := &fakeSource{jitter: 5 * time.Millisecond, outcomes: map[float64]error{}}
	calc := NewCalculator(source, &fakeScorer{}, 8, zap.NewNop())

	points := make([]CoordinatePoint, 12)
	for i := range points {
		points[i] = CoordinatePoint{Lat: float64(i + 1), Lon: float64(-i)}
	}

	result := calc.CalculateBatch(context.Background(), points, testMonth(t))

	require.Len(t, result.Results, len(points))
	for i, r := range result.Results {
		assert.Equal(t, points[i].Lat, r.Lat, "result %d out of order", i)
		assert.Equal(t, points[i].Lon, r.Lon)
		require.True(t, r.Success)
		require.NotNil(t, r.GVI)
		assert.InDelta(t, points[i].Lat/100, *r.GVI, 1e-12)
	}
	assert.Equal(t, len(points), result.ProcessedCount)
	assert.Equal(t, 0, result.FailedCount)
}

func TestBatchCountsConsistent(t *testing.T) {
	source := &fakeSource{outcomes: map[float64]error{
		2: ErrNoSatelliteData,
		4: ErrInvalidFeatures,
	}}
	calc := NewCalculator(source, &fakeScorer{}, 4, zap.NewNop())

	points := []CoordinatePoint{{Lat: 1}, {Lat: 2}, {Lat: 3}, {Lat: 4}, {Lat: 5}}
	result := calc.CalculateBatch(context.Background(), points, testMonth(t))

	assert.Len(t, result.Results, 5)
	assert.Equal(t, 3, result.ProcessedCount)
	assert.Equal(t, 2, result.FailedCount)
	assert.Equal(t, len(result.Results), result.ProcessedCount+result.FailedCount)
	assert.Equal(t, "2023-06", result.Month)
	assert.GreaterOrEqual(t, result.ProcessingTime, 0.0)
}

func TestBatchErrorClassification(t *testing.T) {
	source := &fakeSource{outcomes: map[float64]error{
		10: ErrNoSatelliteData,
		20: ErrInvalidFeatures,
		30: errors.New("connection reset"),
	}}
	calc := NewCalculator(source, &fakeScorer{}, 2, zap.NewNop())

	points := []CoordinatePoint{{Lat: 10}, {Lat: 20}, {Lat: 30}, {Lat: 40}}
	result := calc.CalculateBatch(context.Background(), points, testMonth(t))

	assert.Equal(t, "no_satellite_data", result.Results[0].Error)
	assert.Nil(t, result.Results[0].GVI)
	assert.Equal(t, "invalid_features", result.Results[1].Error)
	assert.Equal(t, "processing_error: connection reset", result.Results[2].Error)
	assert.True(t, result.Results[3].Success)
	assert.Empty(t, result.Results[3].Error)
}

func TestBatchOnePointFailureDoesNotAffectOthers(t *testing.T) {
	// Two Stockholm points and an ocean point in the same batch.
	source := &fakeSource{outcomes: map[float64]error{
		0.0: ErrNoSatelliteData,
	}}
	calc := NewCalculator(source, &fakeScorer{}, 3, zap.NewNop())

	points := []CoordinatePoint{
		{Lat: 59.329323, Lon: 18.068581},
		{Lat: 0.0, Lon: -30.0},
		{Lat: 59.334591, Lon: 18.063240},
	}
	result := calc.CalculateBatch(context.Background(), points, testMonth(t))

	assert.Equal(t, 2, result.ProcessedCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.NotNil(t, result.Results[0].GVI)
	assert.Equal(t, "no_satellite_data", result.Results[1].Error)
	assert.NotNil(t, result.Results[2].GVI)
}

func TestBatchModelFailureMarksOnlyPhase2Survivors(t *testing.T) {
	source := &fakeSource{outcomes: map[float64]error{
		2: ErrNoSatelliteData,
	}}
	scorer := &fakeScorer{err: errors.New("model exploded")}
	calc := NewCalculator(source, scorer, 2, zap.NewNop())

	points := []CoordinatePoint{{Lat: 1}, {Lat: 2}, {Lat: 3}}
	result := calc.CalculateBatch(context.Background(), points, testMonth(t))

	assert.Equal(t, "model_inference_failed", result.Results[0].Error)
	// The phase-1 failure keeps its original code.
	assert.Equal(t, "no_satellite_data", result.Results[1].Error)
	assert.Equal(t, "model_inference_failed", result.Results[2].Error)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.Equal(t, 3, result.FailedCount)
}

type panickySource struct{}

func (panickySource) Collect(ctx context.Context, point CoordinatePoint, month Month) (features.Stack, error) {
	if point.Lat == 13 {
		panic("unlucky tile")
	}
	var stack features.Stack
	return stack, nil
}

func TestBatchRecoversPerPointPanics(t *testing.T) {
	calc := NewCalculator(panickySource{}, &fakeScorer{}, 2, zap.NewNop())

	points := []CoordinatePoint{{Lat: 1}, {Lat: 13}, {Lat: 3}}
	result := calc.CalculateBatch(context.Background(), points, testMonth(t))

	assert.True(t, result.Results[0].Success)
	assert.False(t, result.Results[1].Success)
	assert.Contains(t, result.Results[1].Error, "processing_error: ")
	assert.Contains(t, result.Results[1].Error, "unlucky tile")
	assert.True(t, result.Results[2].Success)
}

func TestBatchSkipsScoringWhenNothingSurvives(t *testing.T) {
	source := &fakeSource{outcomes: map[float64]error{
		1: ErrNoSatelliteData,
		2: ErrNoSatelliteData,
	}}
	scorer := &fakeScorer{}
	calc := NewCalculator(source, scorer, 2, zap.NewNop())

	result := calc.CalculateBatch(context.Background(), []CoordinatePoint{{Lat: 1}, {Lat: 2}}, testMonth(t))

	assert.Equal(t, 0, scorer.called)
	assert.Equal(t, 2, result.FailedCount)
}

func TestSingleWrapsOneElementBatch(t *testing.T) {
	source := &fakeSource{outcomes: map[float64]error{}}
	calc := NewCalculator(source, &fakeScorer{}, 2, zap.NewNop())

	result := calc.CalculateSingle(context.Background(),
		CoordinatePoint{Lat: 59.3293239999, Lon: 18.068581}, testMonth(t))

	require.True(t, result.Success)
	// Echoed coordinates carry the 6-decimal rounding.
	assert.Equal(t, 59.329324, result.Lat)
	require.NotNil(t, result.Confidence)
	assert.Equal(t, 1.0, *result.Confidence)
}

func TestBatchResultsJSONShape(t *testing.T) {
	source := &fakeSource{outcomes: map[float64]error{2: ErrNoSatelliteData}}
	calc := NewCalculator(source, &fakeScorer{}, 2, zap.NewNop())

	result := calc.CalculateBatch(context.Background(), []CoordinatePoint{{Lat: 1}, {Lat: 2}}, testMonth(t))

	ok := result.Results[0]
	failed := result.Results[1]
	assert.NotNil(t, ok.GVI)
	assert.NotNil(t, ok.Confidence)
	assert.Empty(t, ok.Error)
	assert.Nil(t, failed.GVI)
	assert.Nil(t, failed.Confidence)
	assert.NotEmpty(t, failed.Error)
}
