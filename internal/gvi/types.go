package gvi

import (
	"errors"
	"math"
)

// CoordinatePoint is one query location. Coordinates are rounded to 6 decimal
// places on ingress; echoed output coordinates reflect the rounded values.
type CoordinatePoint struct {
	Lat float64 `json:"lat" csv:"lat" validate:"min=-90,max=90"`
	Lon float64 `json:"lon" csv:"lon" validate:"min=-180,max=180"`
}

// Rounded returns the point quantized to 6 decimal places.
func (p CoordinatePoint) Rounded() CoordinatePoint {
	return CoordinatePoint{
		Lat: roundTo(p.Lat, 6),
		Lon: roundTo(p.Lon, 6),
	}
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}

// Per-point failure codes. Exactly one is attached to a failed GVIResult.
const (
	ErrCodeNoSatelliteData      = "no_satellite_data"
	ErrCodeInvalidFeatures      = "invalid_features"
	ErrCodeModelInferenceFailed = "model_inference_failed"
	ErrCodeProcessingPrefix     = "processing_error: "
)

// Sentinel errors the feature source uses to signal classified outcomes.
var (
	ErrNoSatelliteData = errors.New(ErrCodeNoSatelliteData)
	ErrInvalidFeatures = errors.New(ErrCodeInvalidFeatures)
)

// GVIResult is one point's outcome. GVI and Confidence are present only on
// success, Error only on failure.
type GVIResult struct {
	Lat        float64  `json:"lat" csv:"lat"`
	Lon        float64  `json:"lon" csv:"lon"`
	GVI        *float64 `json:"gvi,omitempty" csv:"gvi"`
	Success    bool     `json:"success" csv:"success"`
	Error      string   `json:"error,omitempty" csv:"error"`
	Confidence *float64 `json:"confidence,omitempty" csv:"confidence"`
}

// BatchResult is the terminal output of one batch call. Results always has
// one entry per input point, in input order.
type BatchResult struct {
	Results        []GVIResult `json:"results"`
	ProcessedCount int         `json:"processed_count"`
	FailedCount    int         `json:"failed_count"`
	ProcessingTime float64     `json:"processing_time"`
	Month          string      `json:"month"`
}
