package handler

import (
	"bytes"
	"time"

	"github.com/JhanXXX/webGIS-for-GVI/internal/features"
	"github.com/JhanXXX/webGIS-for-GVI/internal/gvi"
	"github.com/JhanXXX/webGIS-for-GVI/internal/model"
	"github.com/JhanXXX/webGIS-for-GVI/internal/pkg/validator"
	"github.com/JhanXXX/webGIS-for-GVI/internal/preview"
	"github.com/JhanXXX/webGIS-for-GVI/internal/raster"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GVIHandler serves the GVI calculation endpoints and the operational
// queries around them.
type GVIHandler struct {
	calc    *gvi.Calculator
	cache   *raster.TileCache
	scorer  *model.RESTClient
	started time.Time
	log     *zap.Logger
}

func NewGVIHandler(calc *gvi.Calculator, cache *raster.TileCache, scorer *model.RESTClient, log *zap.Logger) *GVIHandler {
	return &GVIHandler{
		calc:    calc,
		cache:   cache,
		scorer:  scorer,
		started: time.Now(),
		log:     log,
	}
}

type calculateRequest struct {
	Points []gvi.CoordinatePoint `json:"points" validate:"required,min=1,max=20,dive"`
	Month  string                `json:"month" validate:"required"`
}

// CalculateGVI handles the batch endpoint.
func (h *GVIHandler) CalculateGVI(c *fiber.Ctx) error {
	var req calculateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validator.Validate(&req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}
	month, err := gvi.ParseMonth(req.Month)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	h.log.Info("received GVI calculation request",
		zap.Int("points", len(req.Points)), zap.String("month", req.Month))

	result := h.calc.CalculateBatch(c.Context(), req.Points, month)
	return c.JSON(result)
}

// CalculateSingleGVI is the one-point convenience endpoint.
func (h *GVIHandler) CalculateSingleGVI(c *fiber.Ctx) error {
	lat := c.QueryFloat("lat", 91)
	lon := c.QueryFloat("lon", 181)
	if lat < -90 || lat > 90 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "lat must be between -90 and 90"})
	}
	if lon < -180 || lon > 180 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "lon must be between -180 and 180"})
	}
	month, err := gvi.ParseMonth(c.Query("month"))
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	result := h.calc.CalculateSingle(c.Context(), gvi.CoordinatePoint{Lat: lat, Lon: lon}, month)
	return c.JSON(result)
}

// Health reports service and model status.
func (h *GVIHandler) Health(c *fiber.Ctx) error {
	loaded := h.scorer.Healthy(c.Context())
	status := "healthy"
	if !loaded {
		status = "unhealthy"
	}
	return c.JSON(fiber.Map{
		"status":       status,
		"model_loaded": loaded,
		"version":      "1.0.0",
		"uptime":       time.Since(h.started).Seconds(),
	})
}

// ModelInfo passes the scoring service's metadata through.
func (h *GVIHandler) ModelInfo(c *fiber.Ctx) error {
	info, err := h.scorer.Info(c.Context())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Model is not reachable"})
	}
	return c.JSON(info)
}

// SupportedFeatures describes the fixed feature contract.
func (h *GVIHandler) SupportedFeatures(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ground_features":    features.Names,
		"feature_count":      features.Count,
		"spatial_resolution": "20m",
		"buffer_size":        "40m",
		"output_size":        "4x4 pixels",
	})
}

// CacheStats reports tile cache usage.
func (h *GVIHandler) CacheStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"cache_statistics": h.cache.Stats(),
		"timestamp":        time.Now().Unix(),
	})
}

// CachePreview renders a cached composite's NDVI grid as a PNG.
func (h *GVIHandler) CachePreview(c *fiber.Ctx) error {
	key := c.Params("key")
	composite, ok := h.cache.Load(key)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No cached composite for key"})
	}

	var buf bytes.Buffer
	if err := preview.RenderNDVI(composite, &buf); err != nil {
		h.log.Error("failed to render cache preview", zap.String("key", key), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to render preview"})
	}
	c.Type("png")
	return c.Send(buf.Bytes())
}
