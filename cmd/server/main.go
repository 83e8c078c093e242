package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JhanXXX/webGIS-for-GVI/internal/catalog"
	"github.com/JhanXXX/webGIS-for-GVI/internal/config"
	httpdelivery "github.com/JhanXXX/webGIS-for-GVI/internal/delivery/http"
	"github.com/JhanXXX/webGIS-for-GVI/internal/delivery/http/handler"
	"github.com/JhanXXX/webGIS-for-GVI/internal/fetch"
	"github.com/JhanXXX/webGIS-for-GVI/internal/gvi"
	"github.com/JhanXXX/webGIS-for-GVI/internal/model"
	"github.com/JhanXXX/webGIS-for-GVI/internal/pkg/logger"
	"github.com/JhanXXX/webGIS-for-GVI/internal/raster"
	"github.com/airbusgeo/godal"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	godal.RegisterAll()

	cache, err := raster.NewTileCache(cfg.Imagery.CacheDir, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to initialize tile cache", zap.Error(err))
	}

	stac := catalog.NewSTACClient(catalog.Options{
		URL:          cfg.Catalog.URL,
		Collection:   cfg.Catalog.Collection,
		TokenURL:     cfg.Catalog.TokenURL,
		ClientID:     cfg.Catalog.ClientID,
		ClientSecret: cfg.Catalog.ClientSecret,
		Retries:      cfg.Catalog.Retries,
		Timeout:      cfg.Catalog.Timeout,
		Logger:       zapLogger,
	})

	fetcher := fetch.NewFetcher(cfg.Imagery.ReflectanceScale, zapLogger)
	provider := gvi.NewFeatureProvider(cache, stac, fetcher,
		cfg.Imagery.BufferMeters, cfg.Catalog.MaxCloudCover, zapLogger)

	scorer := model.NewRESTClient(cfg.Model.Endpoint, cfg.Model.Timeout)
	calculator := gvi.NewCalculator(provider, scorer, cfg.Batch.Workers, zapLogger)

	gviHandler := handler.NewGVIHandler(calculator, cache, scorer, zapLogger)
	server := httpdelivery.NewServer(cfg, zapLogger, gviHandler)

	go func() {
		if err := server.Start(); err != nil {
			zapLogger.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zapLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
