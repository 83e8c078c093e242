package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/JhanXXX/webGIS-for-GVI/internal/catalog"
	"github.com/JhanXXX/webGIS-for-GVI/internal/config"
	"github.com/JhanXXX/webGIS-for-GVI/internal/fetch"
	"github.com/JhanXXX/webGIS-for-GVI/internal/gvi"
	"github.com/JhanXXX/webGIS-for-GVI/internal/model"
	"github.com/JhanXXX/webGIS-for-GVI/internal/notification"
	"github.com/JhanXXX/webGIS-for-GVI/internal/pkg/logger"
	"github.com/JhanXXX/webGIS-for-GVI/internal/raster"
	"github.com/airbusgeo/godal"
	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
	"github.com/gocarina/gocsv"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
)

func printBanner() {
	banner := figure.NewFigure("GVI Batch", "isometric1", true)
	color.Green(banner.String())
	fmt.Println()
}

func main() {
	inputPath := flag.String("input", "", "CSV file with lat,lon columns")
	outputPath := flag.String("output", "gvi_results.csv", "CSV file to write results to")
	monthArg := flag.String("month", "", "target month, YYYY-MM")
	flag.Parse()

	printBanner()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	notifier := notification.NewNotifier(cfg.Notify.ErrorWebhookURL, cfg.Notify.SuccessWebhookURL)

	defer func() {
		if r := recover(); r != nil {
			message := fmt.Sprintf("batch run panicked: %v", r)
			color.Red(message)
			if err := notifier.SendError(message); err != nil {
				color.Red("failed to send error notification: %v", err)
			}
			os.Exit(1)
		}
	}()

	if *inputPath == "" {
		fail(notifier, "missing -input flag")
	}
	month, err := gvi.ParseMonth(*monthArg)
	if err != nil {
		fail(notifier, err.Error())
	}

	zapLogger, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	godal.RegisterAll()

	points, err := readPoints(*inputPath)
	if err != nil {
		fail(notifier, fmt.Sprintf("failed to read input: %v", err))
	}
	if len(points) == 0 {
		fail(notifier, "input contains no points")
	}
	color.Cyan("Loaded %d points from %s", len(points), *inputPath)

	cache, err := raster.NewTileCache(cfg.Imagery.CacheDir, zapLogger)
	if err != nil {
		fail(notifier, fmt.Sprintf("failed to initialize tile cache: %v", err))
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

	ctx := context.Background()
	results := make([]gvi.GVIResult, 0, len(points))
	succeeded, failed := 0, 0

	bar := progressbar.Default(int64(len(points)), "calculating GVI")
	for _, chunk := range chunkPoints(points, cfg.Batch.MaxPoints) {
		batch := calculator.CalculateBatch(ctx, chunk, month)
		results = append(results, batch.Results...)
		succeeded += batch.ProcessedCount
		failed += batch.FailedCount
		bar.Add(len(chunk))
	}
	bar.Finish()

	if err := writeResults(*outputPath, results); err != nil {
		fail(notifier, fmt.Sprintf("failed to write results: %v", err))
	}

	fmt.Println()
	color.Green("Done: %d succeeded, %d failed", succeeded, failed)
	color.Cyan("Results written to %s", *outputPath)

	summary := fmt.Sprintf("month %s: %d points, %d succeeded, %d failed", month, len(points), succeeded, failed)
	if err := notifier.SendSuccess(summary); err != nil {
		color.Yellow("failed to send success notification: %v", err)
	}
}

func fail(notifier *notification.Notifier, message string) {
	color.Red(message)
	if err := notifier.SendError(message); err != nil {
		color.Red("failed to send error notification: %v", err)
	}
	os.Exit(1)
}

func readPoints(path string) ([]gvi.CoordinatePoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var points []gvi.CoordinatePoint
	if err := gocsv.UnmarshalFile(file, &points); err != nil {
		return nil, err
	}
	return points, nil
}

func writeResults(path string, results []gvi.GVIResult) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return gocsv.MarshalFile(&results, file)
}

func chunkPoints(points []gvi.CoordinatePoint, size int) [][]gvi.CoordinatePoint {
	if size < 1 {
		size = 1
	}
	chunks := make([][]gvi.CoordinatePoint, 0, (len(points)+size-1)/size)
	for start := 0; start < len(points); start += size {
		end := start + size
		if end > len(points) {
			end = len(points)
		}
		chunks = append(chunks, points[start:end])
	}
	return chunks
}
