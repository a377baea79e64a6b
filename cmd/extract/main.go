// Command extract runs one flood risk extraction job: it geocodes a UK
// postcode, fetches the NaFRA2 surface water layers around it, clips them to
// the search buffer, and packages the resulting shapefiles into a zip
// archive in the output directory.
//
// Usage:
//
//	extract -postcode "SW1A 1AA" [-radius 500] [-output ./output]
//	extract -retrieve RoFSW_SW1A1AA_20250601_093000.zip [-dest ./copy.zip]
//
// Configuration is read from the environment (see internal/config); flags
// override the radius and output directory for a single run.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/floodhapi/rofsw-extract/internal/adapter/defra"
	kafkaadapter "github.com/floodhapi/rofsw-extract/internal/adapter/kafka"
	"github.com/floodhapi/rofsw-extract/internal/adapter/postcodesio"
	"github.com/floodhapi/rofsw-extract/internal/config"
	"github.com/floodhapi/rofsw-extract/internal/domain"
	"github.com/floodhapi/rofsw-extract/internal/observability"
	"github.com/floodhapi/rofsw-extract/internal/packaging"
	"github.com/floodhapi/rofsw-extract/internal/pipeline"
)

func main() {
	postcode := flag.String("postcode", "", "UK postcode to extract flood risk data for")
	radius := flag.Float64("radius", 0, "search radius in metres (default DEFAULT_RADIUS_M)")
	output := flag.String("output", "", "output directory (default OUTPUT_DIR)")
	retrieve := flag.String("retrieve", "", "copy a packaged archive out of the output directory instead of running a job")
	dest := flag.String("dest", "", "destination path for -retrieve (default: archive name in the current directory)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *output != "" {
		cfg.OutputDir = *output
	}
	if *radius == 0 {
		*radius = cfg.DefaultRadiusM
	}

	logger := observability.NewLogger(cfg)

	if *retrieve != "" {
		if err := retrieveArchive(cfg, *retrieve, *dest); err != nil {
			logger.Error("retrieve failed", "archive", *retrieve, "error", err)
			os.Exit(exitCode(err))
		}
		return
	}

	if *postcode == "" {
		fmt.Fprintln(os.Stderr, `usage: extract -postcode "SW1A 1AA" [-radius 500] [-output DIR]`)
		os.Exit(2)
	}

	metrics := observability.NewMetrics()

	client := postcodesio.NewClient(cfg.PostcodesURL, cfg.GeocodeTimeout, logger)
	geocoder := postcodesio.NewCachedGeocoder(client, cfg.GeocodeCacheSize)
	fetcher := defra.NewClient(cfg, logger, metrics)
	packager := packaging.NewPackager(cfg.OutputDir, logger)

	p := pipeline.New(geocoder, fetcher, packager, logger, metrics, cfg.FetchConcurrency)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := p.Process(ctx, *postcode, *radius)
	if err != nil {
		logger.Error("extraction failed", "postcode", *postcode, "error", err)
		os.Exit(exitCode(err))
	}

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		if err := writer.PublishResult(ctx, result); err != nil {
			logger.Error("publish job result", "error", err)
		}
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	printSummary(result)
}

// exitCode maps error kinds to shell exit codes: 2 for bad input the user
// can fix, 1 for everything else.
func exitCode(err error) int {
	if domain.IsKind(err, domain.KindInputNotFound) {
		return 2
	}
	return 1
}

// retrieveArchive copies a previously packaged archive out of the store.
func retrieveArchive(cfg *config.Config, name, dest string) error {
	src, err := packaging.NewStore(cfg.OutputDir).Open(name)
	if err != nil {
		return err
	}
	defer src.Close()

	if dest == "" {
		dest = name
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func printSummary(result *domain.JobResult) {
	fmt.Printf("Job %s complete\n", result.JobName)
	fmt.Printf("  postcode: %s (%s)\n", result.Postcode, result.District)
	fmt.Printf("  centre:   E %.0f N %.0f, radius %.0fm\n", result.Easting, result.Northing, result.RadiusM)
	fmt.Printf("  archive:  %s\n", result.ZipPath)
	fmt.Println("  layers:")
	for _, spec := range domain.Layers {
		printLayer(spec.Key, result.Layers[spec.Key])
	}
	printLayer(domain.BoundaryLayerKey, result.Layers[domain.BoundaryLayerKey])
	fmt.Printf("  total features: %d\n", result.TotalFeatures)
	for _, msg := range result.Errors {
		fmt.Printf("  error: %s\n", msg)
	}
}

func printLayer(key string, layer domain.LayerResult) {
	fmt.Printf("    %-16s %-16s %6d\n", key, layer.Status, layer.Features)
}
