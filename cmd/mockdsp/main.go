// Command mockdsp runs a local stand-in for the remote services the
// extractor depends on: the Defra DSP geospatial query endpoint and the
// postcodes.io lookup API. It serves synthetic flood risk grids as zipped
// shapefiles so full extraction jobs can run offline.
//
// Usage:
//
//	go run ./cmd/mockdsp -addr :8008
//
// Point the extractor at it with:
//
//	EA_QUERY_URL=http://localhost:8008/geospatial/query \
//	POSTCODES_URL=http://localhost:8008/postcodes \
//	extract -postcode "SW1A 1AA"
package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/floodhapi/rofsw-extract/internal/domain"
	"github.com/floodhapi/rofsw-extract/internal/geometry"
	"github.com/floodhapi/rofsw-extract/internal/shapefile"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	addr := flag.String("addr", ":8008", "listen address")
	cellSize := flag.Float64("cell-size", 50, "synthetic grid cell size in metres")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/geospatial/query", handleQuery(*cellSize))
	mux.HandleFunc("/postcodes/", handlePostcode)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("mock DSP listening on %s", *addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("mock DSP shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleQuery serves POST queries carrying a GeoJSON polygon and returns a
// zipped shapefile of synthetic grid cells covering its extent.
func handleQuery(cellSize float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		layerID := r.URL.Query().Get("layer")

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		geom, err := geojson.UnmarshalGeometry(body)
		if err != nil {
			http.Error(w, "invalid GeoJSON geometry", http.StatusBadRequest)
			return
		}
		poly, ok := geom.Geometry().(orb.Polygon)
		if !ok {
			http.Error(w, "expected a polygon", http.StatusBadRequest)
			return
		}

		cells := syntheticGrid(poly.Bound(), cellSize, bandsFor(layerID))
		data, err := zippedShapefile(cells)
		if err != nil {
			log.Printf("build shapefile: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/zipped-shapefile")
		if _, err := w.Write(data); err != nil {
			log.Printf("write response: %v", err)
			return
		}
		log.Printf("served %d cells for layer %s (%d bytes)", len(cells), layerID, len(data))
	}
}

// bandsFor returns the risk band cycle for a dataset: the categorical layer
// carries all four NaFRA2 bands, depth layers carry none.
func bandsFor(layerID string) []string {
	if layerID == domain.SourceLayerIDs[domain.CategoricalSource] {
		return []string{"High", "Medium", "Low", "Very Low"}
	}
	return []string{""}
}

// syntheticGrid fills the projected extent of the query rectangle with
// square cells, cycling through the given risk bands.
func syntheticGrid(bound orb.Bound, size float64, bands []string) domain.FeatureCollection {
	minE, minN := geometry.ToProjected(bound.Min[0], bound.Min[1])
	maxE, maxN := geometry.ToProjected(bound.Max[0], bound.Max[1])

	var cells domain.FeatureCollection
	i := 0
	for e := minE; e+size <= maxE; e += size {
		for n := minN; n+size <= maxN; n += size {
			// Leave gaps so clipped outputs look like real patchy flood data.
			if i%3 == 2 {
				i++
				continue
			}
			cells = append(cells, domain.Cell{
				Geometry: orb.Polygon{{
					{e, n}, {e + size, n}, {e + size, n + size}, {e, n + size}, {e, n},
				}},
				RiskBand: bands[i%len(bands)],
			})
			i++
		}
	}
	return cells
}

// zippedShapefile writes the cells as a shapefile dataset in a scratch
// directory and zips its files into memory.
func zippedShapefile(cells domain.FeatureCollection) ([]byte, error) {
	dir, err := os.MkdirTemp("", "mockdsp-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	if err := shapefile.WriteLayer(filepath.Join(dir, "Flood_Risk"), cells); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		w, err := zw.Create(entry.Name())
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// postcodeResult mirrors the fields of a postcodes.io lookup response.
type postcodeResult struct {
	Postcode      string  `json:"postcode"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Eastings      float64 `json:"eastings"`
	Northings     float64 `json:"northings"`
	AdminDistrict string  `json:"admin_district"`
}

// Fixed lookup table; enough to demo end to end without network access.
var postcodes = map[string]postcodeResult{
	"SW1A1AA": {Postcode: "SW1A 1AA", Latitude: 51.501009, Longitude: -0.141588, Eastings: 529090, Northings: 179645, AdminDistrict: "Westminster"},
	"M11AE":   {Postcode: "M1 1AE", Latitude: 53.477370, Longitude: -2.234543, Eastings: 384615, Northings: 398026, AdminDistrict: "Manchester"},
	"EH11YZ":  {Postcode: "EH1 1YZ", Latitude: 55.950145, Longitude: -3.189100, Eastings: 325853, Northings: 673673, AdminDistrict: "City of Edinburgh"},
}

func handlePostcode(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Path[len("/postcodes/"):]
	w.Header().Set("Content-Type", "application/json")

	result, ok := postcodes[domain.CompactPostcode(raw)]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"status": 404, "error": "Postcode not found"})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"status": 200, "result": result})
}
