// Command clinicd serves the clinic HTTP API.
//
// Storage, archive, and listen address are selected from the environment:
//
//	CLINICCORE_HTTP_ADDR: listen address (default :8080)
//	CLINICCORE_STORAGE_DRIVER: memory|jsonfile|sqlite|postgres (default jsonfile)
//	CLINICCORE_ARCHIVE_ENABLE: true to mirror jsonfile snapshots into the blob archive
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cliniccore/internal/adapters/clinicapi"
	"cliniccore/internal/core"
	"cliniccore/internal/infra/blob"
	"cliniccore/internal/infra/persistence/jsonfile"
	"cliniccore/pkg/domain"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalf("clinicd: %v", err)
	}
}

func run(ctx context.Context) error {
	engine := core.DefaultRulesEngine()
	store, err := openStore(ctx, engine)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return err
	}
	tracer := core.NewJSONTracer(os.Stderr)

	svc := core.NewService(store,
		core.WithMetricsRecorder(metrics),
		core.WithTracer(tracer),
	)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", clinicapi.NewHandler(svc))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := os.Getenv("CLINICCORE_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("clinicd listening on %s", addr)
	return server.ListenAndServe()
}

// openStore wires the snapshot archive into the jsonfile driver when enabled;
// every other configuration goes through the standard factory.
func openStore(ctx context.Context, engine *domain.RulesEngine) (domain.PersistentStore, error) {
	driver := os.Getenv("CLINICCORE_STORAGE_DRIVER")
	archive := strings.EqualFold(os.Getenv("CLINICCORE_ARCHIVE_ENABLE"), "true")
	if archive && (driver == "" || driver == string(core.StorageJSONFile)) {
		archiveStore, err := blob.Open(ctx)
		if err != nil {
			return nil, err
		}
		return jsonfile.NewStore(os.Getenv("CLINICCORE_DATA_DIR"), engine, jsonfile.WithArchive(archiveStore))
	}
	return core.OpenPersistentStore(engine)
}
