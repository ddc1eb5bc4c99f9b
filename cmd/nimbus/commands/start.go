package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rouse2617/NimbusStore/internal/logger"
	"github.com/rouse2617/NimbusStore/internal/telemetry"
	"github.com/rouse2617/NimbusStore/pkg/chunkstore"
	chunkfs "github.com/rouse2617/NimbusStore/pkg/chunkstore/fs"
	chunkmem "github.com/rouse2617/NimbusStore/pkg/chunkstore/memory"
	chunks3 "github.com/rouse2617/NimbusStore/pkg/chunkstore/s3"
	"github.com/rouse2617/NimbusStore/pkg/config"
	"github.com/rouse2617/NimbusStore/pkg/gateway"
	"github.com/rouse2617/NimbusStore/pkg/kv"
	kvbadger "github.com/rouse2617/NimbusStore/pkg/kv/badger"
	"github.com/rouse2617/NimbusStore/pkg/meta"
	"github.com/rouse2617/NimbusStore/pkg/namespace"
	"github.com/rouse2617/NimbusStore/pkg/s3store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the NimbusStore server",
	Long: `Start the NimbusStore server with the specified configuration.

Examples:
  # Start with the default config location
  nimbus start

  # Start with a custom config file
  nimbus start --config /etc/nimbus/config.yaml

  # Override any setting from the environment
  NIMBUS_LOGGING_LEVEL=DEBUG NIMBUS_GATEWAY_PORT=9100 nimbus start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "nimbus",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "nimbus",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("NimbusStore starting",
		"version", Version, "log_level", cfg.Logging.Level)

	// Metadata engine: Badger KV, one partition over the configured range,
	// the path service on top.
	kvStore, err := kvbadger.Open(kvbadger.Config{
		Dir:        filepath.Join(cfg.Metadata.DataDir, "meta"),
		SyncWrites: cfg.Metadata.SyncWrites,
	})
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	instrumented := kv.Instrument(kvStore)
	defer instrumented.Close()

	partition, err := meta.NewPartition(meta.PartitionConfig{
		StartInode: meta.RootInodeID,
		EndInode:   meta.InodeID(cfg.Metadata.InodeRangeEnd),
	}, instrumented)
	if err != nil {
		return err
	}

	metaService, err := meta.NewService(ctx, []*meta.Partition{partition})
	if err != nil {
		return fmt.Errorf("failed to initialize metadata service: %w", err)
	}

	chunks, err := openChunkStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open chunk store: %w", err)
	}
	defer chunks.Close()

	ns := namespace.NewService(namespace.Config{
		Metadata:      metaService,
		ChunkStore:    chunks,
		DefaultBucket: cfg.Gateway.DefaultBucket,
	})

	s3meta := s3store.New(instrumented)

	gw := gateway.New(gateway.Config{
		Host:   cfg.Gateway.Host,
		Port:   cfg.Gateway.Port,
		Owner:  cfg.Gateway.Owner,
		Region: cfg.Gateway.Region,
	}, s3meta, ns)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info("metrics endpoint listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- gw.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("gateway shutdown error", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics shutdown error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

func openChunkStore(ctx context.Context, cfg *config.Config) (chunkstore.Store, error) {
	switch cfg.ChunkStore.Type {
	case "filesystem":
		return chunkfs.New(chunkfs.Config{BasePath: cfg.ChunkStore.Filesystem.Path})
	case "s3":
		return chunks3.NewFromConfig(ctx, chunks3.Config{
			Bucket:         cfg.ChunkStore.S3.Bucket,
			Region:         cfg.ChunkStore.S3.Region,
			Endpoint:       cfg.ChunkStore.S3.Endpoint,
			KeyPrefix:      cfg.ChunkStore.S3.KeyPrefix,
			AccessKey:      cfg.ChunkStore.S3.AccessKey,
			SecretKey:      cfg.ChunkStore.S3.SecretKey,
			ForcePathStyle: cfg.ChunkStore.S3.ForcePathStyle,
		})
	case "memory":
		return chunkmem.New(), nil
	default:
		return nil, fmt.Errorf("unknown chunk store type %q", cfg.ChunkStore.Type)
	}
}
