// Command reis-engine starts the document ingestion and retrieval HTTP
// server: it parses configuration from the environment (and an optional
// YAML file), wires the configured blob store and vector store, and serves
// the add-file, search, PDF-download, and delete endpoints.
//
// Usage:
//
//	# Start the server with defaults
//	reis-engine
//
//	# Configure via environment
//	HTTP_PORT=9090 STORE_TYPE=pgvector PGVECTOR_DSN=... reis-engine
//
// The isolate-worker subcommand is not meant to be invoked directly: the
// process-isolation harness spawns the same binary with this argument to
// run a single format-provider operation in a throwaway child process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/reis-engine/internal/blobstore"
	"github.com/fyrsmithlabs/reis-engine/internal/config"
	"github.com/fyrsmithlabs/reis-engine/internal/embedder"
	"github.com/fyrsmithlabs/reis-engine/internal/engine"
	"github.com/fyrsmithlabs/reis-engine/internal/formatprovider"
	"github.com/fyrsmithlabs/reis-engine/internal/httpapi"
	"github.com/fyrsmithlabs/reis-engine/internal/isolate"
	"github.com/fyrsmithlabs/reis-engine/internal/logging"
	"github.com/fyrsmithlabs/reis-engine/internal/metrics"
	"github.com/fyrsmithlabs/reis-engine/internal/vectorstore"
)

// Version information, set via ldflags during build.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

const isolateWorkerArg = "isolate-worker"

func main() {
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		case isolateWorkerArg:
			cfg, err := config.LoadWithFile(os.Getenv("REIS_ENGINE_CONFIG"))
			if err != nil {
				log.Fatalf("isolate-worker: load config: %v", err)
			}
			registry := buildRegistry(cfg)
			if err := isolate.RunWorker(context.Background(), registry, os.Stdin, os.Stdout); err != nil {
				log.Fatalf("isolate-worker: %v", err)
			}
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  reis-engine           Start the server\n")
			fmt.Fprintf(os.Stderr, "  reis-engine version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down gracefully", sig)
		cancel()
	}()

	if err := run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	log.Println("server shutdown complete")
}

func printVersion() {
	fmt.Printf("reis-engine\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run loads configuration, wires every dependency, and blocks serving HTTP
// until ctx is cancelled.
func run(ctx context.Context) error {
	cfg, err := config.LoadWithFile(os.Getenv("REIS_ENGINE_CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info(ctx, "starting reis-engine",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("store_type", string(cfg.StoreType)),
		zap.String("file_store_type", string(cfg.FileStoreType)))

	blobStore, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build blob store: %w", err)
	}

	emb, err := embedder.New(embedder.Config{
		BaseURL: cfg.EmbeddingsBaseURL,
		Model:   cfg.EmbeddingsModel,
		APIKey:  cfg.EmbeddingsAPIKey.Value(),
	})
	if err != nil {
		return fmt.Errorf("build embedder: %w", err)
	}

	vectorStore, err := buildVectorStore(ctx, cfg, emb)
	if err != nil {
		return fmt.Errorf("build vector store: %w", err)
	}
	if closer, ok := vectorStore.(interface{ Close() }); ok {
		defer closer.Close()
	}

	registry := buildRegistry(cfg)

	selfPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}
	harness := isolate.NewHarness(selfPath, []string{isolateWorkerArg}, int64(cfg.FilesizeThreshold))

	m := metrics.New()

	eng := engine.New(registry, harness, blobStore, vectorStore, m, logger, engine.Config{
		BatchSize: cfg.BatchSize,
		TempRoot:  cfg.TmpFilesRoot,
	})

	srv := httpapi.NewServer(eng, logger, httpapi.Config{
		Port:            cfg.HTTPPort,
		MetricsEnabled:  cfg.MetricsEnabled(),
		TempRoot:        cfg.TmpFilesRoot,
		ServiceName:     "reis-engine",
		ShutdownTimeout: secondsToDuration(cfg.ShutdownTimeoutSeconds),
	})

	logger.Info(ctx, "server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.HTTPPort)),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled()),
		zap.Bool("blob_store_enabled", cfg.BlobStoreEnabled()))

	return srv.Start(ctx)
}

// initLogger builds the structured logger from the engine's logging
// section, substituting the koanf-decoded fields the flat Config carries.
func initLogger(cfg *config.Config) (*logging.Logger, error) {
	logCfg := logging.NewDefaultConfig()
	if cfg.Logging.Format != "" {
		logCfg.Format = cfg.Logging.Format
	}
	if len(cfg.Logging.Fields) > 0 {
		logCfg.Fields = cfg.Logging.Fields
	}
	if level, err := zapLevelFromString(cfg.Logging.Level); err == nil {
		logCfg.Level = level
	}
	return logging.NewLogger(logCfg)
}

// buildBlobStore constructs the configured blob store, or nil when the
// blob-store feature is disabled.
func buildBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	switch cfg.FileStoreType {
	case config.FileStoreUnset:
		return nil, nil
	case config.FileStoreFilesystem:
		return blobstore.NewFilesystem(cfg.FileStoreFilesystemPath)
	case config.FileStoreS3:
		return blobstore.NewS3(ctx, blobstore.S3Config{
			EndpointURL:     cfg.S3.EndpointURL,
			AccessKeyID:     cfg.S3.AccessKeyID.Value(),
			SecretAccessKey: cfg.S3.SecretAccessKey.Value(),
			RegionName:      cfg.S3.RegionName,
			BucketName:      cfg.S3.BucketName,
			TempRoot:        cfg.TmpFilesRoot,
		})
	default:
		return nil, fmt.Errorf("unsupported file_store_type: %q", cfg.FileStoreType)
	}
}

// buildVectorStore constructs the configured vector store.
func buildVectorStore(ctx context.Context, cfg *config.Config, emb vectorstore.Embedder) (vectorstore.Store, error) {
	switch cfg.StoreType {
	case config.VectorStoreDevNull:
		return vectorstore.NewDevNull(), nil
	case config.VectorStorePgvector:
		return vectorstore.NewPgvector(ctx, cfg.PgvectorDSN.Value(), emb)
	case config.VectorStoreAzureAISearch:
		return vectorstore.NewAzureAISearch(cfg.AzureAISearchEndpoint, cfg.AzureAISearchAPIKey.Value(), cfg.AzureAISearchIndex, emb), nil
	default:
		return nil, fmt.Errorf("unsupported store_type: %q", cfg.StoreType)
	}
}

// secondsToDuration converts the config's plain-integer seconds field into
// a time.Duration for the HTTP server's graceful-shutdown window.
func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// zapLevelFromString parses the engine's logging.level string into a
// zapcore.Level, matching the names zap itself accepts.
func zapLevelFromString(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if level == "" {
		return 0, fmt.Errorf("empty level")
	}
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, err
	}
	return l, nil
}

// buildRegistry wires every format provider in first-match-wins order. The
// extension sets are disjoint, but the outlook provider also claims any file
// whose content parses as an RFC 5322 message, so such a file goes to
// outlook ahead of the text providers listed after it.
func buildRegistry(cfg *config.Config) *formatprovider.Registry {
	return formatprovider.NewRegistry(
		formatprovider.NewPDFProvider(),
		formatprovider.NewMSWordProvider(cfg.LibreOfficeBinary),
		formatprovider.NewMSExcelProvider(cfg.LibreOfficeBinary),
		formatprovider.NewMSPPTProvider(cfg.LibreOfficeBinary),
		formatprovider.NewLibreOfficeProvider(cfg.LibreOfficeBinary, cfg.TmpFilesRoot),
		formatprovider.NewOutlookProvider(cfg.WkhtmltopdfBinary),
		formatprovider.NewMarkdownProvider(cfg.WkhtmltopdfBinary),
		formatprovider.NewHTMLProvider(cfg.WkhtmltopdfBinary),
		formatprovider.NewCodeProvider(cfg.WkhtmltopdfBinary),
		formatprovider.NewDataFileProvider(cfg.WkhtmltopdfBinary),
		formatprovider.NewPlainProvider(cfg.WkhtmltopdfBinary),
	)
}
