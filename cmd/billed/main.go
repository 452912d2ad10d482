package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/metrics"
	"github.com/zombor/billed/internal/s3storage"
	"github.com/zombor/billed/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("billed")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		storeType   = fs.StringLong("store", "local", "Bill store: 'local' or 'remote'")
		dbPath      = fs.StringLong("db", "billed.db", "Database file path (local store)")
		databaseURL = fs.StringLong("database-url", "", "PostgreSQL DSN; replaces the bolt database when set (local store)")
		storageType = fs.StringLong("storage", "disk", "Receipt storage: 'disk' or 's3' (local store)")
		storagePath = fs.StringLong("storage-path", "./receipts", "Receipt directory (disk storage)")
		publicURL   = fs.StringLong("public-url", "", "Base URL prefixed to receipt links (defaults to http://localhost:<port>)")
		s3Endpoint  = fs.StringLong("s3-endpoint", "localhost:9000", "S3 endpoint")
		s3AccessKey = fs.StringLong("s3-access-key", "", "S3 access key")
		s3SecretKey = fs.StringLong("s3-secret-key", "", "S3 secret key")
		s3Bucket    = fs.StringLong("s3-bucket", "receipts", "S3 bucket for receipts")
		s3Region    = fs.StringLong("s3-region", "us-east-1", "S3 region")
		s3UseSSL    = fs.BoolLong("s3-ssl", "Use TLS for S3")
		remoteURL   = fs.StringLong("remote-url", "", "Remote bills API base URL (remote store)")
		remoteToken = fs.StringLong("remote-token", "", "Bearer token for the remote bills API")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key enabling receipt scanning (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		maxUpload   = fs.IntLong("max-upload-mb", 10, "Maximum receipt size in MB")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username; when set it is the session user and X-User is ignored")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		withMetrics = fs.BoolLong("metrics", "Serve Prometheus metrics on /metrics")
		_           = fs.StringLong("config", "", "YAML config file")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("BILLED"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(parseYAMLConfig),
		ff.WithConfigAllowMissingFile(),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := bill.ServerConfig{
		BasicAuth:     bill.BasicAuth{Username: *authUser, Password: *authPass},
		MaxUploadSize: int64(*maxUpload) << 20,
	}

	var store bill.Store
	switch *storeType {
	case "local":
		db, err := newDB(ctx, *dbPath, *databaseURL)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		storage, err := newStorage(ctx, *storageType, *storagePath, s3storage.Config{
			Endpoint:  *s3Endpoint,
			AccessKey: *s3AccessKey,
			SecretKey: *s3SecretKey,
			Bucket:    *s3Bucket,
			Region:    *s3Region,
			UseSSL:    *s3UseSSL,
		})
		if err != nil {
			slog.Error("Failed to initialize storage", "type", *storageType, "error", err)
			os.Exit(1)
		}

		base := *publicURL
		if base == "" {
			base = fmt.Sprintf("http://localhost:%d", *port)
		}
		local := bill.NewLocalStore(db, storage, strings.TrimSuffix(base, "/")+"/files")
		cfg.Files = local
		store = local
	case "remote":
		slog.Info("Using remote bill store", "url", *remoteURL)
		remote, err := bill.NewRemoteStore(*remoteURL, *remoteToken)
		if err != nil {
			slog.Error("Failed to initialize remote store", "error", err)
			os.Exit(1)
		}
		store = remote
	default:
		slog.Error("Invalid store type", "type", *storeType, "valid", "local or remote")
		os.Exit(1)
	}

	apiKey := *geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey != "" {
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err := scanning.NewGemini(apiKey, *geminiModel, bill.ExpenseTypes)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
		defer scanner.Close()
		cfg.Scanner = scanner
	}

	if *withMetrics {
		cfg.Metrics = metrics.New()
	}

	server := bill.NewServer(store, cfg)

	addr := fmt.Sprintf(":%d", *port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}

// newDB opens PostgreSQL when a DSN is given, the bolt file otherwise
func newDB(ctx context.Context, path, dsn string) (bill.DB, error) {
	if dsn != "" {
		slog.Info("Initializing PostgreSQL database...")
		db, err := bill.NewPostgresDB(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	slog.Info("Initializing database...", "path", path)
	db, err := bill.NewBoltDB(path)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// newStorage builds the receipt storage selected by storageType
func newStorage(ctx context.Context, storageType, path string, s3cfg s3storage.Config) (bill.Storage, error) {
	switch storageType {
	case "disk":
		slog.Info("Initializing storage...", "path", path)
		storage, err := bill.NewLocalStorage(path)
		if err != nil {
			return nil, err
		}
		return storage, nil
	case "s3":
		slog.Info("Initializing S3 storage...", "endpoint", s3cfg.Endpoint, "bucket", s3cfg.Bucket)
		storage, err := s3storage.New(s3cfg)
		if err != nil {
			return nil, err
		}
		if err := storage.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", storageType)
	}
}
