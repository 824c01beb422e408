package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gin-gonic/gin"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/retrolaminate/editor/application"
	"github.com/dfryer1193/retrolaminate/editor/domain"
	"github.com/dfryer1193/retrolaminate/editor/gemini"
	"github.com/dfryer1193/retrolaminate/editor/persistence"
	"github.com/dfryer1193/retrolaminate/internal/config"
	"github.com/dfryer1193/retrolaminate/internal/logging"
	"github.com/dfryer1193/retrolaminate/internal/metrics"
	"github.com/dfryer1193/retrolaminate/internal/middleware"
	"github.com/dfryer1193/retrolaminate/internal/rest"
	"github.com/dfryer1193/retrolaminate/shared/db/sqlite"
)

// Version is the application version (set via ldflags).
var Version = "dev"

type flags struct {
	configPath      string
	listen          string
	logLevel        string
	logFormat       string
	storage         string
	dbPath          string
	blobDir         string
	keepAssets      bool
	model           string
	timeout         time.Duration
	historyCapacity int
}

func main() {
	if err := Run(context.Background(), os.Args, os.Stderr); err != nil {
		log.Fatal().Err(err).Msg("Server exited with error")
	}
}

// Run runs the retrolaminate server until a termination signal arrives.
func Run(ctx context.Context, args []string, stderr io.Writer) error {
	app := kingpin.New("retrolaminate-server", "Turns photos of ID cards into old laminated mobile snapshots.")
	app.Version(Version)
	app.ErrorWriter(stderr)

	var (
		f   flags
		set = map[string]*bool{}
	)
	flag := func(name, help string) *kingpin.FlagClause {
		set[name] = new(bool)
		return app.Flag(name, help).IsSetByUser(set[name])
	}

	app.Flag("config", "Path to a YAML config file.").Short('c').StringVar(&f.configPath)
	flag("listen", "HTTP listen address.").StringVar(&f.listen)
	flag("log-level", "Log level (trace, debug, info, warn, error).").StringVar(&f.logLevel)
	flag("log-format", "Log format (console or json).").EnumVar(&f.logFormat, "console", "json")
	flag("storage", "Where session images are kept (memory or sqlite).").EnumVar(&f.storage, config.StorageMemory, config.StorageSQLite)
	flag("db-path", "SQLite database path.").StringVar(&f.dbPath)
	flag("blob-dir", "Directory for image files when using sqlite storage.").StringVar(&f.blobDir)
	flag("keep-assets", "Keep session images on shutdown.").BoolVar(&f.keepAssets)
	flag("gemini-model", "Gemini model used for the transformation.").StringVar(&f.model)
	flag("gemini-timeout", "Per-call timeout for the transformation service (0 for none).").DurationVar(&f.timeout)
	flag("history-capacity", "Maximum number of snapshots kept (0 for unbounded).").IntVar(&f.historyCapacity)

	if _, err := app.Parse(args[1:]); err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	f.apply(cfg, set)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}

	return serve(ctx, cfg)
}

// apply overrides cfg with the flags given on the command line.
func (f flags) apply(cfg *config.Config, set map[string]*bool) {
	given := func(name string) bool { return *set[name] }

	if given("listen") {
		cfg.Listen = f.listen
	}
	if given("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if given("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if given("storage") {
		cfg.Storage.Driver = f.storage
	}
	if given("db-path") {
		cfg.Storage.DBPath = f.dbPath
	}
	if given("blob-dir") {
		cfg.Storage.BlobDir = f.blobDir
	}
	if given("keep-assets") {
		cfg.Storage.KeepAssets = f.keepAssets
	}
	if given("gemini-model") {
		cfg.Gemini.Model = f.model
	}
	if given("gemini-timeout") {
		cfg.Gemini.Timeout = f.timeout
	}
	if given("history-capacity") {
		cfg.Editor.HistoryCapacity = f.historyCapacity
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	assets, closeStorage, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStorage()

	client, err := gemini.NewClient(ctx, cfg.Gemini.APIKey)
	if err != nil {
		return err
	}
	transformer := gemini.NewTransformer(client.Models,
		gemini.WithModel(cfg.Gemini.Model),
		gemini.WithTimeout(cfg.Gemini.Timeout),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	editorService := application.NewEditorService(assets, transformer,
		application.WithInstruction(cfg.Editor.Instruction),
		application.WithHistoryCapacity(cfg.Editor.HistoryCapacity),
		application.WithMaxUploadBytes(cfg.MaxUploadBytes()),
		application.WithKeepAssets(cfg.Storage.KeepAssets),
		application.WithMetrics(metrics.NewEditorMetrics(reg)),
	)
	defer func() {
		if err := editorService.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to gracefully close editor service")
		}
	}()

	if cfg.Log.Level != "debug" && cfg.Log.Level != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.LoggingMiddleware())
	router.Use(gin.CustomRecovery(middleware.HandlePanics()))
	router.Use(metrics.NewHTTPMetrics(reg).Middleware())
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	rest.NewApi(router, editorService, rest.WithMaxUploadBytes(cfg.MaxUploadBytes()))

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				log.Info().Msg("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// HTTP server.
	{
		g.Add(
			func() error {
				log.Info().Str("addr", cfg.Listen).Str("storage", cfg.Storage.Driver).Str("model", cfg.Gemini.Model).Msg("Starting server")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server failed: %w", err)
				}
				return nil
			},
			func(_ error) {
				log.Info().Msg("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Failed to shutdown server")
				}
			},
		)
	}

	err = g.Run()
	log.Info().Msg("Server stopped")
	return err
}

// openStorage returns the asset repository selected by cfg and a func
// releasing it.
func openStorage(cfg config.StorageConfig) (domain.AssetRepository, func(), error) {
	switch cfg.Driver {
	case config.StorageSQLite:
		sqlDB := sqlite.NewSQLiteDB(&sqlite.SQLiteConfig{Path: cfg.DBPath})
		if err := sqlDB.Connect(); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		closeDB := func() {
			if err := sqlDB.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close database")
			}
		}
		return persistence.NewAssetRepository(sqlDB.DB(), cfg.BlobDir), closeDB, nil
	case config.StorageMemory:
		return persistence.NewMemoryAssetRepository(), func() {}, nil
	}

	return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
}
