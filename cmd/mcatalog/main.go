package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/mcatalog/internal/config"
	"github.com/xxxsen/mcatalog/internal/db"
	"github.com/xxxsen/mcatalog/internal/filestore"
	"github.com/xxxsen/mcatalog/internal/handler"
	"github.com/xxxsen/mcatalog/internal/importer"
	"github.com/xxxsen/mcatalog/internal/job"
	"github.com/xxxsen/mcatalog/internal/matching"
	"github.com/xxxsen/mcatalog/internal/middleware"
	"github.com/xxxsen/mcatalog/internal/repo"
	"github.com/xxxsen/mcatalog/internal/schedule"
	"github.com/xxxsen/mcatalog/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "mcatalog",
		Short: "mcatalog playlist import service",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json or config.toml")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server together with the import worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer app.db.Close()
			return app.run(true)
		},
	}

	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "run only the import worker and scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer app.db.Close()
			return app.run(false)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer app.db.Close()
			logutil.GetLogger(context.Background()).Info("migrations applied", zap.String("driver", app.db.DriverName()))
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, workerCmd, migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

type app struct {
	cfg   *config.Config
	db    *sqlx.DB
	store filestore.Store
}

func bootstrap(configPath string) (*app, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init file store: %w", err)
	}
	return &app{cfg: cfg, db: conn, store: store}, nil
}

func (a *app) run(withHTTP bool) error {
	cfg := a.cfg
	logutil.GetLogger(context.Background()).Info(
		"starting mcatalog",
		zap.Int("port", cfg.Port),
		zap.String("driver", a.db.DriverName()),
		zap.String("file_store", a.store.Type()),
		zap.Bool("http", withHTTP),
	)

	taskRepo := repo.NewImportTaskRepo(a.db)
	entryRepo := repo.NewStagingEntryRepo(a.db)
	playlistRepo := repo.NewPlaylistRepo(a.db)

	engine := matching.NewEngine(a.db, matching.WeightsFromConfig(cfg.Import.Weights), cfg.Import.PrefilterFloor)
	worker := importer.NewWorker(taskRepo, entryRepo, playlistRepo, a.store, engine, importer.OptionsFromConfig(cfg.Import))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if cfg.Import.StaleAfterMinutes > 0 {
		if err := scheduler.AddJob(job.NewStaleImportJob(a.db, cfg.Import.StaleAfter()), cfg.Import.ReaperCron); err != nil {
			return fmt.Errorf("schedule stale import job: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := worker.Run(ctx); err != nil {
			logutil.GetLogger(ctx).Error("import worker exited", zap.Error(err))
		}
	}()

	if withHTTP {
		if err := a.serveHTTP(ctx); err != nil {
			stop()
			wg.Wait()
			return err
		}
	}

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("mcatalog stopping...")
	wg.Wait()
	return nil
}

func (a *app) serveHTTP(ctx context.Context) error {
	cfg := a.cfg
	importService := service.NewImportService(repo.NewImportTaskRepo(a.db), repo.NewStagingEntryRepo(a.db), a.store, cfg.Import.UploadMaxBytes)
	deps := handler.RouterDeps{
		Import:              handler.NewImportHandler(importService, cfg.Import.UploadMaxBytes),
		JWTSecret:           []byte(cfg.JWTSecret),
		UploadRatePerMinute: cfg.Import.UploadRatePerMinute,
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()
	return nil
}
