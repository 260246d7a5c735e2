package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Marcosotoladev/DhermicaApp-sub000/config"
	"github.com/Marcosotoladev/DhermicaApp-sub000/middleware"
	"github.com/Marcosotoladev/DhermicaApp-sub000/notify"
	"github.com/Marcosotoladev/DhermicaApp-sub000/router"
	"github.com/Marcosotoladev/DhermicaApp-sub000/storage"
	"github.com/Marcosotoladev/DhermicaApp-sub000/util"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if cfg.GinMode != "" {
			gin.SetMode(cfg.GinMode)
		}

		logger, err := config.NewLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		zap.ReplaceGlobals(logger)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()
		return a.run(ctx)
	},
}

// app is a wired server together with the resources it must release.
type app struct {
	server  *http.Server
	logger  *zap.Logger
	closers []func()
}

// newApp connects every backing service named by the environment. Redis,
// GeoIP, MinIO and RabbitMQ are optional; the database is not.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{logger: logger}
	notify.SetLogger(logger)

	db, err := config.ConnectMySQL()
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	util.SetSecurityLoggerDB(db)

	if rdb, err := config.ConnectRedis(); err != nil {
		logger.Warn("redis unavailable, using database sessions", zap.Error(err))
	} else if rdb != nil {
		a.closers = append(a.closers, func() { _ = rdb.Close() })
	}

	if err := util.InitGeoIP(""); err != nil {
		logger.Warn("geoip disabled", zap.Error(err))
	}
	a.closers = append(a.closers, util.CloseGeoIP)

	clinic, err := config.LoadClinicConfig(cfg.ClinicConfig)
	if err != nil {
		return nil, err
	}

	var store storage.ImageStore
	if mcfg, ok := storage.MinioConfigFromEnv(); ok {
		ms, err := storage.NewMinioStore(ctx, mcfg)
		if err != nil {
			return nil, fmt.Errorf("connect minio: %w", err)
		}
		store = ms
		logger.Info("image storage ready", zap.String("endpoint", mcfg.Endpoint), zap.String("bucket", mcfg.Bucket))
	}

	metrics := middleware.NewMetrics(appLabel(cfg))

	var publisher notify.Publisher
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		rp, err := notify.NewRabbitPublisher(url, os.Getenv("RABBITMQ_EXCHANGE"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rp.Close() })
		publisher = rp
	}
	notify.SetPublisher(notify.Observed(publisher, func(e notify.Event) {
		metrics.ObserveAppointmentEvent(string(e.Type))
	}))

	r := router.SetupRouter(db, clinic, router.Options{
		AppName:    cfg.AppName,
		ImageStore: store,
		Metrics:    metrics,
		Logger:     logger,
	})
	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func appLabel(cfg *config.Config) string {
	if cfg.AppName == "" {
		return "dhermica"
	}
	return cfg.AppName
}

// run serves until ctx is cancelled and then drains in-flight requests.
func (a *app) run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (a *app) close() {
	notify.SetPublisher(nil)
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
