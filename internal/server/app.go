// Package server wires configuration, the user store, object storage and the
// HTTP API together and runs them until a termination signal arrives.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/userkeeper/internal/filex"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/auth"
	"github.com/dmitrijs2005/userkeeper/internal/server/config"
	"github.com/dmitrijs2005/userkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/userkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/userkeeper/internal/server/services"
	"github.com/dmitrijs2005/userkeeper/internal/server/uploads"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	store       *repomanager.Store
	metrics     *metrics.Metrics
	userService *services.UserService
	uploadDir   string
}

// seams for tests
var (
	openStore   = repomanager.Open
	newUploader = func(ctx context.Context, cfg uploads.S3Config, l logging.Logger) (uploads.Uploader, error) {
		return uploads.NewS3Uploader(ctx, cfg, l)
	}
)

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	uploadDir, err := filex.EnsureSubdDir(c.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("upload dir: %w", err)
	}

	store, err := openStore(ctx, c.DatabaseDSN, c.MongoDatabase, logger)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	uploader, err := newUploader(ctx, uploads.S3Config{
		Region:        c.S3Region,
		AccessKey:     c.S3RootUser,
		SecretKey:     c.S3RootPassword,
		Bucket:        c.S3Bucket,
		BaseEndpoint:  c.S3BaseEndpoint,
		PublicBaseURL: c.S3PublicBaseURL,
	}, logger)
	if err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("uploader init error: %w", err)
	}

	codec := auth.NewTokenCodec(
		[]byte(c.AccessTokenSecret),
		[]byte(c.RefreshTokenSecret),
		c.AccessTokenValidityDuration,
		c.RefreshTokenValidityDuration,
	)

	m := metrics.New()
	us := services.NewUserService(store.Users, codec, uploader, m, logger)

	return &App{
		config:      c,
		logger:      logger,
		store:       store,
		metrics:     m,
		userService: us,
		uploadDir:   uploadDir,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) newHTTPServer() *httpapi.HTTPServer {
	return httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.userService, app.metrics, httpapi.Options{
		CookieSecure:    app.config.CookieSecure,
		AccessTokenTTL:  app.config.AccessTokenValidityDuration,
		RefreshTokenTTL: app.config.RefreshTokenValidityDuration,
		UploadDir:       app.uploadDir,
		MaxUploadBytes:  app.config.MaxUploadBytes,
	})
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.newHTTPServer().Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a termination signal arrives or ctx is cancelled, then
// releases the user store.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.store.Close(context.Background()); err != nil {
		app.logger.Error(ctx, "store close failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")

	if s, ok := app.logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}
