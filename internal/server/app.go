// Package server wires the credential subsystem together and runs it. App is
// the explicit dependency container: NewApp builds every component from
// Config, Run serves until the context is cancelled or a signal arrives,
// Close releases what NewApp acquired.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gideon/internal/common"
	"github.com/dmitrijs2005/gideon/internal/cryptox"
	"github.com/dmitrijs2005/gideon/internal/logging"
	"github.com/dmitrijs2005/gideon/internal/server/auth"
	"github.com/dmitrijs2005/gideon/internal/server/config"
	"github.com/dmitrijs2005/gideon/internal/server/httpapi"
	"github.com/dmitrijs2005/gideon/internal/server/metrics"
	"github.com/dmitrijs2005/gideon/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gideon/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"

	gs "github.com/dmitrijs2005/gideon/internal/server/grpc"
)

const shutdownTimeout = 5 * time.Second

// openDB is a seam for tests.
var openDB = repomanager.OpenDB

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	gateway *services.AuthGateway
	handler http.Handler
	grpc    *gs.Server

	closers []func()
}

// NewApp validates cfg and builds the application. Output is where logs go.
func NewApp(ctx context.Context, cfg *config.Config, output io.Writer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, syncLogger, err := logging.New(cfg.LogFormat, output)
	if err != nil {
		return nil, err
	}
	app := &App{config: cfg, logger: logger.With("module", "app")}
	app.closers = append(app.closers, syncLogger)

	masterKey, err := resolveMasterKey(ctx, cfg.EncryptionKey, app.logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	cipher, err := cryptox.NewSecretCipher(masterKey)
	common.WipeByteArray(masterKey)
	if err != nil {
		app.Close()
		return nil, &config.ConfigError{Field: config.EnvEncryptionKey, Reason: err.Error()}
	}

	db, err := openDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, func() { _ = db.Close() })

	rm := repomanager.NewPostgresRepositoryManager()
	if cfg.MigrateOnStart {
		if err := rm.RunMigrations(ctx, db); err != nil {
			app.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		app.logger.Info(ctx, "migrations applied")
	}

	reg := prometheus.NewRegistry()
	rec := metrics.NewCollector(reg)

	hasher := cryptox.NewPasswordHasher(cryptox.DefaultArgon2Params)
	tokens := auth.NewTokenService([]byte(cfg.SecretKey), cfg.AccessTokenValidityDuration)

	store, err := services.NewCredentialStore(db, rm, hasher, cipher, logger, rec)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.gateway = services.NewAuthGateway(store, hasher, tokens, cipher, logger, rec)

	app.handler = httpapi.NewRouter(httpapi.RouterDeps{
		Gateway:        app.gateway,
		Logger:         logger,
		Metrics:        rec,
		MetricsHandler: metrics.Handler(reg),
	})

	if cfg.EndpointAddrGRPC != "" {
		app.grpc = gs.NewServer(cfg.EndpointAddrGRPC, logger, gs.NewAuthInterceptor(app.gateway, logger))
	}

	return app, nil
}

// resolveMasterKey decodes the configured key, or generates an ephemeral one
// when none is configured.
func resolveMasterKey(ctx context.Context, encoded string, logger logging.Logger) ([]byte, error) {
	if encoded == "" {
		logger.Warn(ctx, "ENCRYPTION_KEY is not set: using an ephemeral master key; "+
			"API keys stored by this process cannot be decrypted after restart")
		return cryptox.GenerateMasterKey(), nil
	}

	key, err := cryptox.ParseMasterKey(encoded)
	if err != nil {
		return nil, &config.ConfigError{Field: config.EnvEncryptionKey, Reason: err.Error()}
	}
	return key, nil
}

// Gateway exposes the auth gateway to in-process collaborators.
func (app *App) Gateway() *services.AuthGateway {
	return app.gateway
}

// GRPCServer returns the gRPC server, or nil when no gRPC address is
// configured. No services are registered on it by default: it only carries
// the bearer-token interceptor until collaborators call RegisterService
// before Run.
func (app *App) GRPCServer() *gs.Server {
	return app.grpc
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "signal received", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc, ready chan<- net.Addr) {
	lis, err := net.Listen("tcp", app.config.EndpointAddrHTTP)
	if err != nil {
		app.logger.Error(ctx, "http listen failed", "error", err)
		cancelFunc()
		return
	}
	if ready != nil {
		ready <- lis.Addr()
	}

	srv := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		app.logger.Info(ctx, "Stopping HTTP server...")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpc.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server failed", "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a termination signal arrives or a
// listener fails.
func (app *App) Run(ctx context.Context) {
	app.run(ctx, nil)
}

func (app *App) run(ctx context.Context, httpReady chan<- net.Addr) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc, httpReady)
	}()

	if app.grpc != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()
	app.logger.Info(context.Background(), "App stopped")
}

// Close releases resources in reverse order of acquisition. It is safe to
// call more than once.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
	app.closers = nil
}
