package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/decipherworld/classroom-server/internal/api"
	"github.com/decipherworld/classroom-server/internal/config"
	"github.com/decipherworld/classroom-server/internal/database"
	"github.com/decipherworld/classroom-server/internal/errors"
	"github.com/decipherworld/classroom-server/internal/logger"
	"github.com/decipherworld/classroom-server/internal/service"
	ws "github.com/decipherworld/classroom-server/internal/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server owns every long-lived component and the shutdown sequencing.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	hub        *ws.Hub
	dispatcher *ws.Dispatcher
	services   *service.Services
	httpServer *http.Server

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("classroom-server %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("failed to init logging: %v\n", err)
		os.Exit(1)
	}

	switch cfg.Server.Mode {
	case "production", "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	server := NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Fatal("server start failed", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// NewServer builds an unstarted server instance.
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start brings the database, the hub and the HTTP listener up.
func (s *Server) Start() error {
	s.logger.Info("starting classroom server",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode))

	if err := s.initDatabase(); err != nil {
		return err
	}
	s.initGateway()

	router := api.NewRouter(
		database.GetDB(),
		s.serviceConfig(),
		&s.cfg.WebSocket,
		s.services,
		s.hub,
		logger.WithModule("api"),
	)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      router.Engine(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server failed", zap.Error(err))
			s.cancel()
		}
	}()

	if s.services.RateLimiter != nil {
		s.services.RateLimiter.StartPruning(time.Minute, s.ctx.Done())
	}

	// Log level follows config file edits without a restart.
	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("config reloaded", zap.String("log_level", newCfg.Log.Level))
		logger.SetLevel(newCfg.Log.Level)
	})

	s.logger.Info("server started",
		zap.String("http", s.httpServer.Addr),
		zap.String("websocket_path", s.cfg.WebSocket.Path))
	return nil
}

func (s *Server) initDatabase() error {
	database.CleanupStaleLocks()

	if err := database.Init(&s.cfg.Database); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "database init failed")
	}

	if s.cfg.Database.AutoMigrate {
		s.logger.Info("running database migrations")
		if err := database.AutoMigrate(); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseConnect, "migration failed")
		}
	}

	if !database.IsConnected() {
		return errors.New(errors.ErrDatabaseConnect, "connectivity check failed")
	}
	return nil
}

// initGateway wires the hub, the worker pool and the service layer. The
// hub doubles as the broadcaster the services publish through.
func (s *Server) initGateway() {
	wsCfg := s.cfg.WebSocket

	s.hub = ws.NewHub(wsCfg.HeartbeatInterval, wsCfg.HeartbeatTimeout, logger.WithModule("websocket"))
	s.services = service.NewServices(database.GetDB(), s.serviceConfig(), s.hub, logger.GetLogger())

	s.dispatcher = ws.NewDispatcher(wsCfg.WorkerPoolSize, wsCfg.WorkerPoolSize*4, logger.WithModule("websocket"))
	ws.NewGameMessageHandler(
		s.hub,
		s.services.Session,
		s.services.Progression,
		s.services.RateLimiter,
		s.dispatcher,
		logger.WithModule("websocket"),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run()
	}()
}

func (s *Server) serviceConfig() *service.Config {
	return &service.Config{
		JWTSecret:               s.cfg.Security.JWT.Secret,
		AccessTokenExpiry:       time.Duration(s.cfg.Security.JWT.ExpireHours) * time.Hour,
		RefreshTokenExpiry:      time.Duration(s.cfg.Security.JWT.RefreshHours) * time.Hour,
		DefaultThresholdPercent: s.cfg.Game.DefaultThresholdPercent,
		DefaultCountdown:        s.cfg.Game.DefaultCountdown,
		JoinCodeLength:          s.cfg.Game.JoinCodeLength,
		MaxInputsPerSubmission:  s.cfg.Game.MaxInputsPerSubmission,
		RateLimitEnabled:        s.cfg.RateLimit.Enabled,
		SubmissionsPerWindow:    s.cfg.RateLimit.SubmissionsPerWindow,
		RateLimitWindow:         s.cfg.RateLimit.Window,
	}
}

// WaitForShutdown blocks until SIGINT/SIGTERM.
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigCh
	s.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
}

// Shutdown drains the HTTP listener, then tears down the gateway and the
// database, bounded by the configured shutdown timeout.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown incomplete", zap.Error(err))
		}
	}

	s.cancel()
	if s.dispatcher != nil {
		s.dispatcher.Stop()
	}
	if s.hub != nil {
		s.hub.Stop()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		return errors.New(errors.ErrTimeout, "shutdown timed out")
	}

	if err := database.Close(); err != nil {
		s.logger.Error("database close failed", zap.Error(err))
	}
	if err := logger.Sync(); err != nil {
		fmt.Printf("log sync failed: %v\n", err)
	}
	return nil
}
