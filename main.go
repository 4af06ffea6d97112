package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gowa-gateway/config"
	"gowa-gateway/database"
	"gowa-gateway/internal/handler"
	"gowa-gateway/internal/logging"
	"gowa-gateway/internal/metrics"
	"gowa-gateway/internal/service"
	"gowa-gateway/internal/ws"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mau.fi/whatsmeow/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info", false)
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Nama device yang muncul di "Linked devices" pada HP
	store.SetOSInfo(cfg.Store.DeviceName, [3]uint32{1, 0, 0})

	clientLog := logging.ClientLogger(log, cfg.Log.ClientLevel)
	container, err := database.InitWhatsmeow(ctx, cfg.Store.Dialect, cfg.Store.DSN, clientLog.Sub("Database"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session store")
	}
	log.Info().Str("dialect", cfg.Store.Dialect).Msg("Session store ready")

	// Inisialisasi WebSocket Hub
	hub := ws.NewHub(log)
	go hub.Run(ctx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	client := service.NewWhatsmeowClient(container, clientLog.Sub("Client"), log.With().Str("component", "client").Logger())
	session := service.NewSession(client,
		service.WithLogger(log.With().Str("component", "session").Logger()),
		service.WithRetry(cfg.Reconnect.Delay, cfg.Reconnect.MaxAttempts),
		service.WithRealtime(hub),
		service.WithMetrics(m),
		service.WithQROutput(os.Stdout),
	)
	session.Start(ctx)

	// Setup Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(logging.RequestLogger(log))
	e.Use(m.Middleware())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowMethods: []string{
			echo.GET,
			echo.POST,
			echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
	}))

	h := handler.New(session, m, log.With().Str("component", "http").Logger())
	handler.RegisterRoutes(ctx, e, h, handler.RouteConfig{
		JWTSecret: cfg.Server.JWTSecret,
		Hub:       hub,
		Metrics:   m,
	})

	go func() {
		log.Info().Str("addr", cfg.Server.Addr()).Msg("Server is running")
		if err := e.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down HTTP server")
	}
	session.Stop()
}
