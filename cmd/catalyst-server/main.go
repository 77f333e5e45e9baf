package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlexRider935/catalyst-server/internal/agents"
	internalhttp "github.com/AlexRider935/catalyst-server/internal/api/http"
	"github.com/AlexRider935/catalyst-server/internal/db"
	"github.com/AlexRider935/catalyst-server/internal/ingestion"
	"github.com/AlexRider935/catalyst-server/internal/monitor"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("Catalyst Agent Server", "version", AppVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.RunMigrations(config.Database.Url, config.Database.Schema); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	pool, err := db.InitDB(ctx, config.Database.Url, config.Database.Schema)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := agents.NewStore(pool)

	services := &internalhttp.Services{
		Agents:   agents.NewService(store),
		Ingestor: ingestion.NewService(store, ingestion.Config{
			EventsPerSecond: config.Ingestion.EventsPerSecond,
			Burst:           config.Ingestion.Burst,
		}),
		Monitor: monitor.New(store, monitor.Config{
			Interval:         config.Monitor.Interval,
			StaleThreshold:   config.Monitor.StaleThreshold,
			InstantThreshold: config.Monitor.InstantThreshold,
		}, slog.Default()),
	}

	// One background sweep for the life of the process.
	services.Monitor.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"PUT", "PATCH", "GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, services)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: engine,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down server...")

	services.Monitor.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Shutdown complete")
}
