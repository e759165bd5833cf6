package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coding-interface/internal/config"
	"coding-interface/internal/dataset"
	"coding-interface/internal/handler"
	"coding-interface/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting Coding Interface...")

	// Load configuration
	configPath := "configs/config.yml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Load the default coding table if present. The service still starts
	// without one; session endpoints stay blocked until a table is uploaded.
	store := dataset.NewStore(logger)
	if err := store.LoadFile(cfg.Dataset.Path); err != nil {
		logger.Warn("Default coding file not loaded; upload one via the UI",
			zap.String("path", cfg.Dataset.Path),
			zap.Error(err))
	}

	// Initialize service
	coder := service.NewCoder(store, cfg.Taxonomy, logger)

	// Initialize HTTP handler
	apiHandler := handler.NewHandler(coder, logger)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	// Register routes
	apiHandler.RegisterRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	// Graceful shutdown
	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Coding Interface is running",
		zap.String("port", cfg.Server.Port),
		zap.String("taxonomy", cfg.Taxonomy.Name))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
