package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/kindra-app/kindra-client/config"
	"github.com/kindra-app/kindra-client/internal/devserver"
	"github.com/kindra-app/kindra-client/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	err = logger.Initialize(logger.Config{
		Level:       cfg.Logging.Level,
		LogDir:      cfg.Logging.Dir,
		Environment: cfg.AppEnv,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	server := devserver.New(cfg.DevServer)

	logger.Info("Dev server listening", zap.String("port", cfg.DevServer.Port))
	if err := server.Run(":" + cfg.DevServer.Port); err != nil {
		logger.LogError(err, "Dev server exited")
		os.Exit(1)
	}
}
