// Command jstsdebug runs the CDP debug session engine: an MCP tool
// façade that provisions sandboxed Node/TypeScript debuggees on demand
// and drives their Chrome DevTools Protocol conversation on behalf of an
// agent.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"jstsdebug/internal/config"
	"jstsdebug/internal/logging"
	"jstsdebug/internal/mcp"
	"jstsdebug/internal/metrics"
	"jstsdebug/internal/middleware"
	"jstsdebug/internal/registry"
	"jstsdebug/internal/sandbox"
)

// usage prints the single positional argument this CLI accepts (spec.md
// §6's CLI contract): the host-side path of the project every session's
// debuggee runs against.
func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <project-path>\n", os.Args[0])
}

func main() {
	if len(os.Args) != 2 {
		usage()
		os.Exit(1)
	}
	projectPath := os.Args[1]

	logging.Init()
	log := logging.L()
	defer logging.Sync()

	log.Info("starting jstsdebug", zap.String("project_path", projectPath))

	appConfig, err := config.Load()
	if err != nil {
		log.Fatal("configuration invalid", zap.Error(err))
	}

	sandboxConfig := sandbox.DefaultConfig()
	provisioner, err := sandbox.NewProvisioner(sandboxConfig, projectPath, log)
	if err != nil {
		log.Fatal("failed to initialize sandbox provisioner", zap.Error(err))
	}

	reg := registry.New(log)
	facade := mcp.NewFacade(reg, provisioner, appConfig.SessionTimeout, log)

	if appConfig.Environment == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery(), middleware.RequestID(), middleware.Logger(), middleware.Security())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"active_sessions": reg.Len(),
		})
	})
	router.GET(appConfig.MetricsPath, gin.WrapH(metrics.PrometheusHandlerHTTP()))

	middleware.InitRateLimiter(120, 10)
	auth := mcp.BearerAuth(appConfig.JWTSecret)
	router.GET("/mcp", middleware.RateLimit(), auth, gin.WrapH(http.HandlerFunc(facade.Server().HandleWebSocket)))

	httpServer := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	log.Info("server listening", zap.String("port", appConfig.Port), zap.String("environment", appConfig.Environment))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatal("server failed to start", zap.Error(err))
	case sig := <-quit:
		log.Info("received signal, starting graceful shutdown", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown error", zap.Error(err))
	}

	reg.CloseAll(shutdownCtx)
	log.Info("graceful shutdown complete")
}
