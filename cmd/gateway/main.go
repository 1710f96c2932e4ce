package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/loquent-ai/loquent-go/pkg/gateway/stream"
	"github.com/loquent-ai/loquent-go/pkg/gateway/token"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	secret := os.Getenv("TOKEN_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
		logger.Warn("TOKEN_SECRET not set, using development secret")
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	issuer := token.NewIssuer([]byte(secret), "loquent-gateway", 15*time.Minute)
	responder := stream.NewEchoResponder(25 * time.Millisecond)
	wsHandler := stream.NewHandler(responder, stream.DefaultConfig(), logger)
	tokenHandler := token.NewHandler(issuer, logger)

	e.GET("/ws", wsHandler.Serve)
	e.POST("/token", tokenHandler.Exchange)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()
	logger.Info("gateway started", zap.String("port", port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("gateway shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}
	logger.Info("gateway exited")
}
