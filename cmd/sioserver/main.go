package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sio "github.com/funcards/socket.io-server"
	"github.com/funcards/socket.io-server/eio"
	"github.com/funcards/socket.io-server/internal/config"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := cfg.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err = run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	engine := eio.NewServer(cfg.Engine, logger)
	server := sio.NewServer(cfg.Server, engine, nil, logger)
	registerHandlers(server, logger)

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, engine)

	var cors []handlers.CORSOption
	if len(cfg.Engine.AllowedOrigins) > 0 {
		cors = append(cors, handlers.AllowedOrigins(cfg.Engine.AllowedOrigins))
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlers.CORS(cors...)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("path", cfg.Path))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := server.Shutdown(); err != nil {
		logger.Warn("sio shutdown", zap.Error(err))
	}
	return engine.Close()
}
