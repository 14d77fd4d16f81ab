// Command tangentd serves the branching-conversation canvas backend: the
// node-graph editor API over HTTP plus a websocket feed of graph changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"tangent-backend/internal/config"
	"tangent-backend/internal/di"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("initialize application: %v", err)
	}
	defer app.Logger.Sync()

	if cfg.Environment == config.Development {
		if _, err := os.Stat(*configPath); err == nil {
			watcher, err := config.NewWatcher(*configPath, cfg, app.Logger)
			if err != nil {
				app.Logger.Warn("config hot reload unavailable", zap.Error(err))
			} else {
				watcher.OnChange(app.ApplyConfig)
				defer watcher.Stop()
			}
		}
	}

	go app.Hub.Run()
	defer app.Hub.Stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      app.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("server listening",
			zap.String("addr", addr),
			zap.String("environment", string(cfg.Environment)))
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		app.Logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Fatal("server failed", zap.Error(err))
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		app.Logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
