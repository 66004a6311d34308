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

	"github.com/dealyze/pos-demo/internal/config"
	"github.com/dealyze/pos-demo/internal/logging"
	"github.com/dealyze/pos-demo/internal/mock"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	addr := flag.String("addr", "", "Override listen address")
	interval := flag.Duration("interval", -1, "Override push interval (0 disables scripted pushes)")
	logLevel := flag.String("log-level", "", "Override log level")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Mock.Addr = *addr
	}
	if *interval >= 0 {
		cfg.Mock.Interval = *interval
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := mock.NewServer(mock.Options{
		Namespace:    cfg.Server.Namespace,
		PingInterval: cfg.Mock.PingInterval,
		PingTimeout:  cfg.Mock.PingTimeout,
		Logger:       log.Named("mock"),
	})
	mock.NewGenerator(server, cfg.Mock.Interval).Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Mock.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		server.DisconnectAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
		server.Close()
	}()

	log.Info("mock dealyze listening", zap.String("addr", cfg.Mock.Addr), zap.Duration("interval", cfg.Mock.Interval))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", zap.Error(err))
	}
}
