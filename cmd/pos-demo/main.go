package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dealyze/pos-demo/internal/app"
	"github.com/dealyze/pos-demo/internal/config"
	"github.com/dealyze/pos-demo/internal/console"
	"github.com/dealyze/pos-demo/internal/logging"
	"github.com/dealyze/pos-demo/internal/session"
	"github.com/dealyze/pos-demo/internal/socketio"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
)

// defaultTUILog receives logs while the TUI owns the terminal.
const defaultTUILog = "pos-demo.log"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	url := flag.String("url", "", "Override Dealyze server URL")
	plain := flag.Bool("plain", false, "Line-mode console instead of the TUI")
	eio := flag.Int("eio", 0, "Override Engine.IO protocol revision (3 or 4)")
	logLevel := flag.String("log-level", "", "Override log level")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *url != "" {
		cfg.Server.URL = *url
	}
	if *eio != 0 {
		cfg.Server.EIO = *eio
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *plain || !isatty.IsTerminal(os.Stdout.Fd()) {
		cfg.UI.Plain = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	if !cfg.UI.Plain && cfg.Log.File == "" {
		cfg.Log.File = defaultTUILog
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("exiting", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	newSocket := func() (session.Socket, error) {
		return socketio.New(cfg.Server.URL, socketio.Options{
			EIO:                cfg.Server.EIO,
			Namespace:          cfg.Server.Namespace,
			ReconnectBaseDelay: cfg.Reconnect.BaseDelay,
			ReconnectMaxDelay:  cfg.Reconnect.MaxDelay,
			Logger:             log.Named("socketio"),
		})
	}

	if cfg.UI.Plain {
		con := console.New(os.Stdin, os.Stdout)
		ctrl, err := session.New(session.Options{
			NewSocket: newSocket,
			Notifier:  con,
			Employee:  cfg.Employee,
			Logger:    log.Named("session"),

			StringPayloads: cfg.Server.StringPayloads,
		})
		if err != nil {
			return err
		}
		if err := ctrl.Connect(ctx); err != nil {
			return err
		}
		go func() {
			err := con.Serve(ctx, ctrl.Prompts())
			if errors.Is(err, io.EOF) {
				log.Info("stdin closed")
			}
			cancel()
		}()
		return ctrl.Run(ctx)
	}

	bridge := app.NewBridge()
	ctrl, err := session.New(session.Options{
		NewSocket: newSocket,
		Notifier:  bridge,
		Employee:  cfg.Employee,
		Logger:    log.Named("session"),

		StringPayloads: cfg.Server.StringPayloads,
	})
	if err != nil {
		return err
	}
	if err := ctrl.Connect(ctx); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	p := tea.NewProgram(app.New(bridge, ctrl.Prompts(), cfg.Server.URL), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	cancel()
	bridge.Close()
	<-done
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
