package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.bug.st/serial"
	"i4.energy/across/cncline/controller"
	"i4.energy/across/cncline/smoothie"
)

func main() {
	flag.String("serial-port", "/dev/ttyACM0", "Serial port the controller is connected to")
	flag.Int("baud-rate", 115200, "Baud rate for serial communication")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Duration("status-interval", 250*time.Millisecond, "Status query interval (0 disables polling)")
	envFile := flag.String("env-file", "", "Dotenv file to load (default .env)")
	decode := flag.Bool("decode", false, "Decode lines from stdin instead of connecting to a controller")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithDotEnv(*envFile), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(config.LogLevel)}))

	if *decode {
		if err := runDecoder(os.Stdin, os.Stdout, logger); err != nil {
			logger.Error("Decoder failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := runDaemon(config, logger); err != nil {
		logger.Error("Daemon failed", "error", err)
		os.Exit(1)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// runDecoder prints one JSON envelope per line read from in.
func runDecoder(in *os.File, out io.Writer, logger *slog.Logger) error {
	le := NewLineEditor(in, out, "")
	defer le.Close()

	prompt := ""
	if le.IsInteractive() {
		prompt = "smoothie> "
	}
	return decodeLines(le, out, smoothie.NewParser(smoothie.WithLogger(logger)), prompt)
}

// lineReader is satisfied by LineEditor.
type lineReader interface {
	GetLine(prompt string) (string, error)
}

func decodeLines(lr lineReader, out io.Writer, parser *smoothie.Parser, prompt string) error {
	enc := json.NewEncoder(out)
	for {
		line, err := lr.GetLine(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := enc.Encode(envelope(parser.Parse(line))); err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
	}
}

func runDaemon(config *Config, logger *slog.Logger) error {
	controllerConfig, err := controller.NewConfigBuilder().
		WithStatusInterval(config.StatusInterval).
		WithLogger(logger.With("component", "controller")).
		WithDialer(controller.SerialDialer{
			PortName: config.SerialPort,
			Mode: &serial.Mode{
				BaudRate: config.BaudRate,
				Parity:   serial.NoParity,
				DataBits: 8,
				StopBits: serial.OneStopBit,
			},
		}).
		Build()
	if err != nil {
		return fmt.Errorf("controller config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := controller.New(ctx, controllerConfig)
	if err != nil {
		return err
	}

	logger.Info("Starting controller daemon", "controller", c, "port", config.SerialPort)

	server := &Server{
		Logger: logger.With("component", "server"),
		Events: c,
	}
	c.Handle(smoothie.KindStatus, server.Observe)

	eventLogger := logger.With("component", "events")
	events, cancel := c.Subscribe()
	defer cancel()
	go func() {
		for ev := range events {
			eventLogger.Debug("Event", "kind", ev.Kind(), "raw", ev.RawLine())
		}
	}()

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- c.Loop(ctx)
	}()

	httpServer := &http.Server{
		Addr:    config.BindAddress,
		Handler: server,
	}

	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	var loopErr error
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case loopErr = <-loopDone:
		logger.Error("Controller loop stopped", "error", loopErr)
	}

	logger.Info("Closing controller connection")
	if err := c.Close(); err != nil {
		logger.Error("Failed to close controller", "error", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return loopErr
}
