package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/relay/internal/auth"
	"github.com/rickgao/relay/internal/codec"
	"github.com/rickgao/relay/internal/config"
	"github.com/rickgao/relay/internal/connection"
	"github.com/rickgao/relay/internal/database"
	"github.com/rickgao/relay/internal/events"
	"github.com/rickgao/relay/internal/metrics"
	"github.com/rickgao/relay/internal/model"
	"github.com/rickgao/relay/internal/version"
	"github.com/rickgao/relay/internal/writer"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to the endpoint and bridge stdin/stdout",
	Long: `Connect to the configured endpoint. Each line read from stdin is sent as
a message; each inbound message is printed to stdout as a JSON line.
Values in the config file may reference environment variables (${VAR}),
which are also read from .env and .env.local.`,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().String("config", "configs/relay.yaml", "path to config file")
	connectCmd.Flags().String("url", "", "endpoint URL (overrides endpoint.url)")
	connectCmd.Flags().String("event", "", "event name for sent messages (overrides endpoint.event_name)")
}

func runConnect(cmd *cobra.Command, _ []string) error {
	// load .env files before expanding ${VAR} in the config
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("starting relay",
		"version", version.Version,
		"commit", version.Commit,
		"endpoint", cfg.Endpoint.URL,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var signer connection.Signer
	if cfg.Endpoint.KeyID != "" {
		creds, err := auth.LoadCredentials(cfg.Endpoint.KeyID, cfg.Endpoint.PrivateKeyPath)
		if err != nil {
			return fmt.Errorf("load credentials: %w", err)
		}
		signer = creds
	}

	mt := metrics.New()
	transport := connection.NewWebSocketTransport(clientConfig(cfg), signer, logger.With("component", "transport"))
	mgr := connection.NewManager(managerConfig(cfg), transport, logger.With("component", "manager"),
		connection.WithMetrics(mt),
	)
	defer mgr.Close()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Journal.Enabled {
		journal, err := startJournal(gctx, cfg, mgr.Subscribe(), logger.With("component", "journal"))
		if err != nil {
			return err
		}
		defer journal()
	}

	output := mgr.Subscribe()
	g.Go(func() error {
		return printEvents(gctx, output, cmd.OutOrStdout(), logger)
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: newHTTPHandler(mgr, mt, cfg.Metrics.Path),
	}
	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.Metrics.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := mgr.Connect(gctx); err != nil {
		logger.Warn("initial connect failed, retrying in background", "error", err)
	}

	// Reading stdin cannot be interrupted, so it stays outside the group
	go sendLines(gctx, cmd.InOrStdin(), mgr, logger)

	err = g.Wait()
	logger.Info("relay stopped")
	return err
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.RelayConfig, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}

	if url, _ := cmd.Flags().GetString("url"); url != "" {
		cfg.Endpoint.URL = url
	}
	if event, _ := cmd.Flags().GetString("event"); event != "" {
		cfg.Endpoint.EventName = event
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the slog handler selected by cfg.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

func clientConfig(cfg *config.RelayConfig) connection.ClientConfig {
	return connection.ClientConfig{
		Header:           cfg.Endpoint.Headers,
		HandshakeTimeout: cfg.Connection.HandshakeTimeout,
		PingInterval:     cfg.Connection.PingInterval,
		ReadTimeout:      cfg.Connection.ReadTimeout,
		WriteTimeout:     cfg.Connection.WriteTimeout,
		ReadLimit:        cfg.Connection.ReadLimit,
	}
}

func managerConfig(cfg *config.RelayConfig) connection.ManagerConfig {
	return connection.ManagerConfig{
		Endpoint:   cfg.Endpoint.URL,
		EventName:  cfg.Endpoint.EventName,
		MaxRetries: cfg.Connection.MaxRetries,
		BaseDelay:  cfg.Connection.BaseDelay,
	}
}

// startJournal connects to the database and starts the event writer. The
// returned func stops the writer and closes the pool.
func startJournal(ctx context.Context, cfg *config.RelayConfig, sub *events.Subscription[model.Event], logger *slog.Logger) (func(), error) {
	logger.Info("connecting to database",
		"host", cfg.Journal.Database.Host,
		"port", cfg.Journal.Database.Port,
		"database", cfg.Journal.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Journal.Database)
	if err != nil {
		return nil, fmt.Errorf("connect journal database: %w", err)
	}

	w := writer.NewEventWriter(writer.WriterConfig{
		BatchSize:     cfg.Journal.BatchSize,
		FlushInterval: cfg.Journal.FlushInterval,
		Source:        cfg.Endpoint.URL,
	}, sub, pool, logger)

	if err := w.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	w.Start(ctx)

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := w.Stop(stopCtx); err != nil {
			logger.Error("final journal flush failed", "error", err)
		}
		pool.Close()
	}, nil
}

// printEvents writes each received message to out as a JSON line and logs
// failures. It returns an error once the manager gives up reconnecting.
func printEvents(ctx context.Context, sub *events.Subscription[model.Event], out io.Writer, logger *slog.Logger) error {
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}

			switch ev.Kind {
			case model.EventReceived:
				line, err := codec.Encode(ev.Message)
				if err != nil {
					logger.Warn("cannot print message", "error", err)
					continue
				}
				fmt.Fprintln(out, line)
			case model.EventFailed:
				if errors.Is(ev.Err, model.ErrMaxRetriesReached) {
					return fmt.Errorf("connection lost: %w", ev.Err)
				}
				logger.Warn("connection event", "error", ev.Err)
			}
		}
	}
}

type messageSender interface {
	SendMessage(ctx context.Context, payload string) error
}

// sendLines sends each non-empty line of r as a message until r is
// exhausted or ctx is cancelled.
func sendLines(ctx context.Context, r io.Reader, sender messageSender, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := sender.SendMessage(ctx, line); err != nil {
			logger.Warn("send failed", "error", err)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		logger.Warn("reading input failed", "error", err)
	}
}
