package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"salarydash/internal/api"
	"salarydash/internal/config"
	"salarydash/internal/engine"
	"salarydash/internal/logging"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP API",
	Long:  "Starts the HTTP API immediately and loads the dataset in the background. Data routes answer 503 until the load completes.",
	RunE:  runServe,
}

var (
	serveConfigPath string
	servePort       int
	serveData       string
	serveRole       string
	serveRateLimit  float64
	serveLogLevel   string
)

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to a JSON config file")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on")
	serveCmd.Flags().StringVarP(&serveData, "data", "d", "", "Dataset URL or local CSV path")
	serveCmd.Flags().StringVar(&serveRole, "role", "", "Role the country map is restricted to")
	serveCmd.Flags().Float64Var(&serveRateLimit, "rate-limit", 0, "Requests per second per client (0 disables)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "Log level: debug, info, warn, error, off")

	rootCmd.AddCommand(serveCmd)
}

// applyServeFlags overrides cfg with the flags set on the command line.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = servePort
	}
	if flags.Changed("data") {
		cfg.DataSource = serveData
	}
	if flags.Changed("role") {
		cfg.FocusRole = serveRole
	}
	if flags.Changed("rate-limit") {
		cfg.RateLimit = serveRateLimit
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = serveLogLevel
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return err
	}
	applyServeFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New("dashboard", cfg.LogLevel, os.Stdout)

	// The API is live before the data is: handlers answer 503 until SetData.
	e, h := api.NewServer(cfg, nil, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t0 := time.Now()
		store, err := engine.Load(ctx, cfg.DataSource, &engine.FetchOptions{Timeout: cfg.FetchTimeout()}, logger)
		if err != nil {
			return err
		}
		h.SetData(store)
		logger.Infof("dataset ready in %v, API is fully ready", time.Since(t0))
		return nil
	})

	g.Go(func() error {
		logger.Infof("server ready on port %d (data loading in background)", cfg.Port)
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
