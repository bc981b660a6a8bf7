// Package main provides the fakedetect server binary. It serves
// explanations of Fake/Original product-image verdicts over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fakedetect/internal/app"
	"fakedetect/internal/config"
	"fakedetect/internal/metrics"
	"fakedetect/internal/server"
	"fakedetect/internal/version"
	"fakedetect/pkg/logger"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fakedetect",
		Short: "Explainability service for counterfeit product detection",
		Long: `fakedetect explains why a product image was classified as Fake or Original.

Each explanation carries a Grad-CAM heatmap, six visual quality scores,
human-readable reasons and a similarity report against a reference profile.

Examples:
  fakedetect                                   # Serve with defaults (synthetic classifier)
  fakedetect serve --config fakedetect.yaml    # Serve with a config file
  fakedetect serve --classifier http://ml:9000 # Use a remote classifier`,
		RunE:         runServe,
		SilenceUsage: true,
	}
	addServeFlags(rootCmd)

	serveCmd := &cobra.Command{
		Use:          "serve",
		Short:        "Start the HTTP API",
		RunE:         runServe,
		SilenceUsage: true,
	}
	addServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fakedetect %s\n", version.Version)
			fmt.Printf("  commit: %s\n", version.GitCommit)
			fmt.Printf("  built:  %s\n", version.BuildTime)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "config file path")
	cmd.Flags().String("env-file", ".env", "dotenv file loaded before the environment")
	cmd.Flags().BoolP("verbose", "v", false, "verbose logging")
	cmd.Flags().String("host", "", "server host (overrides config)")
	cmd.Flags().Int("port", 0, "server port (overrides config)")
	cmd.Flags().String("classifier", "", "classifier URL, disables synthetic mode (overrides config)")
	cmd.Flags().String("profiles", "", "reference profiles YAML (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override from flags
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if url, _ := cmd.Flags().GetString("classifier"); url != "" {
		cfg.Classifier.URL = url
		cfg.Classifier.Synthetic = false
	}
	if path, _ := cmd.Flags().GetString("profiles"); path != "" {
		cfg.Reference.ProfilesFile = path
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info("Starting fakedetect",
		"version", version.Version,
		"address", cfg.Address(),
		"synthetic", cfg.Classifier.Synthetic,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.WithError(err).Warn("failed to release resources")
		}
	}()

	if check := a.HealthCheck(); check != nil {
		if err := check(ctx); err != nil {
			// the classifier may come up after us
			log.WithError(err).Warn("classifier not reachable at startup", "url", cfg.Classifier.URL)
		}
	}
	a.WatchProfiles()

	metrics.Init()

	srv := server.New(a.Explainer, a.Reasons, server.Options{
		MaxUploadBytes: cfg.MaxUploadBytes(),
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Classifier.Timeout + cfg.Server.WriteTimeout/2,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		HealthCheck:    a.HealthCheck(),
	}, log)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(cfg.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown error")
	}
	log.Info("Server stopped")
	return nil
}
