package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/zakuro/pkg/config"
	"github.com/cuemby/zakuro/pkg/log"
	"github.com/cuemby/zakuro/pkg/metrics"
	zworker "github.com/cuemby/zakuro/pkg/worker"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "zc-worker",
	Short: "zakuro worker - executes opaque task envelopes for a broker",
	Long: `zc-worker runs a single worker node: an HTTP server that advertises
its resources and pricing to any broker that probes it, and executes
execute/create_instance/call_method envelopes on a fixed-size pool.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"zc-worker version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the worker HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadWorkerConfig()

		if name, _ := cmd.Flags().GetString("name"); name != "" {
			cfg.Name = name
		}
		if host, _ := cmd.Flags().GetString("host"); host != "" {
			cfg.Host = host
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Port = port
		}
		if poolSize, _ := cmd.Flags().GetInt("pool-size"); poolSize != 0 {
			cfg.PoolSize = poolSize
		}
		noBuiltins, _ := cmd.Flags().GetBool("no-builtins")

		reg := zworker.NewRegistry()
		if !noBuiltins {
			zworker.RegisterBuiltins(reg)
		}

		srv := zworker.NewServer(cfg, reg)

		metrics.SetVersion(zworker.Version)
		metrics.RegisterComponent("pool", true, "ready")

		metricsAddr := "127.0.0.1:9091"
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		metricsMux.Handle("/health", metrics.HealthHandler())
		metricsMux.Handle("/ready", metrics.ReadyHandler())
		metricsMux.Handle("/live", metrics.LivenessHandler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
				log.WithComponent("worker").Error().Err(err).Msg("metrics server error")
			}
		}()
		log.WithComponent("worker").Info().Str("addr", metricsAddr).Msg("metrics endpoint ready")

		errCh := make(chan error, 1)
		addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		go func() {
			if err := srv.Run(addr); err != nil {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			log.WithComponent("worker").Info().Msg("shutting down")
		case err := <-errCh:
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("name", "", "Override ZAKURO_WORKER_NAME")
	serveCmd.Flags().String("host", "", "Override ZAKURO_HOST")
	serveCmd.Flags().Int("port", 0, "Override ZAKURO_PORT")
	serveCmd.Flags().Int("pool-size", 0, "Override ZAKURO_POOL_SIZE")
	serveCmd.Flags().Bool("no-builtins", false, "Start with an empty registry instead of the builtin demo funcs")
}
