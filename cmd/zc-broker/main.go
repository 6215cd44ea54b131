package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/zakuro/pkg/affinity"
	"github.com/cuemby/zakuro/pkg/broker"
	"github.com/cuemby/zakuro/pkg/client"
	"github.com/cuemby/zakuro/pkg/config"
	"github.com/cuemby/zakuro/pkg/discovery"
	"github.com/cuemby/zakuro/pkg/ledger"
	"github.com/cuemby/zakuro/pkg/log"
	"github.com/cuemby/zakuro/pkg/metrics"
	"github.com/cuemby/zakuro/pkg/registry"
	"github.com/cuemby/zakuro/pkg/storage"
	"github.com/cuemby/zakuro/pkg/types"
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
	Use:   "zc-broker",
	Short: "zakuro broker - worker discovery, selection, and billing façade",
	Long: `zc-broker is the entry point for a zakuro mesh: it tracks worker
health over a peer discovery loop, picks a worker for each incoming
task under a pluggable selection strategy, and meters usage against a
per-user credit ledger.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"zc-broker version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("broker", "http://127.0.0.1:9000", "Broker address (zc://, http://)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(creditsCmd)
	rootCmd.AddCommand(workersCmd)
	rootCmd.AddCommand(priceCmd)
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
	Short: "Run the broker HTTP façade",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadBrokerConfig()

		if host, _ := cmd.Flags().GetString("host"); host != "" {
			cfg.Host = host
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Port = port
		}
		if peers, _ := cmd.Flags().GetStringSlice("peers"); len(peers) > 0 {
			cfg.Peers = peers
		}
		if localMode, _ := cmd.Flags().GetBool("local"); localMode {
			cfg.LocalMode = true
		}

		var store storage.Store
		if cfg.LocalMode || cfg.DataDir == "" {
			store = storage.NewMemStore()
			log.WithComponent("broker").Warn().Msg("running with an in-memory ledger: balances do not survive a restart")
		} else {
			boltStore, err := storage.NewBoltStore(cfg.DataDir)
			if err != nil {
				return fmt.Errorf("open ledger store: %w", err)
			}
			defer boltStore.Close()
			store = boltStore
		}

		reg := registry.New()
		led := ledger.New(store, cfg.ReservationTTL)
		aff := affinity.New(cfg.AffinityTTL)

		led.Start()
		defer led.Stop()
		aff.Start()
		defer aff.Stop()

		srv := broker.NewServer(cfg, reg, led, aff)
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if len(cfg.Peers) > 0 {
			loop := discovery.NewLoop(cfg.Peers, cfg.DiscoveryInterval, reg, srv.Events())
			go func() {
				if err := loop.Run(ctx); err != nil && err != context.Canceled {
					log.WithComponent("discovery").Error().Err(err).Msg("discovery loop exited")
				}
			}()
		} else {
			log.WithComponent("broker").Warn().Msg("no peers configured: the worker registry will stay empty")
		}

		collector := metrics.NewCollector(reg, led)
		collector.Start()
		defer collector.Stop()

		metrics.SetVersion(broker.Version)
		metrics.RegisterComponent("ledger", true, "ready")
		metrics.RegisterComponent("registry", true, "ready")

		metricsAddr := "127.0.0.1:9090"
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		metricsMux.Handle("/health", metrics.HealthHandler())
		metricsMux.Handle("/ready", metrics.ReadyHandler())
		metricsMux.Handle("/live", metrics.LivenessHandler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
				log.WithComponent("broker").Error().Err(err).Msg("metrics server error")
			}
		}()
		log.WithComponent("broker").Info().Str("addr", metricsAddr).Msg("metrics endpoint ready")

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
			log.WithComponent("broker").Info().Msg("shutting down")
		case err := <-errCh:
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("host", "", "Override ZAKURO_HOST")
	serveCmd.Flags().Int("port", 0, "Override ZAKURO_PORT")
	serveCmd.Flags().StringSlice("peers", nil, "Comma-separated worker endpoints to discover")
	serveCmd.Flags().Bool("local", false, "Force in-memory ledger, no persistence")
}

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Manage a user's credit balance",
}

var creditsAddCmd = &cobra.Command{
	Use:   "add <user> <amount>",
	Short: "Deposit credits into a user's account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		user := args[0]
		amount, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		description, _ := cmd.Flags().GetString("description")

		brokerAddr, _ := cmd.Flags().GetString("broker")
		c, err := client.New(brokerAddr, client.WithUserID(user))
		if err != nil {
			return fmt.Errorf("connect to broker: %w", err)
		}

		info, err := c.AddCredits(amount, description)
		if err != nil {
			return fmt.Errorf("add credits: %w", err)
		}
		fmt.Printf("%s balance: %.6f credits\n", info.UserID, info.Balance)
		return nil
	},
}

var creditsGetCmd = &cobra.Command{
	Use:   "get <user>",
	Short: "Show a user's current balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user := args[0]
		brokerAddr, _ := cmd.Flags().GetString("broker")
		c, err := client.New(brokerAddr, client.WithUserID(user))
		if err != nil {
			return fmt.Errorf("connect to broker: %w", err)
		}

		info, err := c.GetCredits()
		if err != nil {
			return fmt.Errorf("get credits: %w", err)
		}
		fmt.Printf("%s balance: %.6f credits (spent %.6f)\n", info.UserID, info.Balance, info.TotalSpent)
		return nil
	},
}

func init() {
	creditsAddCmd.Flags().String("description", "manual top-up", "Ledger entry description")
	creditsCmd.AddCommand(creditsAddCmd)
	creditsCmd.AddCommand(creditsGetCmd)
}

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "Inspect the broker's worker registry",
}

var workersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workers currently known to the broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		brokerAddr, _ := cmd.Flags().GetString("broker")
		c, err := client.New(brokerAddr)
		if err != nil {
			return fmt.Errorf("connect to broker: %w", err)
		}

		workers, err := c.ListWorkers()
		if err != nil {
			return fmt.Errorf("list workers: %w", err)
		}
		if len(workers) == 0 {
			fmt.Println("no workers known to this broker")
			return nil
		}
		fmt.Printf("%-24s %-10s %-12s %-8s %-10s\n", "NAME", "STATUS", "CPUS", "LATENCY", "IN-FLIGHT")
		for _, w := range workers {
			fmt.Printf("%-24s %-10s %-12s %-8.1fms %-10d\n",
				w.Name, w.Status, fmt.Sprintf("%.0f/%.0f", w.CPUsAvailable, w.CPUsTotal),
				w.LatencyEWMAMs, w.InFlight)
		}
		return nil
	},
}

func init() {
	workersCmd.AddCommand(workersListCmd)
}

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Get an advisory cost range for a task's resource requirements",
	RunE: func(cmd *cobra.Command, args []string) error {
		reqs := types.DefaultRequirements()
		if cpus, _ := cmd.Flags().GetFloat64("cpus"); cpus > 0 {
			reqs.CPUs = cpus
		}
		if memGiB, _ := cmd.Flags().GetFloat64("memory-gib"); memGiB > 0 {
			reqs.MemoryBytes = int64(memGiB * (1 << 30))
		}
		if gpus, _ := cmd.Flags().GetInt("gpus"); gpus > 0 {
			reqs.GPUs = gpus
		}
		if secs, _ := cmd.Flags().GetFloat64("duration-secs"); secs > 0 {
			reqs.EstimatedDurationSecs = secs
		}

		brokerAddr, _ := cmd.Flags().GetString("broker")
		c, err := client.New(brokerAddr)
		if err != nil {
			return fmt.Errorf("connect to broker: %w", err)
		}

		est, err := c.Price(reqs)
		if err != nil {
			return fmt.Errorf("price: %w", err)
		}
		if est.MatchingWorkers == 0 {
			fmt.Println("no workers currently match these requirements")
			return nil
		}
		fmt.Printf("%d matching workers, estimated cost %.6f - %.6f credits\n",
			est.MatchingWorkers, est.MinCost, est.MaxCost)
		return nil
	},
}

func init() {
	priceCmd.Flags().Float64("cpus", 0, "CPU cores required")
	priceCmd.Flags().Float64("memory-gib", 0, "Memory required, in GiB")
	priceCmd.Flags().Int("gpus", 0, "GPUs required")
	priceCmd.Flags().Float64("duration-secs", 0, "Estimated task duration, in seconds")
}

func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	var amount float64
	if _, err := fmt.Sscanf(s, "%f", &amount); err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive, got %v", amount)
	}
	return amount, nil
}
