package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/casthq/warden/internal/backup"
	"github.com/casthq/warden/internal/byoa"
	"github.com/casthq/warden/internal/chain"
	"github.com/casthq/warden/internal/config"
	"github.com/casthq/warden/internal/events"
	"github.com/casthq/warden/internal/httpapi"
	"github.com/casthq/warden/internal/intent"
	"github.com/casthq/warden/internal/logging"
	"github.com/casthq/warden/internal/metrics"
	"github.com/casthq/warden/internal/orchestrator"
	"github.com/casthq/warden/internal/strategy"
	"github.com/casthq/warden/internal/vault"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the platform",
		RunE: func(*cobra.Command, []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	return cmd
}

// runServe is the composition root. Components are constructed in
// dependency order and torn down in reverse on SIGINT/SIGTERM.
func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	passphrase, err := resolvePassphrase(cfg)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log.Info("starting warden", zap.String("config", cfg.String()))

	bus := events.NewBus(0, cfg.MaxEventHistory, logging.Component(log, "events"))
	strategies := strategy.NewRegistry()
	chainClient := chain.NewRPCClient(cfg, logging.Component(log, "chain"))

	v := vault.New(passphrase, logging.Component(log, "vault"))
	defer v.Close()

	history := intent.NewHistoryStore(cfg.MaxIntentHistory)

	orch := orchestrator.New(v, chainClient, strategies, bus, history, orchestrator.Options{
		MaxAgents:           cfg.MaxAgents,
		MaxTransactions:     cfg.MaxTransactions,
		ConfirmationTimeout: time.Duration(cfg.ConfirmationTimeoutMs) * time.Millisecond,
	}, logging.Component(log, "orchestrator"))
	defer orch.Shutdown()

	agents := byoa.NewRegistry(cfg.MaxAgents, logging.Component(log, "byoa"))
	binder := byoa.NewBinder(agents, v, logging.Component(log, "byoa"))
	router := byoa.NewRouter(agents, v, chainClient, bus, history, byoa.RouterOptions{
		RateLimitPerMinute: cfg.IntentRateLimitPerMinute,
		Notifier:           byoa.NewHTTPNotifier(logging.Component(log, "byoa")),
	}, logging.Component(log, "byoa"))

	m := metrics.New()
	m.Observe(bus)
	defer m.Close()

	exporter, err := backup.NewExporter(v, passphrase, logging.Component(log, "backup"))
	if err != nil {
		return err
	}

	srv := httpapi.New(httpapi.Deps{
		Orchestrator: orch,
		Vault:        v,
		Chain:        chainClient,
		Strategies:   strategies,
		Agents:       agents,
		Binder:       binder,
		Router:       router,
		Bus:          bus,
		History:      history,
		Metrics:      m.Handler(),
		Backup:       exporter,
	}, httpapi.Options{
		Port:                   cfg.Port,
		WSPort:                 cfg.WSPort,
		AdminKey:               cfg.AdminKey,
		Network:                cfg.Network,
		DefaultCycleIntervalMs: cfg.AgentLoopIntervalMs,
	}, logging.Component(log, "http"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = srv.Run(ctx)
	log.Info("warden stopped")
	return err
}

// resolvePassphrase returns the vault passphrase. When the environment
// does not provide one and stdin is a terminal, the operator is
// prompted; the configured (possibly default) value is the fallback.
func resolvePassphrase(cfg *config.Config) (string, error) {
	if os.Getenv("KEY_ENCRYPTION_SECRET") != "" {
		return cfg.KeyEncryptionSecret, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return cfg.KeyEncryptionSecret, nil
	}

	fmt.Fprint(os.Stderr, "Vault passphrase (empty keeps the configured value): ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if len(raw) == 0 {
		return cfg.KeyEncryptionSecret, nil
	}
	if len(raw) < 16 {
		return "", fmt.Errorf("passphrase must be at least 16 characters")
	}
	return string(raw), nil
}
