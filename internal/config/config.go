// Package config holds the Warden runtime configuration: defaults,
// optional YAML file, .env file, and environment variable overrides,
// applied in that order.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/casthq/warden/pkg/errors"
)

// Network identifies the target cluster. Mainnet is forbidden.
type Network string

// Supported networks.
const (
	NetworkDevnet  Network = "devnet"
	NetworkTestnet Network = "testnet"
	NetworkLocal   Network = "localnet"
	NetworkMainnet Network = "mainnet-beta"
)

// IsValid returns true if the network is a known cluster name.
func (n Network) IsValid() bool {
	switch n {
	case NetworkDevnet, NetworkTestnet, NetworkLocal, NetworkMainnet:
		return true
	default:
		return false
	}
}

// AirdropSupported returns true if the cluster serves faucet airdrops.
func (n Network) AirdropSupported() bool {
	return n == NetworkDevnet || n == NetworkTestnet || n == NetworkLocal
}

// Config is the full runtime configuration.
type Config struct {
	// Port is the HTTP API listen port.
	Port int `yaml:"port"`

	// WSPort is the WebSocket event-push listen port.
	WSPort int `yaml:"ws_port"`

	// RPCURL is the chain RPC endpoint.
	RPCURL string `yaml:"rpc_url"`

	// Network is the target cluster. Mainnet fails validation.
	Network Network `yaml:"network"`

	// KeyEncryptionSecret is the vault-wide passphrase for at-rest key
	// encryption. Minimum 16 characters; must differ from the default
	// sentinel in production.
	KeyEncryptionSecret string `yaml:"key_encryption_secret"`

	// AdminKey authenticates admin-scoped HTTP endpoints.
	AdminKey string `yaml:"admin_key"`

	// MaxAgents caps built-in and external agent populations (each).
	MaxAgents int `yaml:"max_agents"`

	// AgentLoopIntervalMs is the default built-in agent cycle cadence.
	AgentLoopIntervalMs int `yaml:"agent_loop_interval_ms"`

	// MaxRetries bounds chain client send retries.
	MaxRetries int `yaml:"max_retries"`

	// ConfirmationTimeoutMs bounds transaction confirmation waits.
	ConfirmationTimeoutMs int `yaml:"confirmation_timeout_ms"`

	// IntentRateLimitPerMinute caps external intents per agent per minute.
	IntentRateLimitPerMinute int `yaml:"intent_rate_limit_per_minute"`

	// MaxTransactions bounds the in-memory transaction ledger.
	MaxTransactions int `yaml:"max_transactions"`

	// MaxEventHistory bounds the event bus history ring.
	MaxEventHistory int `yaml:"max_event_history"`

	// MaxIntentHistory bounds the shared intent-history ring.
	MaxIntentHistory int `yaml:"max_intent_history"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Env is the deployment environment ("production" tightens checks).
	Env string `yaml:"env"`
}

// Load builds the configuration: defaults, then the optional YAML file at
// path (empty path skips the file), then .env and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- config path is operator-supplied
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.Wrap(err, "reading config file %s", path)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Validation("parsing config file %s: %v", path, err)
		}
	}

	LoadDotEnv()
	ApplyEnvironment(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration, failing closed on mainnet and on
// weak or default production secrets.
func (c *Config) Validate() error {
	if !c.Network.IsValid() {
		return errors.Validation("unknown network %q", c.Network)
	}
	if c.Network == NetworkMainnet {
		return errors.Validation("mainnet operation is forbidden; set NETWORK to devnet, testnet, or localnet")
	}
	if len(c.KeyEncryptionSecret) > 0 && len(c.KeyEncryptionSecret) < minSecretLength {
		return errors.Validation("KEY_ENCRYPTION_SECRET must be at least %d characters", minSecretLength)
	}
	if c.IsProduction() && c.KeyEncryptionSecret == DefaultKeyEncryptionSecret {
		return errors.Validation("KEY_ENCRYPTION_SECRET must be changed from the default in production")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Validation("invalid port %d", c.Port)
	}
	if c.WSPort <= 0 || c.WSPort > 65535 {
		return errors.Validation("invalid ws port %d", c.WSPort)
	}
	if c.MaxAgents < 1 {
		return errors.Validation("MAX_AGENTS must be at least 1")
	}
	if c.MaxRetries < 0 {
		return errors.Validation("MAX_RETRIES must not be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return errors.Validation("LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	return nil
}

// IsProduction reports whether the process runs with production checks.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// String renders a redacted single-line summary suitable for startup logs.
func (c *Config) String() string {
	return fmt.Sprintf("port=%d ws_port=%d network=%s rpc=%s max_agents=%d log=%s",
		c.Port, c.WSPort, c.Network, c.RPCURL, c.MaxAgents, c.LogLevel)
}
