package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvPort                  = "PORT"
	EnvWSPort                = "WS_PORT"
	EnvRPCURL                = "RPC_URL"
	EnvNetwork               = "NETWORK"
	EnvKeyEncryptionSecret   = "KEY_ENCRYPTION_SECRET" // #nosec G101 -- const name, not a credential
	EnvAdminKey              = "ADMIN_KEY"             // #nosec G101 -- const name, not a credential
	EnvMaxAgents             = "MAX_AGENTS"
	EnvAgentLoopIntervalMs   = "AGENT_LOOP_INTERVAL_MS"
	EnvMaxRetries            = "MAX_RETRIES"
	EnvConfirmationTimeoutMs = "CONFIRMATION_TIMEOUT_MS"
	EnvLogLevel              = "LOG_LEVEL"
	EnvNodeEnv               = "NODE_ENV"
)

// LoadDotEnv loads a .env file from the working directory if present.
// Missing files are not an error; explicit environment always wins.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ApplyEnvironment applies environment variable overrides to the configuration.
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvPort); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}

	if v := os.Getenv(EnvWSPort); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WSPort = n
		}
	}

	if v := os.Getenv(EnvRPCURL); v != "" {
		cfg.RPCURL = v
	}

	if v := os.Getenv(EnvNetwork); v != "" {
		cfg.Network = Network(v)
	}

	if v := os.Getenv(EnvKeyEncryptionSecret); v != "" {
		cfg.KeyEncryptionSecret = v
	}

	if v := os.Getenv(EnvAdminKey); v != "" {
		cfg.AdminKey = v
	}

	if v := os.Getenv(EnvMaxAgents); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxAgents = n
		}
	}

	if v := os.Getenv(EnvAgentLoopIntervalMs); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AgentLoopIntervalMs = n
		}
	}

	if v := os.Getenv(EnvMaxRetries); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxRetries = n
		}
	}

	if v := os.Getenv(EnvConfirmationTimeoutMs); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ConfirmationTimeoutMs = n
		}
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv(EnvNodeEnv); v != "" {
		cfg.Env = v
	}
}
