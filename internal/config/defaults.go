package config

// DefaultKeyEncryptionSecret is the development-only sentinel passphrase.
// Production startup fails unless it is replaced.
const DefaultKeyEncryptionSecret = "warden-dev-secret-do-not-use"

// minSecretLength is the minimum length of the vault passphrase.
const minSecretLength = 16

// DefaultRPCURL is the default devnet RPC endpoint.
const DefaultRPCURL = "https://api.devnet.solana.com"

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Port:                     3001,
		WSPort:                   3002,
		RPCURL:                   DefaultRPCURL,
		Network:                  NetworkDevnet,
		KeyEncryptionSecret:      DefaultKeyEncryptionSecret,
		MaxAgents:                10,
		AgentLoopIntervalMs:      30_000,
		MaxRetries:               3,
		ConfirmationTimeoutMs:    60_000,
		IntentRateLimitPerMinute: 30,
		MaxTransactions:          10_000,
		MaxEventHistory:          1_000,
		MaxIntentHistory:         5_000,
		LogLevel:                 "info",
		Env:                      "development",
	}
}
