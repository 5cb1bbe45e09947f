// Package config loads the gateway's process configuration from
// environment variables. Loading config, like the CLI front-end and
// HTTP server scaffolding, is treated as an external collaborator by
// the core pipeline: nothing in internal/{rpc,normalizer,walker,
// poller,publisher,broker} imports this package directly, they are
// constructed from plain Go values this package produces.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"

	"chaingateway/internal/apperrors"
)

// Mode selects which network endpoints the gateway talks to.
type Mode string

const (
	ModeProduction Mode = "production"
	ModeStaging    Mode = "staging"
)

// EthereumEndpoint returns the Infura URL for this mode, per spec §6.
func (m Mode) EthereumEndpoint(infuraKey string) string {
	if m == ModeProduction {
		return "https://mainnet.infura.io/" + infuraKey
	}
	return "https://kovan.infura.io/" + infuraKey
}

// BitcoinEndpoint returns the blockchain.info base URL for this mode.
func (m Mode) BitcoinEndpoint() string {
	if m == ModeProduction {
		return "https://blockchain.info"
	}
	return "https://testnet.blockchain.info"
}

// PollerConfig configures one currency's Poller.
type PollerConfig struct {
	TickInterval         time.Duration `envconfig:"TICK_INTERVAL" default:"10s"`
	ConfirmationDepth    uint64        `envconfig:"CONFIRMATION_DEPTH" default:"3"`
	StartBlock           uint64        `envconfig:"START_BLOCK" default:"0"`
	MaxBatchSize         uint64        `envconfig:"MAX_BATCH_SIZE" default:"100"`
	ConcurrentFetchLimit int           `envconfig:"CONCURRENT_FETCH_LIMIT" default:"8"`
}

// BrokerConfig configures the AMQP broker pool.
type BrokerConfig struct {
	URL               string        `envconfig:"URL" required:"true"`
	PoolSize          int           `envconfig:"POOL_SIZE" default:"10"`
	ConnectionTimeout time.Duration `envconfig:"CONNECTION_TIMEOUT" default:"5s"`
	AcquireTimeout    time.Duration `envconfig:"ACQUIRE_TIMEOUT" default:"5s"`
	Heartbeat         time.Duration `envconfig:"HEARTBEAT" default:"10s"`
}

// Config is the complete process configuration, per spec §6's
// environment variable list.
type Config struct {
	Mode               Mode          `envconfig:"MODE" default:"staging"`
	InfuraKey          string        `envconfig:"INFURA_KEY" required:"true"`
	StqContractAddress string        `envconfig:"STQ_CONTRACT_ADDRESS" required:"true"`
	StqTransferTopic   string        `envconfig:"STQ_TRANSFER_TOPIC" required:"true"`
	BlockcypherToken   string        `envconfig:"BLOCKCYPHER_TOKEN"`
	HTTPAddr           string        `envconfig:"HTTP_ADDR" default:":8000"`
	RPCTimeout         time.Duration `envconfig:"RPC_TIMEOUT" default:"10s"`
	AuditDBPath        string        `envconfig:"AUDIT_DB_PATH" default:"gateway-audit.db"`

	Broker BrokerConfig `envconfig:"BROKER"`

	// Bitcoin has no poller of its own (SPEC_FULL §6): this gateway's
	// BTC surface is submission-only, so there's no BTC tick config.
	ETH PollerConfig `envconfig:"ETH"`
	STQ PollerConfig `envconfig:"STQ"`
}

// Load reads the configuration from the environment. The only fatal
// startup failure this package can produce, per spec §7, is a
// malformed or missing required environment variable.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("GATEWAY", &cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "loading configuration")
	}
	if cfg.Mode != ModeProduction && cfg.Mode != ModeStaging {
		return nil, apperrors.Newf(apperrors.KindInternal, "invalid MODE %q", cfg.Mode)
	}
	return &cfg, nil
}
