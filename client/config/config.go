package config

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/spf13/viper"

	"github.com/lidofinance/qvault/storage/kafka_storage"
)

type HttpApiConfig struct {
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`
	Debug bool   `mapstructure:"debug"`
}

func (c *HttpApiConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaStorageConfig struct {
	DBDSN               string        `mapstructure:"storage_dbdsn"`
	Topic               string        `mapstructure:"storage_topic"`
	ConsumerGroup       string        `mapstructure:"kafka_consumer_group"`
	TrustStorePath      string        `mapstructure:"kafka_truststore_path"`
	ProducerCredentials string        `mapstructure:"producer_credentials"`
	ConsumerCredentials string        `mapstructure:"consumer_credentials"`
	Timeout             time.Duration `mapstructure:"kafka_timeout"`

	IgnoredMessages    []string `mapstructure:"ignored_messages"`
	UseOffsetInsteadId bool     `mapstructure:"use_offset_instead_id"`
}

// ExecutorConfig selects how the node reacts to a reached quorum. Exactly one
// daemon per vault should run with dispatch enabled; the others acknowledge
// executions without submitting transactions of their own.
type ExecutorConfig struct {
	DispatchEnabled bool          `mapstructure:"dispatch_enabled"`
	NodeEndpoint    string        `mapstructure:"node_endpoint"`
	ChainID         int64         `mapstructure:"chain_id"`
	GasLimit        uint64        `mapstructure:"gas_limit"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

type Config struct {
	Username      string `mapstructure:"username"`
	StateDBDSN    string `mapstructure:"state_dbdsn"`
	KeyStoreDBDSN string `mapstructure:"key_store_dbdsn"`

	// Signers holds the 0x-hex addresses of the three vault signers. The
	// ledger re-validates the set on construction.
	Signers []string `mapstructure:"signers"`

	HttpApiConfig      *HttpApiConfig      `mapstructure:"http_api"`
	KafkaStorageConfig *KafkaStorageConfig `mapstructure:"storage"`
	ExecutorConfig     *ExecutorConfig     `mapstructure:"executor"`
}

// FromViper assembles the node configuration from every source bound to v:
// the config file, QVAULT_* environment variables and command line flags.
func FromViper(v *viper.Viper) (*Config, error) {
	if configFile := v.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.HttpApiConfig == nil {
		cfg.HttpApiConfig = &HttpApiConfig{}
	}
	if cfg.KafkaStorageConfig == nil {
		cfg.KafkaStorageConfig = &KafkaStorageConfig{}
	}
	if cfg.ExecutorConfig == nil {
		cfg.ExecutorConfig = &ExecutorConfig{}
	}

	return cfg, nil
}

// SignerAddresses parses the configured signer set into addresses.
func (c *Config) SignerAddresses() ([]common.Address, error) {
	signers := make([]common.Address, 0, len(c.Signers))
	for _, addr := range c.Signers {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid signer address %q", addr)
		}
		signers = append(signers, common.HexToAddress(addr))
	}
	return signers, nil
}

func (c *Config) StorageTopic() string {
	if c.KafkaStorageConfig == nil {
		return ""
	}
	return c.KafkaStorageConfig.Topic
}

// KafkaTls reads the configured trust store into a TLS config for broker
// connections.
func (c *KafkaStorageConfig) KafkaTls() (*tls.Config, error) {
	return kafka_storage.GetTLSConfig(c.TrustStorePath)
}

func (c *KafkaStorageConfig) ProducerSasl() (*plain.Mechanism, error) {
	return parseKafkaSaslPlain(c.ProducerCredentials)
}

func (c *KafkaStorageConfig) ConsumerSasl() (*plain.Mechanism, error) {
	return parseKafkaSaslPlain(c.ConsumerCredentials)
}

func parseKafkaSaslPlain(creds string) (*plain.Mechanism, error) {
	credsSplit := strings.SplitN(creds, ":", 2)
	if len(credsSplit) == 1 {
		return nil, fmt.Errorf("failed to parse credentials")
	}
	return &plain.Mechanism{
		Username: credsSplit[0],
		Password: credsSplit[1],
	}, nil
}
