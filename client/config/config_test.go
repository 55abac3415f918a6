package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/lidofinance/qvault/client/config"
)

const testConfigYaml = `
username: node0
state_dbdsn: /tmp/qvault_state
key_store_dbdsn: /tmp/qvault_key_store
signers:
  - "0x1111111111111111111111111111111111111111"
  - "0x2222222222222222222222222222222222222222"
  - "0x3333333333333333333333333333333333333333"
http_api:
  host: localhost
  port: 8080
  debug: true
storage:
  storage_dbdsn: /tmp/qvault_file_storage
  storage_topic: actions
  kafka_timeout: 15s
executor:
  dispatch_enabled: true
  node_endpoint: http://localhost:8545
  chain_id: 5
  gas_limit: 100000
  request_timeout: 10s
`

func TestFromViper(t *testing.T) {
	var (
		req        = require.New(t)
		configPath = filepath.Join(t.TempDir(), "config.yaml")
	)
	req.NoError(os.WriteFile(configPath, []byte(testConfigYaml), 0o644))

	v := viper.New()
	v.Set("config", configPath)

	cfg, err := config.FromViper(v)
	req.NoError(err)

	req.Equal("node0", cfg.Username)
	req.Equal("/tmp/qvault_state", cfg.StateDBDSN)
	req.Equal("/tmp/qvault_key_store", cfg.KeyStoreDBDSN)
	req.Len(cfg.Signers, 3)

	req.Equal("localhost:8080", cfg.HttpApiConfig.ListenAddr())
	req.True(cfg.HttpApiConfig.Debug)

	req.Equal("actions", cfg.StorageTopic())
	req.Equal(15*time.Second, cfg.KafkaStorageConfig.Timeout)

	req.True(cfg.ExecutorConfig.DispatchEnabled)
	req.Equal("http://localhost:8545", cfg.ExecutorConfig.NodeEndpoint)
	req.Equal(int64(5), cfg.ExecutorConfig.ChainID)
	req.Equal(uint64(100000), cfg.ExecutorConfig.GasLimit)
	req.Equal(10*time.Second, cfg.ExecutorConfig.RequestTimeout)
}

func TestFromViper_EmptySources(t *testing.T) {
	req := require.New(t)

	cfg, err := config.FromViper(viper.New())
	req.NoError(err)

	// Sub-configs are always usable, even when nothing configured them.
	req.NotNil(cfg.HttpApiConfig)
	req.NotNil(cfg.KafkaStorageConfig)
	req.NotNil(cfg.ExecutorConfig)
	req.Empty(cfg.StorageTopic())
}

func TestConfig_SignerAddresses(t *testing.T) {
	req := require.New(t)

	cfg := &config.Config{
		Signers: []string{
			"0x1111111111111111111111111111111111111111",
			"0x2222222222222222222222222222222222222222",
			"0x3333333333333333333333333333333333333333",
		},
	}
	signers, err := cfg.SignerAddresses()
	req.NoError(err)
	req.Equal([]common.Address{
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
		common.HexToAddress("0x3333333333333333333333333333333333333333"),
	}, signers)

	cfg.Signers = append(cfg.Signers, "not-an-address")
	_, err = cfg.SignerAddresses()
	req.Error(err)
	req.Contains(err.Error(), "invalid signer address")
}

func TestKafkaStorageConfig_Sasl(t *testing.T) {
	req := require.New(t)

	ksc := &config.KafkaStorageConfig{
		ProducerCredentials: "producer:producerpass",
		ConsumerCredentials: "consumerpass",
	}

	producer, err := ksc.ProducerSasl()
	req.NoError(err)
	req.Equal("producer", producer.Username)
	req.Equal("producerpass", producer.Password)

	_, err = ksc.ConsumerSasl()
	req.Error(err)
	req.Contains(err.Error(), "failed to parse credentials")
}
