package services

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/lidofinance/qvault/client/config"
	"github.com/lidofinance/qvault/client/modules/keystore"
	"github.com/lidofinance/qvault/client/modules/logger"
	"github.com/lidofinance/qvault/client/modules/state"
	"github.com/lidofinance/qvault/client/repositories/action"
	"github.com/lidofinance/qvault/executor/eth"
	"github.com/lidofinance/qvault/executor/noop"
	"github.com/lidofinance/qvault/ledger"
	"github.com/lidofinance/qvault/storage"
	"github.com/lidofinance/qvault/storage/file_storage"
	"github.com/lidofinance/qvault/storage/kafka_storage"
)

const (
	fileStorageScheme  = "file"
	kafkaStorageScheme = "kafka"
)

// InitServices builds the node collaborators from the configuration and fills
// the package-level service provider.
func InitServices(cfg *config.Config) error {
	log := logger.NewLogger(cfg.Username)

	st, err := state.NewLevelDBState(cfg.StateDBDSN, cfg.StorageTopic())
	if err != nil {
		return fmt.Errorf("failed to init state: %w", err)
	}

	stg, err := createStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to init storage client: %w", err)
	}

	if err := stg.IgnoreMessages(
		cfg.KafkaStorageConfig.IgnoredMessages,
		cfg.KafkaStorageConfig.UseOffsetInsteadId,
	); err != nil {
		return fmt.Errorf("failed to ignore messages in storage: %w", err)
	}

	keyStore, err := keystore.NewLevelDBKeyStore(cfg.Username, cfg.KeyStoreDBDSN)
	if err != nil {
		return fmt.Errorf("failed to init key store: %w", err)
	}

	exec, err := createExecutor(cfg, keyStore, log)
	if err != nil {
		return fmt.Errorf("failed to init executor: %w", err)
	}

	repo, err := action.NewActionRepo(st, cfg.StorageTopic())
	if err != nil {
		return fmt.Errorf("failed to init action repo: %w", err)
	}

	provider.SetLogger(log)
	provider.SetState(st)
	provider.SetStorage(stg)
	provider.SetKeyStore(keyStore)
	provider.SetExecutor(exec)
	provider.SetActionRepo(repo)

	return nil
}

// createStorage picks the log backend by the DSN scheme: "kafka://brokers"
// connects to Kafka, "file://path" or a bare path appends to a local file.
func createStorage(cfg *config.Config) (storage.Storage, error) {
	storageCfg := cfg.KafkaStorageConfig
	scheme, address := parseStorageDSN(storageCfg.DBDSN)

	switch scheme {
	case kafkaStorageScheme:
		tlsConfig, err := storageCfg.KafkaTls()
		if err != nil {
			return nil, fmt.Errorf("failed to create tls config: %w", err)
		}
		producerCreds, err := storageCfg.ProducerSasl()
		if err != nil {
			return nil, fmt.Errorf("failed to parse producer credentials: %w", err)
		}
		consumerCreds, err := storageCfg.ConsumerSasl()
		if err != nil {
			return nil, fmt.Errorf("failed to parse consumer credentials: %w", err)
		}
		return kafka_storage.NewKafkaStorage(
			address,
			storageCfg.Topic,
			storageCfg.ConsumerGroup,
			tlsConfig,
			producerCreds,
			consumerCreds,
			storageCfg.Timeout,
		)
	case fileStorageScheme:
		return file_storage.NewFileStorage(address)
	default:
		return nil, fmt.Errorf("unknown storage scheme %q", scheme)
	}
}

func parseStorageDSN(dsn string) (scheme, address string) {
	parts := strings.SplitN(dsn, "://", 2)
	if len(parts) == 1 {
		return fileStorageScheme, dsn
	}
	return parts[0], parts[1]
}

// createExecutor returns the chain executor for the dispatching daemon and a
// recording no-op for the observing replicas.
func createExecutor(cfg *config.Config, ks keystore.KeyStore, log logger.Logger) (ledger.Executor, error) {
	execCfg := cfg.ExecutorConfig
	if !execCfg.DispatchEnabled {
		return noop.NewExecutor(log), nil
	}

	keyPair, err := ks.LoadKeys(cfg.Username, "")
	if err != nil {
		return nil, fmt.Errorf("failed to LoadKeys: %w", err)
	}

	opts := make([]eth.Option, 0, 2)
	if execCfg.GasLimit > 0 {
		opts = append(opts, eth.WithGasLimit(execCfg.GasLimit))
	}
	if execCfg.RequestTimeout > 0 {
		opts = append(opts, eth.WithRequestTimeout(execCfg.RequestTimeout))
	}

	return eth.Dial(execCfg.NodeEndpoint, keyPair.Priv, big.NewInt(execCfg.ChainID), opts...)
}
