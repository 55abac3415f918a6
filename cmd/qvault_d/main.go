package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lidofinance/qvault/client/api"
	"github.com/lidofinance/qvault/client/config"
	"github.com/lidofinance/qvault/client/modules/keystore"
	"github.com/lidofinance/qvault/client/services"
	"github.com/lidofinance/qvault/client/services/node"
)

const envPrefix = "QVAULT"

const (
	flagConfig                   = "config"
	flagUserName                 = "username"
	flagStateDBDSN               = "state_dbdsn"
	flagStoreDBDSN               = "key_store_dbdsn"
	flagSigners                  = "signers"
	flagMnemonic                 = "mnemonic"
	flagHTTPHost                 = "http_host"
	flagHTTPPort                 = "http_port"
	flagHTTPDebug                = "http_debug"
	flagStorageDBDSN             = "storage_dbdsn"
	flagStorageTopic             = "storage_topic"
	flagKafkaConsumerGroup       = "kafka_consumer_group"
	flagKafkaTrustStorePath      = "kafka_truststore_path"
	flagKafkaProducerCredentials = "producer_credentials"
	flagKafkaConsumerCredentials = "consumer_credentials"
	flagKafkaTimeout             = "kafka_timeout"
	flagDispatchEnabled          = "dispatch_enabled"
	flagNodeEndpoint             = "node_endpoint"
	flagChainID                  = "chain_id"
	flagGasLimit                 = "gas_limit"
	flagRequestTimeout           = "request_timeout"
)

func init() {
	rootCmd.PersistentFlags().String(flagConfig, "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String(flagUserName, "testUser", "Account name the node keys are stored under")
	rootCmd.PersistentFlags().String(flagStateDBDSN, "./qvault_client_state", "State DBDSN")
	rootCmd.PersistentFlags().String(flagStoreDBDSN, "./qvault_key_store", "Key Store DBDSN")
	rootCmd.PersistentFlags().StringSlice(flagSigners, nil, "Vault signer addresses (0x-hex), exactly three")
	rootCmd.PersistentFlags().String(flagHTTPHost, "localhost", "HTTP API host")
	rootCmd.PersistentFlags().Int(flagHTTPPort, 8080, "HTTP API port")
	rootCmd.PersistentFlags().Bool(flagHTTPDebug, false, "Debug mode for the HTTP API")
	rootCmd.PersistentFlags().String(flagStorageDBDSN, "./qvault_file_storage", "Storage DSN: kafka://brokers or a file path")
	rootCmd.PersistentFlags().String(flagStorageTopic, "actions", "Storage Topic (Kafka)")
	rootCmd.PersistentFlags().String(flagKafkaConsumerGroup, "", "Kafka consumer group")
	rootCmd.PersistentFlags().String(flagKafkaTrustStorePath, "", "Path to kafka truststore")
	rootCmd.PersistentFlags().String(flagKafkaProducerCredentials, "producer:producerpass", "Producer credentials for Kafka: username:password")
	rootCmd.PersistentFlags().String(flagKafkaConsumerCredentials, "consumer:consumerpass", "Consumer credentials for Kafka: username:password")
	rootCmd.PersistentFlags().Duration(flagKafkaTimeout, 60*time.Second, "Kafka I/O timeout")
	rootCmd.PersistentFlags().Bool(flagDispatchEnabled, false, "Submit chain transactions on reached quorums (exactly one node per vault)")
	rootCmd.PersistentFlags().String(flagNodeEndpoint, "", "JSON-RPC endpoint of the chain node")
	rootCmd.PersistentFlags().Int64(flagChainID, 1, "Chain ID for transaction signing")
	rootCmd.PersistentFlags().Uint64(flagGasLimit, 0, "Gas limit for dispatched transactions (0 for the executor default)")
	rootCmd.PersistentFlags().Duration(flagRequestTimeout, 0, "Per-request timeout for chain calls (0 for the executor default)")
}

// bindFlags maps the flat flag names onto the nested config keys, so the same
// settings can come from flags, QVAULT_* environment variables or the config
// file.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	bindings := map[string]string{
		"config":                        flagConfig,
		"username":                      flagUserName,
		"state_dbdsn":                   flagStateDBDSN,
		"key_store_dbdsn":               flagStoreDBDSN,
		"signers":                       flagSigners,
		"http_api.host":                 flagHTTPHost,
		"http_api.port":                 flagHTTPPort,
		"http_api.debug":                flagHTTPDebug,
		"storage.storage_dbdsn":         flagStorageDBDSN,
		"storage.storage_topic":         flagStorageTopic,
		"storage.kafka_consumer_group":  flagKafkaConsumerGroup,
		"storage.kafka_truststore_path": flagKafkaTrustStorePath,
		"storage.producer_credentials":  flagKafkaProducerCredentials,
		"storage.consumer_credentials":  flagKafkaConsumerCredentials,
		"storage.kafka_timeout":         flagKafkaTimeout,
		"executor.dispatch_enabled":     flagDispatchEnabled,
		"executor.node_endpoint":        flagNodeEndpoint,
		"executor.chain_id":             flagChainID,
		"executor.gas_limit":            flagGasLimit,
		"executor.request_timeout":      flagRequestTimeout,
	}

	for key, flag := range bindings {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}
	return nil
}

func genKeyPairCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gen_keys",
		Short: "generates a keypair to sign vault commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			userName, err := cmd.Flags().GetString(flagUserName)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %v", err)
			}
			keyStoreDBDSN, err := cmd.Flags().GetString(flagStoreDBDSN)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %v", err)
			}
			mnemonic, err := cmd.Flags().GetString(flagMnemonic)
			if err != nil {
				return fmt.Errorf("failed to read configuration: %v", err)
			}

			if mnemonic == "" {
				mnemonic, err = keystore.NewMnemonic()
				if err != nil {
					return fmt.Errorf("failed to generate mnemonic: %w", err)
				}
				fmt.Printf("mnemonic (write it down, it recovers the key):\n%s\n", mnemonic)
			}

			keyPair, err := keystore.KeyPairFromMnemonic(mnemonic)
			if err != nil {
				return fmt.Errorf("failed to derive keypair: %w", err)
			}

			keyStore, err := keystore.NewLevelDBKeyStore(userName, keyStoreDBDSN)
			if err != nil {
				return fmt.Errorf("failed to init key store: %w", err)
			}
			if err = keyStore.PutKeys(userName, keyPair); err != nil {
				return fmt.Errorf("failed to save keypair: %w", err)
			}
			fmt.Printf("keypair with address %s generated for account %s and saved to %s\n",
				keyPair.Address().Hex(), userName, keyStoreDBDSN)
			return nil
		},
	}
}

func startNodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "starts the vault node",
		Run: func(cmd *cobra.Command, args []string) {
			v := viper.New()
			v.SetEnvPrefix(envPrefix)
			v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
			v.AutomaticEnv()

			if err := bindFlags(v, cmd); err != nil {
				log.Fatalf("failed to read configuration: %v", err)
			}

			cfg, err := config.FromViper(v)
			if err != nil {
				log.Fatalf("failed to read configuration: %v", err)
			}

			if err := services.InitServices(cfg); err != nil {
				log.Fatalf("failed to init services: %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())

			nodeInstance, err := node.NewNode(ctx, cfg, services.App())
			if err != nil {
				log.Fatalf("failed to init node: %v", err)
			}

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigs

				log.Println("Received signal, stopping node...")
				cancel()
			}()

			go func() {
				if err := api.Run(ctx, cfg, nodeInstance); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("HTTP server error: %v", err)
				}
			}()

			nodeInstance.GetLogger().Log("starting to poll messages from append-only log...")
			if err = nodeInstance.Poll(); err != nil {
				log.Fatalf("error while handling messages: %v", err)
			}
			nodeInstance.GetLogger().Log("polling is stopped")
		},
	}
}

var rootCmd = &cobra.Command{
	Use:   "qvault_d",
	Short: "qvault node daemon implementation",
}

func main() {
	genKeys := genKeyPairCommand()
	genKeys.Flags().String(flagMnemonic, "", "BIP-39 mnemonic to restore an existing key from")

	rootCmd.AddCommand(
		startNodeCommand(),
		genKeys,
	)
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute root command: %v", err)
	}
}
