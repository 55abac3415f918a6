// Package eth dispatches approved actions as signed Ethereum transactions.
package eth

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/lidofinance/qvault/ledger"
)

const (
	defaultGasLimit       = uint64(300000)
	defaultRequestTimeout = 10 * time.Second
)

var _ ledger.Executor = (*Executor)(nil)

// ChainClient is the ethclient surface the executor needs. *ethclient.Client
// satisfies it.
type ChainClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

type Executor struct {
	client   ChainClient
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	gasLimit uint64
	timeout  time.Duration
}

type Option func(*Executor)

func WithGasLimit(gasLimit uint64) Option {
	return func(e *Executor) { e.gasLimit = gasLimit }
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(e *Executor) { e.timeout = timeout }
}

// NewExecutor builds an executor that signs with key and submits through
// client. chainID selects the EIP-155 replay protection domain.
func NewExecutor(client ChainClient, key *ecdsa.PrivateKey, chainID *big.Int, opts ...Option) (*Executor, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client is required")
	}
	if key == nil {
		return nil, fmt.Errorf("relay key is required")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("positive chain id is required")
	}

	e := &Executor{
		client:   client,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  new(big.Int).Set(chainID),
		gasLimit: defaultGasLimit,
		timeout:  defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Dial connects to an Ethereum JSON-RPC endpoint and builds an executor on
// top of the connection.
func Dial(endpoint string, key *ecdsa.PrivateKey, chainID *big.Int, opts ...Option) (*Executor, error) {
	client, err := ethclient.Dial(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to endpoint %s: %w", endpoint, err)
	}
	return NewExecutor(client, key, chainID, opts...)
}

// From returns the relay address transactions are sent from.
func (e *Executor) From() common.Address {
	return e.from
}

// Dispatch submits a signed legacy transaction carrying the action's target,
// value and payload. Success means the node accepted the transaction.
func (e *Executor) Dispatch(target common.Address, value *big.Int, payload []byte) error {
	if value == nil {
		value = new(big.Int)
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	nonce, err := e.client.PendingNonceAt(ctx, e.from)
	if err != nil {
		return fmt.Errorf("failed to get pending nonce: %w", err)
	}

	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &target,
		Value:    value,
		Gas:      e.gasLimit,
		GasPrice: gasPrice,
		Data:     payload,
	})
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(e.chainID), e.key)
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := e.client.SendTransaction(ctx, signedTx); err != nil {
		return fmt.Errorf("failed to send transaction: %w", err)
	}
	return nil
}
