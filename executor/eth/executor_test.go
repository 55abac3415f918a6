package eth_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lidofinance/qvault/executor/eth"

	"github.com/stretchr/testify/require"
)

type fakeChainClient struct {
	nonce    uint64
	nonceErr error
	gasPrice *big.Int
	gasErr   error
	sendErr  error
	sent     []*types.Transaction
}

func (c *fakeChainClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	if c.nonceErr != nil {
		return 0, c.nonceErr
	}
	return c.nonce, nil
}

func (c *fakeChainClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	if c.gasErr != nil {
		return nil, c.gasErr
	}
	return c.gasPrice, nil
}

func (c *fakeChainClient) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, tx)
	return nil
}

func TestNewExecutor_Validation(t *testing.T) {
	req := require.New(t)

	key, err := crypto.GenerateKey()
	req.NoError(err)
	client := &fakeChainClient{}

	_, err = eth.NewExecutor(nil, key, big.NewInt(1))
	req.Error(err)

	_, err = eth.NewExecutor(client, nil, big.NewInt(1))
	req.Error(err)

	_, err = eth.NewExecutor(client, key, nil)
	req.Error(err)

	_, err = eth.NewExecutor(client, key, big.NewInt(0))
	req.Error(err)

	exec, err := eth.NewExecutor(client, key, big.NewInt(1))
	req.NoError(err)
	req.Equal(crypto.PubkeyToAddress(key.PublicKey), exec.From())
}

func TestExecutor_Dispatch(t *testing.T) {
	var (
		req     = require.New(t)
		chainID = big.NewInt(5)
		client  = &fakeChainClient{nonce: 7, gasPrice: big.NewInt(2000000000)}
		target  = common.HexToAddress("0x5555555555555555555555555555555555555555")
		payload = []byte{0xca, 0xfe}
	)

	key, err := crypto.GenerateKey()
	req.NoError(err)

	exec, err := eth.NewExecutor(client, key, chainID, eth.WithGasLimit(50000))
	req.NoError(err)

	req.NoError(exec.Dispatch(target, big.NewInt(42), payload))
	req.Len(client.sent, 1)

	tx := client.sent[0]
	req.Equal(uint64(7), tx.Nonce())
	req.Equal(target, *tx.To())
	req.Zero(tx.Value().Cmp(big.NewInt(42)))
	req.Equal(payload, tx.Data())
	req.Equal(uint64(50000), tx.Gas())
	req.Zero(tx.GasPrice().Cmp(client.gasPrice))
	req.Zero(tx.ChainId().Cmp(chainID))

	sender, err := types.Sender(types.NewEIP155Signer(chainID), tx)
	req.NoError(err)
	req.Equal(exec.From(), sender)

	// A nil value dispatches as a zero value transfer.
	req.NoError(exec.Dispatch(target, nil, nil))
	req.Len(client.sent, 2)
	req.Zero(client.sent[1].Value().Sign())
}

func TestExecutor_DispatchErrors(t *testing.T) {
	req := require.New(t)

	key, err := crypto.GenerateKey()
	req.NoError(err)

	errRPC := errors.New("connection refused")
	target := common.HexToAddress("0x5555555555555555555555555555555555555555")

	exec, err := eth.NewExecutor(&fakeChainClient{nonceErr: errRPC}, key, big.NewInt(1))
	req.NoError(err)
	req.ErrorIs(exec.Dispatch(target, big.NewInt(1), nil), errRPC)

	exec, err = eth.NewExecutor(&fakeChainClient{gasErr: errRPC}, key, big.NewInt(1))
	req.NoError(err)
	req.ErrorIs(exec.Dispatch(target, big.NewInt(1), nil), errRPC)

	exec, err = eth.NewExecutor(&fakeChainClient{gasPrice: big.NewInt(1), sendErr: errRPC}, key, big.NewInt(1))
	req.NoError(err)
	req.ErrorIs(exec.Dispatch(target, big.NewInt(1), nil), errRPC)
}
