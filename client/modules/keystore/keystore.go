package keystore

import (
	"crypto/ecdsa"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"
)

const (
	secretsKey = "secrets"

	mnemonicSalt       = "mnemonic"
	mnemonicIterations = 2048
	seedSize           = 32
)

type KeyStore interface {
	PutKeys(account string, keyPair *KeyPair) error
	LoadKeys(account, password string) (*KeyPair, error)
}

// LevelDBKeyStore is a temporary solution for keeping hot node keys.
// The target state is an encrypted storage with password authentication.
type LevelDBKeyStore struct {
	keystoreDb *leveldb.DB
}

func NewLevelDBKeyStore(account, keystorePath string) (KeyStore, error) {
	db, err := leveldb.OpenFile(keystorePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open keystore: %w", err)
	}

	keystore := &LevelDBKeyStore{
		keystoreDb: db,
	}

	if _, err := keystore.keystoreDb.Get([]byte(secretsKey), nil); err != nil {
		if err := keystore.initJsonKey(secretsKey, map[string]*KeyPair{}); err != nil {
			return nil, fmt.Errorf("failed to init %s storage: %w", secretsKey, err)
		}
	}

	return keystore, nil
}

func (s *LevelDBKeyStore) PutKeys(account string, keyPair *KeyPair) error {
	bz, err := s.keystoreDb.Get([]byte(secretsKey), nil)
	if err != nil {
		return fmt.Errorf("failed to read keystore: %w", err)
	}

	var keyPairs = map[string]*KeyPair{}
	if err := json.Unmarshal(bz, &keyPairs); err != nil {
		return fmt.Errorf("failed to unmarshal key pairs: %w", err)
	}

	keyPairs[account] = keyPair

	keyPairsBz, err := json.Marshal(keyPairs)
	if err != nil {
		return fmt.Errorf("failed to marshal key pair: %w", err)
	}

	err = s.keystoreDb.Put([]byte(secretsKey), keyPairsBz, nil)
	if err != nil {
		return fmt.Errorf("failed to put key pairs: %w", err)
	}

	return nil
}

func (s *LevelDBKeyStore) LoadKeys(account, password string) (*KeyPair, error) {
	bz, err := s.keystoreDb.Get([]byte(secretsKey), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}

	var keyPairs = map[string]*KeyPair{}
	if err := json.Unmarshal(bz, &keyPairs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key pairs: %w", err)
	}

	keyPair, ok := keyPairs[account]
	if !ok {
		return nil, fmt.Errorf("no key pair found for account %s", account)
	}

	return keyPair, nil
}

func (s *LevelDBKeyStore) initJsonKey(key string, data interface{}) error {
	if _, err := s.keystoreDb.Get([]byte(key), nil); err != nil {
		dataBz, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal storage structure: %w", err)
		}
		err = s.keystoreDb.Put([]byte(key), dataBz, nil)
		if err != nil {
			return fmt.Errorf("failed to init keystore: %w", err)
		}
	}

	return nil
}

// KeyPair holds the node's secp256k1 signing key. The node's on-ledger
// identity is the Ethereum address derived from it.
type KeyPair struct {
	Priv *ecdsa.PrivateKey
}

type keyPairJSON struct {
	PrivateKey string `json:"private_key"`
}

func NewKeyPair() *KeyPair {
	priv, _ := crypto.GenerateKey()
	return &KeyPair{
		Priv: priv,
	}
}

// KeyPairFromMnemonic derives the signing key from a BIP-39 mnemonic, so a
// node key can be rebuilt from its paper backup.
func KeyPairFromMnemonic(mnemonic string) (*KeyPair, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}

	seed := pbkdf2.Key([]byte(mnemonic), []byte(mnemonicSalt), mnemonicIterations, seedSize, sha512.New)
	priv, err := crypto.ToECDSA(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to derive a key from mnemonic: %w", err)
	}

	return &KeyPair{
		Priv: priv,
	}, nil
}

// NewMnemonic generates a fresh 24-word mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256) //maximum
	if err != nil {
		return "", fmt.Errorf("failed to generate bip39 entropy: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate new mnemonic from entropy: %w", err)
	}

	return mnemonic, nil
}

// Address returns the Ethereum address of the key pair.
func (p *KeyPair) Address() common.Address {
	return crypto.PubkeyToAddress(p.Priv.PublicKey)
}

func (p *KeyPair) MarshalJSON() ([]byte, error) {
	return json.Marshal(keyPairJSON{
		PrivateKey: hex.EncodeToString(crypto.FromECDSA(p.Priv)),
	})
}

func (p *KeyPair) UnmarshalJSON(data []byte) error {
	var kj keyPairJSON
	if err := json.Unmarshal(data, &kj); err != nil {
		return err
	}

	raw, err := hex.DecodeString(kj.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to decode private key hex: %w", err)
	}
	priv, err := crypto.ToECDSA(raw)
	if err != nil {
		return fmt.Errorf("failed to restore private key: %w", err)
	}

	p.Priv = priv
	return nil
}
