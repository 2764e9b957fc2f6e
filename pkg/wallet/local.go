package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// LocalProvider signs with a private key held in process memory.
type LocalProvider struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider loads a hex-encoded secp256k1 private key.
func NewLocalProvider(hexKey string, chainID *big.Int) (*LocalProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse wallet private key: %w", err)
	}
	return newLocalProvider(key, chainID), nil
}

// NewKeystoreProvider decrypts an encrypted keystore (V3) file.
func NewKeystoreProvider(path, passphrase string, chainID *big.Int) (*LocalProvider, error) {
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore file: %w", err)
	}
	key, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}
	return newLocalProvider(key.PrivateKey, chainID), nil
}

func newLocalProvider(key *ecdsa.PrivateKey, chainID *big.Int) *LocalProvider {
	return &LocalProvider{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}
}

// Address returns the account the key controls.
func (p *LocalProvider) Address() common.Address {
	return p.address
}

// RequestAccounts always grants the single local account.
func (p *LocalProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []common.Address{p.address}, nil
}

func (p *LocalProvider) Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	if account != p.address {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, account.Hex())
	}
	opts, err := bind.NewKeyedTransactorWithChainID(p.key, p.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}
