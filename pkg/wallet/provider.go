// Package wallet provides the signing identities used to submit attestations.
// A Provider plays the part of a browser wallet: it hands out accounts on
// request and signs transactions for them.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/NomadCrew/feedback-attestation/config"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNoAccounts is returned when the wallet exposes no account to this service.
	ErrNoAccounts = errors.New("wallet returned no accounts")
	// ErrUnknownAccount is returned when a signer is requested for an account the wallet does not hold.
	ErrUnknownAccount = errors.New("account not managed by wallet")
)

// Provider is the account-request and signing surface of a wallet.
type Provider interface {
	// RequestAccounts asks the wallet for the accounts it will sign with.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Signer returns transaction options that sign as account.
	Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error)
}

// NewProviderFromConfig builds the provider selected by cfg.Mode. Mode "none"
// yields a nil provider so submissions report the wallet as unavailable.
func NewProviderFromConfig(cfg config.WalletConfig, chainID *big.Int) (Provider, error) {
	switch cfg.Mode {
	case config.WalletModeNone, "":
		return nil, nil
	case config.WalletModeLocal:
		p, err := NewLocalProvider(cfg.PrivateKey, chainID)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.WalletModeKeystore:
		p, err := NewKeystoreProvider(cfg.KeystorePath, cfg.KeystorePassphrase, chainID)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.WalletModeExternal:
		p, err := NewExternalProvider(cfg.ExternalSignerURL, chainID)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown wallet mode %q", cfg.Mode)
	}
}
