package wallet

import (
	"context"
	"fmt"
	"math/big"

	apperrors "github.com/NomadCrew/feedback-attestation/errors"
	"github.com/NomadCrew/feedback-attestation/logger"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/external"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// externalSigner is the part of go-ethereum's external signer client in use here.
type externalSigner interface {
	Accounts() []accounts.Account
	SignTx(account accounts.Account, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
	Close() error
}

// ExternalProvider delegates account listing and signing to an external
// signer daemon (Clef). The operator approves or rejects each request there,
// so an empty account list means access was refused.
type ExternalProvider struct {
	signer  externalSigner
	chainID *big.Int
}

var _ Provider = (*ExternalProvider)(nil)

// NewExternalProvider connects to the signer at endpoint (IPC path or URL).
func NewExternalProvider(endpoint string, chainID *big.Int) (*ExternalProvider, error) {
	s, err := external.NewExternalSigner(endpoint)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ProviderUnavailableError,
			fmt.Sprintf("External signer %s is unreachable", logger.MaskRPCURL(endpoint)))
	}
	return &ExternalProvider{signer: s, chainID: chainID}, nil
}

func (p *ExternalProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	accts := p.signer.Accounts()
	if len(accts) == 0 {
		return nil, ErrNoAccounts
	}
	addrs := make([]common.Address, len(accts))
	for i, a := range accts {
		addrs[i] = a.Address
	}
	return addrs, nil
}

func (p *ExternalProvider) Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{
		From:    account,
		Context: ctx,
		Signer: func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if addr != account {
				return nil, bind.ErrNotAuthorized
			}
			return p.signer.SignTx(accounts.Account{Address: addr}, tx, p.chainID)
		},
	}, nil
}

// Close releases the RPC connection to the signer.
func (p *ExternalProvider) Close() error {
	return p.signer.Close()
}
