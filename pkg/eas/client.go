// Package eas talks to an Ethereum Attestation Service registry contract:
// schema encoding, attestation submission and lookups.
package eas

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/NomadCrew/feedback-attestation/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrTransactionReverted is returned when the attest transaction was mined with a failed status.
	ErrTransactionReverted = errors.New("attestation transaction reverted")
	// ErrNoAttestedEvent is returned when a successful receipt carries no Attested log from the registry.
	ErrNoAttestedEvent = errors.New("no Attested event in transaction receipt")
)

// Backend is the chain access the client needs: sending transactions and reading receipts.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// AttestationRequestData mirrors the registry's AttestationRequestData struct.
type AttestationRequestData struct {
	Recipient      common.Address
	ExpirationTime uint64
	Revocable      bool
	RefUID         [32]byte
	Data           []byte
	Value          *big.Int
}

// AttestationRequest mirrors the registry's AttestationRequest struct.
type AttestationRequest struct {
	Schema [32]byte
	Data   AttestationRequestData
}

// Attestation mirrors the registry's stored Attestation struct.
type Attestation struct {
	Uid            [32]byte
	Schema         [32]byte
	Time           uint64
	ExpirationTime uint64
	RevocationTime uint64
	RefUID         [32]byte
	Recipient      common.Address
	Attester       common.Address
	Revocable      bool
	Data           []byte
}

// Registry binds signers to the registry contract.
type Registry interface {
	Connect(signer *bind.TransactOpts) Attester
	GetAttestation(ctx context.Context, uid common.Hash) (*Attestation, error)
}

// Attester submits attestation requests on behalf of one signer.
type Attester interface {
	Attest(ctx context.Context, req AttestationRequest) (PendingAttestation, error)
}

// PendingAttestation is a broadcast attest transaction awaiting confirmation.
type PendingAttestation interface {
	TxHash() common.Hash
	Wait(ctx context.Context) (common.Hash, error)
}

// Client is bound to a single registry contract address.
type Client struct {
	address  common.Address
	abi      abi.ABI
	backend  Backend
	contract *bind.BoundContract
}

var _ Registry = (*Client)(nil)

// NewClient binds the registry at address.
func NewClient(address common.Address, backend Backend) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(easABI))
	if err != nil {
		return nil, fmt.Errorf("parse EAS ABI: %w", err)
	}
	return &Client{
		address:  address,
		abi:      parsed,
		backend:  backend,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// Address returns the registry contract address.
func (c *Client) Address() common.Address {
	return c.address
}

// Connect returns an Attester that signs with signer.
func (c *Client) Connect(signer *bind.TransactOpts) Attester {
	return &session{client: c, opts: *signer}
}

// GetAttestation reads a stored attestation. A zero UID in the result means the registry has no such record.
func (c *Client) GetAttestation(ctx context.Context, uid common.Hash) (*Attestation, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getAttestation", uid); err != nil {
		return nil, fmt.Errorf("getAttestation: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("getAttestation: empty result")
	}
	att := *abi.ConvertType(out[0], new(Attestation)).(*Attestation)
	return &att, nil
}

// UIDFromReceipt extracts the new attestation UID from the registry's Attested log.
func (c *Client) UIDFromReceipt(receipt *types.Receipt) (common.Hash, error) {
	event := c.abi.Events["Attested"]
	for _, l := range receipt.Logs {
		if l.Address != c.address || len(l.Topics) == 0 || l.Topics[0] != event.ID {
			continue
		}
		values, err := event.Inputs.NonIndexed().Unpack(l.Data)
		if err != nil {
			return common.Hash{}, fmt.Errorf("unpack Attested event: %w", err)
		}
		uid, ok := values[0].([32]byte)
		if !ok {
			return common.Hash{}, fmt.Errorf("unexpected Attested uid type %T", values[0])
		}
		return common.Hash(uid), nil
	}
	return common.Hash{}, ErrNoAttestedEvent
}

type session struct {
	client *Client
	opts   bind.TransactOpts
}

// Attest broadcasts attest(req). Nonce and fee fields left unset in the
// signer options are filled from the backend.
func (s *session) Attest(ctx context.Context, req AttestationRequest) (PendingAttestation, error) {
	if req.Data.Value == nil {
		req.Data.Value = new(big.Int)
	}

	opts := s.opts
	opts.Context = ctx

	tx, err := s.client.contract.Transact(&opts, "attest", req)
	if err != nil {
		return nil, err
	}

	logger.GetLogger().Infow("Attestation transaction sent",
		"tx_hash", tx.Hash().Hex(),
		"from", opts.From.Hex(),
		"schema", common.Hash(req.Schema).Hex(),
		"gas_limit", tx.Gas(),
	)

	return &pendingTx{client: s.client, tx: tx}, nil
}

type pendingTx struct {
	client *Client
	tx     *types.Transaction
}

func (p *pendingTx) TxHash() common.Hash {
	return p.tx.Hash()
}

// Wait blocks until the transaction is mined and returns the attestation UID.
func (p *pendingTx) Wait(ctx context.Context) (common.Hash, error) {
	receipt, err := bind.WaitMined(ctx, p.client.backend, p.tx)
	if err != nil {
		return common.Hash{}, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Hash{}, fmt.Errorf("%w: tx %s", ErrTransactionReverted, p.tx.Hash().Hex())
	}
	return p.client.UIDFromReceipt(receipt)
}
