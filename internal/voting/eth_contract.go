package voting

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const votingABI = `[
  {"type":"function","name":"castVote","stateMutability":"nonpayable",
   "inputs":[{"name":"proposalId","type":"uint256"},{"name":"support","type":"uint8"},{"name":"riskScore","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"batchCastVotes","stateMutability":"nonpayable",
   "inputs":[{"name":"proposalId","type":"uint256"},{"name":"delegators","type":"address[]"},{"name":"supports","type":"uint8[]"},{"name":"riskScores","type":"uint256[]"}],
   "outputs":[]}
]`

// ErrTxReverted is returned when a mined vote transaction did not succeed.
var ErrTxReverted = errors.New("vote transaction reverted")

// EthConfig configures the on-chain voting client.
type EthConfig struct {
	RPCURL          string
	ContractAddress string
	PrivateKey      string
	ChainID         int64
}

// Backend is the subset of an Ethereum client the contract binding needs.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// EthContract binds the governance voting contract through go-ethereum.
type EthContract struct {
	backend  Backend
	contract *bind.BoundContract
	opts     *bind.TransactOpts
}

// DialEthContract connects to the RPC endpoint and prepares a signer.
func DialEthContract(ctx context.Context, cfg EthConfig) (*EthContract, error) {
	endpoint := strings.TrimSpace(cfg.RPCURL)
	if endpoint == "" {
		return nil, fmt.Errorf("rpc url required")
	}
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse voter key: %w", err)
	}
	c, err := NewEthContract(client, cfg.ContractAddress, key, cfg.ChainID)
	if err != nil {
		client.Close()
		return nil, err
	}
	return c, nil
}

// NewEthContract binds an already connected backend.
func NewEthContract(backend Backend, contractAddress string, key *ecdsa.PrivateKey, chainID int64) (*EthContract, error) {
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("invalid voting contract address %q", contractAddress)
	}
	if key == nil {
		return nil, fmt.Errorf("voter key required")
	}
	parsed, err := abi.JSON(strings.NewReader(votingABI))
	if err != nil {
		return nil, fmt.Errorf("parse voting abi: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(chainID))
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	addr := common.HexToAddress(contractAddress)
	return &EthContract{
		backend:  backend,
		contract: bind.NewBoundContract(addr, parsed, backend, backend, backend),
		opts:     opts,
	}, nil
}

// Ready reports whether the binding and signer are configured.
func (c *EthContract) Ready() bool {
	return c != nil && c.contract != nil && c.opts != nil
}

// CastVote submits a single vote from the agent.
func (c *EthContract) CastVote(ctx context.Context, proposalID string, support VoteType, riskScore uint64) (PendingTx, error) {
	id, err := parseProposalID(proposalID)
	if err != nil {
		return nil, err
	}
	tx, err := c.contract.Transact(c.txOpts(ctx), "castVote", id, support.Support(), new(big.Int).SetUint64(riskScore))
	if err != nil {
		return nil, err
	}
	return &ethPendingTx{backend: c.backend, tx: tx}, nil
}

// BatchCastVotes submits one transaction carrying a vote per delegator.
func (c *EthContract) BatchCastVotes(ctx context.Context, proposalID string, delegators []string, supports []VoteType, riskScores []uint64) (PendingTx, error) {
	if len(delegators) != len(supports) || len(delegators) != len(riskScores) {
		return nil, fmt.Errorf("batch arrays differ in length")
	}
	id, err := parseProposalID(proposalID)
	if err != nil {
		return nil, err
	}
	addrs := make([]common.Address, len(delegators))
	codes := make([]uint8, len(supports))
	scores := make([]*big.Int, len(riskScores))
	for i := range delegators {
		if !common.IsHexAddress(delegators[i]) {
			return nil, fmt.Errorf("invalid delegator address %q", delegators[i])
		}
		addrs[i] = common.HexToAddress(delegators[i])
		codes[i] = supports[i].Support()
		scores[i] = new(big.Int).SetUint64(riskScores[i])
	}
	tx, err := c.contract.Transact(c.txOpts(ctx), "batchCastVotes", id, addrs, codes, scores)
	if err != nil {
		return nil, err
	}
	return &ethPendingTx{backend: c.backend, tx: tx}, nil
}

func (c *EthContract) txOpts(ctx context.Context) *bind.TransactOpts {
	opts := *c.opts
	opts.Context = ctx
	return &opts
}

func parseProposalID(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	id, ok := new(big.Int).SetString(raw, 0)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("invalid onchain proposal id %q", raw)
	}
	return id, nil
}

type ethPendingTx struct {
	backend bind.DeployBackend
	tx      *gethtypes.Transaction
}

func (p *ethPendingTx) Wait(ctx context.Context) (string, error) {
	hash := p.tx.Hash().Hex()
	receipt, err := bind.WaitMined(ctx, p.backend, p.tx)
	if err != nil {
		return hash, err
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return hash, fmt.Errorf("%w: %s", ErrTxReverted, hash)
	}
	return hash, nil
}
