package voting

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const testContractAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func newTestEthContract(t *testing.T) *EthContract {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	c, err := NewEthContract(nil, testContractAddress, key, 10143)
	if err != nil {
		t.Fatalf("NewEthContract: %v", err)
	}
	return c
}

func TestNewEthContractValidatesInputs(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if _, err := NewEthContract(nil, "not-an-address", key, 1); err == nil {
		t.Fatalf("expected invalid address error")
	}
	if _, err := NewEthContract(nil, testContractAddress, nil, 1); err == nil {
		t.Fatalf("expected missing key error")
	}
	if !newTestEthContract(t).Ready() {
		t.Fatalf("expected contract ready")
	}
	var nilContract *EthContract
	if nilContract.Ready() {
		t.Fatalf("nil contract must not be ready")
	}
}

func TestBatchCastVotesRejectsBadInputBeforeSubmitting(t *testing.T) {
	c := newTestEthContract(t)
	ctx := context.Background()

	if _, err := c.BatchCastVotes(ctx, "7", []string{"0x0000000000000000000000000000000000000001"}, nil, nil); err == nil {
		t.Fatalf("expected length mismatch error")
	}
	if _, err := c.BatchCastVotes(ctx, "7", []string{"bogus"}, []VoteType{VoteFor}, []uint64{10}); err == nil {
		t.Fatalf("expected invalid delegator error")
	}
	if _, err := c.CastVote(ctx, "not-a-number", VoteFor, 10); err == nil {
		t.Fatalf("expected invalid proposal id error")
	}
}

func TestParseProposalID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "42", want: "42"},
		{in: " 0x2a ", want: "42"},
		{in: "115792089237316195423570985008687907853269984665640564039457584007913129639935", want: "115792089237316195423570985008687907853269984665640564039457584007913129639935"},
		{in: "-1", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseProposalID(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseProposalID(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got.String() != tt.want {
			t.Fatalf("parseProposalID(%q) = %v, %v; want %s", tt.in, got, err, tt.want)
		}
	}
}

type receiptBackend struct {
	status uint64
}

func (b receiptBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	return &gethtypes.Receipt{Status: b.status, TxHash: hash}, nil
}

func (b receiptBackend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}

func testTx() *gethtypes.Transaction {
	to := common.HexToAddress(testContractAddress)
	return gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    1,
		To:       &to,
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})
}

func TestPendingTxWaitReportsRevert(t *testing.T) {
	tx := testTx()
	pending := &ethPendingTx{backend: receiptBackend{status: gethtypes.ReceiptStatusFailed}, tx: tx}

	hash, err := pending.Wait(context.Background())
	if !errors.Is(err, ErrTxReverted) {
		t.Fatalf("expected ErrTxReverted, got %v", err)
	}
	if hash != tx.Hash().Hex() {
		t.Fatalf("expected tx hash %s, got %s", tx.Hash().Hex(), hash)
	}
}

func TestPendingTxWaitSucceeds(t *testing.T) {
	tx := testTx()
	pending := &ethPendingTx{backend: receiptBackend{status: gethtypes.ReceiptStatusSuccessful}, tx: tx}

	hash, err := pending.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if hash != tx.Hash().Hex() {
		t.Fatalf("expected tx hash %s, got %s", tx.Hash().Hex(), hash)
	}
}
