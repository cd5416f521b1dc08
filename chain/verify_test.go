package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"bounty-publish-system/models"
)

var (
	testAsset    = common.HexToAddress("0x75faf114eafb1BDbe2F0316DF893fd58CE46AA4d")
	testPlatform = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testPayer    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testTxHash   = "0xaabbccddeeff00112233445566778899aabbccddeeff00112233445566778899"
)

type fakeReceipts struct {
	receipt *types.Receipt
	err     error
}

func (f *fakeReceipts) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return f.receipt, f.err
}

func testConfig() *Config {
	return &Config{
		ChainID:        big.NewInt(DefaultChainID),
		Network:        DefaultNetwork,
		AssetAddress:   testAsset,
		PlatformWallet: testPlatform,
		CreationFee:    big.NewInt(1),
	}
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
}

func transferReceipt(emitter, from, to common.Address, amount *big.Int) *types.Receipt {
	return &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs: []*types.Log{{
			Address: emitter,
			Topics:  []common.Hash{transferTopic, addressTopic(from), addressTopic(to)},
			Data:    common.LeftPadBytes(amount.Bytes(), 32),
		}},
	}
}

func assertPaymentError(t *testing.T, err error) {
	t.Helper()
	var app *models.AppError
	if !errors.As(err, &app) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if app.Kind != models.KindPayment {
		t.Fatalf("expected KindPayment, got %v (%v)", app.Kind, err)
	}
}

func TestVerifyCreationPaymentSuccess(t *testing.T) {
	required := big.NewInt(15000001)
	rpc := &fakeReceipts{receipt: transferReceipt(testAsset, testPayer, testPlatform, required)}
	v := NewVerifier(testConfig(), rpc)

	proof, err := v.VerifyCreationPayment(context.Background(), testTxHash, required)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proof.Payer != testPayer {
		t.Errorf("payer = %s, want %s", proof.Payer, testPayer)
	}
	if proof.Amount.Cmp(required) != 0 {
		t.Errorf("amount = %s, want %s", proof.Amount, required)
	}
}

func TestVerifyCreationPaymentNotFound(t *testing.T) {
	rpc := &fakeReceipts{err: ethereum.NotFound}
	v := NewVerifier(testConfig(), rpc)

	_, err := v.VerifyCreationPayment(context.Background(), testTxHash, big.NewInt(1))
	assertPaymentError(t, err)
}

func TestVerifyCreationPaymentRPCFailure(t *testing.T) {
	rpc := &fakeReceipts{err: errors.New("connection refused")}
	v := NewVerifier(testConfig(), rpc)

	_, err := v.VerifyCreationPayment(context.Background(), testTxHash, big.NewInt(1))
	var app *models.AppError
	if !errors.As(err, &app) || app.Kind != models.KindUpstream {
		t.Fatalf("expected KindUpstream, got %v", err)
	}
}

func TestVerifyCreationPaymentReverted(t *testing.T) {
	rpc := &fakeReceipts{receipt: &types.Receipt{Status: types.ReceiptStatusFailed}}
	v := NewVerifier(testConfig(), rpc)

	_, err := v.VerifyCreationPayment(context.Background(), testTxHash, big.NewInt(1))
	assertPaymentError(t, err)
}

func TestVerifyCreationPaymentNoTransfer(t *testing.T) {
	// Transfer emitted by a different token contract.
	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	rpc := &fakeReceipts{receipt: transferReceipt(other, testPayer, testPlatform, big.NewInt(5))}
	v := NewVerifier(testConfig(), rpc)

	_, err := v.VerifyCreationPayment(context.Background(), testTxHash, big.NewInt(5))
	assertPaymentError(t, err)
}

func TestVerifyCreationPaymentWrongRecipient(t *testing.T) {
	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	rpc := &fakeReceipts{receipt: transferReceipt(testAsset, testPayer, other, big.NewInt(5))}
	v := NewVerifier(testConfig(), rpc)

	_, err := v.VerifyCreationPayment(context.Background(), testTxHash, big.NewInt(5))
	assertPaymentError(t, err)
}

func TestVerifyCreationPaymentExactAmount(t *testing.T) {
	required := big.NewInt(15000001)

	// Off by one minor unit in either direction is rejected.
	for _, paid := range []*big.Int{big.NewInt(15000000), big.NewInt(15000002)} {
		rpc := &fakeReceipts{receipt: transferReceipt(testAsset, testPayer, testPlatform, paid)}
		v := NewVerifier(testConfig(), rpc)
		_, err := v.VerifyCreationPayment(context.Background(), testTxHash, required)
		assertPaymentError(t, err)
	}

	rpc := &fakeReceipts{receipt: transferReceipt(testAsset, testPayer, testPlatform, required)}
	v := NewVerifier(testConfig(), rpc)
	if _, err := v.VerifyCreationPayment(context.Background(), testTxHash, required); err != nil {
		t.Fatalf("exact amount rejected: %v", err)
	}
}

func TestVerifyCreationPaymentMalformedHash(t *testing.T) {
	v := NewVerifier(testConfig(), &fakeReceipts{})
	_, err := v.VerifyCreationPayment(context.Background(), "nonsense", big.NewInt(1))
	assertPaymentError(t, err)
}
