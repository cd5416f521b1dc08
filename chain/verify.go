// chain/verify.go
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"bounty-publish-system/models"
)

// transferTopic is keccak256("Transfer(address,address,uint256)") — the ERC-20
// transfer event signature.
var transferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// ReceiptFetcher is the narrow slice of the RPC client the verifier needs.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// PaymentProof is the verified outcome of a creation payment.
type PaymentProof struct {
	TxHash string
	Payer  common.Address
	Amount *big.Int
}

// Verifier checks that a referenced transaction constitutes valid, exact
// payment of the settlement asset to the platform wallet.
type Verifier struct {
	cfg *Config
	rpc ReceiptFetcher
}

func NewVerifier(cfg *Config, rpc ReceiptFetcher) *Verifier {
	return &Verifier{cfg: cfg, rpc: rpc}
}

// VerifyCreationPayment fetches the receipt for txHash, finds the asset's
// transfer event, and checks recipient and amount. The amount must equal
// required exactly: overpayment is rejected as well as underpayment, so the
// platform never silently pockets excess funds and client-side calculation
// bugs surface immediately.
func (v *Verifier) VerifyCreationPayment(ctx context.Context, txHash string, required *big.Int) (*PaymentProof, error) {
	if !strings.HasPrefix(txHash, "0x") || len(txHash) != 66 {
		return nil, models.NewPaymentError("invalid transaction hash", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, RPCTimeout)
	defer cancel()

	receipt, err := v.rpc.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, models.NewPaymentError("transaction not found — wait for it to be mined and retry", err)
		}
		return nil, models.NewUpstreamError("chain RPC unreachable while verifying payment", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, models.NewPaymentError("transaction reverted on-chain", nil)
	}

	var transfer *types.Log
	for _, l := range receipt.Logs {
		if len(l.Topics) > 0 && l.Topics[0] == transferTopic && l.Address == v.cfg.AssetAddress {
			transfer = l
			break
		}
	}
	if transfer == nil || len(transfer.Topics) < 3 {
		return nil, models.NewPaymentError("no settlement asset transfer found in transaction", nil)
	}

	payer := common.BytesToAddress(transfer.Topics[1].Bytes())
	recipient := common.BytesToAddress(transfer.Topics[2].Bytes())
	amount := new(big.Int).SetBytes(transfer.Data)

	if recipient != v.cfg.PlatformWallet {
		return nil, models.NewPaymentError("payment sent to wrong address", nil)
	}
	if amount.Cmp(required) != 0 {
		return nil, models.NewPaymentError(
			fmt.Sprintf("payment mismatch: required %s, paid %s — exact payment required", required, amount), nil)
	}

	return &PaymentProof{TxHash: txHash, Payer: payer, Amount: amount}, nil
}
