// chain/payout.go
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const erc20TransferABI = `[{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

const fallbackTransferGas = 100_000

// PayoutExecutor signs and broadcasts settlement-asset transfers from the
// custodial platform key. It is the only component that ever holds the key.
type PayoutExecutor struct {
	cfg  *Config
	eth  *ethclient.Client
	key  *ecdsa.PrivateKey
	from common.Address
	abi  abi.ABI
}

// NewPayoutExecutor loads the custodial key from PLATFORM_WALLET_PRIVATE_KEY.
// A missing or malformed key is a configuration error: no payout is ever
// attempted without it.
func NewPayoutExecutor(cfg *Config, eth *ethclient.Client) (*PayoutExecutor, error) {
	raw := os.Getenv("PLATFORM_WALLET_PRIVATE_KEY")
	if raw == "" {
		return nil, fmt.Errorf("PLATFORM_WALLET_PRIVATE_KEY not set — payout system not configured")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLATFORM_WALLET_PRIVATE_KEY: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC-20 ABI: %w", err)
	}

	return &PayoutExecutor{
		cfg:  cfg,
		eth:  eth,
		key:  key,
		from: crypto.PubkeyToAddress(key.PublicKey),
		abi:  parsed,
	}, nil
}

// From is the custodial wallet address payouts are sent from.
func (p *PayoutExecutor) From() common.Address { return p.from }

// SendToken broadcasts a transfer of amount minor units to the destination and
// returns the transaction hash once the network has accepted it. No retry is
// attempted on failure: once broadcast, a transaction cannot be rescinded, and
// a blind resend could double-pay.
func (p *PayoutExecutor) SendToken(ctx context.Context, to common.Address, amount *big.Int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, RPCTimeout)
	defer cancel()

	nonce, err := p.eth.PendingNonceAt(ctx, p.from)
	if err != nil {
		return "", fmt.Errorf("failed to fetch nonce: %w", err)
	}

	data, err := p.abi.Pack("transfer", to, amount)
	if err != nil {
		return "", fmt.Errorf("failed to encode transfer call: %w", err)
	}

	tip, err := p.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch gas tip: %w", err)
	}
	head, err := p.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch chain head: %w", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	asset := p.cfg.AssetAddress
	gasLimit, err := p.eth.EstimateGas(ctx, ethereum.CallMsg{From: p.from, To: &asset, Data: data})
	if err != nil {
		log.Printf("[PAYOUT] gas estimation failed, using fallback limit: %v", err)
		gasLimit = fallbackTransferGas
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   p.cfg.ChainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &asset,
		Value:     big.NewInt(0),
		Data:      data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(p.cfg.ChainID), p.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign payout transaction: %w", err)
	}

	if err := p.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to broadcast payout transaction: %w", err)
	}

	hash := signed.Hash().Hex()
	log.Printf("[PAYOUT] sent %s units of %s to %s: %s", amount, asset.Hex(), to.Hex(), p.cfg.ExplorerTxURL(hash))
	return hash, nil
}
