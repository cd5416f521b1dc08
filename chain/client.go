// chain/client.go
package chain

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Arbitrum Sepolia defaults. Everything can be overridden via environment so
// the service can point at another testnet without a rebuild.
const (
	DefaultRPCURL       = "https://sepolia-rollup.arbitrum.io/rpc"
	DefaultChainID      = 421614
	DefaultNetwork      = "arbitrum-sepolia"
	DefaultAssetAddress = "0x75faf114eafb1BDbe2F0316DF893fd58CE46AA4d" // USDC on Arbitrum Sepolia
	DefaultExplorerURL  = "https://sepolia.arbiscan.io"

	// RPCTimeout bounds every chain call made in a request path.
	RPCTimeout = 30 * time.Second
)

// Config holds the chain-side settings shared by the verifier and the payout
// executor. The custodial signing key is NOT here — only the executor loads it.
type Config struct {
	RPCURL         string
	ChainID        *big.Int
	Network        string
	AssetAddress   common.Address
	PlatformWallet common.Address
	// CreationFee is the platform fee in minor units (6 decimals).
	CreationFee *big.Int
	ExplorerURL string
}

// LoadConfig reads chain settings from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RPCURL:      envOr("CHAIN_RPC_URL", DefaultRPCURL),
		ChainID:     big.NewInt(DefaultChainID),
		Network:     envOr("CHAIN_NETWORK", DefaultNetwork),
		ExplorerURL: envOr("CHAIN_EXPLORER_URL", DefaultExplorerURL),
	}

	asset := envOr("SETTLEMENT_ASSET_ADDRESS", DefaultAssetAddress)
	if !common.IsHexAddress(asset) {
		return nil, fmt.Errorf("invalid SETTLEMENT_ASSET_ADDRESS: %s", asset)
	}
	cfg.AssetAddress = common.HexToAddress(asset)

	wallet := os.Getenv("PLATFORM_WALLET_ADDRESS")
	if !common.IsHexAddress(wallet) {
		return nil, fmt.Errorf("PLATFORM_WALLET_ADDRESS not set or invalid")
	}
	cfg.PlatformWallet = common.HexToAddress(wallet)

	feeStr := envOr("CREATION_FEE_UNITS", "1")
	fee, ok := new(big.Int).SetString(feeStr, 10)
	if !ok || fee.Sign() < 0 {
		return nil, fmt.Errorf("invalid CREATION_FEE_UNITS: %s", feeStr)
	}
	cfg.CreationFee = fee

	return cfg, nil
}

// Client wraps the RPC connection with the shared config.
type Client struct {
	Config *Config
	Eth    *ethclient.Client
}

// Dial connects to the configured RPC endpoint.
func Dial(cfg *Config) (*Client, error) {
	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain RPC %s: %w", cfg.RPCURL, err)
	}
	return &Client{Config: cfg, Eth: eth}, nil
}

// CurrentBlock returns the chain height, best effort. On RPC failure it logs
// and returns 0 so callers can proceed without an anchor.
func (c *Client) CurrentBlock(ctx context.Context) uint64 {
	ctx, cancel := context.WithTimeout(ctx, RPCTimeout)
	defer cancel()

	n, err := c.Eth.BlockNumber(ctx)
	if err != nil {
		log.Printf("[CHAIN] failed to fetch block number for anchoring: %v", err)
		return 0
	}
	return n
}

// ExplorerTxURL returns the block explorer link for a transaction.
func (cfg *Config) ExplorerTxURL(txHash string) string {
	return fmt.Sprintf("%s/tx/%s", cfg.ExplorerURL, txHash)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
