package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	projectrpc "github.com/aman-zulfiqar/solana-pool-sniper/internal/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
)

type WalletConfig struct {
	RPCURL       string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	PrivateKey string // base58-encoded 64-byte key OR solana-keygen JSON array

	DefaultCommitment string // e.g. "confirmed"
	Logger            *logrus.Logger
}

type Wallet struct {
	cfg  WalletConfig
	rpc  *projectrpc.Client
	priv solana.PrivateKey
	pub  solana.PublicKey
}

func NewWallet(cfg WalletConfig) (*Wallet, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("wallet: RPCURL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 1 * time.Second
	}
	if cfg.DefaultCommitment == "" {
		cfg.DefaultCommitment = "confirmed"
	}
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, fmt.Errorf("wallet: PrivateKey is required")
	}

	priv, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	rpcClient := projectrpc.NewClient(projectrpc.ClientConfig{
		BaseURL:      cfg.RPCURL,
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       cfg.Logger,
	})

	return &Wallet{
		cfg:  cfg,
		rpc:  rpcClient,
		priv: priv,
		pub:  priv.PublicKey(),
	}, nil
}

func (w *Wallet) Address() string             { return w.pub.String() }
func (w *Wallet) PublicKey() solana.PublicKey { return w.pub }

func (w *Wallet) GetBalanceSOL(ctx context.Context) (float64, error) {
	var resp struct {
		Result struct {
			Value uint64 `json:"value"` // lamports
		} `json:"result"`
		Error *projectrpc.RPCError `json:"error"`
	}

	params := []any{
		w.pub.String(),
		map[string]any{"commitment": w.cfg.DefaultCommitment},
	}

	if err := w.rpc.Call(ctx, "getBalance", params, &resp); err != nil {
		return 0, fmt.Errorf("getBalance RPC failed: %w", err)
	}
	if resp.Error != nil {
		return 0, fmt.Errorf("getBalance error: %s", resp.Error.Message)
	}

	return float64(resp.Result.Value) / 1e9, nil
}

// GetTokenBalance sums the owner's token accounts for the given mint.
// Returns the UI amount and the raw base-unit amount as a string.
func (w *Wallet) GetTokenBalance(ctx context.Context, mint string) (float64, string, error) {
	return w.tokenBalance(ctx, w.pub.String(), mint)
}

// GetTokenBalanceFor is the same lookup for an arbitrary owner, used when
// tracking a public wallet instead of the signing one.
func (w *Wallet) GetTokenBalanceFor(ctx context.Context, owner, mint string) (float64, string, error) {
	return w.tokenBalance(ctx, owner, mint)
}

func (w *Wallet) tokenBalance(ctx context.Context, owner, mint string) (float64, string, error) {
	var resp struct {
		Result struct {
			Value []struct {
				Account struct {
					Data struct {
						Parsed struct {
							Info struct {
								TokenAmount projectrpc.TokenAmount `json:"tokenAmount"`
							} `json:"info"`
						} `json:"parsed"`
					} `json:"data"`
				} `json:"account"`
			} `json:"value"`
		} `json:"result"`
		Error *projectrpc.RPCError `json:"error"`
	}

	params := []any{
		owner,
		map[string]any{"mint": mint},
		map[string]any{
			"encoding":   "jsonParsed",
			"commitment": w.cfg.DefaultCommitment,
		},
	}

	if err := w.rpc.Call(ctx, "getTokenAccountsByOwner", params, &resp); err != nil {
		return 0, "", fmt.Errorf("getTokenAccountsByOwner RPC failed: %w", err)
	}
	if resp.Error != nil {
		return 0, "", fmt.Errorf("getTokenAccountsByOwner error: %s", resp.Error.Message)
	}

	if len(resp.Result.Value) == 0 {
		return 0, "0", nil
	}

	// A wallet normally holds one account per mint; sum in case an ATA and
	// an auxiliary account both exist.
	var ui float64
	raw := resp.Result.Value[0].Account.Data.Parsed.Info.TokenAmount.Amount
	for _, v := range resp.Result.Value {
		ui += v.Account.Data.Parsed.Info.TokenAmount.UIAmount
	}
	return ui, raw, nil
}

// GetBlockHeight returns the current block height at the wallet's default
// commitment, used to judge whether a pending transaction can still land.
func (w *Wallet) GetBlockHeight(ctx context.Context) (uint64, error) {
	var resp struct {
		Result uint64               `json:"result"`
		Error  *projectrpc.RPCError `json:"error"`
	}

	params := []any{
		map[string]any{"commitment": w.cfg.DefaultCommitment},
	}

	if err := w.rpc.Call(ctx, "getBlockHeight", params, &resp); err != nil {
		return 0, fmt.Errorf("getBlockHeight RPC failed: %w", err)
	}
	if resp.Error != nil {
		return 0, fmt.Errorf("getBlockHeight error: %s", resp.Error.Message)
	}
	return resp.Result, nil
}

func parsePrivateKey(s string) (solana.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("wallet: invalid JSON private key: %w", err)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("wallet: invalid byte at %d: %d", i, v)
			}
			b[i] = byte(v)
		}
		if len(b) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(b))
		}
		return solana.PrivateKey(ed25519.PrivateKey(b)), nil
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid base58 private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return solana.PrivateKey(ed25519.PrivateKey(raw)), nil
}
