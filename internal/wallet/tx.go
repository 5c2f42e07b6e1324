package wallet

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	projectrpc "github.com/aman-zulfiqar/solana-pool-sniper/internal/rpc"
	"github.com/gagliardetto/solana-go"
)

// ErrTransactionFailed is wrapped into confirmation errors when the chain
// reports the transaction itself failed, as opposed to it never landing.
// Callers treat this as terminal for the attempt.
var ErrTransactionFailed = fmt.Errorf("transaction failed on-chain")

// ErrBlockhashExpired is returned when the chain moved past the
// transaction's lastValidBlockHeight before the signature confirmed.
var ErrBlockhashExpired = fmt.Errorf("blockhash expired before confirmation")

// DeserializeTransaction decodes a base64 serialized transaction, the format
// the aggregator's swap endpoint returns.
func DeserializeTransaction(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 transaction: %w", err)
	}
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return tx, nil
}

// SignTx signs a transaction with the wallet's private key
func (w *Wallet) SignTx(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.pub) {
			return &w.priv
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// SendTx serializes and submits a signed transaction. Preflight is skipped
// so the send races the rest of the slot instead of a simulation.
func (w *Wallet) SendTx(ctx context.Context, tx *solana.Transaction) (string, error) {
	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	encodedTx := base64.StdEncoding.EncodeToString(txBytes)

	params := []any{
		encodedTx,
		map[string]any{
			"encoding":            "base64",
			"skipPreflight":       true,
			"preflightCommitment": "processed",
			"maxRetries":          2,
		},
	}

	var resp struct {
		Result string               `json:"result"`
		Error  *projectrpc.RPCError `json:"error"`
	}

	if err := w.rpc.Call(ctx, "sendTransaction", params, &resp); err != nil {
		return "", fmt.Errorf("sendTransaction RPC failed: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("sendTransaction error: code=%d, message=%s",
			resp.Error.Code, resp.Error.Message)
	}

	return resp.Result, nil
}

// SubmitSerialized deserializes a base64 transaction, signs it and sends
// it. This is the path every aggregator-built swap takes.
func (w *Wallet) SubmitSerialized(ctx context.Context, encodedTx string) (string, error) {
	tx, err := DeserializeTransaction(encodedTx)
	if err != nil {
		return "", err
	}
	if err := w.SignTx(tx); err != nil {
		return "", err
	}
	return w.SendTx(ctx, tx)
}

// ConfirmTransaction polls signature status until the requested commitment
// is reached, the chain moves past lastValidBlockHeight, or ctx expires.
// lastValidBlockHeight 0 disables the height check.
func (w *Wallet) ConfirmTransaction(
	ctx context.Context,
	signature string,
	commitment string,
	lastValidBlockHeight uint64,
) error {
	backoff := 500 * time.Millisecond
	maxBackoff := 4 * time.Second

	for {
		confirmed, err := w.checkSignatureStatus(ctx, signature, commitment)
		if err != nil {
			return err
		}
		if confirmed {
			return nil
		}

		if lastValidBlockHeight > 0 {
			height, err := w.GetBlockHeight(ctx)
			if err == nil && height > lastValidBlockHeight {
				return fmt.Errorf("%w: height %d > %d", ErrBlockhashExpired, height, lastValidBlockHeight)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

func (w *Wallet) checkSignatureStatus(ctx context.Context, signature string, commitment string) (bool, error) {
	var resp struct {
		Result struct {
			Value []*struct {
				Slot               uint64      `json:"slot"`
				Confirmations      *int        `json:"confirmations"`
				Err                interface{} `json:"err"`
				ConfirmationStatus string      `json:"confirmationStatus"`
			} `json:"value"`
		} `json:"result"`
		Error *projectrpc.RPCError `json:"error"`
	}

	params := []any{
		[]string{signature},
		map[string]any{"searchTransactionHistory": false},
	}

	if err := w.rpc.Call(ctx, "getSignatureStatuses", params, &resp); err != nil {
		return false, err
	}
	if resp.Error != nil {
		return false, fmt.Errorf("getSignatureStatuses error: %s", resp.Error.Message)
	}

	if len(resp.Result.Value) == 0 || resp.Result.Value[0] == nil {
		return false, nil // not yet seen by the node
	}

	status := resp.Result.Value[0]
	if status.Err != nil {
		return false, fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err)
	}

	switch commitment {
	case "processed":
		return status.ConfirmationStatus != "", nil
	case "confirmed":
		return status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized", nil
	case "finalized":
		return status.ConfirmationStatus == "finalized", nil
	default:
		return status.ConfirmationStatus != "", nil
	}
}
