package chain

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/casthq/warden/internal/config"
	"github.com/casthq/warden/pkg/errors"
)

// Default tuning for the RPC client.
const (
	defaultRequestTimeout = 30 * time.Second
	retryBaseDelay        = 500 * time.Millisecond
	confirmPollInterval   = 2 * time.Second
)

// RPCClient is the JSON-RPC 2.0 implementation of the Client capability.
type RPCClient struct {
	url             string
	network         config.Network
	httpClient      *http.Client
	maxRetries      int
	confirmTimeout  time.Duration
	airdropLimiter  *rate.Limiter
	idCounter       atomic.Uint64
	log             *zap.Logger
}

// NewRPCClient creates an RPC client against the configured endpoint.
func NewRPCClient(cfg *config.Config, log *zap.Logger) *RPCClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &RPCClient{
		url:            cfg.RPCURL,
		network:        cfg.Network,
		httpClient:     &http.Client{Timeout: defaultRequestTimeout},
		maxRetries:     cfg.MaxRetries,
		confirmTimeout: time.Duration(cfg.ConfirmationTimeoutMs) * time.Millisecond,
		// Devnet faucets throttle aggressively; pace our side too.
		airdropLimiter: rate.NewLimiter(rate.Every(2*time.Second), 2),
		log:            log,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a single JSON-RPC call.
func (c *RPCClient) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.idCounter.Add(1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Internal("marshaling rpc request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Chain("building rpc request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Chain(fmt.Sprintf("rpc %s failed", method), err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, errors.Chain("reading rpc response", err)
	}

	var parsed rpcResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, errors.Chain("invalid rpc response", err)
	}
	if parsed.Error != nil {
		return nil, errors.Chain(fmt.Sprintf("rpc %s rejected", method), parsed.Error)
	}
	return parsed.Result, nil
}

// CheckHealth implements Client.
func (c *RPCClient) CheckHealth(ctx context.Context) error {
	result, err := c.call(ctx, "getHealth")
	if err != nil {
		return err
	}
	var status string
	if err := json.Unmarshal(result, &status); err != nil || status != "ok" {
		return errors.Chain("rpc endpoint unhealthy", nil)
	}
	return nil
}

// GetBalance implements Client.
func (c *RPCClient) GetBalance(ctx context.Context, address string) (Balance, error) {
	result, err := c.call(ctx, "getBalance", address)
	if err != nil {
		return Balance{}, err
	}
	var parsed struct {
		Value uint64 `json:"value"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return Balance{}, errors.Chain("parsing balance", err)
	}
	return NewBalance(parsed.Value), nil
}

// GetTokenBalances implements Client.
func (c *RPCClient) GetTokenBalances(ctx context.Context, address string) ([]TokenBalance, error) {
	result, err := c.call(ctx, "getTokenAccountsByOwner", address,
		map[string]any{"programId": TokenProgramID},
		map[string]any{"encoding": "jsonParsed"})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							Mint        string `json:"mint"`
							TokenAmount struct {
								Amount   string  `json:"amount"`
								Decimals uint8   `json:"decimals"`
								UIAmount float64 `json:"uiAmount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, errors.Chain("parsing token accounts", err)
	}

	out := make([]TokenBalance, 0, len(parsed.Value))
	for _, acc := range parsed.Value {
		info := acc.Account.Data.Parsed.Info
		var raw uint64
		_, _ = fmt.Sscanf(info.TokenAmount.Amount, "%d", &raw)
		out = append(out, TokenBalance{
			Mint:     info.Mint,
			Amount:   raw,
			Decimals: info.TokenAmount.Decimals,
			UIAmount: info.TokenAmount.UIAmount,
		})
	}
	return out, nil
}

// RequestAirdrop implements Client. Airdrops are refused outright on
// networks without a faucet and above the hard per-request cap.
func (c *RPCClient) RequestAirdrop(ctx context.Context, address string, lamports uint64) (AirdropResult, error) {
	if !c.network.AirdropSupported() {
		return AirdropResult{}, errors.Validation("airdrops are not available on %s", c.network)
	}
	if lamports == 0 {
		return AirdropResult{}, errors.Validation("airdrop amount must be positive")
	}
	if lamports > MaxAirdropLamports {
		return AirdropResult{}, errors.Validation("airdrop of %.2f SOL exceeds the %.0f SOL per-request cap",
			LamportsToSOL(lamports), LamportsToSOL(MaxAirdropLamports))
	}
	if err := c.airdropLimiter.Wait(ctx); err != nil {
		return AirdropResult{}, errors.Chain("airdrop throttle wait cancelled", err)
	}

	result, err := c.call(ctx, "requestAirdrop", address, lamports)
	if err != nil {
		return AirdropResult{}, err
	}
	var signature string
	if err := json.Unmarshal(result, &signature); err != nil {
		return AirdropResult{}, errors.Chain("parsing airdrop signature", err)
	}

	slot, err := c.waitConfirmed(ctx, signature)
	if err != nil {
		return AirdropResult{}, err
	}
	return AirdropResult{Signature: signature, Slot: slot}, nil
}

// latestBlockhash fetches a fresh blockhash for transaction building.
func (c *RPCClient) latestBlockhash(ctx context.Context) (string, error) {
	result, err := c.call(ctx, "getLatestBlockhash")
	if err != nil {
		return "", err
	}
	var parsed struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return "", errors.Chain("parsing blockhash", err)
	}
	return parsed.Value.Blockhash, nil
}

// BuildNativeTransfer implements Client.
func (c *RPCClient) BuildNativeTransfer(ctx context.Context, from, to string, lamports uint64, memo string) (*Transaction, error) {
	if lamports == 0 {
		return nil, errors.Validation("transfer amount must be positive")
	}
	blockhash, err := c.latestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		Kind:            TxLegacy,
		FeePayer:        from,
		RecentBlockhash: blockhash,
		Instructions: []Instruction{{
			ProgramID: SystemProgramID,
			Accounts: []AccountMeta{
				{PublicKey: from, IsSigner: true, IsWritable: true},
				{PublicKey: to, IsWritable: true},
			},
			Data: encodeTransferData(lamports),
		}},
		Memo: memo,
	}, nil
}

// BuildTokenTransfer implements Client.
func (c *RPCClient) BuildTokenTransfer(ctx context.Context, owner, mint, recipient string, rawAmount uint64, decimals uint8, memo string) (*Transaction, error) {
	if rawAmount == 0 {
		return nil, errors.Validation("token transfer amount must be positive")
	}
	blockhash, err := c.latestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	data := append(encodeTransferData(rawAmount), decimals)
	return &Transaction{
		Kind:            TxLegacy,
		FeePayer:        owner,
		RecentBlockhash: blockhash,
		Instructions: []Instruction{{
			ProgramID: TokenProgramID,
			Accounts: []AccountMeta{
				{PublicKey: owner, IsSigner: true},
				{PublicKey: mint},
				{PublicKey: recipient, IsWritable: true},
			},
			Data: data,
		}},
		Memo: memo,
	}, nil
}

// BuildArbitraryTransaction implements Client.
func (c *RPCClient) BuildArbitraryTransaction(ctx context.Context, feePayer string, instructions []Instruction, memo string) (*Transaction, error) {
	if len(instructions) == 0 {
		return nil, errors.Validation("at least one instruction is required")
	}
	blockhash, err := c.latestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		Kind:            TxVersioned,
		FeePayer:        feePayer,
		RecentBlockhash: blockhash,
		Instructions:    instructions,
		Memo:            memo,
	}, nil
}

// DeserializeAndRebindFeePayer implements Client.
func (c *RPCClient) DeserializeAndRebindFeePayer(ctx context.Context, encoded, feePayer string) (*Transaction, error) {
	tx, err := DeserializeTransaction(encoded)
	if err != nil {
		return nil, err
	}
	blockhash, err := c.latestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	tx.FeePayer = feePayer
	tx.RecentBlockhash = blockhash
	return tx, nil
}

// SendTransaction implements Client.
func (c *RPCClient) SendTransaction(ctx context.Context, tx *SignedTransaction, opts *SendOptions) (SendResult, error) {
	if tx == nil || tx.Tx == nil || len(tx.Signature) == 0 {
		return SendResult{}, errors.Validation("transaction is not signed")
	}

	encoded, err := tx.Tx.Serialize()
	if err != nil {
		return SendResult{}, err
	}
	params := []any{encoded, map[string]any{
		"encoding":      "base64",
		"signature":     hex.EncodeToString(tx.Signature),
		"skipPreflight": opts != nil && opts.SkipPreflight,
	}}

	var lastErr error
	delay := retryBaseDelay
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.log.Debug("retrying sendTransaction",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return SendResult{}, errors.Chain("send cancelled", ctx.Err())
			}
			delay *= 2
		}

		result, err := c.call(ctx, "sendTransaction", params...)
		if err != nil {
			if IsNonRetryable(err) {
				return SendResult{}, err
			}
			lastErr = err
			continue
		}

		var signature string
		if err := json.Unmarshal(result, &signature); err != nil {
			return SendResult{}, errors.Chain("parsing send result", err)
		}

		slot, err := c.waitConfirmed(ctx, signature)
		if err != nil {
			return SendResult{}, err
		}
		return SendResult{Signature: signature, Slot: slot, Status: "confirmed"}, nil
	}

	return SendResult{}, errors.Chain(fmt.Sprintf("send failed after %d attempts", c.maxRetries+1), lastErr)
}

// waitConfirmed polls signature status until confirmed commitment or the
// configured timeout.
func (c *RPCClient) waitConfirmed(ctx context.Context, signature string) (uint64, error) {
	deadline := time.Now().Add(c.confirmTimeout)
	for {
		result, err := c.call(ctx, "getSignatureStatuses", []string{signature})
		if err == nil {
			var parsed struct {
				Value []*struct {
					Slot               uint64  `json:"slot"`
					ConfirmationStatus string  `json:"confirmationStatus"`
					Err                any     `json:"err"`
				} `json:"value"`
			}
			if jsonErr := json.Unmarshal(result, &parsed); jsonErr == nil && len(parsed.Value) > 0 && parsed.Value[0] != nil {
				status := parsed.Value[0]
				if status.Err != nil {
					return 0, errors.Chain(fmt.Sprintf("transaction %s failed on chain", signature), nil)
				}
				if status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized" {
					return status.Slot, nil
				}
			}
		}

		if time.Now().After(deadline) {
			return 0, errors.Chain(fmt.Sprintf("confirmation timeout for %s", signature), nil)
		}
		select {
		case <-time.After(confirmPollInterval):
		case <-ctx.Done():
			return 0, errors.Chain("confirmation wait cancelled", ctx.Err())
		}
	}
}

// EstimateFee implements Client. Falls back to the per-signature fee
// when the endpoint cannot price the message.
func (c *RPCClient) EstimateFee(ctx context.Context, tx *Transaction) (uint64, error) {
	msg := tx.Message()
	digest := sha256.Sum256(msg)
	result, err := c.call(ctx, "getFeeForMessage", hex.EncodeToString(digest[:]))
	if err != nil {
		return FeeReserveLamports, nil //nolint:nilerr // capped fallback is the documented behavior
	}
	var parsed struct {
		Value *uint64 `json:"value"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil || parsed.Value == nil {
		return FeeReserveLamports, nil
	}
	return *parsed.Value, nil
}

// encodeTransferData builds the little-endian instruction payload for a
// transfer of the given raw amount.
func encodeTransferData(amount uint64) []byte {
	data := make([]byte, 12)
	data[0] = 2 // transfer opcode
	for i := 0; i < 8; i++ {
		data[4+i] = byte(amount >> (8 * i))
	}
	return data
}

var _ Client = (*RPCClient)(nil)
