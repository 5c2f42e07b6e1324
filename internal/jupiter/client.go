package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to the Jupiter quote, swap-build and price endpoints.
type Client struct {
	QuoteURL string
	SwapURL  string
	PriceURL string
	HTTP     *http.Client
}

func NewClient(quoteURL, swapURL, priceURL string) *Client {
	return &Client{
		QuoteURL: strings.TrimRight(strings.TrimSpace(quoteURL), "/"),
		SwapURL:  strings.TrimRight(strings.TrimSpace(swapURL), "/"),
		PriceURL: strings.TrimRight(strings.TrimSpace(priceURL), "/"),
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("jupiter http %d", e.StatusCode)
	}
	return fmt.Sprintf("jupiter http %d: %s", e.StatusCode, b)
}

// IsNotTradable reports whether err is the quote-side rejection for a token
// whose route does not exist yet. Fresh pools hit this for a few seconds
// after initialization, so callers retry this class and abort on others.
func IsNotTradable(err error) bool {
	var he *HTTPError
	if !errors.As(err, &he) {
		return false
	}
	if he.StatusCode != http.StatusBadRequest {
		return false
	}
	return bytes.Contains(he.Body, []byte("TOKEN_NOT_TRADABLE")) ||
		bytes.Contains(he.Body, []byte("NOT_SUPPORTED")) ||
		bytes.Contains(he.Body, []byte("no routes found"))
}

func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	if strings.TrimSpace(req.InputMint) == "" {
		return nil, fmt.Errorf("inputMint is required")
	}
	if strings.TrimSpace(req.OutputMint) == "" {
		return nil, fmt.Errorf("outputMint is required")
	}
	if req.Amount == 0 {
		return nil, fmt.Errorf("amount is required")
	}

	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.FormatUint(uint64(req.SlippageBps), 10))

	body, err := c.get(ctx, c.QuoteURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var out QuoteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode jupiter quote response: %w", err)
	}
	out.raw = body
	return &out, nil
}

// BuildSwap asks the swap endpoint to build a serialized transaction around
// a quote, with dynamic slippage and a capped priority fee.
func (c *Client) BuildSwap(ctx context.Context, req SwapRequest) (*SwapResponse, error) {
	if req.Quote == nil || len(req.Quote.raw) == 0 {
		return nil, fmt.Errorf("quote is required")
	}
	if strings.TrimSpace(req.UserPublicKey) == "" {
		return nil, fmt.Errorf("userPublicKey is required")
	}

	payload := map[string]any{
		"quoteResponse": json.RawMessage(req.Quote.raw),
		"userPublicKey": req.UserPublicKey,
		"dynamicSlippage": map[string]any{
			"maxBps": req.DynamicSlippageBps,
		},
		"prioritizationFeeLamports": map[string]any{
			"priorityLevelWithMaxLamports": map[string]any{
				"maxLamports":   req.PrioFeeMaxLamports,
				"priorityLevel": req.PrioLevel,
			},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal swap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.SwapURL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("accept", "application/json")

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}

	var out SwapResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode jupiter swap response: %w", err)
	}
	if strings.TrimSpace(out.SwapTransaction) == "" {
		return nil, fmt.Errorf("swap response contained no transaction")
	}
	return &out, nil
}

// Prices fetches USD prices for a batch of mints. Mints the API has no
// datum for are simply absent from the result.
func (c *Client) Prices(ctx context.Context, mints []string) (map[string]float64, error) {
	if len(mints) == 0 {
		return map[string]float64{}, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(mints, ","))

	body, err := c.get(ctx, c.PriceURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var out struct {
		Data map[string]*struct {
			Price json.Number `json:"price"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode jupiter price response: %w", err)
	}

	prices := make(map[string]float64, len(out.Data))
	for mint, d := range out.Data {
		if d == nil {
			continue
		}
		p, err := d.Price.Float64()
		if err != nil {
			continue
		}
		prices[mint] = p
	}
	return prices, nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("accept", "application/json")

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}
	return body, nil
}
