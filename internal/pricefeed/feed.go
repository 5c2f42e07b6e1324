package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Source returns USD prices for a batch of mints. Mints without a datum
// are absent from the map.
type Source interface {
	Prices(ctx context.Context, mints []string) (map[string]float64, error)
}

// Feed queries the primary source in one batch and falls back per-mint to
// the secondary for anything the primary had no answer for.
type Feed struct {
	primary   Source
	secondary Source
	logger    *logrus.Logger
}

func NewFeed(primary, secondary Source, logger *logrus.Logger) *Feed {
	if logger == nil {
		logger = logrus.New()
	}
	return &Feed{primary: primary, secondary: secondary, logger: logger}
}

func (f *Feed) Prices(ctx context.Context, mints []string) (map[string]float64, error) {
	prices, err := f.primary.Prices(ctx, mints)
	if err != nil {
		f.logger.WithError(err).Warn("primary price source failed")
		prices = map[string]float64{}
	}

	if f.secondary == nil {
		return prices, nil
	}

	var missing []string
	for _, m := range mints {
		if _, ok := prices[m]; !ok {
			missing = append(missing, m)
		}
	}
	if len(missing) == 0 {
		return prices, nil
	}

	fallback, err := f.secondary.Prices(ctx, missing)
	if err != nil {
		f.logger.WithError(err).Warn("secondary price source failed")
		return prices, nil
	}
	for m, p := range fallback {
		prices[m] = p
	}
	return prices, nil
}

// DexScreenerSource prices mints one at a time through the public pairs
// endpoint. It only serves as a fallback, so the per-mint cost is fine.
type DexScreenerSource struct {
	BaseURL string
	HTTP    *http.Client
}

func NewDexScreenerSource(baseURL string) *DexScreenerSource {
	return &DexScreenerSource{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (d *DexScreenerSource) Prices(ctx context.Context, mints []string) (map[string]float64, error) {
	out := make(map[string]float64, len(mints))
	for _, mint := range mints {
		price, err := d.price(ctx, mint)
		if err != nil {
			continue
		}
		out[mint] = price
	}
	return out, nil
}

func (d *DexScreenerSource) price(ctx context.Context, mint string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL+"/"+mint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("accept", "application/json")

	res, err := d.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("dexscreener http %d", res.StatusCode)
	}

	var payload struct {
		Pairs []struct {
			PriceUsd string `json:"priceUsd"`
		} `json:"pairs"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("decode dexscreener response: %w", err)
	}
	if len(payload.Pairs) == 0 {
		return 0, fmt.Errorf("no pairs for %s", mint)
	}

	price, err := strconv.ParseFloat(payload.Pairs[0].PriceUsd, 64)
	if err != nil {
		return 0, fmt.Errorf("bad price %q: %w", payload.Pairs[0].PriceUsd, err)
	}
	return price, nil
}
