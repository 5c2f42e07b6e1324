package server

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-pool-sniper/internal/holdings"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/monitor"
)

// Ledger lists open holdings for the API view.
type Ledger interface {
	List(ctx context.Context) ([]*holdings.Holding, error)
}

// Pricer supplies current USD prices for a batch of mints.
type Pricer interface {
	Prices(ctx context.Context, mints []string) (map[string]float64, error)
}

// SeenStore answers webhook dedupe queries.
type SeenStore interface {
	SeenMint(ctx context.Context, mint string) (bool, error)
	RecordSeen(ctx context.Context, mint, name, creator string) error
}

// Notifier receives operator notifications.
type Notifier interface {
	Notify(ctx context.Context, title, message string)
}

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Ledger     Ledger
	Pricer     Pricer
	Seen       SeenStore
	Notifier   Notifier
	TokenRegex *regexp.Regexp
	Logger     *logrus.Logger
}

func (h *Handlers) err(c echo.Context, code int, msg string) error {
	return c.JSON(code, ErrorResponse{Error: msg, Code: code})
}

func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// Holdings returns all open positions with a live PnL valuation. Positions
// the price feed has no datum for are returned unpriced rather than hidden.
func (h *Handlers) Holdings(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	open, err := h.Ledger.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list holdings")
	}

	mints := make([]string, 0, len(open))
	for _, hold := range open {
		mints = append(mints, hold.Mint)
	}

	prices := map[string]float64{}
	if len(mints) > 0 {
		prices, err = h.Pricer.Prices(ctx, mints)
		if err != nil {
			h.Logger.WithError(err).Warn("price lookup failed for holdings view")
			prices = map[string]float64{}
		}
	}

	items := make([]HoldingView, 0, len(open))
	for _, hold := range open {
		view := HoldingView{
			Mint:         hold.Mint,
			TokenName:    hold.TokenName,
			EntryTime:    hold.EntryTime.Format(time.RFC3339),
			Balance:      hold.Balance,
			CostBasisUSD: hold.SolPaidUSD,
		}
		if price, ok := prices[hold.Mint]; ok {
			pnl, percent := monitor.Unrealized(hold.PerTokenUSD, hold.Balance, price, hold.SolFeePaidUSD)
			view.CurrentPrice = price
			view.UnrealizedPnL = pnl
			view.PnLPercent = percent
			view.Priced = true
		}
		items = append(items, view)
	}

	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Webhook accepts arbitrary text, extracts token mints with the configured
// pattern, drops ones already seen and forwards the rest to the operator.
func (h *Handlers) Webhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "unreadable body")
	}

	matches := h.TokenRegex.FindAllString(string(body), -1)
	if len(matches) == 0 {
		return c.JSON(http.StatusOK, WebhookResponse{Found: []string{}, Duplicate: []string{}})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	resp := WebhookResponse{Found: []string{}, Duplicate: []string{}}
	unique := dedupe(matches)
	for _, mint := range unique {
		if holdings.ValidateMint(mint) != nil {
			continue
		}
		seen, err := h.Seen.SeenMint(ctx, mint)
		if err != nil {
			h.Logger.WithError(err).Warn("webhook seen lookup failed")
			continue
		}
		if seen {
			resp.Duplicate = append(resp.Duplicate, mint)
			continue
		}
		if err := h.Seen.RecordSeen(ctx, mint, "", ""); err != nil {
			h.Logger.WithError(err).Warn("webhook seen record failed")
		}
		resp.Found = append(resp.Found, mint)
	}

	if len(resp.Found) > 0 && h.Notifier != nil {
		for _, mint := range resp.Found {
			h.Notifier.Notify(ctx, "Token spotted via webhook",
				"https://gmgn.ai/sol/token/"+mint)
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
