package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-pool-sniper/internal/config"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/holdings"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/jupiter"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/monitor"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/pricefeed"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

// Read-only console view of open holdings with live PnL. Safe to run next
// to the sniper; it never writes to the ledger.
func main() {
	loadEnv()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	cfg, err := config.Load()
	if err != nil {
		fmt.Println("configuration error:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		fmt.Println("redis unavailable:", err)
		os.Exit(1)
	}

	ledger, err := holdings.NewStore(redisClient)
	if err != nil {
		fmt.Println("holdings store init failed:", err)
		os.Exit(1)
	}

	jup := jupiter.NewClient(cfg.Price.JupQuoteURI, cfg.Price.JupSwapURI, cfg.Price.JupPriceURI)
	feed := pricefeed.NewFeed(jup, pricefeed.NewDexScreenerSource(cfg.Price.DexScreenerURI), logger)

	ticker := time.NewTicker(cfg.Price.CheckInterval)
	defer ticker.Stop()

	for {
		printHoldings(ctx, ledger, feed, cfg)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func printHoldings(ctx context.Context, ledger *holdings.Store, feed *pricefeed.Feed, cfg *config.Config) {
	open, err := ledger.List(ctx)
	if err != nil {
		fmt.Println("failed to list holdings:", err)
		return
	}

	fmt.Print("\033[H\033[2J") // clear screen

	if len(open) == 0 {
		fmt.Println("No token holdings yet as of", time.Now().Format(time.RFC3339))
		return
	}

	mints := make([]string, 0, len(open))
	for _, h := range open {
		mints = append(mints, h.Mint)
	}
	prices, err := feed.Prices(ctx, mints)
	if err != nil {
		fmt.Println("latest prices could not be fetched, trying again...")
		return
	}

	for _, h := range open {
		name := h.TokenName
		if name == "N/A" {
			name = h.Mint
		}

		price, ok := prices[h.Mint]
		if !ok {
			fmt.Printf("%s bought %.4f %s for $%.2f (no price datum)\n",
				h.EntryTime.Local().Format("15:04:05"), h.Balance, name, h.SolPaidUSD)
			continue
		}

		pnl, percent := monitor.Unrealized(h.PerTokenUSD, h.Balance, price, h.SolFeePaidUSD)
		icon := "🔴"
		if pnl > 0 {
			icon = "🟢"
		}
		fmt.Printf("%s bought %.4f %s for $%.2f. %s unrealized PnL: $%.2f (%.2f%%)\n",
			h.EntryTime.Local().Format("15:04:05"), h.Balance, name, h.SolPaidUSD, icon, pnl, percent)
	}

	if cfg.Sell.TrackPublicWallet != "" {
		fmt.Println("\nCheck your wallet: https://gmgn.ai/sol/address/" + cfg.Sell.TrackPublicWallet)
	}
}
