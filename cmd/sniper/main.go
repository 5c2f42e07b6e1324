package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aman-zulfiqar/solana-pool-sniper/internal/archive"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/config"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/holdings"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/jupiter"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/monitor"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/notify"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/pricefeed"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/rugcheck"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/server"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/sniper"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/swap"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/txdetail"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/wallet"
	"github.com/aman-zulfiqar/solana-pool-sniper/internal/watcher"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("configuration error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("redis unavailable")
	}

	ledger, err := holdings.NewStore(redisClient)
	if err != nil {
		logger.WithError(err).Fatal("holdings store init failed")
	}
	seen, err := holdings.NewSeenStore(redisClient)
	if err != nil {
		logger.WithError(err).Fatal("seen store init failed")
	}

	var senders []notify.Sender
	if cfg.Telegram.Enabled {
		senders = append(senders, notify.NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.GroupID))
	}
	notifier := notify.NewNotifier(logger, senders...)

	var archiver swap.Archiver
	if cfg.ClickHouse.Addr != "" {
		store, err := archive.NewStore(cfg.ClickHouse, logger)
		if err != nil {
			logger.WithError(err).Warn("trade archive unavailable, continuing without it")
		} else {
			defer store.Close()
			archiver = store
		}
	}

	jup := jupiter.NewClient(cfg.Price.JupQuoteURI, cfg.Price.JupSwapURI, cfg.Price.JupPriceURI)

	var chainWallet swap.ChainWallet
	if cfg.Wallet.PrivateKey != "" {
		w, err := wallet.NewWallet(wallet.WalletConfig{
			RPCURL:     cfg.Wallet.RPCURI,
			PrivateKey: cfg.Wallet.PrivateKey,
			Logger:     logger,
		})
		if err != nil {
			logger.WithError(err).Fatal("wallet init failed")
		}
		logger.WithField("address", w.Address()).Info("wallet loaded")
		chainWallet = w
	}

	resolver := txdetail.NewResolver(cfg.Tx, cfg.Pool, logger)

	riskEngine := rugcheck.NewEngine(
		cfg.RugCheck,
		rugcheck.NewClient(cfg.RugCheck.BaseURI, cfg.Tx.GetTimeout),
		seen,
		logger,
	)

	executor := swap.NewExecutor(swap.Options{
		SwapConfig: cfg.Swap,
		SellConfig: cfg.Sell,
		WSOLMint:   cfg.Pool.WSOLMint,
		Quoter:     jup,
		Wallet:     chainWallet,
		Ledger:     ledger,
		Details:    resolver,
		Notifier:   notifier,
		Archiver:   archiver,
		Logger:     logger,
	})

	pipeline := sniper.NewPipeline(cfg.Pool, resolver, riskEngine, executor, logger)

	gate := watcher.NewGate(cfg.Pool.MaxConcurrent)
	poolWatcher := watcher.New(cfg.Pool, gate, pipeline.Process, logger)

	feed := pricefeed.NewFeed(jup, pricefeed.NewDexScreenerSource(cfg.Price.DexScreenerURI), logger)
	exitMonitor := monitor.New(cfg.Sell, cfg.Price, ledger, feed, executor, notifier, logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return poolWatcher.Run(ctx) })
	g.Go(func() error { return exitMonitor.Run(ctx) })

	if cfg.Server.Enabled {
		srv, err := server.NewServer(server.ServerDeps{
			Handlers: &server.Handlers{
				Ledger:     ledger,
				Pricer:     feed,
				Seen:       seen,
				Notifier:   notifier,
				TokenRegex: regexp.MustCompile(cfg.Server.TokenRegex),
				Logger:     logger,
			},
			Config: server.ServerConfig{
				Addr:            cfg.Server.Addr,
				APIKey:          cfg.Server.APIKey,
				WebhookEndpoint: cfg.Server.WebhookEndpoint,
			},
		})
		if err != nil {
			logger.WithError(err).Fatal("server init failed")
		}
		g.Go(func() error { return srv.Start() })
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		logger.WithField("addr", cfg.Server.Addr).Info("operator API listening")
	}

	logger.WithFields(logrus.Fields{
		"program":        cfg.Pool.ProgramID,
		"max_concurrent": cfg.Pool.MaxConcurrent,
		"simulation":     cfg.Swap.SimulationMode,
	}).Info("sniper started")

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.WithError(err).Fatal("sniper stopped")
	}
	logger.Info("shutdown complete")
}
