package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is built once at startup and passed by value into each component.
// Components never read environment variables themselves.
type Config struct {
	Pool     PoolConfig
	Tx       TxConfig
	Swap     SwapConfig
	Sell     SellConfig
	RugCheck RugCheckConfig
	Price    PriceConfig

	Wallet     WalletConfig
	Redis      RedisConfig
	ClickHouse ClickHouseConfig
	Telegram   TelegramConfig
	Server     ServerConfig
}

// PoolConfig describes the liquidity-pool program being watched.
type PoolConfig struct {
	WSSURI         string
	ProgramID      string
	WSOLMint       string
	InitMarker     string
	IgnorePumpFun  bool
	MaxConcurrent  int64
	ReconnectDelay time.Duration
}

// TxConfig controls transaction-detail resolution.
type TxConfig struct {
	DetailURI         string
	FetchMaxRetries   int
	FetchInitialDelay time.Duration
	FetchBackoffBase  time.Duration
	FetchBackoffCap   time.Duration
	GetTimeout        time.Duration
}

// SwapConfig controls the buy side of the executor.
type SwapConfig struct {
	AmountLamports     uint64
	SlippageBps        uint16
	PrioFeeMaxLamports uint64
	PrioLevel          string
	NotTradableRetries int
	NotTradableDelay   time.Duration
	SimulationMode     bool
}

// SellConfig controls the exit side.
type SellConfig struct {
	AutoSell           bool
	StopLossPercent    float64
	TakeProfitPercent  float64
	SlippageBps        uint16
	PrioFeeMaxLamports uint64
	PrioLevel          string
	TrackPublicWallet  string
}

// RugCheckConfig holds the ordered rule thresholds. The allow_* flags invert
// enforcement of the matching rule.
type RugCheckConfig struct {
	BaseURI string

	AllowMintAuthority    bool
	AllowNotInitialized   bool
	AllowFreezeAuthority  bool
	AllowMutable          bool
	AllowInsiderHolders   bool
	AllowRugged           bool
	BlockReturningCreator bool
	ExcludeLPFromHolders  bool

	MaxSingleHolderPct float64
	MinLPProviders     int
	MinMarkets         int
	MinMarketLiquidity float64
	MaxScore           int
	MaxTokenAgeMinutes int

	BlockSymbols     []string
	BlockNames       []string
	LegacyNotAllowed []string
}

// PriceConfig controls the exit monitor's pricing loop.
type PriceConfig struct {
	JupQuoteURI    string
	JupSwapURI     string
	JupPriceURI    string
	DexScreenerURI string

	CheckInterval time.Duration
	MinPriceUSD   float64
	StaleAge      time.Duration
}

type WalletConfig struct {
	RPCURI     string
	PrivateKey string
}

type RedisConfig struct {
	Addr string
	DB   int
}

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

type TelegramConfig struct {
	Enabled  bool
	BotToken string
	GroupID  string
}

type ServerConfig struct {
	Enabled         bool
	Addr            string
	APIKey          string
	WebhookEndpoint string
	TokenRegex      string
}

// Load builds the configuration from the environment. Missing required
// credentials are an error; everything else falls back to defaults taken
// from the operator-tunable ranges this bot has shipped with.
func Load() (*Config, error) {
	cfg := &Config{
		Pool: PoolConfig{
			WSSURI:         os.Getenv("HELIUS_WSS_URI"),
			ProgramID:      getEnv("POOL_PROGRAM_ID", "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"),
			WSOLMint:       getEnv("WSOL_PC_MINT", "So11111111111111111111111111111111111111112"),
			InitMarker:     getEnv("POOL_INIT_MARKER", "initialize2: InitializeInstruction2"),
			IgnorePumpFun:  getBoolEnv("IGNORE_PUMP_FUN", false),
			MaxConcurrent:  int64(getIntEnv("MAX_CONCURRENT_TX", 10)),
			ReconnectDelay: getDurationEnv("WS_RECONNECT_DELAY", 5*time.Second),
		},
		Tx: TxConfig{
			DetailURI:         os.Getenv("HELIUS_HTTPS_URI_TX"),
			FetchMaxRetries:   getIntEnv("TX_FETCH_MAX_RETRIES", 5),
			FetchInitialDelay: getDurationEnv("TX_FETCH_INITIAL_DELAY", 4*time.Second),
			FetchBackoffBase:  getDurationEnv("TX_FETCH_BACKOFF_BASE", 4*time.Second),
			FetchBackoffCap:   getDurationEnv("TX_FETCH_BACKOFF_CAP", 20*time.Second),
			GetTimeout:        getDurationEnv("HTTP_TIMEOUT", 10*time.Second),
		},
		Swap: SwapConfig{
			AmountLamports:     getUint64Env("SWAP_AMOUNT_LAMPORTS", 10_000_000), // 0.01 SOL
			SlippageBps:        uint16(getIntEnv("SWAP_SLIPPAGE_BPS", 200)),
			PrioFeeMaxLamports: getUint64Env("SWAP_PRIO_FEE_MAX_LAMPORTS", 1_000_000),
			PrioLevel:          getEnv("SWAP_PRIO_LEVEL", "veryHigh"),
			NotTradableRetries: getIntEnv("SWAP_NOT_TRADABLE_RETRIES", 5),
			NotTradableDelay:   getDurationEnv("SWAP_NOT_TRADABLE_DELAY", 2*time.Second),
			SimulationMode:     getBoolEnv("SIMULATION_MODE", false),
		},
		Sell: SellConfig{
			AutoSell:           getBoolEnv("AUTO_SELL", true),
			StopLossPercent:    getFloatEnv("STOP_LOSS_PERCENT", 100),
			TakeProfitPercent:  getFloatEnv("TAKE_PROFIT_PERCENT", 20),
			SlippageBps:        uint16(getIntEnv("SELL_SLIPPAGE_BPS", 200)),
			PrioFeeMaxLamports: getUint64Env("SELL_PRIO_FEE_MAX_LAMPORTS", 1_000_000),
			PrioLevel:          getEnv("SELL_PRIO_LEVEL", "veryHigh"),
			TrackPublicWallet:  os.Getenv("TRACK_PUBLIC_WALLET"),
		},
		RugCheck: RugCheckConfig{
			BaseURI:               getEnv("RUGCHECK_HTTPS_URI", "https://api.rugcheck.xyz/v1"),
			AllowMintAuthority:    getBoolEnv("ALLOW_MINT_AUTHORITY", false),
			AllowNotInitialized:   getBoolEnv("ALLOW_NOT_INITIALIZED", false),
			AllowFreezeAuthority:  getBoolEnv("ALLOW_FREEZE_AUTHORITY", false),
			AllowMutable:          getBoolEnv("ALLOW_MUTABLE", false),
			AllowInsiderHolders:   getBoolEnv("ALLOW_INSIDER_TOPHOLDERS", false),
			AllowRugged:           getBoolEnv("ALLOW_RUGGED", false),
			BlockReturningCreator: getBoolEnv("BLOCK_RETURNING_CREATORS", false),
			ExcludeLPFromHolders:  getBoolEnv("EXCLUDE_LP_FROM_TOPHOLDERS", true),
			MaxSingleHolderPct:    getFloatEnv("MAX_ALLOWED_PCT_TOPHOLDERS", 30),
			MinLPProviders:        getIntEnv("MIN_TOTAL_LP_PROVIDERS", 0),
			MinMarkets:            getIntEnv("MIN_TOTAL_MARKETS", 0),
			MinMarketLiquidity:    getFloatEnv("MIN_TOTAL_MARKET_LIQUIDITY", 1000),
			MaxScore:              getIntEnv("RUG_MAX_SCORE", 0),
			MaxTokenAgeMinutes:    getIntEnv("MAX_TOKEN_AGE_MINUTES", 0),
			BlockSymbols:          getListEnv("BLOCK_SYMBOLS"),
			BlockNames:            getListEnv("BLOCK_NAMES"),
			LegacyNotAllowed:      getListEnv("RUG_LEGACY_NOT_ALLOWED", "Freeze Authority still enabled", "Copycat token"),
		},
		Price: PriceConfig{
			JupQuoteURI:    os.Getenv("JUP_HTTPS_QUOTE_URI"),
			JupSwapURI:     os.Getenv("JUP_HTTPS_SWAP_URI"),
			JupPriceURI:    os.Getenv("JUP_HTTPS_PRICE_URI"),
			DexScreenerURI: getEnv("DEX_HTTPS_LATEST_TOKENS", "https://api.dexscreener.com/latest/dex/tokens"),
			CheckInterval:  getDurationEnv("PRICE_CHECK_INTERVAL", 5*time.Second),
			MinPriceUSD:    getFloatEnv("MIN_PRICE_USD", 0.000003),
			StaleAge:       getDurationEnv("POSITION_STALE_AGE", time.Hour),
		},
		Wallet: WalletConfig{
			RPCURI:     os.Getenv("HELIUS_HTTPS_URI"),
			PrivateKey: os.Getenv("PRIV_KEY_WALLET"),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
			DB:   getIntEnv("REDIS_DB", 0),
		},
		ClickHouse: ClickHouseConfig{
			Addr:     os.Getenv("CLICKHOUSE_ADDR"),
			Database: getEnv("CLICKHOUSE_DATABASE", "sniper"),
			Username: getEnv("CLICKHOUSE_USERNAME", "default"),
			Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		},
		Telegram: TelegramConfig{
			Enabled:  getBoolEnv("TELEGRAM_ENABLED", false),
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			GroupID:  os.Getenv("TELEGRAM_GROUP_ID"),
		},
		Server: ServerConfig{
			Enabled:         getBoolEnv("SERVER_ENABLED", true),
			Addr:            getEnv("SERVER_ADDR", ":8090"),
			APIKey:          os.Getenv("SERVER_API_KEY"),
			WebhookEndpoint: getEnv("WEBHOOK_ENDPOINT", "/v1/webhook"),
			TokenRegex:      getEnv("WEBHOOK_TOKEN_REGEX", `[1-9A-HJ-NP-Za-km-z]{32,44}`),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	required := map[string]string{
		"HELIUS_WSS_URI":      c.Pool.WSSURI,
		"HELIUS_HTTPS_URI":    c.Wallet.RPCURI,
		"HELIUS_HTTPS_URI_TX": c.Tx.DetailURI,
		"JUP_HTTPS_QUOTE_URI": c.Price.JupQuoteURI,
		"JUP_HTTPS_SWAP_URI":  c.Price.JupSwapURI,
		"JUP_HTTPS_PRICE_URI": c.Price.JupPriceURI,
	}
	var missing []string
	for name, v := range required {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if !c.Swap.SimulationMode && strings.TrimSpace(c.Wallet.PrivateKey) == "" {
		return fmt.Errorf("PRIV_KEY_WALLET is required unless SIMULATION_MODE=true")
	}

	if err := checkScheme("HELIUS_WSS_URI", c.Pool.WSSURI, "wss"); err != nil {
		return err
	}
	for name, v := range map[string]string{
		"HELIUS_HTTPS_URI":    c.Wallet.RPCURI,
		"HELIUS_HTTPS_URI_TX": c.Tx.DetailURI,
		"JUP_HTTPS_QUOTE_URI": c.Price.JupQuoteURI,
		"JUP_HTTPS_SWAP_URI":  c.Price.JupSwapURI,
		"JUP_HTTPS_PRICE_URI": c.Price.JupPriceURI,
	} {
		if err := checkScheme(name, v, "https"); err != nil {
			return err
		}
	}

	if c.Pool.MaxConcurrent < 1 {
		return fmt.Errorf("MAX_CONCURRENT_TX must be at least 1")
	}
	if c.Tx.FetchMaxRetries < 1 {
		return fmt.Errorf("TX_FETCH_MAX_RETRIES must be at least 1")
	}
	return nil
}

func checkScheme(name, raw, scheme string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != scheme {
		return fmt.Errorf("%s must use %s://", name, scheme)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getUint64Env(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseUint(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getListEnv(key string, defaults ...string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaults
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
