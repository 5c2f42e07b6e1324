package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-pool-sniper/internal/config"
)

// TradeRecord is one confirmed buy or sell, archived for later inspection.
type TradeRecord struct {
	Signature string
	Timestamp time.Time
	Side      string // buy | sell
	Mint      string
	TokenName string
	Units     float64
	SolAmount float64
	SolFee    float64
	USDAmount float64
	Slot      uint64
	Program   string
}

// Store archives trades in ClickHouse. Inserts are best effort: the caller
// logs failures but never aborts a trade over them.
type Store struct {
	conn   driver.Conn
	logger *logrus.Logger
}

func NewStore(cfg config.ClickHouseConfig, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.Info("connected to ClickHouse trade archive")

	return &Store{conn: conn, logger: logger}, nil
}

func (s *Store) InsertTrade(ctx context.Context, trade *TradeRecord) error {
	query := `
		INSERT INTO trades (
			signature, timestamp, side, mint, token_name,
			units, sol_amount, sol_fee, usd_amount, slot, program
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		trade.Signature,
		trade.Timestamp,
		trade.Side,
		trade.Mint,
		trade.TokenName,
		trade.Units,
		trade.SolAmount,
		trade.SolFee,
		trade.USDAmount,
		trade.Slot,
		trade.Program,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}
