// Package storage persists trades across restarts so the ping-pong
// matcher can keep pairing against fills from before the last start.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ctubio/tribeca/internal/domain"
)

// TradeRecord is the flat row shape of a persisted trade.
type TradeRecord struct {
	TradeID    string `gorm:"primaryKey"`
	Time       time.Time
	Exchange   string
	Pair       string
	Price      float64
	Quantity   float64
	Side       string
	Value      float64
	Liquidity  string
	FeeCharged *float64
	Kqty       float64
	Kprice     float64
	Kvalue     float64
	Ktime      time.Time
	Kdiff      float64
}

// Store is the SQLite-backed trade persister.
type Store struct {
	db *gorm.DB
}

// Open connects to (and if needed creates) the trade database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&TradeRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Persist inserts a freshly created trade.
func (s *Store) Persist(t domain.Trade) error {
	record := toRecord(t)
	return s.db.Create(&record).Error
}

// Repersist upserts a trade whose counter-fill accumulator changed, or a
// tombstone about to be removed.
func (s *Store) Repersist(t domain.Trade) error {
	record := toRecord(t)
	return s.db.Save(&record).Error
}

// LoadTrades returns every persisted non-tombstoned trade in time order,
// flagged as loaded from history.
func (s *Store) LoadTrades() ([]domain.Trade, error) {
	var records []TradeRecord
	if err := s.db.Where("kqty >= 0").Order("time asc").Find(&records).Error; err != nil {
		return nil, err
	}
	trades := make([]domain.Trade, len(records))
	for i, record := range records {
		trades[i] = fromRecord(record)
	}
	return trades, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecord(t domain.Trade) TradeRecord {
	return TradeRecord{
		TradeID:    t.TradeID,
		Time:       t.Time,
		Exchange:   t.Exchange,
		Pair:       t.Pair.String(),
		Price:      t.Price,
		Quantity:   t.Quantity,
		Side:       t.Side.String(),
		Value:      t.Value,
		Liquidity:  t.Liquidity.String(),
		FeeCharged: t.FeeCharged,
		Kqty:       t.Kqty,
		Kprice:     t.Kprice,
		Kvalue:     t.Kvalue,
		Ktime:      t.Ktime,
		Kdiff:      t.Kdiff,
	}
}

func fromRecord(r TradeRecord) domain.Trade {
	return domain.Trade{
		TradeID:      r.TradeID,
		Time:         r.Time,
		Exchange:     r.Exchange,
		Pair:         parsePair(r.Pair),
		Price:        r.Price,
		Quantity:     r.Quantity,
		Side:         parseSide(r.Side),
		Value:        r.Value,
		Liquidity:    parseLiquidity(r.Liquidity),
		FeeCharged:   r.FeeCharged,
		Kqty:         r.Kqty,
		Kprice:       r.Kprice,
		Kvalue:       r.Kvalue,
		Ktime:        r.Ktime,
		Kdiff:        r.Kdiff,
		LoadedFromDB: true,
	}
}

func parsePair(s string) domain.CurrencyPair {
	base, quote, ok := strings.Cut(s, "/")
	if !ok {
		return domain.CurrencyPair{}
	}
	return domain.CurrencyPair{Base: domain.Currency(base), Quote: domain.Currency(quote)}
}

func parseSide(s string) domain.Side {
	switch s {
	case "Bid":
		return domain.SideBid
	case "Ask":
		return domain.SideAsk
	}
	return domain.SideUnknown
}

func parseLiquidity(s string) domain.Liquidity {
	switch s {
	case "Make":
		return domain.LiquidityMake
	case "Take":
		return domain.LiquidityTake
	}
	return domain.LiquidityUnknown
}
