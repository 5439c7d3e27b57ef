// Package application 行情上下文的用例逻辑：收盘价摄入与收益序列查询
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oiltrading/riskengine/internal/marketdata/domain"
	riskdomain "github.com/oiltrading/riskengine/internal/risk/domain"
	"github.com/oiltrading/riskengine/pkg/logger"
)

// IngestPriceCommand 收盘价摄入命令 DTO
type IngestPriceCommand struct {
	InstrumentID string `json:"instrument_id"`
	TradeDate    string `json:"trade_date"` // 格式 2006-01-02
	Close        string `json:"close"`
	Currency     string `json:"currency"`
}

// PriceIngestionService 收盘价摄入服务
// 以 (instrument_id, trade_date) 为幂等键：重复摄入同键价格视为修正。
type PriceIngestionService struct {
	repo domain.PriceRepository
}

// NewPriceIngestionService 创建收盘价摄入服务
func NewPriceIngestionService(repo domain.PriceRepository) *PriceIngestionService {
	return &PriceIngestionService{repo: repo}
}

// IngestPrice 摄入单条收盘价
func (s *PriceIngestionService) IngestPrice(ctx context.Context, cmd IngestPriceCommand) error {
	if cmd.InstrumentID == "" {
		return fmt.Errorf("instrument_id is required")
	}

	tradeDate, err := time.Parse("2006-01-02", cmd.TradeDate)
	if err != nil {
		return fmt.Errorf("invalid trade_date %q: %w", cmd.TradeDate, err)
	}

	px, err := decimal.NewFromString(cmd.Close)
	if err != nil {
		return fmt.Errorf("invalid close price %q: %w", cmd.Close, err)
	}

	price := &domain.ClosingPrice{
		InstrumentID: cmd.InstrumentID,
		TradeDate:    tradeDate,
		Close:        px,
		Currency:     cmd.Currency,
	}
	if !price.Valid() {
		return fmt.Errorf("close price must be positive, got %s", px.String())
	}

	if err := s.repo.Upsert(ctx, price); err != nil {
		logger.Error(ctx, "Failed to upsert closing price",
			"instrument_id", cmd.InstrumentID,
			"trade_date", cmd.TradeDate,
			"error", err,
		)
		return fmt.Errorf("failed to store closing price: %w", err)
	}

	logger.Debug(ctx, "Closing price ingested",
		"instrument_id", cmd.InstrumentID,
		"trade_date", cmd.TradeDate,
		"close", px.String(),
	)
	return nil
}

// PriceQueryService 收益序列查询服务，实现风险上下文的 ReturnSeriesProvider 端口
type PriceQueryService struct {
	repo domain.PriceRepository
}

// NewPriceQueryService 创建收益序列查询服务
func NewPriceQueryService(repo domain.PriceRepository) *PriceQueryService {
	return &PriceQueryService{repo: repo}
}

var _ riskdomain.ReturnSeriesProvider = (*PriceQueryService)(nil)

// SeriesForInstruments 返回各品种最近 lookback 期的对数收益序列
// lookback 期收益需要 lookback+1 个收盘价；存量不足时返回能构建的部分，
// 样本量是否充分由风险侧的波动率估计器判定。
func (s *PriceQueryService) SeriesForInstruments(ctx context.Context, instrumentIDs []string, lookback int) (map[string]riskdomain.ReturnSeries, error) {
	series := make(map[string]riskdomain.ReturnSeries, len(instrumentIDs))

	for _, id := range instrumentIDs {
		closes, err := s.repo.RecentCloses(ctx, id, lookback+1)
		if err != nil {
			return nil, fmt.Errorf("failed to load closes for %s: %w", id, err)
		}
		series[id] = domain.BuildReturnSeries(ctx, id, closes)
	}

	return series, nil
}
