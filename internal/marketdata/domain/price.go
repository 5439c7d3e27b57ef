// Package domain 行情上下文的领域模型：日收盘价与对数收益序列
package domain

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	riskdomain "github.com/oiltrading/riskengine/internal/risk/domain"
	"github.com/oiltrading/riskengine/pkg/logger"
)

// ClosingPrice 单个品种某交易日的收盘价
// (InstrumentID, TradeDate) 唯一，同键重复摄入视为修正，后到覆盖先到。
type ClosingPrice struct {
	InstrumentID string          `json:"instrument_id"`
	TradeDate    time.Time       `json:"trade_date"`
	Close        decimal.Decimal `json:"close"`
	Currency     string          `json:"currency"`
}

// Valid 收盘价是否可用于收益计算（必须为正）
func (p *ClosingPrice) Valid() bool {
	return p.Close.IsPositive()
}

// PriceRepository 收盘价仓储端口
type PriceRepository interface {
	// Upsert 幂等写入，(instrument_id, trade_date) 冲突时更新收盘价
	Upsert(ctx context.Context, price *ClosingPrice) error
	// RecentCloses 按交易日升序返回最近 limit 条收盘价
	RecentCloses(ctx context.Context, instrumentID string, limit int) ([]*ClosingPrice, error)
}

// BuildReturnSeries 由按交易日升序的收盘价构建对数收益序列 ln(P_t / P_{t-1})
// 非正收盘价无法取对数，跳过该价位并断开相邻收益（记一条警告日志）。
func BuildReturnSeries(ctx context.Context, instrumentID string, closes []*ClosingPrice) riskdomain.ReturnSeries {
	returns := make([]float64, 0, len(closes))
	var prev float64

	for _, c := range closes {
		px := c.Close.InexactFloat64()
		if px <= 0 {
			logger.Warn(ctx, "skipping non-positive close price",
				"instrument_id", instrumentID,
				"trade_date", c.TradeDate.Format("2006-01-02"),
				"close", c.Close.String(),
			)
			prev = 0
			continue
		}
		if prev > 0 {
			returns = append(returns, math.Log(px/prev))
		}
		prev = px
	}

	return riskdomain.ReturnSeries{
		InstrumentID:     instrumentID,
		Returns:          returns,
		PeriodLengthDays: 1,
	}
}
