package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oiltrading/riskengine/pkg/utils"
)

// Position 风险快照中的一笔持仓（不可变值对象）
// Quantity 带符号：正为多头，负为空头。
type Position struct {
	InstrumentID   string          `json:"instrument_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           string          `json:"unit"` // MT, BBL
	ReferencePrice decimal.Decimal `json:"reference_price"`
	Currency       string          `json:"currency"`
	CounterpartyID string          `json:"counterparty_id"`
}

// MarketValue 持仓市值（带符号）
func (p Position) MarketValue() decimal.Decimal {
	return p.Quantity.Mul(p.ReferencePrice)
}

// Exposure 持仓敞口（市值绝对值）
func (p Position) Exposure() decimal.Decimal {
	return p.MarketValue().Abs()
}

// PortfolioSnapshot 某一时点的持仓簿快照
// 快照归属于创建它的计算请求，跨请求不共享可变状态。
type PortfolioSnapshot struct {
	Positions []Position `json:"positions"`
	Timestamp time.Time  `json:"timestamp"`
	Currency  string     `json:"currency"` // 估值货币
}

// IsEmpty 快照是否为空
func (s *PortfolioSnapshot) IsEmpty() bool {
	return s == nil || len(s.Positions) == 0
}

// TotalAbsoluteExposure 总绝对敞口 Σ|市值|
func (s *PortfolioSnapshot) TotalAbsoluteExposure() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Positions {
		total = total.Add(p.Exposure())
	}
	return total
}

// InstrumentIDs 快照中去重后的品种列表（按字典序，保证矩阵维度有确定顺序）
func (s *PortfolioSnapshot) InstrumentIDs() []string {
	seen := make(map[string]struct{}, len(s.Positions))
	ids := make([]string, 0, len(s.Positions))
	for _, p := range s.Positions {
		if _, ok := seen[p.InstrumentID]; ok {
			continue
		}
		seen[p.InstrumentID] = struct{}{}
		ids = append(ids, p.InstrumentID)
	}
	slices.Sort(ids)
	return ids
}

// InstrumentValues 按品种聚合的带符号市值，顺序与 InstrumentIDs 一致
func (s *PortfolioSnapshot) InstrumentValues() ([]string, []float64) {
	ids := s.InstrumentIDs()
	byID := make(map[string]decimal.Decimal, len(ids))
	for _, p := range s.Positions {
		byID[p.InstrumentID] = byID[p.InstrumentID].Add(p.MarketValue())
	}
	values := make([]float64, len(ids))
	for i, id := range ids {
		values[i] = byID[id].InexactFloat64()
	}
	return ids, values
}

// Hash 快照内容哈希，用于结果缓存与落库去重
// 对持仓做规范化排序后取 SHA-256，同一内容必得同一哈希。
func (s *PortfolioSnapshot) Hash() string {
	lines := make([]string, 0, len(s.Positions))
	for _, p := range s.Positions {
		lines = append(lines, fmt.Sprintf("%s|%s|%s|%s|%s|%s",
			p.InstrumentID, p.Quantity.String(), p.Unit,
			p.ReferencePrice.String(), p.Currency, p.CounterpartyID))
	}
	slices.Sort(lines)
	return utils.SHA256Hash(s.Currency + "\n" + strings.Join(lines, "\n"))
}
