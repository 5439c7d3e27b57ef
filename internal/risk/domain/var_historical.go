package domain

import (
	"context"
	"math"

	"github.com/shopspring/decimal"
)

// HistoricalCalculator 历史模拟法 VaR
// 把当前持仓逐期回放到历史联合收益上，取经验分位数。
type HistoricalCalculator struct {
	params   RiskParameters
	fallback *DeltaNormalCalculator
}

// NewHistoricalCalculator 创建历史模拟法计算器
func NewHistoricalCalculator(params RiskParameters) *HistoricalCalculator {
	params = params.Normalize()
	return &HistoricalCalculator{
		params:   params,
		fallback: NewDeltaNormalCalculator(params),
	}
}

// Method 方法标识
func (c *HistoricalCalculator) Method() Method { return MethodHistorical }

// Compute 历史重放 VaR
//
// 各品种序列按期对齐（内连接，最短序列决定有效样本量），
// 对齐后样本量不足最小窗口时退化为参数法并附带警告；
// 结果仍按 HISTORICAL 方法上报，警告说明退化原因。
func (c *HistoricalCalculator) Compute(ctx context.Context, snapshot *PortfolioSnapshot, inputs *VolatilityInputs, req *RiskCalculationRequest) (*VaRResult, error) {
	result := &VaRResult{
		Method:            MethodHistorical,
		ConfidenceLevel:   req.ConfidenceLevel,
		HorizonDays:       req.HorizonDays,
		Currency:          snapshot.Currency,
		Value:             decimal.Zero,
		ExpectedShortfall: decimal.Zero,
	}
	if snapshot.IsEmpty() {
		return result, nil
	}

	aligned, sample := AlignSeries(inputs.Instruments, inputs.Series)
	if sample < c.params.MinimumWindowLength {
		fb, err := c.fallback.Compute(ctx, snapshot, inputs, req)
		if err != nil {
			return nil, err
		}
		fb.Method = MethodHistorical
		fb.Warnings = append(fb.Warnings, WarnHistoricalFallback(sample, c.params.MinimumWindowLength))
		return fb, nil
	}

	pnls := make([]float64, sample)
	for t := 0; t < sample; t++ {
		pnl := 0.0
		for i, value := range inputs.Values {
			pnl += value * aligned[t][i]
		}
		pnls[t] = pnl
	}

	dist := NewPnLDistribution(pnls)
	scale := math.Sqrt(float64(req.HorizonDays) / float64(c.replayPeriodDays(inputs)))
	result.Value = decimal.NewFromFloat(dist.VaR(req.ConfidenceLevel) * scale)
	result.ExpectedShortfall = decimal.NewFromFloat(dist.ExpectedShortfall(req.ConfidenceLevel) * scale)
	return result, nil
}

// replayPeriodDays 回放期的自然天数，序列周期不一致时取最长
func (c *HistoricalCalculator) replayPeriodDays(inputs *VolatilityInputs) int {
	days := 1
	for _, id := range inputs.Instruments {
		if s, ok := inputs.Series[id]; ok && s.PeriodLengthDays > days {
			days = s.PeriodLengthDays
		}
	}
	return days
}
