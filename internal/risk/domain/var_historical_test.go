package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rampSeries 收益从 -0.05 到 0.05 等距排布（101 期），分位点可以手算
func rampSeries(instrument string) ReturnSeries {
	returns := make([]float64, 101)
	for i := range returns {
		returns[i] = float64(i-50) / 1000
	}
	return ReturnSeries{InstrumentID: instrument, Returns: returns, PeriodLengthDays: 1}
}

// 重放已知分布：101 期损益 -5.0..5.0，95% 分位对应精确值
func TestHistoricalReplayKnownQuantile(t *testing.T) {
	params := DefaultRiskParameters()
	calc := NewHistoricalCalculator(params)
	snapshot := usdSnapshot(mtPosition("CRUDE.BRENT", "CP-GLENCORE", 1, 100))
	series := map[string]ReturnSeries{"CRUDE.BRENT": rampSeries("CRUDE.BRENT")}
	inputs, err := NewVolatilityEstimator(params).Estimate(snapshot, series)
	require.NoError(t, err)

	result, err := calc.Compute(context.Background(), snapshot, inputs,
		&RiskCalculationRequest{Methods: []Method{MethodHistorical}, ConfidenceLevel: 0.95, HorizonDays: 1})
	require.NoError(t, err)

	// rank = 0.05·100 = 5 → 排序后第 5 位损益 = -4.5
	assert.InDelta(t, 4.5, result.Value.InexactFloat64(), 1e-9)
	// 尾部均值 = mean(-5.0..-4.5) = -4.75
	assert.InDelta(t, 4.75, result.ExpectedShortfall.InexactFloat64(), 1e-9)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, MethodHistorical, result.Method)
}

// 历史法同样遵守平方根时间缩放
func TestHistoricalHorizonScaling(t *testing.T) {
	params := DefaultRiskParameters()
	calc := NewHistoricalCalculator(params)
	snapshot := usdSnapshot(mtPosition("CRUDE.BRENT", "CP-GLENCORE", 1, 100))
	series := map[string]ReturnSeries{"CRUDE.BRENT": rampSeries("CRUDE.BRENT")}
	inputs, err := NewVolatilityEstimator(params).Estimate(snapshot, series)
	require.NoError(t, err)

	fourDay, err := calc.Compute(context.Background(), snapshot, inputs,
		&RiskCalculationRequest{Methods: []Method{MethodHistorical}, ConfidenceLevel: 0.95, HorizonDays: 4})
	require.NoError(t, err)
	assert.InDelta(t, 9.0, fourDay.Value.InexactFloat64(), 1e-9)
}

// 对齐后样本量不足时退化为参数法，结果仍按 HISTORICAL 上报并带警告
func TestHistoricalFallsBackOnShortAlignedSample(t *testing.T) {
	params := DefaultRiskParameters()
	calc := NewHistoricalCalculator(params)
	snapshot := usdSnapshot(
		mtPosition("CRUDE.BRENT", "CP-GLENCORE", 1000, 85),
		mtPosition("CRUDE.URALS", "CP-LITASCO", 500, 60),
	)
	series := map[string]ReturnSeries{
		"CRUDE.BRENT": alternatingSeries("CRUDE.BRENT", 60, 0.012),
		"CRUDE.URALS": alternatingSeries("CRUDE.URALS", 10, 0.02),
	}
	inputs, err := NewVolatilityEstimator(params).Estimate(snapshot, series)
	require.NoError(t, err)

	req := &RiskCalculationRequest{Methods: []Method{MethodHistorical}, ConfidenceLevel: 0.95, HorizonDays: 1}
	result, err := calc.Compute(context.Background(), snapshot, inputs, req)
	require.NoError(t, err)

	assert.Equal(t, MethodHistorical, result.Method)
	assert.Contains(t, result.Warnings, WarnHistoricalFallback(10, params.MinimumWindowLength))

	// 数值应与同一输入下的参数法一致
	dn, err := NewDeltaNormalCalculator(params).Compute(context.Background(), snapshot, inputs, req)
	require.NoError(t, err)
	assert.True(t, result.Value.Equal(dn.Value))
}

// 两个品种内连接对齐：较短序列决定有效样本
func TestHistoricalInnerJoinAlignment(t *testing.T) {
	params := DefaultRiskParameters()
	calc := NewHistoricalCalculator(params)
	snapshot := usdSnapshot(
		mtPosition("CRUDE.BRENT", "CP-GLENCORE", 1, 100),
		mtPosition("CRUDE.WTI", "CP-VITOL", 1, 100),
	)
	// BRENT 60 期，WTI 只有 40 期：重放只用两者共有的最后 40 期
	brent := rampSeries("CRUDE.BRENT")
	brent.Returns = brent.Returns[:60]
	wti := ReturnSeries{InstrumentID: "CRUDE.WTI", PeriodLengthDays: 1}
	wti.Returns = make([]float64, 40)
	inputs, err := NewVolatilityEstimator(params).Estimate(snapshot, map[string]ReturnSeries{
		"CRUDE.BRENT": brent,
		"CRUDE.WTI":   wti,
	})
	require.NoError(t, err)

	result, err := calc.Compute(context.Background(), snapshot, inputs,
		&RiskCalculationRequest{Methods: []Method{MethodHistorical}, ConfidenceLevel: 0.95, HorizonDays: 1})
	require.NoError(t, err)

	// WTI 收益恒为 0，组合损益完全由 BRENT 最后 40 期决定：
	// 100·r，r ∈ {-0.030..0.009}，rank = 0.05·39 = 1.95 → -3.0 + 1.95·0.1 = -2.805
	assert.InDelta(t, 2.805, result.Value.InexactFloat64(), 1e-9)
	assert.Empty(t, result.Warnings)
}

// 历史法的置信水平单调性
func TestHistoricalConfidenceMonotonicity(t *testing.T) {
	params := DefaultRiskParameters()
	calc := NewHistoricalCalculator(params)
	snapshot := usdSnapshot(mtPosition("CRUDE.BRENT", "CP-GLENCORE", 1, 100))
	series := map[string]ReturnSeries{"CRUDE.BRENT": rampSeries("CRUDE.BRENT")}
	inputs, err := NewVolatilityEstimator(params).Estimate(snapshot, series)
	require.NoError(t, err)

	v95, err := calc.Compute(context.Background(), snapshot, inputs,
		&RiskCalculationRequest{Methods: []Method{MethodHistorical}, ConfidenceLevel: 0.95, HorizonDays: 1})
	require.NoError(t, err)
	v99, err := calc.Compute(context.Background(), snapshot, inputs,
		&RiskCalculationRequest{Methods: []Method{MethodHistorical}, ConfidenceLevel: 0.99, HorizonDays: 1})
	require.NoError(t, err)

	assert.True(t, v99.Value.GreaterThanOrEqual(v95.Value))
}
