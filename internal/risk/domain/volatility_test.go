package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 数据不足的品种使用回退波动率并产生带品种标识的警告，而不是报错
func TestEstimateFallbackOnShortSeries(t *testing.T) {
	params := DefaultRiskParameters()
	est := NewVolatilityEstimator(params)
	snapshot := usdSnapshot(mtPosition("CRUDE.URALS", "CP-LITASCO", 500, 60))
	series := map[string]ReturnSeries{
		"CRUDE.URALS": {InstrumentID: "CRUDE.URALS", Returns: []float64{0.01, -0.02, 0.005}, PeriodLengthDays: 1},
	}

	inputs, err := est.Estimate(snapshot, series)
	require.NoError(t, err)
	assert.Equal(t, params.FallbackVolatility, inputs.Vols["CRUDE.URALS"])
	assert.True(t, inputs.Fallback["CRUDE.URALS"])
	assert.Contains(t, inputs.Warnings, "fallback volatility used for CRUDE.URALS")
}

// 序列完全缺失等同于数据不足
func TestEstimateFallbackOnMissingSeries(t *testing.T) {
	params := DefaultRiskParameters()
	est := NewVolatilityEstimator(params)
	snapshot := usdSnapshot(mtPosition("GASOIL.ARA", "CP-TRAFIGURA", 200, 700))

	inputs, err := est.Estimate(snapshot, map[string]ReturnSeries{})
	require.NoError(t, err)
	assert.True(t, inputs.Fallback["GASOIL.ARA"])
	assert.Contains(t, inputs.Warnings, WarnFallbackVolatility("GASOIL.ARA"))
}

// NaN/Inf 先剔除再判窗口长度：名义 35 期、有效 25 期仍触发回退
func TestEstimateDropsNonFiniteBeforeWindowCheck(t *testing.T) {
	params := DefaultRiskParameters()
	est := NewVolatilityEstimator(params)
	returns := make([]float64, 35)
	for i := range returns {
		returns[i] = 0.01
		if i%2 == 0 {
			returns[i] = -0.01
		}
	}
	for i := 0; i < 10; i++ {
		returns[i*3] = math.NaN()
	}
	snapshot := usdSnapshot(mtPosition("CRUDE.BRENT", "CP-GLENCORE", 100, 85))
	series := map[string]ReturnSeries{
		"CRUDE.BRENT": {InstrumentID: "CRUDE.BRENT", Returns: returns, PeriodLengthDays: 1},
	}

	inputs, err := est.Estimate(snapshot, series)
	require.NoError(t, err)
	assert.True(t, inputs.Fallback["CRUDE.BRENT"])
	assert.Len(t, inputs.Series["CRUDE.BRENT"].Returns, 25)
}

// 样本模式：无偏标准差 × sqrt(年化期数)
func TestEstimateSampleVolatilityAnnualized(t *testing.T) {
	params := DefaultRiskParameters()
	est := NewVolatilityEstimator(params)
	n, r := 40, 0.01
	snapshot := usdSnapshot(mtPosition("CRUDE.BRENT", "CP-GLENCORE", 100, 85))
	series := map[string]ReturnSeries{"CRUDE.BRENT": alternatingSeries("CRUDE.BRENT", n, r)}

	inputs, err := est.Estimate(snapshot, series)
	require.NoError(t, err)

	// 交替 ±r 序列均值为 0，样本方差 = n·r²/(n-1)
	expected := math.Sqrt(float64(n)*r*r/float64(n-1)) * math.Sqrt(252)
	assert.InEpsilon(t, expected, inputs.Vols["CRUDE.BRENT"], 1e-9)
	assert.Empty(t, inputs.Warnings)
}

// EWMA 模式：sigma²_t = lambda*sigma²_{t-1} + (1-lambda)*r²_t
func TestEstimateEWMAVolatility(t *testing.T) {
	params := DefaultRiskParameters()
	params.VolatilityMode = VolatilityModeEWMA
	params.MinimumWindowLength = 2
	est := NewVolatilityEstimator(params)
	snapshot := usdSnapshot(mtPosition("CRUDE.BRENT", "CP-GLENCORE", 100, 85))
	series := map[string]ReturnSeries{
		"CRUDE.BRENT": {InstrumentID: "CRUDE.BRENT", Returns: []float64{0.01, 0.02}, PeriodLengthDays: 1},
	}

	inputs, err := est.Estimate(snapshot, series)
	require.NoError(t, err)

	variance := 0.94*0.01*0.01 + 0.06*0.02*0.02
	expected := math.Sqrt(variance) * math.Sqrt(252)
	assert.InEpsilon(t, expected, inputs.Vols["CRUDE.BRENT"], 1e-9)
}

// 完全同向的两条序列 Pearson 相关为 1，反向为 -1
func TestEstimatePairwiseCorrelation(t *testing.T) {
	params := DefaultRiskParameters()
	est := NewVolatilityEstimator(params)
	base := alternatingSeries("CRUDE.BRENT", 40, 0.01)
	scaled := ReturnSeries{InstrumentID: "CRUDE.WTI", PeriodLengthDays: 1}
	inverted := ReturnSeries{InstrumentID: "GASOIL.ARA", PeriodLengthDays: 1}
	for _, r := range base.Returns {
		scaled.Returns = append(scaled.Returns, 2*r)
		inverted.Returns = append(inverted.Returns, -r)
	}
	snapshot := usdSnapshot(
		mtPosition("CRUDE.BRENT", "CP-GLENCORE", 100, 85),
		mtPosition("CRUDE.WTI", "CP-VITOL", 100, 80),
		mtPosition("GASOIL.ARA", "CP-TRAFIGURA", 100, 700),
	)
	series := map[string]ReturnSeries{
		"CRUDE.BRENT": base,
		"CRUDE.WTI":   scaled,
		"GASOIL.ARA":  inverted,
	}

	inputs, err := est.Estimate(snapshot, series)
	require.NoError(t, err)

	// Instruments 按字典序：BRENT=0, WTI=1, GASOIL=2
	require.Equal(t, []string{"CRUDE.BRENT", "CRUDE.WTI", "GASOIL.ARA"}, inputs.Instruments)
	assert.InDelta(t, 1.0, inputs.Correlation.At(0, 1), 1e-9)
	assert.InDelta(t, -1.0, inputs.Correlation.At(0, 2), 1e-9)
	assert.InDelta(t, -1.0, inputs.Correlation.At(1, 2), 1e-9)
	assert.Empty(t, inputs.Warnings)
}

// 任一侧回退的品种对使用配置的回退相关系数
func TestEstimateFallbackCorrelationPair(t *testing.T) {
	params := DefaultRiskParameters()
	est := NewVolatilityEstimator(params)
	snapshot := usdSnapshot(
		mtPosition("CRUDE.BRENT", "CP-GLENCORE", 100, 85),
		mtPosition("CRUDE.URALS", "CP-LITASCO", 100, 60),
	)
	series := map[string]ReturnSeries{
		"CRUDE.BRENT": alternatingSeries("CRUDE.BRENT", 40, 0.01),
		"CRUDE.URALS": {InstrumentID: "CRUDE.URALS", Returns: []float64{0.01, 0.02}, PeriodLengthDays: 1},
	}

	inputs, err := est.Estimate(snapshot, series)
	require.NoError(t, err)
	assert.InDelta(t, params.FallbackCorrelation, inputs.Correlation.At(0, 1), 1e-12)
	assert.Contains(t, inputs.Warnings, WarnFallbackCorrelation("CRUDE.BRENT", "CRUDE.URALS"))
}

// 相同输入必须产生相同输出（组件内无随机性）
func TestEstimateDeterministic(t *testing.T) {
	params := DefaultRiskParameters()
	snapshot := usdSnapshot(
		mtPosition("CRUDE.BRENT", "CP-GLENCORE", 100, 85),
		mtPosition("CRUDE.WTI", "CP-VITOL", -50, 80),
	)
	series := map[string]ReturnSeries{
		"CRUDE.BRENT": alternatingSeries("CRUDE.BRENT", 60, 0.012),
		"CRUDE.WTI":   alternatingSeries("CRUDE.WTI", 48, 0.02),
	}

	a, err := NewVolatilityEstimator(params).Estimate(snapshot, series)
	require.NoError(t, err)
	b, err := NewVolatilityEstimator(params).Estimate(snapshot, series)
	require.NoError(t, err)

	assert.Equal(t, a.Vols, b.Vols)
	assert.Equal(t, a.Warnings, b.Warnings)
	for i := 0; i < a.Correlation.Dim(); i++ {
		for j := 0; j < a.Correlation.Dim(); j++ {
			assert.Equal(t, a.Correlation.At(i, j), b.Correlation.At(i, j))
		}
	}
}

// 分散化收益：相关系数小于 1 时组合波动率严格小于加权波动率之和
func TestDiversificationReducesPortfolioVolatility(t *testing.T) {
	inputs := pairVolInputs([2]float64{100, 100}, [2]float64{0.2, 0.2}, 0.5)

	dollar, err := inputs.DollarVolatility()
	require.NoError(t, err)

	naive := 100*0.2 + 100*0.2
	assert.Less(t, dollar, naive)
	// w'Σw = 400 + 400 + 2·0.5·400 = 1200
	assert.InDelta(t, math.Sqrt(1200), dollar, 1e-9)
}
