package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 对手方占 60% 对限额 50%：恰好一条越限记录，份额精确为 0.60
func TestConcentrationSingleCounterpartyBreach(t *testing.T) {
	params := DefaultRiskParameters()
	params.CounterpartyConcentrationLimit = 0.50
	params.InstrumentConcentrationLimit = 0.95
	analyzer := NewConcentrationAnalyzer(params)

	snapshot := usdSnapshot(
		mtPosition("CRUDE.BRENT", "CP-ALPHA", 600, 1),
		mtPosition("CRUDE.WTI", "CP-BETA", 400, 1),
	)
	report := analyzer.Analyze(snapshot)

	assert.InDelta(t, 0.60, report.CounterpartyShares["CP-ALPHA"], 1e-9)
	assert.InDelta(t, 0.40, report.CounterpartyShares["CP-BETA"], 1e-9)

	require.Len(t, report.Breaches, 1)
	breach := report.Breaches[0]
	assert.Equal(t, BreachKindCounterparty, breach.Kind)
	assert.Equal(t, "CP-ALPHA", breach.Entity)
	assert.InDelta(t, 0.60, breach.Share, 1e-9)
	assert.InDelta(t, 0.50, breach.Limit, 1e-9)
}

// 份额以绝对敞口计：空头贡献同样计入分母与分子
func TestConcentrationUsesAbsoluteExposure(t *testing.T) {
	params := DefaultRiskParameters()
	params.CounterpartyConcentrationLimit = 0.95
	params.InstrumentConcentrationLimit = 0.95
	analyzer := NewConcentrationAnalyzer(params)

	snapshot := usdSnapshot(
		mtPosition("CRUDE.BRENT", "CP-ALPHA", 600, 1),
		mtPosition("CRUDE.WTI", "CP-BETA", -400, 1),
	)
	report := analyzer.Analyze(snapshot)

	assert.InDelta(t, 0.60, report.CounterpartyShares["CP-ALPHA"], 1e-9)
	assert.InDelta(t, 0.40, report.CounterpartyShares["CP-BETA"], 1e-9)
	assert.InDelta(t, 0.40, report.InstrumentShares["CRUDE.WTI"], 1e-9)
	assert.Empty(t, report.Breaches)
}

// 份额恰好等于限额不算越限：判定是严格大于
func TestConcentrationShareEqualToLimitIsNotBreach(t *testing.T) {
	params := DefaultRiskParameters()
	params.CounterpartyConcentrationLimit = 0.50
	params.InstrumentConcentrationLimit = 0.50
	analyzer := NewConcentrationAnalyzer(params)

	snapshot := usdSnapshot(
		mtPosition("CRUDE.BRENT", "CP-ALPHA", 500, 1),
		mtPosition("CRUDE.WTI", "CP-BETA", 500, 1),
	)
	report := analyzer.Analyze(snapshot)
	assert.Empty(t, report.Breaches)
}

// 同一对手方可以同时触发对手方与品种两类越限
func TestConcentrationBreachesBothKinds(t *testing.T) {
	params := DefaultRiskParameters()
	params.CounterpartyConcentrationLimit = 0.50
	params.InstrumentConcentrationLimit = 0.50
	analyzer := NewConcentrationAnalyzer(params)

	snapshot := usdSnapshot(
		mtPosition("CRUDE.BRENT", "CP-ALPHA", 700, 1),
		mtPosition("CRUDE.WTI", "CP-BETA", 300, 1),
	)
	report := analyzer.Analyze(snapshot)

	require.Len(t, report.Breaches, 2)
	assert.Equal(t, BreachKindCounterparty, report.Breaches[0].Kind)
	assert.Equal(t, "CP-ALPHA", report.Breaches[0].Entity)
	assert.Equal(t, BreachKindInstrument, report.Breaches[1].Kind)
	assert.Equal(t, "CRUDE.BRENT", report.Breaches[1].Entity)
}

// 空组合：零份额、零越限，不除零
func TestConcentrationEmptyPortfolio(t *testing.T) {
	analyzer := NewConcentrationAnalyzer(DefaultRiskParameters())
	report := analyzer.Analyze(usdSnapshot())

	assert.Empty(t, report.CounterpartyShares)
	assert.Empty(t, report.InstrumentShares)
	assert.Empty(t, report.Breaches)
}

// 同一对手方多笔持仓先聚合再比较
func TestConcentrationAggregatesPerCounterparty(t *testing.T) {
	params := DefaultRiskParameters()
	params.CounterpartyConcentrationLimit = 0.50
	params.InstrumentConcentrationLimit = 0.95
	analyzer := NewConcentrationAnalyzer(params)

	snapshot := usdSnapshot(
		mtPosition("CRUDE.BRENT", "CP-ALPHA", 300, 1),
		mtPosition("CRUDE.WTI", "CP-ALPHA", 300, 1),
		mtPosition("GASOIL.ARA", "CP-BETA", 400, 1),
	)
	report := analyzer.Analyze(snapshot)

	assert.InDelta(t, 0.60, report.CounterpartyShares["CP-ALPHA"], 1e-9)
	require.Len(t, report.Breaches, 1)
	assert.Equal(t, "CP-ALPHA", report.Breaches[0].Entity)
}
