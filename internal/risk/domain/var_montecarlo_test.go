package domain

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countdownContext 放行前 remaining 次 Err 查询，之后报告已取消
// 用于确定性地触发蒙特卡洛截断，不依赖真实计时。
type countdownContext struct {
	context.Context
	mu        sync.Mutex
	remaining int
}

func (c *countdownContext) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining <= 0 {
		return context.Canceled
	}
	c.remaining--
	return nil
}

func mcRequest(confidence float64, horizon, iterations int, seed uint64) *RiskCalculationRequest {
	return &RiskCalculationRequest{
		Methods:              []Method{MethodMonteCarlo},
		ConfidenceLevel:      confidence,
		HorizonDays:          horizon,
		MonteCarloIterations: iterations,
		Seed:                 seed,
	}
}

// 相同种子与输入必须产生完全一致的结果
func TestMonteCarloSeedReproducibility(t *testing.T) {
	params := DefaultRiskParameters()
	calc := NewMonteCarloCalculator(params)
	snapshot := usdSnapshot(
		mtPosition("CRUDE.BRENT", "CP-GLENCORE", 1000, 85),
		mtPosition("CRUDE.WTI", "CP-VITOL", -400, 80),
	)
	inputs := pairVolInputs([2]float64{85000, -32000}, [2]float64{0.25, 0.30}, 0.3)
	req := mcRequest(0.99, 1, 20000, 7)

	first, err := calc.Compute(context.Background(), snapshot, inputs, req)
	require.NoError(t, err)
	second, err := calc.Compute(context.Background(), snapshot, inputs, req)
	require.NoError(t, err)

	assert.True(t, first.Value.Equal(second.Value))
	assert.True(t, first.ExpectedShortfall.Equal(second.ExpectedShortfall))

	other, err := calc.Compute(context.Background(), snapshot, inputs, mcRequest(0.99, 1, 20000, 8))
	require.NoError(t, err)
	assert.False(t, first.Value.Equal(other.Value), "不同种子不应复现同一结果")
}

// 路径子流按路径序号派生：结果与 worker 数量无关
func TestMonteCarloWorkerCountIndependence(t *testing.T) {
	snapshot := usdSnapshot(mtPosition("CRUDE.BRENT", "CP-GLENCORE", 1000, 85))
	inputs := singleVolInputs("CRUDE.BRENT", 85000, 0.25)
	req := mcRequest(0.95, 1, 10000, 42)

	serial := DefaultRiskParameters()
	serial.MonteCarloWorkers = 1
	parallel := DefaultRiskParameters()
	parallel.MonteCarloWorkers = 4

	one, err := NewMonteCarloCalculator(serial).Compute(context.Background(), snapshot, inputs, req)
	require.NoError(t, err)
	four, err := NewMonteCarloCalculator(parallel).Compute(context.Background(), snapshot, inputs, req)
	require.NoError(t, err)

	assert.True(t, one.Value.Equal(four.Value))
	assert.True(t, one.ExpectedShortfall.Equal(four.ExpectedShortfall))
}

// 大样本下蒙特卡洛 VaR 收敛到同输入的参数法 VaR（2% 以内）
func TestMonteCarloConvergesToDeltaNormal(t *testing.T) {
	params := DefaultRiskParameters()
	snapshot := usdSnapshot(mtPosition("CRUDE.BRENT", "CP-GLENCORE", 1000, 85))
	inputs := singleVolInputs("CRUDE.BRENT", 85000, 0.25)
	req := mcRequest(0.95, 1, 100000, 42)

	mc, err := NewMonteCarloCalculator(params).Compute(context.Background(), snapshot, inputs, req)
	require.NoError(t, err)
	dn, err := NewDeltaNormalCalculator(params).Compute(context.Background(), snapshot, inputs, req)
	require.NoError(t, err)

	assert.InEpsilon(t, dn.Value.InexactFloat64(), mc.Value.InexactFloat64(), 0.02)
	assert.Empty(t, mc.Warnings)
}

// 预算中途耗尽：用已完成路径出截断结果并附精确警告
func TestMonteCarloTruncationWarning(t *testing.T) {
	params := DefaultRiskParameters()
	params.MonteCarloWorkers = 1
	calc := NewMonteCarloCalculator(params)
	snapshot := usdSnapshot(mtPosition("CRUDE.BRENT", "CP-GLENCORE", 1000, 85))
	inputs := singleVolInputs("CRUDE.BRENT", 85000, 0.25)

	// 放行 3 次检查：单 worker 恰好完成 3 个检查区间的路径
	ctx := &countdownContext{Context: context.Background(), remaining: 3}
	result, err := calc.Compute(ctx, snapshot, inputs, mcRequest(0.95, 1, 10000, 1))
	require.NoError(t, err)

	completed := 3 * mcCancelCheckEvery
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, WarnMonteCarloTruncated(completed, 10000), result.Warnings[0])
	assert.True(t, result.Value.IsPositive())
}

// 预算在任何路径完成前就已耗尽：返回独立的超时错误而不是空结果
func TestMonteCarloBudgetExhaustedBeforeStart(t *testing.T) {
	params := DefaultRiskParameters()
	params.MonteCarloWorkers = 2
	calc := NewMonteCarloCalculator(params)
	snapshot := usdSnapshot(mtPosition("CRUDE.BRENT", "CP-GLENCORE", 1000, 85))
	inputs := singleVolInputs("CRUDE.BRENT", 85000, 0.25)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := calc.Compute(ctx, snapshot, inputs, mcRequest(0.95, 1, 10000, 1))
	require.ErrorIs(t, err, ErrTimeBudgetExceeded)
	assert.Nil(t, result)
}

// 低于最小可信迭代数的结果要带低置信度标记
func TestMonteCarloLowConfidenceFlag(t *testing.T) {
	params := DefaultRiskParameters()
	calc := NewMonteCarloCalculator(params)
	snapshot := usdSnapshot(mtPosition("CRUDE.BRENT", "CP-GLENCORE", 1000, 85))
	inputs := singleVolInputs("CRUDE.BRENT", 85000, 0.25)

	result, err := calc.Compute(context.Background(), snapshot, inputs, mcRequest(0.95, 1, 500, 1))
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, WarnMonteCarloLowConfidence(500, params.MonteCarloMinIterations), result.Warnings[0])
}

// 完全相关的协方差奇异：退化为特征值平方根并警告，结果依然可用
func TestMonteCarloEigenRootFallback(t *testing.T) {
	params := DefaultRiskParameters()
	calc := NewMonteCarloCalculator(params)
	snapshot := usdSnapshot(
		mtPosition("CRUDE.BRENT", "CP-GLENCORE", 1000, 85),
		mtPosition("CRUDE.WTI", "CP-VITOL", 400, 80),
	)
	inputs := pairVolInputs([2]float64{85000, 32000}, [2]float64{0.25, 0.25}, 1.0)

	result, err := calc.Compute(context.Background(), snapshot, inputs, mcRequest(0.95, 1, 20000, 9))
	require.NoError(t, err)
	assert.Contains(t, result.Warnings, WarnEigenRootFallback())
	assert.True(t, result.Value.IsPositive())
}

// 迭代数缺失属于请求校验错误
func TestMonteCarloRejectsMissingIterations(t *testing.T) {
	calc := NewMonteCarloCalculator(DefaultRiskParameters())
	snapshot := usdSnapshot(mtPosition("CRUDE.BRENT", "CP-GLENCORE", 1000, 85))
	inputs := singleVolInputs("CRUDE.BRENT", 85000, 0.25)

	_, err := calc.Compute(context.Background(), snapshot, inputs, mcRequest(0.95, 1, 0, 1))
	assert.True(t, IsValidation(err))
}
