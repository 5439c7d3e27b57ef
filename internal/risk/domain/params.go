package domain

import "runtime"

// 波动率估计模式
const (
	VolatilityModeSample = "sample" // 简单样本标准差
	VolatilityModeEWMA   = "ewma"   // RiskMetrics 指数加权
)

// RiskParameters 每次计算请求注入的只读参数集
// 由外部系统（配置层）提供，请求开始时拷贝一份，计算中途不会被热更撕裂。
type RiskParameters struct {
	MinimumWindowLength            int     `json:"minimum_window_length"`
	FallbackVolatility             float64 `json:"fallback_volatility"`  // 年化
	FallbackCorrelation            float64 `json:"fallback_correlation"` // 任一侧回退时使用
	CounterpartyConcentrationLimit float64 `json:"counterparty_concentration_limit"`
	InstrumentConcentrationLimit   float64 `json:"instrument_concentration_limit"`
	MonteCarloMinIterations        int     `json:"monte_carlo_min_iterations"`
	RequestTimeBudgetMs            int     `json:"request_time_budget_ms"`
	AnnualizationPeriods           int     `json:"annualization_periods"`
	MonteCarloWorkers              int     `json:"monte_carlo_workers"` // 0 表示 GOMAXPROCS
	CacheTTLMs                     int     `json:"cache_ttl_ms"`
	StressLossLimit                float64 `json:"stress_loss_limit"`
	DefaultSeed                    uint64  `json:"default_seed"`
	VolatilityMode                 string  `json:"volatility_mode"`
	EWMALambda                     float64 `json:"ewma_lambda"`
}

// DefaultRiskParameters 文档化的默认参数
// 回退波动率/相关性是显式配置项而非引擎推断值。
func DefaultRiskParameters() RiskParameters {
	return RiskParameters{
		MinimumWindowLength:            30,
		FallbackVolatility:             0.35,
		FallbackCorrelation:            0.5,
		CounterpartyConcentrationLimit: 0.25,
		InstrumentConcentrationLimit:   0.40,
		MonteCarloMinIterations:        1000,
		RequestTimeBudgetMs:            5000,
		AnnualizationPeriods:           252,
		MonteCarloWorkers:              0,
		CacheTTLMs:                     30000,
		StressLossLimit:                0.20,
		DefaultSeed:                    42,
		VolatilityMode:                 VolatilityModeSample,
		EWMALambda:                     0.94,
	}
}

// Normalize 对零值字段填入默认值，返回可直接使用的参数副本
func (p RiskParameters) Normalize() RiskParameters {
	def := DefaultRiskParameters()
	if p.MinimumWindowLength <= 0 {
		p.MinimumWindowLength = def.MinimumWindowLength
	}
	if p.FallbackVolatility <= 0 {
		p.FallbackVolatility = def.FallbackVolatility
	}
	if p.CounterpartyConcentrationLimit <= 0 {
		p.CounterpartyConcentrationLimit = def.CounterpartyConcentrationLimit
	}
	if p.InstrumentConcentrationLimit <= 0 {
		p.InstrumentConcentrationLimit = def.InstrumentConcentrationLimit
	}
	if p.MonteCarloMinIterations <= 0 {
		p.MonteCarloMinIterations = def.MonteCarloMinIterations
	}
	if p.RequestTimeBudgetMs <= 0 {
		p.RequestTimeBudgetMs = def.RequestTimeBudgetMs
	}
	if p.AnnualizationPeriods <= 0 {
		p.AnnualizationPeriods = def.AnnualizationPeriods
	}
	if p.StressLossLimit <= 0 {
		p.StressLossLimit = def.StressLossLimit
	}
	if p.VolatilityMode == "" {
		p.VolatilityMode = def.VolatilityMode
	}
	if p.EWMALambda <= 0 || p.EWMALambda >= 1 {
		p.EWMALambda = def.EWMALambda
	}
	return p
}

// Workers 蒙特卡洛并行度
func (p RiskParameters) Workers() int {
	if p.MonteCarloWorkers > 0 {
		return p.MonteCarloWorkers
	}
	return runtime.GOMAXPROCS(0)
}
