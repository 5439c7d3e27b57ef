package domain

import "github.com/shopspring/decimal"

// DefaultShiftKey 情景未逐一指定品种冲击时使用的兜底键
const DefaultShiftKey = "DEFAULT"

// StressScenario 确定性价格冲击情景
// PriceShifts 给出品种到相对价格变动的映射，缺失品种落到 DEFAULT。
type StressScenario struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	PriceShifts map[string]float64 `json:"price_shifts"`
}

// StressTestResult 单一情景下的组合重估损益
type StressTestResult struct {
	Scenario    string          `json:"scenario"`
	Description string          `json:"description"`
	PnL         decimal.Decimal `json:"pnl"`
	LossRatio   float64         `json:"loss_ratio"` // 损失占总绝对敞口的比例，盈利情景为 0
	Breached    bool            `json:"breached"`
}

// StressTestEngine 预置情景压力测试
// 情景为确定性重估，与统计法 VaR 互补，用于捕捉尾部跳变。
type StressTestEngine struct {
	params    RiskParameters
	scenarios []StressScenario
}

// NewStressTestEngine 创建引擎并装入默认情景集
func NewStressTestEngine(params RiskParameters) *StressTestEngine {
	e := &StressTestEngine{params: params.Normalize()}
	e.AddScenario(StressScenario{
		Name:        "PARALLEL_DOWN_10",
		Description: "全品种价格平行下跌 10%",
		PriceShifts: map[string]float64{DefaultShiftKey: -0.10},
	})
	e.AddScenario(StressScenario{
		Name:        "PARALLEL_UP_10",
		Description: "全品种价格平行上涨 10%，检验空头敞口",
		PriceShifts: map[string]float64{DefaultShiftKey: 0.10},
	})
	e.AddScenario(StressScenario{
		Name:        "HISTORICAL_WORST_DAY",
		Description: "复刻历史最差单日，全品种下跌 15%",
		PriceShifts: map[string]float64{DefaultShiftKey: -0.15},
	})
	return e
}

// AddScenario 追加自定义情景，重名覆盖
// 保持装入顺序，同一引擎多次运行输出顺序稳定。
func (e *StressTestEngine) AddScenario(s StressScenario) {
	for i, existing := range e.scenarios {
		if existing.Name == s.Name {
			e.scenarios[i] = s
			return
		}
	}
	e.scenarios = append(e.scenarios, s)
}

// Scenarios 当前装入的情景列表
func (e *StressTestEngine) Scenarios() []StressScenario {
	out := make([]StressScenario, len(e.scenarios))
	copy(out, e.scenarios)
	return out
}

// Run 对快照运行全部情景
func (e *StressTestEngine) Run(snapshot *PortfolioSnapshot) []StressTestResult {
	gross := snapshot.TotalAbsoluteExposure()
	results := make([]StressTestResult, 0, len(e.scenarios))
	for _, s := range e.scenarios {
		results = append(results, e.runScenario(snapshot, s, gross))
	}
	return results
}

// runScenario 线性重估：每个持仓的损益 = 市值 × 价格变动
func (e *StressTestEngine) runScenario(snapshot *PortfolioSnapshot, s StressScenario, gross decimal.Decimal) StressTestResult {
	result := StressTestResult{
		Scenario:    s.Name,
		Description: s.Description,
		PnL:         decimal.Zero,
	}
	for _, pos := range snapshot.Positions {
		shift, ok := s.PriceShifts[pos.InstrumentID]
		if !ok {
			shift = s.PriceShifts[DefaultShiftKey]
		}
		result.PnL = result.PnL.Add(pos.MarketValue().Mul(decimal.NewFromFloat(shift)))
	}
	if result.PnL.IsNegative() && gross.IsPositive() {
		result.LossRatio = result.PnL.Neg().Div(gross).InexactFloat64()
		result.Breached = result.LossRatio > e.params.StressLossLimit
	}
	return result
}
