package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ConcentrationAnalyzer 敞口集中度分析
// 纯计算，不依赖行情数据，空组合返回零份额且无越限。
type ConcentrationAnalyzer struct {
	params RiskParameters
}

// NewConcentrationAnalyzer 创建集中度分析器
func NewConcentrationAnalyzer(params RiskParameters) *ConcentrationAnalyzer {
	return &ConcentrationAnalyzer{params: params.Normalize()}
}

// Analyze 计算各对手方与品种占总绝对敞口的份额并对照限额
// 份额严格大于限额才判越限，恰好等于不算。
func (a *ConcentrationAnalyzer) Analyze(snapshot *PortfolioSnapshot) *ConcentrationReport {
	report := &ConcentrationReport{
		CounterpartyShares: make(map[string]float64),
		InstrumentShares:   make(map[string]float64),
	}
	total := snapshot.TotalAbsoluteExposure()
	if total.IsZero() {
		return report
	}

	cpExposure := make(map[string]decimal.Decimal)
	instExposure := make(map[string]decimal.Decimal)
	for _, pos := range snapshot.Positions {
		exposure := pos.Exposure()
		cpExposure[pos.CounterpartyID] = cpExposure[pos.CounterpartyID].Add(exposure)
		instExposure[pos.InstrumentID] = instExposure[pos.InstrumentID].Add(exposure)
	}
	for cp, exposure := range cpExposure {
		report.CounterpartyShares[cp] = exposure.Div(total).InexactFloat64()
	}
	for inst, exposure := range instExposure {
		report.InstrumentShares[inst] = exposure.Div(total).InexactFloat64()
	}

	report.Breaches = append(report.Breaches,
		collectBreaches(BreachKindCounterparty, report.CounterpartyShares, a.params.CounterpartyConcentrationLimit)...)
	report.Breaches = append(report.Breaches,
		collectBreaches(BreachKindInstrument, report.InstrumentShares, a.params.InstrumentConcentrationLimit)...)
	return report
}

// collectBreaches 按实体字典序输出，保证同一快照的报告稳定
func collectBreaches(kind string, shares map[string]float64, limit float64) []ConcentrationBreach {
	entities := make([]string, 0, len(shares))
	for entity := range shares {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	var breaches []ConcentrationBreach
	for _, entity := range entities {
		if shares[entity] > limit {
			breaches = append(breaches, ConcentrationBreach{
				Kind:   kind,
				Entity: entity,
				Share:  shares[entity],
				Limit:  limit,
			})
		}
	}
	return breaches
}
