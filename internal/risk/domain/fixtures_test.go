package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// 测试夹具：西北欧油品台账的缩影

func mtPosition(instrument, counterparty string, quantity, price float64) Position {
	return Position{
		InstrumentID:   instrument,
		Quantity:       decimal.NewFromFloat(quantity),
		Unit:           "MT",
		ReferencePrice: decimal.NewFromFloat(price),
		Currency:       "USD",
		CounterpartyID: counterparty,
	}
}

func usdSnapshot(positions ...Position) *PortfolioSnapshot {
	return &PortfolioSnapshot{
		Positions: positions,
		Timestamp: time.Date(2025, 11, 3, 17, 0, 0, 0, time.UTC),
		Currency:  "USD",
	}
}

// alternatingSeries 交替 ±r 的确定性序列，n 取偶数时样本均值恰为 0
func alternatingSeries(instrument string, n int, r float64) ReturnSeries {
	returns := make([]float64, n)
	for i := range returns {
		if i%2 == 0 {
			returns[i] = r
		} else {
			returns[i] = -r
		}
	}
	return ReturnSeries{InstrumentID: instrument, Returns: returns, PeriodLengthDays: 1}
}

// singleVolInputs 手工构造的单品种波动率输入，跳过估计器直接喂给计算器
func singleVolInputs(instrument string, value, vol float64) *VolatilityInputs {
	return &VolatilityInputs{
		Instruments: []string{instrument},
		Values:      []float64{value},
		Vols:        map[string]float64{instrument: vol},
		Fallback:    map[string]bool{},
		Series:      map[string]ReturnSeries{},
		Correlation: NewIdentityCorrelation(1),
	}
}

// pairVolInputs 双品种输入，corr 为品种间相关系数
func pairVolInputs(values [2]float64, vols [2]float64, corr float64) *VolatilityInputs {
	inputs := &VolatilityInputs{
		Instruments: []string{"CRUDE.BRENT", "CRUDE.WTI"},
		Values:      values[:],
		Vols: map[string]float64{
			"CRUDE.BRENT": vols[0],
			"CRUDE.WTI":   vols[1],
		},
		Fallback:    map[string]bool{},
		Series:      map[string]ReturnSeries{},
		Correlation: NewIdentityCorrelation(2),
	}
	inputs.Correlation.Set(0, 1, corr)
	return inputs
}
