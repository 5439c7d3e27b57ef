package domain

import (
	"context"
	"math"
)

// ReturnSeries 单一品种的周期收益序列，按时间升序（最后一个元素为最近一期）
// 各品种序列以快照时点对齐：联合使用时按公共尾部做内连接。
type ReturnSeries struct {
	InstrumentID     string    `json:"instrument_id"`
	Returns          []float64 `json:"returns"`
	PeriodLengthDays int       `json:"period_length_days"`
}

// Clean 剔除 NaN/Inf 后返回新序列，原序列不变
func (rs ReturnSeries) Clean() ReturnSeries {
	cleaned := make([]float64, 0, len(rs.Returns))
	for _, r := range rs.Returns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		cleaned = append(cleaned, r)
	}
	return ReturnSeries{
		InstrumentID:     rs.InstrumentID,
		Returns:          cleaned,
		PeriodLengthDays: rs.PeriodLengthDays,
	}
}

// Tail 取最近 n 期；n 超出长度时返回全序列
func (rs ReturnSeries) Tail(n int) []float64 {
	if n >= len(rs.Returns) {
		return rs.Returns
	}
	return rs.Returns[len(rs.Returns)-n:]
}

// AlignSeries 对多品种序列按公共尾部做内连接
// 返回对齐后的样本矩阵 aligned[t][i]（t 为期，i 对应 instruments 的下标）
// 与有效样本长度。任一序列为空时有效样本为 0。
func AlignSeries(instruments []string, series map[string]ReturnSeries) ([][]float64, int) {
	n := math.MaxInt
	for _, id := range instruments {
		s, ok := series[id]
		if !ok {
			return nil, 0
		}
		if len(s.Returns) < n {
			n = len(s.Returns)
		}
	}
	if n == math.MaxInt || n == 0 {
		return nil, 0
	}

	aligned := make([][]float64, n)
	for t := range aligned {
		aligned[t] = make([]float64, len(instruments))
	}
	for i, id := range instruments {
		tail := series[id].Tail(n)
		for t, r := range tail {
			aligned[t][i] = r
		}
	}
	return aligned, n
}

// ReturnSeriesProvider 收益序列数据源（外部协作方边界）
// 引擎将其视为纯数据源；marketdata 上下文提供基于行情存储的实现。
type ReturnSeriesProvider interface {
	// SeriesForInstruments 返回各品种最近 lookback 期的收益序列
	// 数据不足的品种返回其现有长度的序列（由波动率估计的回退策略处理），
	// 完全无数据的品种返回空序列而非错误。
	SeriesForInstruments(ctx context.Context, instrumentIDs []string, lookback int) (map[string]ReturnSeries, error)
}
