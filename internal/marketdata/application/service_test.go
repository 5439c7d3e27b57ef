package application

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oiltrading/riskengine/internal/marketdata/domain"
)

// fakePriceRepo 内存仓储，按 (instrument, trade_date) 去重
type fakePriceRepo struct {
	prices map[string]map[string]*domain.ClosingPrice
	err    error
}

func newFakePriceRepo() *fakePriceRepo {
	return &fakePriceRepo{prices: make(map[string]map[string]*domain.ClosingPrice)}
}

func (f *fakePriceRepo) Upsert(_ context.Context, price *domain.ClosingPrice) error {
	if f.err != nil {
		return f.err
	}
	byDate, ok := f.prices[price.InstrumentID]
	if !ok {
		byDate = make(map[string]*domain.ClosingPrice)
		f.prices[price.InstrumentID] = byDate
	}
	byDate[price.TradeDate.Format("2006-01-02")] = price
	return nil
}

func (f *fakePriceRepo) RecentCloses(_ context.Context, instrumentID string, limit int) ([]*domain.ClosingPrice, error) {
	if f.err != nil {
		return nil, f.err
	}
	byDate := f.prices[instrumentID]
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if len(dates) > limit {
		dates = dates[len(dates)-limit:]
	}
	closes := make([]*domain.ClosingPrice, 0, len(dates))
	for _, d := range dates {
		closes = append(closes, byDate[d])
	}
	return closes, nil
}

func ingest(t *testing.T, svc *PriceIngestionService, instrument, date, close string) {
	t.Helper()
	err := svc.IngestPrice(context.Background(), IngestPriceCommand{
		InstrumentID: instrument,
		TradeDate:    date,
		Close:        close,
		Currency:     "USD",
	})
	require.NoError(t, err)
}

// 同 (instrument, trade_date) 重复摄入为幂等修正，不产生重复记录
func TestIngestPriceIdempotentUpsert(t *testing.T) {
	repo := newFakePriceRepo()
	svc := NewPriceIngestionService(repo)

	ingest(t, svc, "CRUDE.BRENT", "2025-10-01", "84.20")
	ingest(t, svc, "CRUDE.BRENT", "2025-10-01", "84.55") // 修正

	require.Len(t, repo.prices["CRUDE.BRENT"], 1)
	stored := repo.prices["CRUDE.BRENT"]["2025-10-01"]
	assert.Equal(t, "84.55", stored.Close.String())
}

func TestIngestPriceRejectsBadInput(t *testing.T) {
	svc := NewPriceIngestionService(newFakePriceRepo())
	ctx := context.Background()

	// 非正收盘价
	err := svc.IngestPrice(ctx, IngestPriceCommand{InstrumentID: "CRUDE.WTI", TradeDate: "2025-10-01", Close: "0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")

	// 非法日期
	err = svc.IngestPrice(ctx, IngestPriceCommand{InstrumentID: "CRUDE.WTI", TradeDate: "01/10/2025", Close: "80"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trade_date")

	// 非法数字
	err = svc.IngestPrice(ctx, IngestPriceCommand{InstrumentID: "CRUDE.WTI", TradeDate: "2025-10-01", Close: "eighty"})
	require.Error(t, err)

	// 缺品种
	err = svc.IngestPrice(ctx, IngestPriceCommand{TradeDate: "2025-10-01", Close: "80"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instrument_id")
}

// lookback 期收益来自最近 lookback+1 个收盘价，按时间升序
func TestSeriesForInstrumentsBuildsLogReturns(t *testing.T) {
	repo := newFakePriceRepo()
	svc := NewPriceIngestionService(repo)
	query := NewPriceQueryService(repo)

	ingest(t, svc, "CRUDE.BRENT", "2025-10-01", "100")
	ingest(t, svc, "CRUDE.BRENT", "2025-10-02", "102")
	ingest(t, svc, "CRUDE.BRENT", "2025-10-03", "101")
	ingest(t, svc, "CRUDE.BRENT", "2025-10-06", "104")

	series, err := query.SeriesForInstruments(context.Background(), []string{"CRUDE.BRENT"}, 3)
	require.NoError(t, err)

	s := series["CRUDE.BRENT"]
	require.Len(t, s.Returns, 3)
	assert.InDelta(t, math.Log(102.0/100.0), s.Returns[0], 1e-12)
	assert.InDelta(t, math.Log(101.0/102.0), s.Returns[1], 1e-12)
	assert.InDelta(t, math.Log(104.0/101.0), s.Returns[2], 1e-12)
	assert.Equal(t, 1, s.PeriodLengthDays)
}

// lookback 大于存量时返回能构建的部分，不报错
func TestSeriesForInstrumentsShortHistory(t *testing.T) {
	repo := newFakePriceRepo()
	svc := NewPriceIngestionService(repo)
	query := NewPriceQueryService(repo)

	ingest(t, svc, "GASOIL.ARA", "2025-10-01", "700")
	ingest(t, svc, "GASOIL.ARA", "2025-10-02", "707")

	series, err := query.SeriesForInstruments(context.Background(), []string{"GASOIL.ARA", "CRUDE.URALS"}, 250)
	require.NoError(t, err)

	assert.Len(t, series["GASOIL.ARA"].Returns, 1)
	assert.Empty(t, series["CRUDE.URALS"].Returns)
}

func TestSeriesForInstrumentsPropagatesRepoError(t *testing.T) {
	repo := newFakePriceRepo()
	repo.err = errors.New("connection refused")
	query := NewPriceQueryService(repo)

	_, err := query.SeriesForInstruments(context.Background(), []string{"CRUDE.BRENT"}, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CRUDE.BRENT")
}
