package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oiltrading/riskengine/internal/risk/domain"
	"github.com/oiltrading/riskengine/pkg/logger"
	"github.com/oiltrading/riskengine/pkg/metrics"
	"github.com/oiltrading/riskengine/pkg/utils"
)

// ReportCache 结果缓存端口
// 可选依赖：缓存不可用时退化为直接计算，绝不让缓存故障失败请求。
type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.RiskMetricsResult, bool, error)
	Set(ctx context.Context, key string, result *domain.RiskMetricsResult, ttl time.Duration) error
}

// TxRunner 事务执行端口，pkg/db.DB 满足
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RiskApplicationService 风险计算用例编排
// 流程：校验 → 缓存读 → 波动率估计 → 按方法计算 VaR → 集中度 →
// 同事务落库+写 outbox → 缓存写。
type RiskApplicationService struct {
	params    domain.RiskParameters
	lookback  int
	provider  domain.ReturnSeriesProvider
	repo      domain.RiskReportRepository
	publisher domain.EventPublisher
	cache     ReportCache
	tx        TxRunner
	metrics   *metrics.Metrics
	idgen     *utils.SnowflakeID
}

// NewRiskApplicationService 创建风险应用服务
// cache 可为 nil（禁用结果缓存）。
func NewRiskApplicationService(
	params domain.RiskParameters,
	lookback int,
	provider domain.ReturnSeriesProvider,
	repo domain.RiskReportRepository,
	publisher domain.EventPublisher,
	cache ReportCache,
	tx TxRunner,
	m *metrics.Metrics,
) *RiskApplicationService {
	return &RiskApplicationService{
		params:    params.Normalize(),
		lookback:  lookback,
		provider:  provider,
		repo:      repo,
		publisher: publisher,
		cache:     cache,
		tx:        tx,
		metrics:   m,
		idgen:     utils.NewSnowflakeID(1),
	}
}

// CalculateMetrics 执行一次完整的风险计算请求
func (s *RiskApplicationService) CalculateMetrics(ctx context.Context, req *CalculateRiskRequest) (*domain.RiskMetricsResult, error) {
	snapshot, calcReq, err := req.toDomain(s.params)
	if err != nil {
		return nil, err
	}
	var scenarios []domain.StressScenario
	if req.IncludeStressTest {
		if scenarios, err = scenariosFromDTO(req.StressScenarios); err != nil {
			return nil, err
		}
	}

	defer logger.LogDuration(ctx, "Risk metrics calculation completed",
		"methods", fmt.Sprintf("%v", calcReq.Methods),
		"positions", len(snapshot.Positions),
	)()

	// 整个请求共享一个硬时间预算
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.params.RequestTimeBudgetMs)*time.Millisecond)
	defer cancel()

	// 自定义情景不进缓存键，带压力测试的请求整体绕过缓存
	useCache := !req.IncludeStressTest
	cacheKey := resultCacheKey(snapshot, calcReq)
	if useCache {
		if cached, ok := s.cacheGet(ctx, cacheKey, snapshot.Hash()); ok {
			return cached, nil
		}
	}

	result, err := s.compute(ctx, snapshot, calcReq)
	if err != nil {
		s.metrics.CalculationErrors.Inc()
		return nil, err
	}

	if req.IncludeStressTest {
		engine := domain.NewStressTestEngine(s.params)
		for _, sc := range scenarios {
			engine.AddScenario(sc)
		}
		result.StressResults = engine.Run(snapshot)
	}

	if err := s.persist(ctx, snapshot, result); err != nil {
		return nil, err
	}

	breaches := len(result.Concentration.Breaches)
	for _, sr := range result.StressResults {
		if sr.Breached {
			breaches++
		}
	}
	s.metrics.LimitBreachesTotal.Add(float64(breaches))
	if useCache {
		s.cacheSet(ctx, cacheKey, result)
	}
	return result, nil
}

// CalculateVaR 单方法 VaR：请求必须指定且仅指定一个具体方法
func (s *RiskApplicationService) CalculateVaR(ctx context.Context, req *CalculateRiskRequest) (*domain.VaRResult, error) {
	if len(req.Methods) != 1 || strings.EqualFold(req.Methods[0], string(domain.MethodAll)) {
		return nil, &domain.ValidationError{
			Field:  "methods",
			Reason: "exactly one of DELTA_NORMAL, HISTORICAL, MONTE_CARLO is required",
		}
	}

	result, err := s.CalculateMetrics(ctx, req)
	if err != nil {
		return nil, err
	}

	method := domain.Method(req.Methods[0])
	for i := range result.VaRResults {
		if result.VaRResults[i].Method == method {
			return &result.VaRResults[i], nil
		}
	}
	// 方法被隔离降级时结果缺席，对单方法调用这就是失败
	return nil, &domain.ComputationError{
		Stage: string(method),
		Err:   errors.New("method produced no result"),
	}
}

// AnalyzeConcentration 纯集中度分析，不落库不缓存
func (s *RiskApplicationService) AnalyzeConcentration(ctx context.Context, req *ConcentrationRequest) (*domain.ConcentrationReport, error) {
	snapshot, err := snapshotFromDTO(req.Positions, req.Currency)
	if err != nil {
		return nil, err
	}

	report := domain.NewConcentrationAnalyzer(s.params).Analyze(snapshot)
	s.metrics.LimitBreachesTotal.Add(float64(len(report.Breaches)))
	return report, nil
}

// RunStressTest 运行内置与自定义压力情景
func (s *RiskApplicationService) RunStressTest(ctx context.Context, req *StressTestRequest) ([]domain.StressTestResult, error) {
	snapshot, err := snapshotFromDTO(req.Positions, req.Currency)
	if err != nil {
		return nil, err
	}
	scenarios, err := scenariosFromDTO(req.Scenarios)
	if err != nil {
		return nil, err
	}

	engine := domain.NewStressTestEngine(s.params)
	for _, sc := range scenarios {
		engine.AddScenario(sc)
	}

	results := engine.Run(snapshot)
	breached := 0
	for _, r := range results {
		if r.Breached {
			breached++
		}
	}
	s.metrics.LimitBreachesTotal.Add(float64(breached))
	return results, nil
}

// GetReport 按报告 ID 读取持久化结果，未找到返回 (nil, nil)
func (s *RiskApplicationService) GetReport(ctx context.Context, reportID string) (*domain.RiskMetricsResult, error) {
	return s.repo.Get(ctx, reportID)
}

// ListReports 按计算时间倒序分页查询报告
func (s *RiskApplicationService) ListReports(ctx context.Context, page, pageSize int) (*ReportPage, error) {
	p := utils.NewPagination(page, pageSize, 0)
	reports, total, err := s.repo.ListRecent(ctx, p.Limit(), p.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list risk reports: %w", err)
	}
	return &ReportPage{
		Reports:  reports,
		Page:     p.Page,
		PageSize: p.PageSize,
		Total:    total,
	}, nil
}

// compute 计算主干：波动率 → 各方法 VaR（失败相互隔离）→ 集中度
func (s *RiskApplicationService) compute(ctx context.Context, snapshot *domain.PortfolioSnapshot, calcReq *domain.RiskCalculationRequest) (*domain.RiskMetricsResult, error) {
	series, err := s.provider.SeriesForInstruments(ctx, snapshot.InstrumentIDs(), s.lookback)
	if err != nil {
		return nil, fmt.Errorf("failed to load return series: %w", err)
	}

	inputs, err := domain.NewVolatilityEstimator(s.params).Estimate(snapshot, series)
	if err != nil {
		return nil, err
	}

	relVol, err := inputs.RelativeVolatility()
	if err != nil {
		return nil, err
	}

	result := &domain.RiskMetricsResult{
		ReportID:            fmt.Sprintf("RISK-%d", s.idgen.Generate()),
		SnapshotHash:        snapshot.Hash(),
		PortfolioVolatility: relVol,
		Warnings:            append([]string(nil), inputs.Warnings...),
		ComputedAt:          time.Now().UTC(),
	}

	for _, method := range calcReq.ExpandMethods() {
		// 预算耗尽后不再启动新方法
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, domain.ErrTimeBudgetExceeded
			}
			return nil, ctxErr
		}

		start := time.Now()
		vr, err := s.calculatorFor(method).Compute(ctx, snapshot, inputs, calcReq)
		s.metrics.ObserveCalculation(string(method), time.Since(start).Seconds())

		if err != nil {
			if errors.Is(err, domain.ErrTimeBudgetExceeded) || errors.Is(err, context.DeadlineExceeded) {
				return nil, domain.ErrTimeBudgetExceeded
			}
			// 单方法失败不拖垮其余方法与集中度报告
			s.metrics.CalculationErrors.Inc()
			logger.Error(ctx, "VaR method failed",
				"method", string(method),
				"snapshot_hash", result.SnapshotHash,
				"error", err,
			)
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s computation failed: %v", method, err))
			continue
		}

		result.VaRResults = append(result.VaRResults, *vr)
	}

	result.Concentration = domain.NewConcentrationAnalyzer(s.params).Analyze(snapshot)

	warnings := len(result.Warnings)
	for _, vr := range result.VaRResults {
		warnings += len(vr.Warnings)
	}
	s.metrics.CalculationWarnings.Add(float64(warnings))

	return result, nil
}

// persist 同一事务内落库并写 outbox 事件
func (s *RiskApplicationService) persist(ctx context.Context, snapshot *domain.PortfolioSnapshot, result *domain.RiskMetricsResult) error {
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Save(txCtx, result); err != nil {
			return err
		}
		if err := s.publisher.PublishMetricsComputed(txCtx, domain.NewMetricsComputedEvent(result, snapshot.Currency)); err != nil {
			return err
		}
		for _, event := range domain.NewLimitBreachedEvents(result) {
			if err := s.publisher.PublishLimitBreached(txCtx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error(ctx, "Failed to persist risk report",
			"report_id", result.ReportID,
			"error", err,
		)
		return fmt.Errorf("failed to persist risk report: %w", err)
	}
	return nil
}

func (s *RiskApplicationService) calculatorFor(method domain.Method) domain.VaRCalculator {
	switch method {
	case domain.MethodHistorical:
		return domain.NewHistoricalCalculator(s.params)
	case domain.MethodMonteCarlo:
		return domain.NewMonteCarloCalculator(s.params)
	default:
		return domain.NewDeltaNormalCalculator(s.params)
	}
}

// cacheGet 读缓存；任何缓存故障都只降级为未命中
func (s *RiskApplicationService) cacheGet(ctx context.Context, key, wantHash string) (*domain.RiskMetricsResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Debug(ctx, "Risk result cache read failed", "key", key, "error", err)
		s.metrics.CacheMisses.Inc()
		return nil, false
	}
	if !ok || cached == nil || cached.SnapshotHash != wantHash {
		s.metrics.CacheMisses.Inc()
		return nil, false
	}
	s.metrics.CacheHits.Inc()
	return cached, true
}

func (s *RiskApplicationService) cacheSet(ctx context.Context, key string, result *domain.RiskMetricsResult) {
	if s.cache == nil {
		return
	}
	ttl := time.Duration(s.params.CacheTTLMs) * time.Millisecond
	if err := s.cache.Set(ctx, key, result, ttl); err != nil {
		logger.Debug(ctx, "Risk result cache write failed", "key", key, "error", err)
	}
}

// resultCacheKey 缓存键：快照哈希 + 展开后的方法集 + 置信度/展望期/种子
func resultCacheKey(snapshot *domain.PortfolioSnapshot, req *domain.RiskCalculationRequest) string {
	methods := req.ExpandMethods()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	return fmt.Sprintf("risk:metrics:%s:%s:%g:%d:%d",
		snapshot.Hash(),
		strings.Join(names, "+"),
		req.ConfidenceLevel,
		req.HorizonDays,
		req.Seed,
	)
}
