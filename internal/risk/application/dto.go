// Package application 风险上下文的用例编排：校验、缓存、计算、落库、事件发布
package application

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oiltrading/riskengine/internal/risk/domain"
)

// PositionDTO 请求中的一笔持仓
type PositionDTO struct {
	InstrumentID   string `json:"instrument_id"`
	Quantity       string `json:"quantity"`
	Unit           string `json:"unit"`
	ReferencePrice string `json:"reference_price"`
	Currency       string `json:"currency"`
	CounterpartyID string `json:"counterparty_id"`
}

// CalculateRiskRequest 风险计算请求 DTO
// Seed 为空时使用配置的默认种子；请求蒙特卡洛方法时必须显式给出迭代数，缺失直接拒绝。
// IncludeStressTest 为 true 时在报告中附带压力测试结果（不影响 VaR 数值）。
type CalculateRiskRequest struct {
	Positions            []PositionDTO       `json:"positions"`
	Currency             string              `json:"currency"`
	Methods              []string            `json:"methods"`
	ConfidenceLevel      float64             `json:"confidence_level"`
	HorizonDays          int                 `json:"horizon_days"`
	MonteCarloIterations int                 `json:"monte_carlo_iterations"`
	Seed                 *uint64             `json:"seed,omitempty"`
	IncludeStressTest    bool                `json:"include_stress_test"`
	StressScenarios      []StressScenarioDTO `json:"stress_scenarios,omitempty"`
}

// StressScenarioDTO 自定义压力情景
type StressScenarioDTO struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	PriceShifts map[string]float64 `json:"price_shifts"`
}

// StressTestRequest 压力测试请求 DTO
type StressTestRequest struct {
	Positions []PositionDTO       `json:"positions"`
	Currency  string              `json:"currency"`
	Scenarios []StressScenarioDTO `json:"scenarios,omitempty"`
}

// ConcentrationRequest 集中度分析请求 DTO
type ConcentrationRequest struct {
	Positions []PositionDTO `json:"positions"`
	Currency  string        `json:"currency"`
}

// ReportPage 报告分页查询结果
type ReportPage struct {
	Reports  []*domain.RiskMetricsResult `json:"reports"`
	Page     int                         `json:"page"`
	PageSize int                         `json:"page_size"`
	Total    int64                       `json:"total"`
}

// snapshotFromDTO 解析持仓清单为领域快照，数字字段解析失败返回 ValidationError
func snapshotFromDTO(positions []PositionDTO, currency string) (*domain.PortfolioSnapshot, error) {
	if currency == "" {
		currency = "USD"
	}

	parsed := make([]domain.Position, 0, len(positions))
	for i, p := range positions {
		if p.InstrumentID == "" {
			return nil, &domain.ValidationError{
				Field:  fmt.Sprintf("positions[%d].instrument_id", i),
				Reason: "must not be empty",
			}
		}
		qty, err := decimal.NewFromString(p.Quantity)
		if err != nil {
			return nil, &domain.ValidationError{
				Field:  fmt.Sprintf("positions[%d].quantity", i),
				Reason: fmt.Sprintf("not a decimal number: %q", p.Quantity),
			}
		}
		px, err := decimal.NewFromString(p.ReferencePrice)
		if err != nil {
			return nil, &domain.ValidationError{
				Field:  fmt.Sprintf("positions[%d].reference_price", i),
				Reason: fmt.Sprintf("not a decimal number: %q", p.ReferencePrice),
			}
		}
		if px.IsNegative() {
			return nil, &domain.ValidationError{
				Field:  fmt.Sprintf("positions[%d].reference_price", i),
				Reason: "must not be negative",
			}
		}
		parsed = append(parsed, domain.Position{
			InstrumentID:   p.InstrumentID,
			Quantity:       qty,
			Unit:           p.Unit,
			ReferencePrice: px,
			Currency:       p.Currency,
			CounterpartyID: p.CounterpartyID,
		})
	}

	return &domain.PortfolioSnapshot{
		Positions: parsed,
		Timestamp: time.Now().UTC(),
		Currency:  currency,
	}, nil
}

// toDomain 解析请求并填充配置默认值，随后做领域校验
func (r *CalculateRiskRequest) toDomain(params domain.RiskParameters) (*domain.PortfolioSnapshot, *domain.RiskCalculationRequest, error) {
	snapshot, err := snapshotFromDTO(r.Positions, r.Currency)
	if err != nil {
		return nil, nil, err
	}

	methods := make([]domain.Method, 0, len(r.Methods))
	for _, m := range r.Methods {
		methods = append(methods, domain.Method(m))
	}

	calcReq := &domain.RiskCalculationRequest{
		Methods:              methods,
		ConfidenceLevel:      r.ConfidenceLevel,
		HorizonDays:          r.HorizonDays,
		MonteCarloIterations: r.MonteCarloIterations,
		Seed:                 params.DefaultSeed,
	}
	if r.Seed != nil {
		calcReq.Seed = *r.Seed
	}

	if err := calcReq.Validate(); err != nil {
		return nil, nil, err
	}
	return snapshot, calcReq, nil
}

// scenariosFromDTO 解析自定义压力情景
func scenariosFromDTO(dtos []StressScenarioDTO) ([]domain.StressScenario, error) {
	scenarios := make([]domain.StressScenario, 0, len(dtos))
	for i, s := range dtos {
		if s.Name == "" {
			return nil, &domain.ValidationError{
				Field:  fmt.Sprintf("scenarios[%d].name", i),
				Reason: "must not be empty",
			}
		}
		if len(s.PriceShifts) == 0 {
			return nil, &domain.ValidationError{
				Field:  fmt.Sprintf("scenarios[%d].price_shifts", i),
				Reason: "at least one shift is required",
			}
		}
		scenarios = append(scenarios, domain.StressScenario{
			Name:        s.Name,
			Description: s.Description,
			PriceShifts: s.PriceShifts,
		})
	}
	return scenarios, nil
}
