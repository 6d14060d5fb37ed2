package engine

import (
	"fmt"
	"math"

	"tradecore/internal/config"
	"tradecore/internal/models"
	"tradecore/pkg/utils"
)

// Коэффициент запаса на движение цены: используем 98% доступной
// экспозиции и ещё раз 98% при пересчёте в единицы актива
const exposureBuffer = 0.98

// Штраф за отрицательный P&L при расчёте риск-скора
const pnlPenaltyScale = 0.1

// ExposureSource - read-only источник снимков позиций
//
// Реализуется PnLMonitor. Риск-менеджер никогда не читает чужое
// внутреннее состояние напрямую, только через этот интерфейс.
type ExposureSource interface {
	Snapshots() map[string]PositionSnapshot
	GetPerformanceSummary(asset string) (PerformanceSummary, bool)
}

// RiskManager - риск-движок: размер позиции и портфельные лимиты
//
// Функции:
// - Расчёт размера позиции с учётом остатка экспозиции и буфера
// - Проверка портфельного лимита экспозиции
// - Композитный риск-профиль актива (волатильность + штраф за убыток)
//
// Состояния между вызовами нет: каждый расчёт идёт от текущих
// снимков ExposureSource.
type RiskManager struct {
	limits  config.RiskLimitsConfig
	sizing  config.SizingConfig
	weights config.RiskWeightsConfig
	source  ExposureSource
	logger  *utils.Logger
}

// NewRiskManager создаёт риск-менеджер
func NewRiskManager(
	limits config.RiskLimitsConfig,
	sizing config.SizingConfig,
	weights config.RiskWeightsConfig,
	source ExposureSource,
	logger *utils.Logger,
) *RiskManager {
	return &RiskManager{
		limits:  limits,
		sizing:  sizing,
		weights: weights,
		source:  source,
		logger:  logger.WithComponent("risk_manager"),
	}
}

// CalculatePositionSize возвращает размер позиции, ограниченный риском
//
// Алгоритм:
// 1. Текущая экспозиция = Σ(current_price × size) по всем снимкам
// 2. Остаток = max_portfolio_exposure × 0.98 − экспозиция
// 3. Перевод в единицы актива по currentPrice с повторным буфером 0.98
// 4. Зажим до max_position_size
//
// Возвращает 0 при неположительном остатке или некорректной цене.
func (rm *RiskManager) CalculatePositionSize(asset string, currentPrice float64) float64 {
	if currentPrice <= 0 {
		return 0
	}

	adjustedMax := rm.limits.MaxPortfolioExposure * exposureBuffer

	remaining := adjustedMax - rm.totalExposure()
	if remaining <= 0 {
		return 0
	}

	maxUnits := remaining / currentPrice * exposureBuffer
	size := math.Min(maxUnits, rm.limits.MaxPositionSize)

	rm.logger.Debug("position size calculated",
		utils.Asset(asset),
		utils.Price(currentPrice),
		utils.Size(size),
	)

	return size
}

// CheckPortfolioRisk проверяет портфельные лимиты
//
// Возвращает один exposure_limit алерт, когда суммарная экспозиция
// достигла или превысила максимум.
func (rm *RiskManager) CheckPortfolioRisk() []models.RiskAlert {
	totalExposure := rm.totalExposure()

	var alerts []models.RiskAlert
	if totalExposure >= rm.limits.MaxPortfolioExposure {
		alerts = append(alerts, models.RiskAlert{
			Type: models.AlertExposureLimit,
			Message: fmt.Sprintf("Portfolio exposure %.2f at or exceeds limit %.2f",
				totalExposure, rm.limits.MaxPortfolioExposure),
		})

		AlertsEmitted.WithLabelValues(models.AlertExposureLimit).Inc()
		rm.logger.Warn("portfolio exposure limit reached",
			utils.Exposure(totalExposure),
			utils.Float64("limit", rm.limits.MaxPortfolioExposure),
		)
	}

	return alerts
}

// UpdateRiskProfile пересчитывает риск-профиль актива
//
// Волатильность: максимум из базовой и |P&L%| как доли.
// Риск-скор: волатильность × вес + штраф за убыток × вес, зажатый в
// [0,1] до масштабирования лимита - гарантирует неотрицательный лимит.
func (rm *RiskManager) UpdateRiskProfile(asset string) models.RiskProfile {
	volatility := rm.assetVolatility(asset)

	var pnlFactor float64
	if summary, ok := rm.source.GetPerformanceSummary(asset); ok && summary.PnlPercent < 0 {
		pnlFactor = -summary.PnlPercent * pnlPenaltyScale
	}

	riskScore := utils.Clamp01(volatility*rm.weights.Volatility + pnlFactor*rm.weights.Correlation)
	positionLimit := rm.limits.MaxPositionSize * (1 - riskScore)

	return models.RiskProfile{
		CurrentVolatility: volatility,
		RiskScore:         riskScore,
		PositionLimit:     positionLimit,
	}
}

// assetVolatility возвращает оценку волатильности актива
func (rm *RiskManager) assetVolatility(asset string) float64 {
	baseVol := rm.sizing.BaseVolatility

	if summary, ok := rm.source.GetPerformanceSummary(asset); ok {
		pnlVolatility := math.Abs(summary.PnlPercent) / 100
		return math.Max(baseVol, pnlVolatility)
	}

	return baseVol
}

// totalExposure суммирует экспозицию по всем снимкам позиций
func (rm *RiskManager) totalExposure() float64 {
	var total float64
	for _, snapshot := range rm.source.Snapshots() {
		total += utils.Notional(snapshot.CurrentPrice, snapshot.Size)
	}
	return total
}
