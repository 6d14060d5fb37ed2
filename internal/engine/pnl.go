package engine

import (
	"fmt"
	"sync"

	"tradecore/internal/config"
	"tradecore/internal/models"
	"tradecore/pkg/utils"
)

// PositionSnapshot - снимок позиции по активу
type PositionSnapshot struct {
	EntryPrice   float64 `json:"entry_price"`
	CurrentPrice float64 `json:"current_price"`
	Size         float64 `json:"size"`
	Side         string  `json:"side"`
}

// PerformanceSummary - производные показатели позиции
type PerformanceSummary struct {
	CurrentPnl float64 `json:"current_pnl"`
	PnlPercent float64 `json:"pnl_percent"`
	Exposure   float64 `json:"exposure"`
}

// PnLMonitor - монитор прибыли/убытка
//
// Функции:
// - Хранение снимка позиции по активу (entry/current/size/side)
// - Расчёт P&L% с учётом стороны сделки (знак инвертируется для sell)
// - Генерация порогового алерта: stop_loss при P&L% ≤ -порога, иначе
//   take_profit при P&L% ≥ порога цели; не более одного алерта за вызов
//
// Расширенное алертирование (cooldown-окна, учёт просадки от пика,
// уровни серьёзности) сюда не входит: монитор реализует простое
// пересечение порога на каждом вызове.
type PnLMonitor struct {
	cfg    config.AlertThresholdsConfig
	logger *utils.Logger

	mu        sync.RWMutex
	snapshots map[string]PositionSnapshot
}

// NewPnLMonitor создаёт монитор P&L
func NewPnLMonitor(cfg config.AlertThresholdsConfig, logger *utils.Logger) *PnLMonitor {
	return &PnLMonitor{
		cfg:       cfg,
		logger:    logger.WithComponent("pnl_monitor"),
		snapshots: make(map[string]PositionSnapshot),
	}
}

// UpdatePosition сохраняет снимок позиции и проверяет пороги
//
// Снимок по активу перезаписывается на каждом вызове. P&L считается
// только если у ордера задана цена входа.
func (m *PnLMonitor) UpdatePosition(order *models.Order, currentPrice float64) []models.PnLAlert {
	if order == nil {
		return nil
	}

	m.mu.Lock()
	m.snapshots[order.Asset] = PositionSnapshot{
		EntryPrice:   order.EntryPrice,
		CurrentPrice: currentPrice,
		Size:         order.Size,
		Side:         order.Side,
	}
	m.mu.Unlock()

	if order.EntryPrice == 0 {
		return nil
	}

	pnlPct := (currentPrice - order.EntryPrice) / order.EntryPrice
	if order.Side == models.SideSell {
		pnlPct = -pnlPct
	}

	var alerts []models.PnLAlert

	// Пороги неотрицательные, сравнения на противоположных знаках:
	// за один вызов возможен максимум один алерт
	switch {
	case pnlPct <= -m.cfg.StopLoss:
		alerts = append(alerts, models.PnLAlert{
			Type:    models.AlertStopLoss,
			Message: fmt.Sprintf("Stop loss triggered at %.2f%%", pnlPct*100),
		})
	case pnlPct >= m.cfg.ProfitTarget:
		alerts = append(alerts, models.PnLAlert{
			Type:    models.AlertTakeProfit,
			Message: fmt.Sprintf("Take profit triggered at %.2f%%", pnlPct*100),
		})
	}

	for _, alert := range alerts {
		AlertsEmitted.WithLabelValues(alert.Type).Inc()
		m.logger.Warn("pnl alert",
			utils.Asset(order.Asset),
			utils.AlertType(alert.Type),
			utils.PnlPercent(pnlPct*100),
		)
	}

	return alerts
}

// GetPerformanceSummary возвращает производные показатели позиции
//
// Для неизвестного актива возвращает ok=false.
func (m *PnLMonitor) GetPerformanceSummary(asset string) (PerformanceSummary, bool) {
	m.mu.RLock()
	snapshot, ok := m.snapshots[asset]
	m.mu.RUnlock()

	if !ok {
		return PerformanceSummary{}, false
	}

	priceChange := snapshot.CurrentPrice - snapshot.EntryPrice
	if snapshot.Side == models.SideSell {
		priceChange = -priceChange
	}

	var pnlPct float64
	if snapshot.EntryPrice != 0 {
		pnlPct = priceChange / snapshot.EntryPrice * 100
	}

	return PerformanceSummary{
		CurrentPnl: priceChange * snapshot.Size,
		PnlPercent: pnlPct,
		Exposure:   utils.Notional(snapshot.CurrentPrice, snapshot.Size),
	}, true
}

// Snapshots возвращает копию всех снимков позиций
//
// Read-only view для потребителей вроде риск-менеджера: чужое
// внутреннее состояние наружу не отдаётся.
func (m *PnLMonitor) Snapshots() map[string]PositionSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]PositionSnapshot, len(m.snapshots))
	for asset, snapshot := range m.snapshots {
		result[asset] = snapshot
	}
	return result
}

// RemoveSnapshot удаляет снимок актива (для явной очистки)
func (m *PnLMonitor) RemoveSnapshot(asset string) {
	m.mu.Lock()
	delete(m.snapshots, asset)
	m.mu.Unlock()
}
