package engine

import (
	"math"
	"sync"

	"tradecore/internal/models"
	"tradecore/pkg/utils"
)

// PositionTracker - трекер позиций, подписанный на ценовой хаб
//
// Функции:
// - Хранение позиций по активам (не более одной на актив, повторное
//   добавление перезаписывает предыдущую)
// - Пересчёт P&L% на каждом ценовом событии
// - Автозакрытие при пробое stop-loss/take-profit
// - Сводка по портфелю
//
// Трекер сам реализует PriceListener: его идентичность как подписчика
// стабильна, подписка и отписка идут по тому же значению.
//
// Порядок проверки триггеров фиксирован: stop-loss раньше take-profit,
// при одновременном пробое побеждает stop-loss. После срабатывания
// триггера обработка события прекращается.
type PositionTracker struct {
	feed   *PriceFeed
	logger *utils.Logger

	mu        sync.RWMutex
	positions map[string]*models.Position
	pnl       map[string]float64
}

// TrackedPosition - строка сводки по позиции
type TrackedPosition struct {
	Asset         string  `json:"asset"`
	Size          float64 `json:"size"`
	EntryPrice    float64 `json:"entry_price"`
	CurrentPrice  float64 `json:"current_price"`
	Value         float64 `json:"value"`
	PnlPercent    float64 `json:"pnl_percent"`
	HasStopLoss   bool    `json:"has_stop_loss"`
	HasTakeProfit bool    `json:"has_take_profit"`
}

// PositionsSummary - агрегированная сводка по всем позициям
type PositionsSummary struct {
	Positions      []TrackedPosition `json:"positions"`
	TotalPositions int               `json:"total_positions"`
	TotalValue     float64           `json:"total_value"`
	AveragePnl     float64           `json:"average_pnl"`
}

// NewPositionTracker создаёт трекер позиций
func NewPositionTracker(feed *PriceFeed, logger *utils.Logger) *PositionTracker {
	return &PositionTracker{
		feed:      feed,
		logger:    logger.WithComponent("position_tracker"),
		positions: make(map[string]*models.Position),
		pnl:       make(map[string]float64),
	}
}

// AddPosition сохраняет позицию и подписывает трекер на её актив
func (t *PositionTracker) AddPosition(position *models.Position) {
	if position == nil {
		return
	}

	clone := *position

	t.mu.Lock()
	t.positions[clone.Asset] = &clone
	t.pnl[clone.Asset] = 0
	t.mu.Unlock()

	t.feed.Subscribe(clone.Asset, t)

	t.logger.Info("position added",
		utils.Asset(clone.Asset),
		utils.Size(clone.Size),
		utils.Price(clone.EntryPrice),
	)
}

// RemovePosition удаляет позицию и отписывает трекер от актива
func (t *PositionTracker) RemovePosition(asset string) {
	t.mu.Lock()
	_, ok := t.positions[asset]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.positions, asset)
	finalPnl := t.pnl[asset]
	delete(t.pnl, asset)
	t.mu.Unlock()

	t.feed.Unsubscribe(asset, t)

	t.logger.Info("position removed",
		utils.Asset(asset),
		utils.PnlPercent(finalPnl),
	)
}

// GetPosition возвращает копию отслеживаемой позиции (nil если нет)
func (t *PositionTracker) GetPosition(asset string) *models.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	position, ok := t.positions[asset]
	if !ok {
		return nil
	}
	clone := *position
	return &clone
}

// OnPriceUpdate обрабатывает ценовое событие (реализация PriceListener)
func (t *PositionTracker) OnPriceUpdate(update *models.PriceUpdate) error {
	t.mu.Lock()
	position, ok := t.positions[update.Asset]
	if !ok {
		t.mu.Unlock()
		return nil
	}

	position.CurrentPrice = update.Price

	pnl := utils.PercentChange(position.EntryPrice, update.Price)
	t.pnl[update.Asset] = pnl

	stopHit := position.StopLoss > 0 && update.Price <= position.StopLoss
	targetHit := position.TakeProfit > 0 && update.Price >= position.TakeProfit
	entryPrice := position.EntryPrice
	t.mu.Unlock()

	// stop-loss проверяется первым: при одновременном пробое он побеждает
	if stopHit {
		t.logger.Warn("stop loss triggered",
			utils.Asset(update.Asset),
			utils.Price(update.Price),
			utils.PnlPercent(pnl),
		)
		PositionsClosed.WithLabelValues("stop_loss").Inc()
		t.RemovePosition(update.Asset)
		return nil
	}

	if targetHit {
		t.logger.Info("take profit triggered",
			utils.Asset(update.Asset),
			utils.Price(update.Price),
			utils.PnlPercent(pnl),
		)
		PositionsClosed.WithLabelValues("take_profit").Inc()
		t.RemovePosition(update.Asset)
		return nil
	}

	// Заметное движение цены (>0.1% от входа) логируется
	if entryPrice > 0 && math.Abs(update.Price-entryPrice)/entryPrice > 0.001 {
		t.logger.Debug("price moved",
			utils.Asset(update.Asset),
			utils.Price(update.Price),
			utils.PnlPercent(pnl),
		)
	}

	return nil
}

// GetPositionSummary возвращает сводку по всем отслеживаемым позициям
//
// При отсутствии позиций total_value и average_pnl равны нулю.
func (t *PositionTracker) GetPositionSummary() PositionsSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	summary := PositionsSummary{
		Positions:      make([]TrackedPosition, 0, len(t.positions)),
		TotalPositions: len(t.positions),
	}

	var totalValue, totalPnl float64

	for asset, position := range t.positions {
		value := utils.Notional(position.CurrentPrice, position.Size)
		pnl := t.pnl[asset]

		totalValue += value
		totalPnl += pnl

		summary.Positions = append(summary.Positions, TrackedPosition{
			Asset:         asset,
			Size:          position.Size,
			EntryPrice:    position.EntryPrice,
			CurrentPrice:  position.CurrentPrice,
			Value:         value,
			PnlPercent:    pnl,
			HasStopLoss:   position.StopLoss > 0,
			HasTakeProfit: position.TakeProfit > 0,
		})
	}

	if summary.TotalPositions > 0 {
		summary.TotalValue = totalValue
		summary.AveragePnl = totalPnl / float64(summary.TotalPositions)
	}

	return summary
}
