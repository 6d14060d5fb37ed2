package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"tradecore/internal/config"
	"tradecore/internal/models"
	"tradecore/pkg/utils"
)

// Типизированные причины отказа API движка
//
// Наружу никогда не уходит паника или внутренний сбой: каждая операция
// возвращает либо результат, либо одну из этих ошибок (возможно,
// обёрнутую через fmt.Errorf %w).
var (
	// ErrExposureLimit - достигнут портфельный лимит экспозиции
	ErrExposureLimit = errors.New("portfolio exposure limit reached")

	// ErrZeroSize - расчёт размера позиции дал ноль или меньше
	ErrZeroSize = errors.New("calculated position size is zero or negative")

	// ErrNoPosition - по активу нет активной позиции
	ErrNoPosition = errors.New("no active position for asset")

	// ErrOrderState - ордер не в допустимом для операции статусе
	ErrOrderState = errors.New("order not in executable state")
)

// ActivePosition - запись об активной позиции (view оркестратора)
//
// Не более одной на актив: повторное открытие перезаписывает запись.
type ActivePosition struct {
	Asset      string  `json:"asset"`
	OrderID    string  `json:"order_id"`
	Side       string  `json:"side"`
	Size       float64 `json:"size"`
	EntryPrice float64 `json:"entry_price"`
}

// OrderBrief - краткое описание ордера в сводке
type OrderBrief struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	Price  float64 `json:"price,omitempty"`
	Status string  `json:"status"`
}

// PositionReport - полная сводка по активу
type PositionReport struct {
	Position     ActivePosition     `json:"position"`
	Performance  PerformanceSummary `json:"performance"`
	RiskProfile  models.RiskProfile `json:"risk_profile"`
	ActiveOrders []OrderBrief       `json:"active_orders"`
}

// PortfolioReport - сводка по портфелю
type PortfolioReport struct {
	TotalExposure float64                    `json:"total_exposure"`
	TotalPnl      float64                    `json:"total_pnl"`
	PositionCount int                        `json:"position_count"`
	Positions     map[string]*PositionReport `json:"positions"`
}

// Engine - торговый оркестратор
//
// Последовательность открытия: проверка портфельного риска → расчёт
// размера → market-ордер → явный перевод pending → open → исполнение →
// запись активной позиции → снимок в P&L монитор.
//
// Машина состояний по активу:
// нет позиции → (open) → активная позиция → (close | пробой порога) → нет позиции
//
// Engine владеет только таблицей активных позиций; ордера, снимки P&L,
// подписчики хаба принадлежат своим компонентам и мутируются только
// через их операции.
type Engine struct {
	cfg    *config.Config
	logger *utils.Logger

	orders  *OrderManager
	pnl     *PnLMonitor
	risk    *RiskManager
	feed    *PriceFeed
	tracker *PositionTracker

	mu      sync.RWMutex
	active  map[string]*ActivePosition
	balance float64
}

// NewEngine создаёт движок и все его компоненты
func NewEngine(cfg *config.Config, logger *utils.Logger) *Engine {
	if logger == nil {
		logger = utils.GetGlobalLogger()
	}

	pnl := NewPnLMonitor(cfg.AlertThresholds, logger)
	feed := NewPriceFeed(logger)

	return &Engine{
		cfg:     cfg,
		logger:  logger.WithComponent("engine"),
		orders:  NewOrderManager(cfg.Stops, logger),
		pnl:     pnl,
		risk:    NewRiskManager(cfg.RiskLimits, cfg.Sizing, cfg.RiskWeights, pnl, logger),
		feed:    feed,
		tracker: NewPositionTracker(feed, logger),
		active:  make(map[string]*ActivePosition),
		balance: cfg.InitialBalance,
	}
}

// Доступ к компонентам для низкоуровневых сценариев

func (e *Engine) Orders() *OrderManager { return e.orders }

func (e *Engine) PnL() *PnLMonitor { return e.pnl }

func (e *Engine) Risk() *RiskManager { return e.risk }

func (e *Engine) Feed() *PriceFeed { return e.feed }

func (e *Engine) Tracker() *PositionTracker { return e.tracker }

// AccountBalance возвращает учётный баланс счёта
func (e *Engine) AccountBalance() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.balance
}

// OpenPosition открывает позицию с риск-ограниченным размером
//
// Отказы: ErrExposureLimit при активном портфельном алерте,
// ErrZeroSize при нулевом расчётном размере.
func (e *Engine) OpenPosition(asset, side string, price float64) (*models.Order, error) {
	for _, alert := range e.risk.CheckPortfolioRisk() {
		if alert.Type == models.AlertExposureLimit {
			RiskRejections.WithLabelValues("exposure_limit").Inc()
			e.logger.Warn("cannot open position: portfolio exposure limit reached",
				utils.Asset(asset),
			)
			return nil, ErrExposureLimit
		}
	}

	size := e.risk.CalculatePositionSize(asset, price)
	if size <= 0 {
		RiskRejections.WithLabelValues("zero_size").Inc()
		e.logger.Warn("position size calculation resulted in zero or negative size",
			utils.Asset(asset),
			utils.Price(price),
		)
		return nil, ErrZeroSize
	}

	order, err := e.executeMarketOrder(asset, side, size, price, price)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.active[asset] = &ActivePosition{
		Asset:      asset,
		OrderID:    order.ID,
		Side:       side,
		Size:       size,
		EntryPrice: price,
	}
	e.mu.Unlock()

	e.pnl.UpdatePosition(order, price)

	PositionsOpened.Inc()
	e.logger.Info("position opened",
		utils.Asset(asset),
		utils.Side(side),
		utils.Size(size),
		utils.Price(price),
		utils.OrderID(order.ID),
	)

	return order, nil
}

// ClosePosition закрывает активную позицию встречным market-ордером
//
// Все ещё активные защитные ордера актива отменяются (каскад снимает
// OCO-пару целиком). Отказ: ErrNoPosition.
func (e *Engine) ClosePosition(asset string, price float64) (*models.Order, error) {
	e.mu.RLock()
	stored, ok := e.active[asset]
	var position ActivePosition
	if ok {
		position = *stored
	}
	e.mu.RUnlock()

	if !ok {
		return nil, ErrNoPosition
	}

	closeSide := models.OppositeSide(position.Side)

	order, err := e.executeMarketOrder(asset, closeSide, position.Size, price, position.EntryPrice)
	if err != nil {
		return nil, err
	}

	// Снимаем все защитные ордера актива, включая пару, порождённую
	// исполнением самого закрывающего ордера
	for _, activeOrder := range e.orders.GetActiveOrders(asset) {
		if activeOrder.IsProtective() {
			e.orders.CancelOrder(activeOrder.ID)
		}
	}

	e.mu.Lock()
	delete(e.active, asset)
	e.mu.Unlock()

	// Финальный P&L: закрывающий ордер несёт исходную цену входа
	e.pnl.UpdatePosition(order, price)

	PositionsClosed.WithLabelValues("manual").Inc()
	e.logger.Info("position closed",
		utils.Asset(asset),
		utils.Side(closeSide),
		utils.Price(price),
		utils.OrderID(order.ID),
	)

	return order, nil
}

// UpdatePosition обновляет P&L позиции и реагирует на алерты
//
// stop_loss алерт немедленно вызывает ClosePosition в том же вызове.
// Отказ: ErrNoPosition.
func (e *Engine) UpdatePosition(asset string, currentPrice float64) ([]models.PnLAlert, error) {
	e.mu.RLock()
	stored, ok := e.active[asset]
	var orderID string
	if ok {
		orderID = stored.OrderID
	}
	e.mu.RUnlock()

	if !ok {
		return nil, ErrNoPosition
	}

	order := e.orders.GetOrder(orderID)
	if order == nil {
		return nil, ErrNoPosition
	}

	alerts := e.pnl.UpdatePosition(order, currentPrice)

	for _, alert := range alerts {
		if alert.Type == models.AlertStopLoss {
			if _, err := e.ClosePosition(asset, currentPrice); err == nil {
				e.logger.Info("stop loss triggered, position closed",
					utils.Asset(asset),
					utils.Price(currentPrice),
				)
			}
		}
	}

	return alerts, nil
}

// executeMarketOrder создаёт, открывает и исполняет market-ордер
//
// Двухфазный контракт исполнения: ордер рождается pending, переводится
// в open явной операцией менеджера и только затем исполняется.
func (e *Engine) executeMarketOrder(asset, side string, size, fillPrice, entryPrice float64) (*models.Order, error) {
	order := e.orders.CreateMarketOrder(asset, side, size)

	e.orders.SetEntryPrice(order.ID, entryPrice)

	if !e.orders.MarkOpen(order.ID) {
		return nil, fmt.Errorf("mark open %s: %w", order.ID, ErrOrderState)
	}

	if !e.orders.ProcessFill(order.ID, fillPrice, time.Time{}) {
		return nil, fmt.Errorf("process fill %s: %w", order.ID, ErrOrderState)
	}

	return e.orders.GetOrder(order.ID), nil
}

// GetPositionSummary возвращает полную сводку по активу
//
// Комбинирует запись активной позиции, показатели P&L монитора, свежий
// риск-профиль и активные ордера актива. Отказ: ErrNoPosition.
func (e *Engine) GetPositionSummary(asset string) (*PositionReport, error) {
	e.mu.RLock()
	stored, ok := e.active[asset]
	var position ActivePosition
	if ok {
		position = *stored
	}
	e.mu.RUnlock()

	if !ok {
		return nil, ErrNoPosition
	}

	performance, _ := e.pnl.GetPerformanceSummary(asset)
	riskProfile := e.risk.UpdateRiskProfile(asset)

	activeOrders := e.orders.GetActiveOrders(asset)
	briefs := make([]OrderBrief, 0, len(activeOrders))
	for _, order := range activeOrders {
		briefs = append(briefs, OrderBrief{
			ID:     order.ID,
			Type:   order.Type,
			Price:  order.Price,
			Status: order.Status,
		})
	}

	return &PositionReport{
		Position:     position,
		Performance:  performance,
		RiskProfile:  riskProfile,
		ActiveOrders: briefs,
	}, nil
}

// GetPortfolioSummary возвращает сводку по всему портфелю
func (e *Engine) GetPortfolioSummary() *PortfolioReport {
	e.mu.RLock()
	assets := make([]string, 0, len(e.active))
	for asset := range e.active {
		assets = append(assets, asset)
	}
	e.mu.RUnlock()

	report := &PortfolioReport{
		PositionCount: len(assets),
		Positions:     make(map[string]*PositionReport, len(assets)),
	}

	for _, asset := range assets {
		summary, err := e.GetPositionSummary(asset)
		if err != nil {
			continue
		}
		report.Positions[asset] = summary
		report.TotalPnl += summary.Performance.CurrentPnl
		report.TotalExposure += summary.Performance.Exposure
	}

	return report
}
