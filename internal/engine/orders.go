package engine

import (
	"fmt"
	"sync"
	"time"

	"tradecore/internal/config"
	"tradecore/internal/models"
	"tradecore/pkg/utils"
)

// OrderManager - менеджер жизненного цикла ордеров
//
// Функции:
// - Создание market/limit/stop ордеров
// - Двухфазное исполнение: pending → open → filled
// - Автоматическая OCO-пара защитных ордеров при исполнении market-ордера
// - Каскадная отмена связанных ордеров
// - Журнал исполнений по каждому ордеру
//
// Владение:
// - Таблица ордеров принадлежит менеджеру; снаружи отдаются только копии,
//   все мутации проходят через операции менеджера
// - Связи ордеров хранятся как симметричная матрица смежности: обе стороны
//   обновляются под одной блокировкой
type OrderManager struct {
	cfg    config.StopsConfig
	logger *utils.Logger

	mu        sync.RWMutex
	orders    map[string]*models.Order
	active    map[string]struct{}
	fills     map[string][]models.Fill
	relations map[string]map[string]struct{}
	counter   int64
}

// NewOrderManager создаёт менеджер ордеров
func NewOrderManager(cfg config.StopsConfig, logger *utils.Logger) *OrderManager {
	return &OrderManager{
		cfg:       cfg,
		logger:    logger.WithComponent("order_manager"),
		orders:    make(map[string]*models.Order),
		active:    make(map[string]struct{}),
		fills:     make(map[string][]models.Fill),
		relations: make(map[string]map[string]struct{}),
	}
}

// nextID генерирует идентификатор ордера
//
// Монотонный счётчик принадлежит экземпляру менеджера, не процессу.
// Вызывается под блокировкой.
func (om *OrderManager) nextID() string {
	om.counter++
	return fmt.Sprintf("order_%s_%d", time.Now().Format("20060102_150405"), om.counter)
}

// CreateMarketOrder создаёт market-ордер в статусе pending
func (om *OrderManager) CreateMarketOrder(asset, side string, size float64) *models.Order {
	om.mu.Lock()
	defer om.mu.Unlock()

	order := om.createLocked(asset, models.OrderTypeMarket, side, size, 0)
	return copyOrder(order)
}

// CreateLimitOrder создаёт limit-ордер в статусе pending
func (om *OrderManager) CreateLimitOrder(asset, side string, size, price float64) *models.Order {
	om.mu.Lock()
	defer om.mu.Unlock()

	order := om.createLocked(asset, models.OrderTypeLimit, side, size, price)
	return copyOrder(order)
}

// CreateStopOrder создаёт стоповый ордер (stop_loss или take_profit)
//
// Если parentID указан и известен менеджеру, оба ордера связываются
// взаимно в момент создания. Неизвестный parentID связи не создаёт.
func (om *OrderManager) CreateStopOrder(asset, side string, size, triggerPrice float64, orderType, parentID string) *models.Order {
	om.mu.Lock()
	defer om.mu.Unlock()

	order := om.createLocked(asset, orderType, side, size, triggerPrice)

	if parentID != "" {
		if _, known := om.orders[parentID]; known {
			om.linkLocked(order.ID, parentID)
		}
	}

	return copyOrder(order)
}

// createLocked регистрирует новый ордер. Вызывается под блокировкой.
func (om *OrderManager) createLocked(asset, orderType, side string, size, price float64) *models.Order {
	order := &models.Order{
		ID:        om.nextID(),
		Asset:     asset,
		Type:      orderType,
		Side:      side,
		Size:      size,
		Price:     price,
		Status:    models.OrderStatusPending,
		CreatedAt: time.Now(),
	}

	om.orders[order.ID] = order
	om.active[order.ID] = struct{}{}

	OrdersCreated.WithLabelValues(orderType).Inc()
	om.logger.Debug("order created",
		utils.OrderID(order.ID),
		utils.Asset(asset),
		utils.String("type", orderType),
		utils.Side(side),
		utils.Size(size),
	)

	return order
}

// linkLocked связывает два ордера взаимно. Вызывается под блокировкой.
//
// Обе стороны обновляются атомарно относительно блокировки менеджера,
// поэтому матрица смежности всегда симметрична.
func (om *OrderManager) linkLocked(a, b string) {
	if om.relations[a] == nil {
		om.relations[a] = make(map[string]struct{})
	}
	if om.relations[b] == nil {
		om.relations[b] = make(map[string]struct{})
	}
	om.relations[a][b] = struct{}{}
	om.relations[b][a] = struct{}{}
}

// MarkOpen переводит ордер из pending в open
//
// Переход выполняется внешним коллаборатором (исполнительной площадкой
// или оркестратором) до сообщения об исполнении: ProcessFill принимает
// только открытые ордера.
func (om *OrderManager) MarkOpen(orderID string) bool {
	om.mu.Lock()
	defer om.mu.Unlock()

	order, ok := om.orders[orderID]
	if !ok || order.Status != models.OrderStatusPending {
		return false
	}

	order.Status = models.OrderStatusOpen
	return true
}

// SetEntryPrice выставляет референсную цену входа ордера
//
// Допустимо только пока ордер не в терминальном статусе.
func (om *OrderManager) SetEntryPrice(orderID string, price float64) bool {
	om.mu.Lock()
	defer om.mu.Unlock()

	order, ok := om.orders[orderID]
	if !ok || models.StatusTerminal(order.Status) {
		return false
	}

	order.EntryPrice = price
	return true
}

// ProcessFill обрабатывает исполнение ордера
//
// Предусловие: статус open. Для неизвестного id или другого статуса
// возвращает false без изменения состояния.
//
// Для market-ордеров после исполнения синтезируется защитная OCO-пара:
// stop_loss sell по fillPrice*(1-stop_loss_percent) и take_profit sell
// по fillPrice*(1+take_profit_percent), связанные с родителем и друг с
// другом (трёхсторонняя взаимная связь), обе остаются pending и активны.
//
// Нулевое fillTime заменяется текущим временем.
func (om *OrderManager) ProcessFill(orderID string, fillPrice float64, fillTime time.Time) bool {
	om.mu.Lock()
	defer om.mu.Unlock()

	order, ok := om.orders[orderID]
	if !ok || order.Status != models.OrderStatusOpen {
		return false
	}

	if fillTime.IsZero() {
		fillTime = time.Now()
	}

	order.Status = models.OrderStatusFilled
	order.FillPrice = fillPrice
	order.FillTime = &fillTime
	delete(om.active, orderID)

	om.fills[orderID] = append(om.fills[orderID], models.Fill{
		OrderID: orderID,
		Price:   fillPrice,
		Size:    order.Size,
		Time:    fillTime,
	})

	OrdersFilled.WithLabelValues(order.Type).Inc()
	om.logger.Info("order filled",
		utils.OrderID(orderID),
		utils.Asset(order.Asset),
		utils.Price(fillPrice),
		utils.Size(order.Size),
	)

	if order.Type == models.OrderTypeMarket {
		om.attachStopOrdersLocked(order)
	}

	return true
}

// attachStopOrdersLocked синтезирует защитную пару для исполненного
// market-ордера. Вызывается под блокировкой.
func (om *OrderManager) attachStopOrdersLocked(parent *models.Order) {
	stopPrice := parent.FillPrice * (1 - om.cfg.StopLossPercent)
	targetPrice := parent.FillPrice * (1 + om.cfg.TakeProfitPercent)

	stopLoss := om.createLocked(parent.Asset, models.OrderTypeStopLoss, models.SideSell, parent.Size, stopPrice)
	takeProfit := om.createLocked(parent.Asset, models.OrderTypeTakeProfit, models.SideSell, parent.Size, targetPrice)

	// Трёхсторонняя взаимная связь: родитель ↔ каждый защитный ордер,
	// защитные ордера ↔ друг с другом (OCO-пара)
	om.linkLocked(parent.ID, stopLoss.ID)
	om.linkLocked(parent.ID, takeProfit.ID)
	om.linkLocked(stopLoss.ID, takeProfit.ID)

	om.logger.Info("protective orders attached",
		utils.OrderID(parent.ID),
		utils.Asset(parent.Asset),
		utils.Float64("stop_loss_price", stopPrice),
		utils.Float64("take_profit_price", targetPrice),
	)
}

// CancelOrder отменяет ордер и каскадно все связанные с ним
//
// Для неизвестного id или терминального статуса возвращает false.
// Каскад идёт на один уровень по сохранённым связям: отменяются только
// связанные ордера, ещё находящиеся в pending/open; уже терминальные
// (например, исполненный родитель) не затрагиваются.
func (om *OrderManager) CancelOrder(orderID string) bool {
	om.mu.Lock()
	defer om.mu.Unlock()

	order, ok := om.orders[orderID]
	if !ok || !models.StatusActive(order.Status) {
		return false
	}

	om.cancelLocked(order)

	for relatedID := range om.relations[orderID] {
		related, known := om.orders[relatedID]
		if known && models.StatusActive(related.Status) {
			om.cancelLocked(related)
		}
	}

	return true
}

// cancelLocked переводит ордер в cancelled. Вызывается под блокировкой.
func (om *OrderManager) cancelLocked(order *models.Order) {
	order.Status = models.OrderStatusCancelled
	delete(om.active, order.ID)

	OrdersCancelled.Inc()
	om.logger.Info("order cancelled",
		utils.OrderID(order.ID),
		utils.Asset(order.Asset),
		utils.String("type", order.Type),
	)
}

// GetOrder возвращает копию ордера (nil для неизвестного id)
func (om *OrderManager) GetOrder(orderID string) *models.Order {
	om.mu.RLock()
	defer om.mu.RUnlock()

	order, ok := om.orders[orderID]
	if !ok {
		return nil
	}
	return copyOrder(order)
}

// GetActiveOrders возвращает копии активных (pending/open) ордеров
//
// Пустой asset означает все активы.
func (om *OrderManager) GetActiveOrders(asset string) []*models.Order {
	om.mu.RLock()
	defer om.mu.RUnlock()

	result := make([]*models.Order, 0, len(om.active))
	for orderID := range om.active {
		order := om.orders[orderID]
		if asset != "" && order.Asset != asset {
			continue
		}
		result = append(result, copyOrder(order))
	}
	return result
}

// GetFills возвращает журнал исполнений ордера
func (om *OrderManager) GetFills(orderID string) []models.Fill {
	om.mu.RLock()
	defer om.mu.RUnlock()

	fills := om.fills[orderID]
	result := make([]models.Fill, len(fills))
	copy(result, fills)
	return result
}

// GetRelated возвращает идентификаторы связанных ордеров
func (om *OrderManager) GetRelated(orderID string) []string {
	om.mu.RLock()
	defer om.mu.RUnlock()

	related := om.relations[orderID]
	result := make([]string, 0, len(related))
	for id := range related {
		result = append(result, id)
	}
	return result
}

// copyOrder возвращает независимую копию ордера
func copyOrder(order *models.Order) *models.Order {
	clone := *order
	if order.FillTime != nil {
		fillTime := *order.FillTime
		clone.FillTime = &fillTime
	}
	return &clone
}
