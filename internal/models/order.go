package models

import "time"

// Order представляет ордер в течение всего жизненного цикла
//
// Владелец - OrderManager: все мутации проходят только через его операции.
// Ордер никогда не удаляется, только переводится в терминальный статус.
type Order struct {
	ID        string     `json:"id"`
	Asset     string     `json:"asset"`
	Type      string     `json:"type"`                 // market, limit, stop_loss, take_profit
	Side      string     `json:"side"`                 // buy, sell
	Size      float64    `json:"size"`
	Price     float64    `json:"price,omitempty"`      // лимитная/триггерная цена (0 для market)
	Status    string     `json:"status"`               // pending, open, filled, cancelled, rejected
	CreatedAt time.Time  `json:"created_at"`
	FillPrice float64    `json:"fill_price,omitempty"` // цена исполнения
	FillTime  *time.Time `json:"filled_at,omitempty"`

	// Референсная цена входа; выставляется оркестратором для market-ордеров
	EntryPrice float64 `json:"entry_price,omitempty"`
}

// Fill - запись об исполнении ордера
type Fill struct {
	OrderID string    `json:"order_id"`
	Price   float64   `json:"price"`
	Size    float64   `json:"size"`
	Time    time.Time `json:"time"`
}

// Типы ордеров
const (
	OrderTypeMarket     = "market"
	OrderTypeLimit      = "limit"
	OrderTypeStopLoss   = "stop_loss"
	OrderTypeTakeProfit = "take_profit"
)

// Стороны сделки
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Статусы ордера
const (
	OrderStatusPending   = "pending"
	OrderStatusOpen      = "open"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
	OrderStatusRejected  = "rejected"
)

// IsProtective возвращает true для защитных ордеров (OCO-пара)
func (o *Order) IsProtective() bool {
	return o.Type == OrderTypeStopLoss || o.Type == OrderTypeTakeProfit
}

// StatusActive возвращает true если статус допускает исполнение или отмену
func StatusActive(s string) bool {
	return s == OrderStatusPending || s == OrderStatusOpen
}

// StatusTerminal возвращает true для конечных статусов
func StatusTerminal(s string) bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusRejected
}

// OppositeSide возвращает противоположную сторону сделки
func OppositeSide(side string) string {
	if side == SideBuy {
		return SideSell
	}
	return SideBuy
}
