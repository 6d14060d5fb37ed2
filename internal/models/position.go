package models

import "time"

// Position представляет отслеживаемую позицию (view трекера)
//
// На один актив отслеживается не более одной позиции: повторное
// добавление для того же актива перезаписывает предыдущую.
type Position struct {
	Asset        string    `json:"asset"`
	Size         float64   `json:"size"`
	EntryPrice   float64   `json:"entry_price"`
	CurrentPrice float64   `json:"current_price"`
	StopLoss     float64   `json:"stop_loss,omitempty"`   // 0 = не задан
	TakeProfit   float64   `json:"take_profit,omitempty"` // 0 = не задан
	Timestamp    time.Time `json:"timestamp"`
}

// PriceUpdate - событие обновления цены
//
// Эфемерное значение: нигде не хранится, кроме кэша последней цены.
type PriceUpdate struct {
	Asset     string    `json:"asset"`
	Price     float64   `json:"price"`
	Bid       float64   `json:"bid,omitempty"`
	Ask       float64   `json:"ask,omitempty"`
	Volume    float64   `json:"volume,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
