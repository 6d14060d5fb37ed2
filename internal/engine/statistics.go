package engine

import "time"

// statistics.go - расчёт торговой статистики
//
// Назначение:
// Агрегированные метрики качества торговли поверх истории позиций.
//
// Функции (планируемые):
// - Sharpe ratio по кривой доходности
// - Win rate и profit factor
// - Максимальная просадка
//
// TODO: реализовать расчёт статистики поверх журнала исполнений

// PositionMetrics - моментальный срез позиции для статистики
type PositionMetrics struct {
	Asset        string    `json:"asset"`
	CurrentPrice float64   `json:"current_price"`
	Size         float64   `json:"size"`
	Timestamp    time.Time `json:"timestamp"`
}

// StatsCalculator - калькулятор статистики (заглушка)
type StatsCalculator struct{}

// NewStatsCalculator создаёт калькулятор статистики
func NewStatsCalculator() *StatsCalculator {
	return &StatsCalculator{}
}
