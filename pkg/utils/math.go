package utils

// math.go - математические утилиты торгового ядра
//
// Назначение:
// Вспомогательные расчёты для позиций и рисков.
// Все функции являются чистыми (pure functions) без побочных эффектов.
//
// Функции:
// - PercentChange: изменение цены в процентах от входа
// - Notional: номинальная стоимость позиции (экспозиция)
// - Clamp / Clamp01: зажим значения в диапазон

// PercentChange возвращает изменение цены в процентах относительно входа.
//
// Формула: (current - entry) / entry * 100
//
// Параметры:
//   - entry: цена входа
//   - current: текущая цена
//
// Возвращает:
//   - Изменение в процентах; 0 если entry == 0 (деление на ноль исключено)
//
// Примеры:
//   - PercentChange(100, 105) = 5.0
//   - PercentChange(100, 98) = -2.0
func PercentChange(entry, current float64) float64 {
	if entry == 0 {
		return 0
	}
	return (current - entry) / entry * 100
}

// Notional возвращает номинальную стоимость позиции (цена × объём).
//
// Используется для расчёта экспозиции портфеля.
func Notional(price, size float64) float64 {
	return price * size
}

// Clamp зажимает значение в диапазон [lo, hi].
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// Clamp01 зажимает значение в диапазон [0, 1].
//
// Применяется к риск-скору перед масштабированием лимита позиции:
// гарантирует неотрицательный результат max_size * (1 - score).
func Clamp01(value float64) float64 {
	return Clamp(value, 0, 1)
}
