package utils

import (
	"math"
	"testing"
)

// ============================================================
// Тесты PercentChange
// ============================================================

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name     string
		entry    float64
		current  float64
		expected float64
	}{
		// Базовые кейсы
		{"price up", 100, 105, 5.0},
		{"price down", 100, 98, -2.0},
		{"no change", 100, 100, 0},

		// Граничные случаи
		{"zero entry", 0, 105, 0},
		{"zero current", 100, 0, -100},

		// BTC примеры
		{"BTC stop level", 50000, 49000, -2.0},
		{"BTC target level", 50000, 51500, 3.0},

		// Малые изменения
		{"tiny move", 50000, 50005, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PercentChange(tt.entry, tt.current)
			if !floatEquals(result, tt.expected) {
				t.Errorf("PercentChange(%v, %v) = %v, want %v",
					tt.entry, tt.current, result, tt.expected)
			}
		})
	}
}

// ============================================================
// Тесты Notional
// ============================================================

func TestNotional(t *testing.T) {
	tests := []struct {
		name     string
		price    float64
		size     float64
		expected float64
	}{
		{"basic", 50000, 0.5, 25000},
		{"zero size", 50000, 0, 0},
		{"zero price", 0, 0.5, 0},
		{"unit size", 3000, 1, 3000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Notional(tt.price, tt.size)
			if !floatEquals(result, tt.expected) {
				t.Errorf("Notional(%v, %v) = %v, want %v",
					tt.price, tt.size, result, tt.expected)
			}
		})
	}
}

// ============================================================
// Тесты Clamp
// ============================================================

func TestClamp01(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		expected float64
	}{
		{"inside range", 0.5, 0.5},
		{"below zero", -0.2, 0},
		{"above one", 1.7, 1},
		{"exact zero", 0, 0},
		{"exact one", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Clamp01(tt.value)
			if !floatEquals(result, tt.expected) {
				t.Errorf("Clamp01(%v) = %v, want %v", tt.value, result, tt.expected)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 10); got != 5 {
		t.Errorf("Clamp(5, 0, 10) = %v, want 5", got)
	}
	if got := Clamp(-5, 0, 10); got != 0 {
		t.Errorf("Clamp(-5, 0, 10) = %v, want 0", got)
	}
	if got := Clamp(15, 0, 10); got != 10 {
		t.Errorf("Clamp(15, 0, 10) = %v, want 10", got)
	}
}

// floatEquals сравнивает float64 с допуском
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
