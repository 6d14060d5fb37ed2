package engine

import (
	"testing"

	"tradecore/internal/config"
	"tradecore/internal/models"
	"tradecore/pkg/utils"
)

// stubExposureSource - управляемый источник снимков для тестов риска
type stubExposureSource struct {
	snapshots map[string]PositionSnapshot
	summaries map[string]PerformanceSummary
}

func (s *stubExposureSource) Snapshots() map[string]PositionSnapshot {
	return s.snapshots
}

func (s *stubExposureSource) GetPerformanceSummary(asset string) (PerformanceSummary, bool) {
	summary, ok := s.summaries[asset]
	return summary, ok
}

func newTestRiskManager(source ExposureSource) *RiskManager {
	return newTestRiskManagerMaxSize(source, 10)
}

// newTestRiskManagerMaxSize позволяет поднять лимит размера, чтобы
// тестировать расчёт ёмкости без зажима по max_position_size
func newTestRiskManagerMaxSize(source ExposureSource, maxSize float64) *RiskManager {
	return NewRiskManager(
		config.RiskLimitsConfig{
			MaxPositionSize:      maxSize,
			MaxPortfolioExposure: 1_000_000,
		},
		config.SizingConfig{BaseVolatility: 0.02},
		config.RiskWeightsConfig{Volatility: 0.6, Correlation: 0.4},
		source,
		utils.NopLogger(),
	)
}

// ============================================================
// Тесты расчёта размера позиции
// ============================================================

func TestCalculatePositionSize_EmptyPortfolio(t *testing.T) {
	// Лимит размера выше расчётной ёмкости: под тестом сам расчёт
	rm := newTestRiskManagerMaxSize(&stubExposureSource{}, 100)

	size := rm.CalculatePositionSize("BTC/USD", 50000)

	// remaining = 1_000_000*0.98; size = remaining/50000*0.98
	want := 1_000_000 * 0.98 / 50000 * 0.98
	if !floatEquals(size, want) {
		t.Errorf("size = %v, want %v", size, want)
	}
}

func TestCalculatePositionSize_CappedByMaxPositionSize(t *testing.T) {
	rm := newTestRiskManager(&stubExposureSource{})

	// Дешёвый актив: остаток экспозиции даёт огромный размер в единицах
	size := rm.CalculatePositionSize("XRP/USD", 0.5)

	if size != 10 {
		t.Errorf("size = %v, want 10 (зажим по лимиту)", size)
	}

	// Ёмкость пустого портфеля (19.2 единицы по 50000) тоже зажимается
	if size := rm.CalculatePositionSize("BTC/USD", 50000); size != 10 {
		t.Errorf("size = %v, want 10 (зажим по лимиту)", size)
	}
}

func TestCalculatePositionSize_ReducedByExposure(t *testing.T) {
	source := &stubExposureSource{
		snapshots: map[string]PositionSnapshot{
			"ETH/USD": {CurrentPrice: 3000, Size: 100}, // экспозиция 300_000
		},
	}
	rm := newTestRiskManagerMaxSize(source, 100)

	size := rm.CalculatePositionSize("BTC/USD", 50000)

	want := (1_000_000*0.98 - 300_000) / 50000 * 0.98
	if !floatEquals(size, want) {
		t.Errorf("size = %v, want %v", size, want)
	}
}

func TestCalculatePositionSize_NoCapacity(t *testing.T) {
	source := &stubExposureSource{
		snapshots: map[string]PositionSnapshot{
			"BTC/USD": {CurrentPrice: 50000, Size: 20}, // экспозиция 1_000_000
		},
	}
	rm := newTestRiskManager(source)

	if size := rm.CalculatePositionSize("ETH/USD", 3000); size != 0 {
		t.Errorf("size = %v, want 0 при исчерпанной экспозиции", size)
	}
}

func TestCalculatePositionSize_InvalidPrice(t *testing.T) {
	rm := newTestRiskManager(&stubExposureSource{})

	if size := rm.CalculatePositionSize("BTC/USD", 0); size != 0 {
		t.Errorf("size = %v, want 0 при нулевой цене", size)
	}
	if size := rm.CalculatePositionSize("BTC/USD", -1); size != 0 {
		t.Errorf("size = %v, want 0 при отрицательной цене", size)
	}
}

// ============================================================
// Тесты портфельного лимита
// ============================================================

func TestCheckPortfolioRisk(t *testing.T) {
	tests := []struct {
		name      string
		snapshots map[string]PositionSnapshot
		wantAlert bool
	}{
		{
			name:      "empty portfolio is quiet",
			snapshots: nil,
			wantAlert: false,
		},
		{
			name: "below limit is quiet",
			snapshots: map[string]PositionSnapshot{
				"BTC/USD": {CurrentPrice: 50000, Size: 10}, // 500_000
			},
			wantAlert: false,
		},
		{
			name: "exactly at limit alerts",
			snapshots: map[string]PositionSnapshot{
				"BTC/USD": {CurrentPrice: 50000, Size: 20}, // 1_000_000
			},
			wantAlert: true,
		},
		{
			name: "above limit alerts once",
			snapshots: map[string]PositionSnapshot{
				"BTC/USD": {CurrentPrice: 50000, Size: 15}, // 750_000
				"ETH/USD": {CurrentPrice: 3000, Size: 200}, // 600_000
			},
			wantAlert: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := newTestRiskManager(&stubExposureSource{snapshots: tt.snapshots})

			alerts := rm.CheckPortfolioRisk()

			if !tt.wantAlert {
				if len(alerts) != 0 {
					t.Fatalf("алертов быть не должно: %v", alerts)
				}
				return
			}
			if len(alerts) != 1 {
				t.Fatalf("алертов = %d, want 1", len(alerts))
			}
			if alerts[0].Type != models.AlertExposureLimit {
				t.Errorf("тип алерта = %s, want %s", alerts[0].Type, models.AlertExposureLimit)
			}
		})
	}
}

// ============================================================
// Тесты риск-профиля
// ============================================================

func TestUpdateRiskProfile_UnknownAsset(t *testing.T) {
	rm := newTestRiskManager(&stubExposureSource{})

	profile := rm.UpdateRiskProfile("BTC/USD")

	// Без сводки волатильность базовая, штрафа нет
	if !floatEquals(profile.CurrentVolatility, 0.02) {
		t.Errorf("volatility = %v, want 0.02", profile.CurrentVolatility)
	}
	if !floatEquals(profile.RiskScore, 0.02*0.6) {
		t.Errorf("risk score = %v, want %v", profile.RiskScore, 0.02*0.6)
	}
	if !floatEquals(profile.PositionLimit, 10*(1-0.02*0.6)) {
		t.Errorf("position limit = %v", profile.PositionLimit)
	}
}

func TestUpdateRiskProfile_VolatilityFromPnl(t *testing.T) {
	source := &stubExposureSource{
		summaries: map[string]PerformanceSummary{
			"BTC/USD": {PnlPercent: 8}, // |8%|/100 = 0.08 > базовой 0.02
		},
	}
	rm := newTestRiskManager(source)

	profile := rm.UpdateRiskProfile("BTC/USD")

	if !floatEquals(profile.CurrentVolatility, 0.08) {
		t.Errorf("volatility = %v, want 0.08", profile.CurrentVolatility)
	}
	// Положительный P&L не штрафуется
	if !floatEquals(profile.RiskScore, 0.08*0.6) {
		t.Errorf("risk score = %v, want %v", profile.RiskScore, 0.08*0.6)
	}
}

func TestUpdateRiskProfile_LossPenalty(t *testing.T) {
	source := &stubExposureSource{
		summaries: map[string]PerformanceSummary{
			"BTC/USD": {PnlPercent: -5},
		},
	}
	rm := newTestRiskManager(source)

	profile := rm.UpdateRiskProfile("BTC/USD")

	// vol = max(0.02, 0.05) = 0.05; penalty = 5*0.1 = 0.5
	wantScore := 0.05*0.6 + 0.5*0.4
	if !floatEquals(profile.RiskScore, wantScore) {
		t.Errorf("risk score = %v, want %v", profile.RiskScore, wantScore)
	}
	if !floatEquals(profile.PositionLimit, 10*(1-wantScore)) {
		t.Errorf("position limit = %v, want %v", profile.PositionLimit, 10*(1-wantScore))
	}
}

func TestUpdateRiskProfile_ScoreClamped(t *testing.T) {
	source := &stubExposureSource{
		summaries: map[string]PerformanceSummary{
			"BTC/USD": {PnlPercent: -80}, // глубокий убыток раздувает скор
		},
	}
	rm := newTestRiskManager(source)

	profile := rm.UpdateRiskProfile("BTC/USD")

	if profile.RiskScore != 1 {
		t.Errorf("risk score = %v, want 1 (зажим сверху)", profile.RiskScore)
	}
	// Лимит никогда не уходит в минус
	if profile.PositionLimit != 0 {
		t.Errorf("position limit = %v, want 0", profile.PositionLimit)
	}
}
