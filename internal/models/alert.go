package models

// PnLAlert - уведомление о пересечении порога P&L
//
// Stateless value object: создаётся на каждый вызов update, не хранится.
type PnLAlert struct {
	Type    string `json:"type"` // stop_loss, take_profit
	Message string `json:"message"`
}

// RiskAlert - уведомление о нарушении портфельного лимита
type RiskAlert struct {
	Type    string `json:"type"` // exposure_limit
	Message string `json:"message"`
}

// Типы алертов
const (
	AlertStopLoss      = "stop_loss"
	AlertTakeProfit    = "take_profit"
	AlertExposureLimit = "exposure_limit"
)

// RiskProfile - композитный риск-профиль актива
//
// Пересчитывается по запросу, между вызовами не хранится.
// RiskScore всегда в диапазоне [0,1] (входы зажимаются при расчёте).
type RiskProfile struct {
	CurrentVolatility float64 `json:"current_volatility"`
	RiskScore         float64 `json:"risk_score"`
	PositionLimit     float64 `json:"position_limit"`
}
