package config

import (
	"fmt"
	"os"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// Config содержит всю конфигурацию торгового ядра
//
// Загружается один раз при старте (env или JSON-файл) и валидируется
// до создания компонентов. Компоненты получают только свои секции.
type Config struct {
	Stops           StopsConfig           `json:"stops"`
	AlertThresholds AlertThresholdsConfig `json:"alert_thresholds"`
	RiskLimits      RiskLimitsConfig      `json:"risk_limits"`
	Sizing          SizingConfig          `json:"position_size_config"`
	RiskWeights     RiskWeightsConfig     `json:"risk_weights"`
	InitialBalance  float64               `json:"initial_balance"`
	Logging         LoggingConfig         `json:"logging"`
}

// StopsConfig - параметры защитных ордеров (OrderManager)
type StopsConfig struct {
	StopLossPercent   float64 `json:"stop_loss_percent"`   // доля от цены исполнения
	TakeProfitPercent float64 `json:"take_profit_percent"` // доля от цены исполнения
}

// AlertThresholdsConfig - пороги P&L алертов (PnLMonitor)
//
// Оба порога неотрицательные доли: stop_loss сравнивается с -P&L,
// profit_target - с +P&L, поэтому за один вызов возможен максимум один алерт.
type AlertThresholdsConfig struct {
	StopLoss     float64 `json:"stop_loss"`
	ProfitTarget float64 `json:"profit_target"`
}

// RiskLimitsConfig - портфельные лимиты (RiskManager)
type RiskLimitsConfig struct {
	MaxPositionSize      float64 `json:"max_position_size"`      // в единицах актива
	MaxPortfolioExposure float64 `json:"max_portfolio_exposure"` // в валюте котировки
}

// SizingConfig - параметры расчёта размера позиции
type SizingConfig struct {
	BaseVolatility float64 `json:"base_volatility"` // минимальная оценка волатильности
}

// RiskWeightsConfig - веса композитного риск-скора
type RiskWeightsConfig struct {
	Volatility  float64 `json:"volatility"`
	Correlation float64 `json:"correlation"`
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	return &Config{
		Stops: StopsConfig{
			StopLossPercent:   0.02,
			TakeProfitPercent: 0.03,
		},
		AlertThresholds: AlertThresholdsConfig{
			StopLoss:     0.01,
			ProfitTarget: 0.02,
		},
		RiskLimits: RiskLimitsConfig{
			MaxPositionSize:      10,
			MaxPortfolioExposure: 1_000_000,
		},
		Sizing: SizingConfig{
			BaseVolatility: 0.02,
		},
		RiskWeights: RiskWeightsConfig{
			Volatility:  0.6,
			Correlation: 0.4,
		},
		InitialBalance: 0,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load загружает конфигурацию из переменных окружения
//
// Отсутствующие переменные получают значения по умолчанию из Default.
func Load() (*Config, error) {
	def := Default()

	cfg := &Config{
		Stops: StopsConfig{
			StopLossPercent:   getEnvAsFloat("STOP_LOSS_PERCENT", def.Stops.StopLossPercent),
			TakeProfitPercent: getEnvAsFloat("TAKE_PROFIT_PERCENT", def.Stops.TakeProfitPercent),
		},
		AlertThresholds: AlertThresholdsConfig{
			StopLoss:     getEnvAsFloat("ALERT_STOP_LOSS", def.AlertThresholds.StopLoss),
			ProfitTarget: getEnvAsFloat("ALERT_PROFIT_TARGET", def.AlertThresholds.ProfitTarget),
		},
		RiskLimits: RiskLimitsConfig{
			MaxPositionSize:      getEnvAsFloat("MAX_POSITION_SIZE", def.RiskLimits.MaxPositionSize),
			MaxPortfolioExposure: getEnvAsFloat("MAX_PORTFOLIO_EXPOSURE", def.RiskLimits.MaxPortfolioExposure),
		},
		Sizing: SizingConfig{
			BaseVolatility: getEnvAsFloat("BASE_VOLATILITY", def.Sizing.BaseVolatility),
		},
		RiskWeights: RiskWeightsConfig{
			Volatility:  getEnvAsFloat("RISK_WEIGHT_VOLATILITY", def.RiskWeights.Volatility),
			Correlation: getEnvAsFloat("RISK_WEIGHT_CORRELATION", def.RiskWeights.Correlation),
		},
		InitialBalance: getEnvAsFloat("INITIAL_BALANCE", def.InitialBalance),
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", def.Logging.Level),
			Format: getEnv("LOG_FORMAT", def.Logging.Format),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile загружает конфигурацию из JSON-файла
//
// Поля, отсутствующие в файле, получают значения по умолчанию.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет числовые диапазоны параметров
func (c *Config) Validate() error {
	if c.Stops.StopLossPercent < 0 || c.Stops.StopLossPercent >= 1 {
		return fmt.Errorf("STOP_LOSS_PERCENT must be in [0, 1), got %v", c.Stops.StopLossPercent)
	}

	if c.Stops.TakeProfitPercent < 0 {
		return fmt.Errorf("TAKE_PROFIT_PERCENT cannot be negative, got %v", c.Stops.TakeProfitPercent)
	}

	// Пороги алертов неотрицательные: взаимоисключаемость stop_loss и
	// take_profit алертов опирается на противоположные знаки сравнения
	if c.AlertThresholds.StopLoss < 0 {
		return fmt.Errorf("ALERT_STOP_LOSS cannot be negative, got %v", c.AlertThresholds.StopLoss)
	}

	if c.AlertThresholds.ProfitTarget < 0 {
		return fmt.Errorf("ALERT_PROFIT_TARGET cannot be negative, got %v", c.AlertThresholds.ProfitTarget)
	}

	if c.RiskLimits.MaxPositionSize <= 0 {
		return fmt.Errorf("MAX_POSITION_SIZE must be positive, got %v", c.RiskLimits.MaxPositionSize)
	}

	if c.RiskLimits.MaxPortfolioExposure <= 0 {
		return fmt.Errorf("MAX_PORTFOLIO_EXPOSURE must be positive, got %v", c.RiskLimits.MaxPortfolioExposure)
	}

	if c.Sizing.BaseVolatility < 0 {
		return fmt.Errorf("BASE_VOLATILITY cannot be negative, got %v", c.Sizing.BaseVolatility)
	}

	if c.RiskWeights.Volatility < 0 || c.RiskWeights.Correlation < 0 {
		return fmt.Errorf("risk weights cannot be negative, got volatility=%v correlation=%v",
			c.RiskWeights.Volatility, c.RiskWeights.Correlation)
	}

	if c.InitialBalance < 0 {
		return fmt.Errorf("INITIAL_BALANCE cannot be negative, got %v", c.InitialBalance)
	}

	return nil
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
