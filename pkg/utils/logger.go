package utils

// logger.go - настройка структурированного логирования (zap)
//
// Назначение:
// Единая инициализация логгера для всех компонентов ядра.
//
// Функции:
// - InitLogger: создать и настроить логгер
//   * Выбор формата (JSON, text)
//   * Уровни: DEBUG, INFO, WARN, ERROR
//   * Вывод в файл или stderr
// - Глобальный логгер: InitGlobalLogger / GetGlobalLogger / L
// - Доменные конструкторы полей: Asset, OrderID, Price, PNL и др.

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig - конфигурация логгера
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal (по умолчанию info)
	Format      string // json (по умолчанию) или text
	Output      string // путь к файлу; пусто = stderr
	Development bool   // режим разработки: caller, человекочитаемый вывод
}

// Logger оборачивает zap.Logger вместе с sugared-вариантом
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

// InitLogger создаёт логгер по конфигурации
//
// Никогда не возвращает nil: при некорректных параметрах применяются
// значения по умолчанию, при недоступном файле - fallback на stderr.
func InitLogger(cfg LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	var encoderCfg zapcore.EncoderConfig
	if cfg.Development {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	} else {
		encoderCfg = zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	sink := zapcore.AddSync(os.Stderr)
	if cfg.Output != "" {
		if f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			sink = zapcore.AddSync(f)
		}
		// при ошибке открытия файла остаёмся на stderr
	}

	core := zapcore.NewCore(encoder, sink, level)

	var opts []zap.Option
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddCaller())
	}

	zl := zap.New(core, opts...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// parseLevel преобразует строку в уровень zap (по умолчанию info)
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// With возвращает дочерний логгер с дополнительными полями
func (l *Logger) With(fields ...zap.Field) *Logger {
	zl := l.Logger.With(fields...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// WithComponent добавляет имя компонента
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

// WithAsset добавляет символ актива
func (l *Logger) WithAsset(asset string) *Logger {
	return l.With(Asset(asset))
}

// WithOrderID добавляет идентификатор ордера
func (l *Logger) WithOrderID(id string) *Logger {
	return l.With(OrderID(id))
}

// Sugar возвращает sugared-вариант логгера
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// ============================================================
// Глобальный логгер
// ============================================================

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// InitGlobalLogger создаёт и устанавливает глобальный логгер
func InitGlobalLogger(cfg LogConfig) *Logger {
	logger := InitLogger(cfg)
	SetGlobalLogger(logger)
	return logger
}

// SetGlobalLogger устанавливает глобальный логгер
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// GetGlobalLogger возвращает глобальный логгер, создавая логгер
// по умолчанию при первом обращении
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()

	if logger != nil {
		return logger
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// L - краткий доступ к глобальному логгеру
func L() *Logger {
	return GetGlobalLogger()
}

// NopLogger возвращает логгер, отбрасывающий все записи (для тестов)
func NopLogger() *Logger {
	zl := zap.NewNop()
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// Глобальные функции логирования

func Debug(msg string, fields ...zap.Field) { GetGlobalLogger().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field) { GetGlobalLogger().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field) { GetGlobalLogger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetGlobalLogger().Error(msg, fields...) }

func Debugf(format string, args ...interface{}) { GetGlobalLogger().sugar.Debugf(format, args...) }
func Infof(format string, args ...interface{}) { GetGlobalLogger().sugar.Infof(format, args...) }
func Warnf(format string, args ...interface{}) { GetGlobalLogger().sugar.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { GetGlobalLogger().sugar.Errorf(format, args...) }

// ============================================================
// Доменные конструкторы полей
// ============================================================

func Asset(asset string) zap.Field { return zap.String("asset", asset) }
func OrderID(id string) zap.Field { return zap.String("order_id", id) }
func Price(price float64) zap.Field { return zap.Float64("price", price) }
func Size(size float64) zap.Field { return zap.Float64("size", size) }
func Exposure(exposure float64) zap.Field { return zap.Float64("exposure", exposure) }
func PNL(pnl float64) zap.Field { return zap.Float64("pnl", pnl) }
func PnlPercent(pct float64) zap.Field { return zap.Float64("pnl_percent", pct) }
func Side(side string) zap.Field { return zap.String("side", side) }
func Status(status string) zap.Field { return zap.String("status", status) }
func AlertType(kind string) zap.Field { return zap.String("alert_type", kind) }
func Component(name string) zap.Field { return zap.String("component", name) }

// Переэкспорт стандартных конструкторов zap

func String(key, value string) zap.Field { return zap.String(key, value) }
func Int(key string, value int) zap.Field { return zap.Int(key, value) }
func Int64(key string, value int64) zap.Field { return zap.Int64(key, value) }
func Float64(key string, value float64) zap.Field { return zap.Float64(key, value) }
func Bool(key string, value bool) zap.Field { return zap.Bool(key, value) }
func Err(err error) zap.Field { return zap.Error(err) }
func Any(key string, value interface{}) zap.Field { return zap.Any(key, value) }
