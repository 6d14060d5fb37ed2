package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о проблемах
// - Анализ поведения риск-логики в production

// ============ Счётчики ордеров ============

// OrdersCreated - количество созданных ордеров по типам
var OrdersCreated = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "orders_created_total",
		Help:      "Total number of created orders",
	},
	[]string{"type"},
)

// OrdersFilled - количество исполненных ордеров по типам
var OrdersFilled = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "orders_filled_total",
		Help:      "Total number of filled orders",
	},
	[]string{"type"},
)

// OrdersCancelled - количество отменённых ордеров (включая каскадные отмены)
var OrdersCancelled = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "orders_cancelled_total",
		Help:      "Total number of cancelled orders including cascade cancellations",
	},
)

// ============ Метрики ценового хаба ============

// PriceUpdatesPublished - количество опубликованных ценовых событий
var PriceUpdatesPublished = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "price_updates_published_total",
		Help:      "Total number of published price updates",
	},
)

// ListenerFaults - количество ошибок подписчиков при fan-out
var ListenerFaults = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "listener_faults_total",
		Help:      "Total number of listener errors during price fan-out",
	},
)

// PublishFanoutDuration - длительность доставки события всем подписчикам
var PublishFanoutDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "publish_fanout_duration_ms",
		Help:      "Time to deliver a price update to all listeners in milliseconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
)

// ============ Метрики позиций и алертов ============

// AlertsEmitted - количество сгенерированных алертов по видам
var AlertsEmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "alerts_emitted_total",
		Help:      "Total number of emitted P&L and risk alerts",
	},
	[]string{"kind"},
)

// PositionsOpened - количество открытых позиций
var PositionsOpened = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "positions_opened_total",
		Help:      "Total number of opened positions",
	},
)

// PositionsClosed - количество закрытых позиций по причинам
var PositionsClosed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "positions_closed_total",
		Help:      "Total number of closed positions",
	},
	[]string{"reason"}, // manual, stop_loss, take_profit
)

// RiskRejections - количество отказов в открытии позиции
var RiskRejections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "risk_rejections_total",
		Help:      "Total number of position openings rejected by risk checks",
	},
	[]string{"reason"}, // exposure_limit, zero_size
)
