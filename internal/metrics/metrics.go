package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Metrics содержит все метрики приложения
type Metrics struct {
	logger *zap.Logger

	// Счетчики
	clicksRecorded     *prometheus.CounterVec
	redirects          *prometheus.CounterVec
	botUpdates         *prometheus.CounterVec
	referralsQualified prometheus.Counter
	dailyResets        prometheus.Counter

	// Гистограммы
	shortenerDuration prometheus.Histogram

	// Gauge метрики
	lastResetDay prometheus.Gauge

	// Мьютекс для thread-safety
	mu sync.RWMutex
}

// New создает новый экземпляр метрик
func New(logger *zap.Logger) *Metrics {
	m := &Metrics{
		logger: logger,

		// Счетчики кликов по исходу
		clicksRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clicks_recorded_total",
				Help: "Общее количество обработанных кликов",
			},
			[]string{"result"}, // recorded, duplicate
		),

		// Счетчики редиректов по статусу ответа
		redirects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redirects_total",
				Help: "Общее количество запросов к редирект-эндпоинту",
			},
			[]string{"status"}, // redirected, bad_request, no_target
		),

		// Счетчики входящих обновлений бота
		botUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_updates_total",
				Help: "Общее количество обновлений Telegram",
			},
			[]string{"type"}, // command, callback, other
		),

		// Счетчик квалифицированных рефералов
		referralsQualified: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "referrals_qualified_total",
				Help: "Общее количество квалифицированных рефералов",
			},
		),

		// Счетчик выполненных ежедневных сбросов
		dailyResets: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "daily_resets_total",
				Help: "Общее количество выполненных ежедневных сбросов",
			},
		),

		// Гистограмма времени запроса к сервису сокращения ссылок
		shortenerDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shortener_request_seconds",
				Help:    "Время запроса к сервису сокращения ссылок",
				Buckets: prometheus.DefBuckets,
			},
		),

		// Gauge дня последнего сброса (unix-время начала дня)
		lastResetDay: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "last_reset_day",
				Help: "Начало дня последнего сброса (unix timestamp)",
			},
		),
	}

	// Регистрируем все метрики
	prometheus.MustRegister(
		m.clicksRecorded,
		m.redirects,
		m.botUpdates,
		m.referralsQualified,
		m.dailyResets,
		m.shortenerDuration,
		m.lastResetDay,
	)

	return m
}

// IncrementCounter увеличивает счетчик с метками
func (m *Metrics) IncrementCounter(name string, labels ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var counter *prometheus.CounterVec

	switch name {
	case "clicks_recorded_total":
		counter = m.clicksRecorded
	case "redirects_total":
		counter = m.redirects
	case "bot_updates_total":
		counter = m.botUpdates
	default:
		m.logger.Error("неизвестная метрика", zap.String("name", name))
		return
	}

	counter.WithLabelValues(labels...).Inc()
	m.logger.Debug("метрика увеличена", zap.String("metric", name))
}

// RecordClick записывает исход обработки клика
func (m *Metrics) RecordClick(result string) {
	m.IncrementCounter("clicks_recorded_total", result)
}

// RecordRedirect записывает исход редирект-запроса
func (m *Metrics) RecordRedirect(status string) {
	m.IncrementCounter("redirects_total", status)
}

// RecordBotUpdate записывает тип входящего обновления
func (m *Metrics) RecordBotUpdate(updateType string) {
	m.IncrementCounter("bot_updates_total", updateType)
}

// RecordReferralQualified записывает квалификацию реферала
func (m *Metrics) RecordReferralQualified() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.referralsQualified.Inc()
}

// RecordDailyReset записывает выполненный ежедневный сброс
func (m *Metrics) RecordDailyReset(dayStart float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyResets.Inc()
	m.lastResetDay.Set(dayStart)
}

// ObserveShortenerDuration записывает время запроса к сервису сокращения
func (m *Metrics) ObserveShortenerDuration(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shortenerDuration.Observe(seconds)
}
