package webhook

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"monetize-bot/internal/clicks"
	"monetize-bot/internal/links"
	"monetize-bot/internal/metrics"
	"monetize-bot/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Лимит частоты переходов с одного IP
	redirectRateLimit = 5
	redirectRateBurst = 10

	// Период чистки неактивных лимитеров
	limiterTTL = 10 * time.Minute
)

// UpdateHandler обрабатывает обновления Telegram
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

// ClickRecorder записывает клики по ссылкам
type ClickRecorder interface {
	Record(ctx context.Context, userID int64, fingerprint string, day time.Time) (clicks.RecordResult, error)
}

// RedirectResolver определяет адрес перенаправления для пользователя
type RedirectResolver interface {
	ResolveRedirect(ctx context.Context, userID int64) (string, error)
}

// UserEnsurer гарантирует существование пользователя
type UserEnsurer interface {
	EnsureUser(ctx context.Context, telegramID int64, username string, referredBy *int64) (*models.User, error)
}

// DayChecker проверяет смену календарного дня
type DayChecker interface {
	EnsureCurrentDay(ctx context.Context) error
}

// ipLimiter хранит rate limiter для одного IP
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Server обрабатывает HTTP-запросы: переходы по ссылкам и webhook Telegram
type Server struct {
	router   *mux.Router
	handler  UpdateHandler
	clicks   ClickRecorder
	links    RedirectResolver
	users    UserEnsurer
	reset    DayChecker
	metrics  *metrics.Metrics
	health   *metrics.Handler
	logger   *zap.Logger
	limiters map[string]*ipLimiter
	mutex    sync.Mutex
}

// NewServer создает новый HTTP-сервер
func NewServer(
	handler UpdateHandler,
	clickService ClickRecorder,
	linkService RedirectResolver,
	userService UserEnsurer,
	resetService DayChecker,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		handler:  handler,
		clicks:   clickService,
		links:    linkService,
		users:    userService,
		reset:    resetService,
		metrics:  m,
		health:   metrics.NewHandler(m, logger),
		logger:   logger,
		limiters: make(map[string]*ipLimiter),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/r", s.handleRedirect).Methods(http.MethodGet)
	s.router.HandleFunc("/webhook", s.handleWebhook).Methods(http.MethodPost)
	s.router.Handle("/metrics", s.health.MetricsHandler()).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.health.HealthHandler).Methods(http.MethodGet)
}

// Router возвращает настроенный роутер
func (s *Server) Router() http.Handler {
	return s.router
}

// handleRedirect регистрирует переход по ссылке и перенаправляет
// на целевой адрес
func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !s.allowIP(ip) {
		s.metrics.RecordRedirect("rate_limited")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	rawID := r.URL.Query().Get("u")
	if rawID == "" {
		s.metrics.RecordRedirect("bad_request")
		http.Error(w, "missing user id", http.StatusBadRequest)
		return
	}

	userID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || userID <= 0 {
		s.metrics.RecordRedirect("bad_request")
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	if err := s.reset.EnsureCurrentDay(ctx); err != nil {
		s.logger.Error("ошибка проверки ежедневного сброса", zap.Error(err))
	}

	// Пользователь мог перейти по ссылке до нажатия /start
	if _, err := s.users.EnsureUser(ctx, userID, "", nil); err != nil {
		s.logger.Error("ошибка создания пользователя при переходе",
			zap.Int64("user_id", userID),
			zap.Error(err))
	}

	fingerprint := clicks.Fingerprint(ip, r.UserAgent())

	result, err := s.clicks.Record(ctx, userID, fingerprint, time.Now())
	if err != nil {
		s.logger.Error("ошибка записи клика",
			zap.Int64("user_id", userID),
			zap.Error(err))
		// Клик не записан, но пользователя все равно перенаправляем
	} else {
		s.metrics.RecordClick(result.String())
	}

	target, err := s.links.ResolveRedirect(ctx, userID)
	if err != nil {
		if errors.Is(err, links.ErrNoTarget) {
			s.metrics.RecordRedirect("no_target")
			http.Error(w, "no target configured", http.StatusInternalServerError)
			return
		}
		s.logger.Error("ошибка определения адреса перенаправления",
			zap.Int64("user_id", userID),
			zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.metrics.RecordRedirect("redirected")
	http.Redirect(w, r, target, http.StatusFound)
}

// handleWebhook принимает обновления от Telegram. Всегда отвечает 200,
// иначе Telegram начнет повторять доставку.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.logger.Warn("не удалось разобрать webhook", zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := s.reset.EnsureCurrentDay(r.Context()); err != nil {
		s.logger.Error("ошибка проверки ежедневного сброса", zap.Error(err))
	}

	// Обрабатываем асинхронно, чтобы не держать соединение Telegram
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.handler.HandleUpdate(ctx, update); err != nil {
			s.logger.Error("ошибка обработки обновления", zap.Error(err))
		}
	}()

	w.WriteHeader(http.StatusOK)
}

// allowIP проверяет лимит частоты запросов для IP
func (s *Server) allowIP(ip string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()

	lim, ok := s.limiters[ip]
	if !ok {
		// Заодно чистим давно не появлявшиеся IP
		for addr, l := range s.limiters {
			if now.Sub(l.lastSeen) > limiterTTL {
				delete(s.limiters, addr)
			}
		}
		lim = &ipLimiter{limiter: rate.NewLimiter(redirectRateLimit, redirectRateBurst)}
		s.limiters[ip] = lim
	}
	lim.lastSeen = now

	return lim.limiter.Allow()
}

// clientIP извлекает адрес клиента с учетом прокси
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
