package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"monetize-bot/internal/clicks"
	"monetize-bot/internal/config"
	"monetize-bot/internal/links"
	"monetize-bot/internal/metrics"
	"monetize-bot/internal/referral"
	"monetize-bot/internal/reset"
	"monetize-bot/internal/user"
	"monetize-bot/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	// Лимиты страниц для списков
	MaxUsersPage     = 200
	MaxReferralsPage = 200
	LeaderboardSize  = 20

	// Rate limiting
	MaxRequestsPerMinute = 30
	RateLimitWindow      = time.Minute

	// Таймаут обращения к сервису сокращения ссылок
	ShortenTimeout = 10 * time.Second
)

// adminCommands — команды, требующие прав администратора. Проверка
// выполняется один раз на границе диспетчеризации.
var adminCommands = map[string]bool{
	"settarget":            true,
	"qualified_today":      true,
	"referral_leaderboard": true,
}

// adminCallbacks — callback-кнопки, требующие прав администратора
var adminCallbacks = map[string]bool{
	"admin_panel":           true,
	"admin_all_users":       true,
	"admin_qualified_today": true,
	"admin_ref_details":     true,
}

// RateLimiter простой rate limiter для пользователей
type RateLimiter struct {
	requests map[int64][]time.Time
	mutex    sync.RWMutex
}

// NewRateLimiter создает новый rate limiter
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		requests: make(map[int64][]time.Time),
	}
}

// IsAllowed проверяет, разрешен ли запрос для пользователя
func (rl *RateLimiter) IsAllowed(userID int64) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	userRequests := rl.requests[userID]

	// Удаляем старые запросы
	var validRequests []time.Time
	for _, reqTime := range userRequests {
		if now.Sub(reqTime) < RateLimitWindow {
			validRequests = append(validRequests, reqTime)
		}
	}

	if len(validRequests) >= MaxRequestsPerMinute {
		rl.requests[userID] = validRequests
		return false
	}

	validRequests = append(validRequests, now)
	rl.requests[userID] = validRequests
	return true
}

// Handler представляет обработчик сообщений Telegram
type Handler struct {
	bot             *tgbotapi.BotAPI
	userService     *user.Service
	clickService    *clicks.Service
	referralService *referral.Service
	linkService     *links.Service
	resetService    *reset.Service
	messages        *Messages
	telegramCfg     *config.TelegramConfig
	metrics         *metrics.Metrics
	rateLimiter     *RateLimiter
	logger          *zap.Logger
}

// NewHandler создает новый обработчик
func NewHandler(
	bot *tgbotapi.BotAPI,
	userService *user.Service,
	clickService *clicks.Service,
	referralService *referral.Service,
	linkService *links.Service,
	resetService *reset.Service,
	telegramCfg *config.TelegramConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		bot:             bot,
		userService:     userService,
		clickService:    clickService,
		referralService: referralService,
		linkService:     linkService,
		resetService:    resetService,
		messages:        NewMessages(),
		telegramCfg:     telegramCfg,
		metrics:         m,
		rateLimiter:     NewRateLimiter(),
		logger:          logger,
	}
}

// HandleUpdate обрабатывает входящее обновление
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	// Граничная операция: проверяем смену календарного дня
	if err := h.resetService.EnsureCurrentDay(ctx); err != nil {
		h.logger.Error("ошибка проверки ежедневного сброса", zap.Error(err))
	}

	var userID int64
	if update.Message != nil {
		userID = update.Message.From.ID
	} else if update.CallbackQuery != nil {
		userID = update.CallbackQuery.From.ID
	}

	if userID != 0 && !h.rateLimiter.IsAllowed(userID) {
		h.logger.Warn("rate limit exceeded", zap.Int64("user_id", userID))
		return nil
	}

	if update.CallbackQuery != nil {
		h.metrics.RecordBotUpdate("callback")
		return h.handleCallbackQuery(ctx, update.CallbackQuery)
	}

	if update.Message == nil {
		h.metrics.RecordBotUpdate("other")
		return nil
	}

	if update.Message.IsCommand() {
		h.metrics.RecordBotUpdate("command")
		return h.handleCommand(ctx, update.Message)
	}

	h.metrics.RecordBotUpdate("other")
	return nil
}

// handleCommand диспетчеризует команды бота. Административные команды
// проверяются на права здесь, одним общим условием.
func (h *Handler) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	command := message.Command()
	userID := message.From.ID

	if adminCommands[command] && !h.telegramCfg.IsAdmin(userID) {
		return h.sendMessage(message.Chat.ID, h.messages.AdminOnly())
	}

	switch command {
	case "start":
		return h.handleStartCommand(ctx, message)
	case "help":
		return h.sendMessage(message.Chat.ID, h.messages.Help())
	case "settarget":
		return h.handleSetTargetCommand(ctx, message)
	case "qualified_today":
		return h.handleQualifiedTodayCommand(ctx, message)
	case "referral_leaderboard":
		return h.handleLeaderboardCommand(ctx, message)
	default:
		return h.sendMessage(message.Chat.ID, h.messages.Help())
	}
}

// handleStartCommand обрабатывает команду /start с опциональным
// реферальным payload
func (h *Handler) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	referredBy := referral.ParseStartPayload(message.CommandArguments())

	if _, err := h.userService.EnsureUser(ctx, message.From.ID, message.From.UserName, referredBy); err != nil {
		h.logger.Error("ошибка создания пользователя", zap.Error(err))
		return err
	}

	isAdmin := h.telegramCfg.IsAdmin(message.From.ID)
	return h.sendMessageWithKeyboard(message.Chat.ID,
		h.messages.Welcome(h.referralService.Threshold()),
		h.messages.MainKeyboard(isAdmin))
}

// handleSetTargetCommand сохраняет глобальную целевую ссылку
func (h *Handler) handleSetTargetCommand(ctx context.Context, message *tgbotapi.Message) error {
	target := strings.TrimSpace(message.CommandArguments())
	if target == "" {
		return h.sendMessage(message.Chat.ID, h.messages.TargetUsage())
	}

	if err := h.linkService.SetTargetLink(ctx, target); err != nil {
		h.logger.Error("ошибка сохранения целевой ссылки", zap.Error(err))
		return err
	}

	return h.sendMessage(message.Chat.ID, h.messages.TargetSaved())
}

// handleQualifiedTodayCommand показывает набравших порог за день
func (h *Handler) handleQualifiedTodayCommand(ctx context.Context, message *tgbotapi.Message) error {
	qualified, err := h.referralService.QualifiedToday(ctx, time.Now())
	if err != nil {
		h.logger.Error("ошибка получения квалифицированных за день", zap.Error(err))
		return err
	}

	if len(qualified) == 0 {
		return h.sendMessage(message.Chat.ID, h.messages.NoQualifiedToday())
	}

	return h.sendMessage(message.Chat.ID, h.messages.QualifiedToday(qualified))
}

// handleLeaderboardCommand показывает рейтинг рефереров
func (h *Handler) handleLeaderboardCommand(ctx context.Context, message *tgbotapi.Message) error {
	entries, err := h.referralService.Leaderboard(ctx, LeaderboardSize)
	if err != nil {
		h.logger.Error("ошибка получения рейтинга рефереров", zap.Error(err))
		return err
	}

	return h.sendMessage(message.Chat.ID, h.messages.Leaderboard(entries))
}

// handleCallbackQuery обрабатывает нажатия inline-кнопок
func (h *Handler) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	userID := callback.From.ID

	u, err := h.userService.EnsureUser(ctx, userID, callback.From.UserName, nil)
	if err != nil {
		h.logger.Error("ошибка получения пользователя для callback", zap.Error(err))
		return err
	}

	// Отвечаем на callback (убираем "загрузку" кнопки)
	callbackConfig := tgbotapi.NewCallback(callback.ID, "")
	if _, err := h.bot.Request(callbackConfig); err != nil {
		h.logger.Error("ошибка ответа на callback", zap.Error(err))
	}

	chatID := callback.Message.Chat.ID
	data := callback.Data

	if adminCallbacks[data] && !h.telegramCfg.IsAdmin(userID) {
		return h.sendMessage(chatID, h.messages.AdminOnly())
	}

	switch data {
	case "getlink":
		return h.handleGetLinkCallback(ctx, chatID, userID)
	case "stats":
		return h.handleStatsCallback(ctx, chatID, u)
	case "myreferrals":
		return h.handleMyReferralsCallback(ctx, chatID, userID)
	case "progress":
		return h.handleProgressCallback(ctx, chatID, userID)
	case "admin_panel":
		return h.sendMessageWithKeyboard(chatID, "Админ-панель:", h.messages.AdminKeyboard())
	case "admin_all_users":
		return h.handleAllUsersCallback(ctx, chatID)
	case "admin_qualified_today":
		return h.handleQualifiedTodayCallback(ctx, chatID)
	case "admin_ref_details":
		return h.handleRefDetailsCallback(ctx, chatID)
	default:
		h.logger.Warn("неизвестный callback", zap.String("data", data))
		return nil
	}
}

// handleGetLinkCallback выдает монетизированную ссылку пользователя
func (h *Handler) handleGetLinkCallback(ctx context.Context, chatID, userID int64) error {
	shortenCtx, cancel := context.WithTimeout(ctx, ShortenTimeout)
	defer cancel()

	started := time.Now()
	link, err := h.linkService.GetOrCreatePaidLink(shortenCtx, userID)
	h.metrics.ObserveShortenerDuration(time.Since(started).Seconds())

	if err != nil {
		// Сбой внешнего сервиса не фатален: сообщаем, что ссылки нет
		h.logger.Warn("не удалось получить монетизированную ссылку",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return h.sendMessage(chatID, h.messages.PaidLinkFailed())
	}

	return h.sendMessage(chatID, h.messages.PaidLink(link, h.referralService.Threshold()))
}

// handleStatsCallback показывает статистику пользователя
func (h *Handler) handleStatsCallback(ctx context.Context, chatID int64, u *models.User) error {
	today, err := h.clickService.TodayCount(ctx, u.TelegramID, time.Now())
	if err != nil {
		h.logger.Error("ошибка подсчета кликов за день", zap.Error(err))
		return err
	}

	return h.sendMessage(chatID,
		h.messages.Stats(today, u.QualifiedReferrals, h.referralService.Threshold()))
}

// handleMyReferralsCallback показывает рефералов пользователя
func (h *Handler) handleMyReferralsCallback(ctx context.Context, chatID, userID int64) error {
	edges, err := h.referralService.ListByReferrer(ctx, userID, MaxReferralsPage)
	if err != nil {
		h.logger.Error("ошибка получения рефералов", zap.Error(err))
		return err
	}

	if len(edges) == 0 {
		return h.sendMessage(chatID, h.messages.NoReferrals())
	}

	return h.sendMessage(chatID, h.messages.Referrals(edges))
}

// handleProgressCallback показывает прогресс за текущий день
func (h *Handler) handleProgressCallback(ctx context.Context, chatID, userID int64) error {
	today, err := h.clickService.TodayCount(ctx, userID, time.Now())
	if err != nil {
		h.logger.Error("ошибка подсчета кликов за день", zap.Error(err))
		return err
	}

	return h.sendMessage(chatID, h.messages.Progress(today, h.referralService.Threshold()))
}

// handleAllUsersCallback показывает администратору последних пользователей
func (h *Handler) handleAllUsersCallback(ctx context.Context, chatID int64) error {
	users, err := h.userService.GetAll(ctx, MaxUsersPage)
	if err != nil {
		h.logger.Error("ошибка получения списка пользователей", zap.Error(err))
		return err
	}

	return h.sendMessage(chatID, h.messages.AllUsers(users))
}

// handleQualifiedTodayCallback показывает администратору набравших порог
func (h *Handler) handleQualifiedTodayCallback(ctx context.Context, chatID int64) error {
	qualified, err := h.referralService.QualifiedToday(ctx, time.Now())
	if err != nil {
		h.logger.Error("ошибка получения квалифицированных за день", zap.Error(err))
		return err
	}

	if len(qualified) == 0 {
		return h.sendMessage(chatID, h.messages.NoQualifiedToday())
	}

	return h.sendMessage(chatID, h.messages.QualifiedToday(qualified))
}

// handleRefDetailsCallback показывает администратору последние связи
func (h *Handler) handleRefDetailsCallback(ctx context.Context, chatID int64) error {
	edges, err := h.referralService.ListNewest(ctx, MaxReferralsPage)
	if err != nil {
		h.logger.Error("ошибка получения списка рефералов", zap.Error(err))
		return err
	}

	return h.sendMessage(chatID, h.messages.ReferralDetails(edges))
}

// sendMessage отправляет текстовое сообщение
func (h *Handler) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		h.logger.Error("ошибка отправки сообщения",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		return err
	}
	return nil
}

// sendMessageWithKeyboard отправляет сообщение с inline-клавиатурой
func (h *Handler) sendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	if _, err := h.bot.Send(msg); err != nil {
		h.logger.Error("ошибка отправки сообщения с клавиатурой",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		return err
	}
	return nil
}
