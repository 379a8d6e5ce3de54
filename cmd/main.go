package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"monetize-bot/internal/bot"
	"monetize-bot/internal/clicks"
	"monetize-bot/internal/config"
	"monetize-bot/internal/links"
	"monetize-bot/internal/metrics"
	"monetize-bot/internal/migrations"
	"monetize-bot/internal/referral"
	"monetize-bot/internal/reset"
	"monetize-bot/internal/scheduler"
	"monetize-bot/internal/shortener"
	"monetize-bot/internal/store"
	"monetize-bot/internal/user"
	"monetize-bot/internal/webhook"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func main() {
	// Инициализация логгера
	logger, err := initLogger()
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("запуск приложения Monetize Bot")

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("ошибка загрузки конфигурации", zap.Error(err))
	}

	// Инициализация базы данных
	store, err := store.NewStore(cfg, logger)
	if err != nil {
		logger.Fatal("ошибка инициализации базы данных", zap.Error(err))
	}
	defer store.Close()

	// Применение миграций
	if err := migrations.RunMigrations(cfg, logger); err != nil {
		logger.Fatal("ошибка применения миграций", zap.Error(err))
	}

	// Инициализация метрик
	metricsSystem := metrics.New(logger)

	// Инициализация клиента сокращения ссылок
	shortenerClient := shortener.NewClient(
		cfg.Shortener.APIKey,
		cfg.Shortener.BaseURL,
		time.Duration(cfg.Shortener.TimeoutSeconds)*time.Second,
		logger,
	)

	// Инициализация сервисов
	userService := user.NewService(store, logger)
	referralService := referral.NewService(store.Referral(), store.Click(), store.User(), cfg.Referral.QualifyClicks, metricsSystem, logger)
	clickService := clicks.NewService(store.Click(), store.User(), referralService, logger)
	resetService := reset.NewService(store.Setting(), store.User(), metricsSystem, logger)
	linkService := links.NewService(store.User(), store.Setting(), shortenerClient, cfg.Telegram.BotUsername, logger)

	logger.Info("конфигурация реферальной программы",
		zap.Int("qualify_clicks", cfg.Referral.QualifyClicks),
		zap.Int("admins", len(cfg.Telegram.AdminIDs)))

	// Инициализация Telegram бота
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Fatal("ошибка инициализации Telegram бота", zap.Error(err))
	}

	botInfo, err := botAPI.GetMe()
	if err != nil {
		logger.Fatal("ошибка получения информации о боте", zap.Error(err))
	}

	logger.Info("Telegram бот инициализирован",
		zap.String("username", botInfo.UserName),
		zap.Int64("id", botInfo.ID))

	// Инициализация обработчика
	handler := bot.NewHandler(botAPI, userService, clickService, referralService, linkService, resetService, &cfg.Telegram, metricsSystem, logger)

	// Инициализация HTTP сервера: редиректы, webhook, метрики
	server := webhook.NewServer(handler, clickService, linkService, userService, resetService, metricsSystem, logger)

	// Инициализация планировщика задач
	taskScheduler := scheduler.NewScheduler(logger)

	// Страховочная проверка смены дня на случай отсутствия трафика
	taskScheduler.AddJob("daily_reset", resetService)

	// Создание канала для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Обработка сигналов для graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Запуск HTTP сервера
	httpServer := startHTTPServer(cfg.App.Port, server.Router(), logger)

	// Запуск планировщика задач (каждый час)
	go taskScheduler.Start(ctx, time.Hour)

	// Запуск обработки обновлений: webhook при заданном домене, иначе polling
	if cfg.App.Domain != "" {
		if err := registerWebhook(botAPI, cfg.App.Domain, logger); err != nil {
			logger.Fatal("ошибка установки webhook", zap.Error(err))
		}
	} else {
		go handleUpdates(ctx, botAPI, handler, logger)
	}

	logger.Info("приложение запущено и готово к работе",
		zap.String("address", fmt.Sprintf("http://localhost:%d", cfg.App.Port)),
	)

	// Ожидание сигнала завершения
	<-sigChan
	logger.Info("получен сигнал завершения, начинаем graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Останавливаем получение обновлений
	botAPI.StopReceivingUpdates()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("ошибка остановки HTTP сервера", zap.Error(err))
	}

	logger.Info("приложение завершено")
}

// initLogger инициализирует логгер
func initLogger() (*zap.Logger, error) {
	// В продакшене можно использовать JSON формат
	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{"stdout", "logs/app.log"}
	config.ErrorOutputPaths = []string{"stderr", "logs/error.log"}

	// Создаем директорию для логов если её нет
	if err := os.MkdirAll("logs", 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории логов: %w", err)
	}

	return config.Build()
}

// registerWebhook регистрирует webhook в Telegram
func registerWebhook(botAPI *tgbotapi.BotAPI, domain string, logger *zap.Logger) error {
	webhookURL := fmt.Sprintf("https://%s/webhook", domain)

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("ошибка создания конфигурации webhook: %w", err)
	}

	if _, err := botAPI.Request(wh); err != nil {
		return fmt.Errorf("ошибка регистрации webhook: %w", err)
	}

	logger.Info("webhook зарегистрирован", zap.String("url", webhookURL))
	return nil
}

// handleUpdates обрабатывает обновления от Telegram через long polling
func handleUpdates(ctx context.Context, botAPI *tgbotapi.BotAPI, handler *bot.Handler, logger *zap.Logger) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := botAPI.GetUpdatesChan(updateConfig)

	for {
		select {
		case update := <-updates:
			// Пропускаем пустые обновления
			if update.Message == nil && update.CallbackQuery == nil {
				continue
			}

			// Обрабатываем обновление в горутине
			go func(update tgbotapi.Update) {
				if err := handler.HandleUpdate(ctx, update); err != nil {
					var chatID int64
					if update.Message != nil {
						chatID = update.Message.Chat.ID
					} else if update.CallbackQuery != nil && update.CallbackQuery.Message != nil {
						chatID = update.CallbackQuery.Message.Chat.ID
					}

					logger.Error("ошибка обработки обновления",
						zap.Int64("chat_id", chatID),
						zap.Error(err))
				}
			}(update)

		case <-ctx.Done():
			logger.Info("остановка обработки обновлений")
			return
		}
	}
}

// startHTTPServer запускает HTTP сервер
func startHTTPServer(port int, router http.Handler, logger *zap.Logger) *http.Server {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	logger.Info("HTTP сервер запущен", zap.String("address", server.Addr))

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ошибка HTTP сервера", zap.Error(err))
		}
	}()

	return server
}
