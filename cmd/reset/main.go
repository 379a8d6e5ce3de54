package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"monetize-bot/internal/config"
	"monetize-bot/internal/store"
	"monetize-bot/pkg/models"

	"go.uber.org/zap"
)

// Ручной запуск ежедневного сброса счетчиков. Обычно сброс выполняет само
// приложение, команда нужна для восстановления после сбоев.
func main() {
	var (
		dryRun = flag.Bool("dry-run", false, "Показать что будет сброшено без фактического сброса")
		limit  = flag.Int("limit", 200, "Количество пользователей в выводе dry-run")
	)
	flag.Parse()

	// Инициализация логгера
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Ошибка инициализации логгера:", err)
	}
	defer logger.Sync()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}

	// Подключение к базе данных
	store, err := store.NewStore(cfg, logger)
	if err != nil {
		logger.Fatal("Ошибка подключения к базе данных", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()

	if *dryRun {
		err = showResetPreview(ctx, store, *limit, logger)
	} else {
		err = forceReset(ctx, store, logger)
	}

	if err != nil {
		logger.Fatal("Ошибка выполнения сброса", zap.Error(err))
	}
}

// showResetPreview показывает пользователей с ненулевыми счетчиками
func showResetPreview(ctx context.Context, s store.Store, limit int, logger *zap.Logger) error {
	last, err := s.Setting().Get(ctx, models.SettingLastResetDate)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			last = "(не установлен)"
		} else {
			return err
		}
	}

	users, err := s.User().GetAll(ctx, limit)
	if err != nil {
		return err
	}

	var withClicks int
	for _, u := range users {
		if u.Clicks == 0 {
			continue
		}
		withClicks++
		logger.Info("будет сброшен",
			zap.Int64("user_id", u.TelegramID),
			zap.String("username", u.Username),
			zap.Int("clicks", u.Clicks))
	}

	logger.Info("предпросмотр сброса",
		zap.String("last_reset_date", last),
		zap.Int("users_with_clicks", withClicks),
		zap.Int("users_checked", len(users)))

	return nil
}

// forceReset безусловно обнуляет счетчики и продвигает маркер
func forceReset(ctx context.Context, s store.Store, logger *zap.Logger) error {
	affected, err := s.User().ResetAllClicks(ctx)
	if err != nil {
		return err
	}

	today := models.DayString(time.Now())
	if err := s.Setting().Set(ctx, models.SettingLastResetDate, today); err != nil {
		return err
	}

	logger.Info("Сброс счетчиков выполнен",
		zap.Int64("users_reset", affected),
		zap.String("day", today))

	return nil
}
