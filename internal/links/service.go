package links

import (
	"context"
	"errors"
	"fmt"

	"monetize-bot/internal/shortener"
	"monetize-bot/internal/store"
	"monetize-bot/pkg/models"

	"go.uber.org/zap"
)

// ErrNoTarget возвращается, когда редиректу некуда вести: глобальная
// ссылка администратора не настроена и у пользователя нет кэшированной
var ErrNoTarget = errors.New("целевая ссылка не настроена")

// Service управляет монетизированными ссылками: кэшем персональных ссылок
// пользователей и разрешением цели редиректа
type Service struct {
	userRepo    store.UserRepository
	settingRepo store.SettingRepository
	shortener   shortener.LinkShortener
	botUsername string
	logger      *zap.Logger
}

// NewService создает новый сервис монетизированных ссылок
func NewService(userRepo store.UserRepository, settingRepo store.SettingRepository, sh shortener.LinkShortener, botUsername string, logger *zap.Logger) *Service {
	return &Service{
		userRepo:    userRepo,
		settingRepo: settingRepo,
		shortener:   sh,
		botUsername: botUsername,
		logger:      logger,
	}
}

// GetOrCreatePaidLink возвращает кэшированную монетизированную ссылку
// пользователя или создает новую через сервис сокращения. Сырая ссылка
// содержит реферальный payload, чтобы перешедшие новые пользователи
// были помечены как приглашенные. Сбой сокращения не фатален: вызывающая
// сторона сообщает, что ссылку получить не удалось.
func (s *Service) GetOrCreatePaidLink(ctx context.Context, userID int64) (string, error) {
	user, err := s.userRepo.GetByTelegramID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	if user.PaidLink != nil && *user.PaidLink != "" {
		return *user.PaidLink, nil
	}

	raw := fmt.Sprintf("https://t.me/%s?start=ref_%d", s.botUsername, userID)

	short, err := s.shortener.Shorten(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("ошибка создания монетизированной ссылки: %w", err)
	}

	if err := s.userRepo.SetPaidLink(ctx, userID, short); err != nil {
		// Ссылка получена, кэш не критичен
		s.logger.Warn("не удалось закэшировать монетизированную ссылку",
			zap.Int64("user_id", userID),
			zap.Error(err))
	}

	return short, nil
}

// ResolveRedirect определяет цель редиректа для пользователя: глобальная
// ссылка администратора, иначе кэшированная персональная, иначе ErrNoTarget
func (s *Service) ResolveRedirect(ctx context.Context, userID int64) (string, error) {
	target, err := s.settingRepo.Get(ctx, models.SettingTargetLink)
	if err == nil && target != "" {
		return target, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("ошибка чтения целевой ссылки: %w", err)
	}

	user, err := s.userRepo.GetByTelegramID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	if user.PaidLink != nil && *user.PaidLink != "" {
		return *user.PaidLink, nil
	}

	return "", ErrNoTarget
}

// SetTargetLink сохраняет глобальную целевую ссылку администратора
func (s *Service) SetTargetLink(ctx context.Context, target string) error {
	if err := s.settingRepo.Set(ctx, models.SettingTargetLink, target); err != nil {
		return fmt.Errorf("ошибка сохранения целевой ссылки: %w", err)
	}
	return nil
}
