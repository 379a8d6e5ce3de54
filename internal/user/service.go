package user

import (
	"context"
	"fmt"

	"monetize-bot/internal/store"
	"monetize-bot/pkg/models"

	"go.uber.org/zap"
)

// Service представляет сервис для работы с пользователями
type Service struct {
	store  store.Store
	logger *zap.Logger
}

// NewService создает новый сервис пользователей
func NewService(store store.Store, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// EnsureUser идемпотентно создает пользователя при первом контакте.
// Реферальная связь создается только вместе с новой записью пользователя
// и только если указан реферер; приглашенный уникален, выигрывает первая
// запись. Самоприглашение игнорируется.
func (s *Service) EnsureUser(ctx context.Context, telegramID int64, username string, referredBy *int64) (*models.User, error) {
	if referredBy != nil && *referredBy == telegramID {
		s.logger.Warn("попытка самоприглашения проигнорирована", zap.Int64("telegram_id", telegramID))
		referredBy = nil
	}

	newUser := &models.User{
		TelegramID: telegramID,
		Username:   username,
		ReferredBy: referredBy,
	}

	created, err := s.store.User().Create(ctx, newUser)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	if created && referredBy != nil {
		edgeCreated, err := s.store.Referral().CreateEdge(ctx, *referredBy, telegramID)
		if err != nil {
			// Пользователь уже создан, связь не критична для него
			s.logger.Error("ошибка создания реферальной связи",
				zap.Int64("referrer_id", *referredBy),
				zap.Int64("referee_id", telegramID),
				zap.Error(err))
		} else if !edgeCreated {
			s.logger.Warn("реферальная связь уже существует",
				zap.Int64("referee_id", telegramID))
		}
	}

	if !created && username != "" {
		// Обновляем имя, если пользователь сменил его
		if err := s.store.User().UpdateUsername(ctx, telegramID, username); err != nil {
			s.logger.Warn("не удалось обновить имя пользователя",
				zap.Int64("telegram_id", telegramID),
				zap.Error(err))
		}
	}

	user, err := s.store.User().GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	return user, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (s *Service) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	user, err := s.store.User().GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return user, nil
}

// SetPaidLink сохраняет кэшированную монетизированную ссылку пользователя
func (s *Service) SetPaidLink(ctx context.Context, telegramID int64, paidLink string) error {
	if err := s.store.User().SetPaidLink(ctx, telegramID, paidLink); err != nil {
		return fmt.Errorf("ошибка сохранения монетизированной ссылки: %w", err)
	}
	return nil
}

// GetAll получает пользователей, новые первыми
func (s *Service) GetAll(ctx context.Context, limit int) ([]*models.User, error) {
	users, err := s.store.User().GetAll(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка пользователей: %w", err)
	}
	return users, nil
}
