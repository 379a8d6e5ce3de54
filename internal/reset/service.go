package reset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"monetize-bot/internal/metrics"
	"monetize-bot/internal/store"
	"monetize-bot/pkg/models"

	"go.uber.org/zap"
)

// Service выполняет ленивый ежедневный сброс видимых счетчиков кликов.
// Проверка вызывается на каждой граничной операции (редирект, входящее
// обновление бота), поэтому сброс гарантированно происходит до первой
// работы со счетчиками в новом дне. История событий кликов не удаляется.
type Service struct {
	settingRepo store.SettingRepository
	userRepo    store.UserRepository
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewService создает новый сервис ежедневного сброса. metrics может быть nil.
func NewService(settingRepo store.SettingRepository, userRepo store.UserRepository, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		settingRepo: settingRepo,
		userRepo:    userRepo,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

// EnsureCurrentDay проверяет маркер последнего сброса и при смене
// календарного дня (UTC) обнуляет счетчики всех пользователей.
// Обнуление идемпотентно, а запись маркера — атомарная замена последним
// шагом: из конкурирующих вызовов на границе дня маркер продвинет только
// один, остальные увидят уже обновленное значение и выйдут без действий.
func (s *Service) EnsureCurrentDay(ctx context.Context) error {
	today := models.DayString(s.now())

	last, err := s.settingRepo.Get(ctx, models.SettingLastResetDate)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Первый запуск: инициализируем маркер без сброса
			created, err := s.settingRepo.SetIfAbsent(ctx, models.SettingLastResetDate, today)
			if err != nil {
				return fmt.Errorf("ошибка инициализации маркера сброса: %w", err)
			}
			if created {
				s.logger.Info("маркер ежедневного сброса инициализирован", zap.String("day", today))
			}
			return nil
		}
		return fmt.Errorf("ошибка чтения маркера сброса: %w", err)
	}

	if last == today {
		return nil
	}

	affected, err := s.userRepo.ResetAllClicks(ctx)
	if err != nil {
		return fmt.Errorf("ошибка ежедневного сброса счетчиков: %w", err)
	}

	swapped, err := s.settingRepo.CompareAndSwap(ctx, models.SettingLastResetDate, last, today)
	if err != nil {
		return fmt.Errorf("ошибка продвижения маркера сброса: %w", err)
	}

	if swapped {
		if s.metrics != nil {
			s.metrics.RecordDailyReset(float64(models.Day(s.now()).Unix()))
		}
		s.logger.Info("ежедневный сброс выполнен",
			zap.String("previous_day", last),
			zap.String("day", today),
			zap.Int64("users_reset", affected))
	} else {
		// Конкурирующий вызов успел продвинуть маркер первым
		s.logger.Debug("маркер сброса уже продвинут конкурирующим вызовом",
			zap.String("day", today))
	}

	return nil
}

// Run реализует интерфейс scheduler.Job: страховочный периодический запуск
// той же ленивой проверки на случай отсутствия трафика
func (s *Service) Run(ctx context.Context) error {
	return s.EnsureCurrentDay(ctx)
}
