package referral

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"monetize-bot/internal/metrics"
	"monetize-bot/internal/store"
	"monetize-bot/pkg/models"

	"go.uber.org/zap"
)

// Service представляет сервис реферальной квалификации
type Service struct {
	referralRepo store.ReferralRepository
	clickRepo    store.ClickRepository
	userRepo     store.UserRepository
	threshold    int
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewService создает новый сервис рефералов. threshold — число кликов за всё
// время, после которого реферер получает зачет за приглашенного.
// metrics может быть nil.
func NewService(referralRepo store.ReferralRepository, clickRepo store.ClickRepository, userRepo store.UserRepository, threshold int, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		referralRepo: referralRepo,
		clickRepo:    clickRepo,
		userRepo:     userRepo,
		threshold:    threshold,
		metrics:      m,
		logger:       logger,
	}
}

// Threshold возвращает порог квалификации
func (s *Service) Threshold() int {
	return s.threshold
}

// Evaluate проверяет, заслужил ли приглашенный пользователь зачет для своего
// реферера, и начисляет его ровно один раз. Квалификация считается по кликам
// за всё время, а не за текущий день, и необратима: последующие сбросы
// дневного агрегата на нее не влияют. Конкурирующие вызовы безопасны —
// переход выполняет условное обновление в хранилище.
func (s *Service) Evaluate(ctx context.Context, refereeID int64) (bool, error) {
	edge, err := s.referralRepo.GetByReferee(ctx, refereeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Пользователя никто не приглашал
			return false, nil
		}
		return false, fmt.Errorf("ошибка получения реферальной связи: %w", err)
	}

	if edge.Qualified {
		// Зачет уже начислен
		return false, nil
	}

	total, err := s.clickRepo.CountAllByUser(ctx, refereeID)
	if err != nil {
		return false, fmt.Errorf("ошибка подсчета кликов приглашенного: %w", err)
	}

	if total < s.threshold {
		return false, nil
	}

	flipped, err := s.referralRepo.Qualify(ctx, refereeID)
	if err != nil {
		return false, fmt.Errorf("ошибка квалификации реферала: %w", err)
	}

	if flipped {
		if s.metrics != nil {
			s.metrics.RecordReferralQualified()
		}
		s.logger.Info("реферер получил зачет за приглашенного",
			zap.Int64("referee_id", refereeID),
			zap.Int64("referrer_id", edge.ReferrerID),
			zap.Int("total_clicks", total))
	}

	return flipped, nil
}

// GetStats получает сводку рефералов пользователя
func (s *Service) GetStats(ctx context.Context, referrerID int64) (*models.ReferralStats, error) {
	stats, err := s.referralRepo.GetStats(ctx, referrerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики рефералов: %w", err)
	}
	return stats, nil
}

// ListByReferrer получает рефералов пользователя, новые первыми
func (s *Service) ListByReferrer(ctx context.Context, referrerID int64, limit int) ([]*models.ReferralEdge, error) {
	edges, err := s.referralRepo.ListByReferrer(ctx, referrerID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения рефералов: %w", err)
	}
	return edges, nil
}

// ListNewest получает последние реферальные связи
func (s *Service) ListNewest(ctx context.Context, limit int) ([]*models.ReferralEdge, error) {
	edges, err := s.referralRepo.ListNewest(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка рефералов: %w", err)
	}
	return edges, nil
}

// Leaderboard получает рейтинг рефереров по числу квалифицированных
// приглашенных, по убыванию
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	users, err := s.userRepo.GetTopByQualifiedReferrals(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения рейтинга рефереров: %w", err)
	}

	entries := make([]*models.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, &models.LeaderboardEntry{
			UserID:             u.TelegramID,
			Username:           u.Username,
			QualifiedReferrals: u.QualifiedReferrals,
		})
	}

	return entries, nil
}

// QualifiedToday получает пользователей, набравших порог кликов за день
func (s *Service) QualifiedToday(ctx context.Context, day time.Time) ([]*models.QualifiedUser, error) {
	qualified, err := s.clickRepo.GetQualifiedByDate(ctx, day, s.threshold)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения квалифицированных за день: %w", err)
	}
	return qualified, nil
}

// ParseStartPayload разбирает реферальный payload команды /start.
// Принимает форматы "ref_123456" и "123456"; на мусор возвращает nil.
func ParseStartPayload(payload string) *int64 {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}

	payload = strings.TrimPrefix(payload, "ref_")

	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}

	return &id
}
