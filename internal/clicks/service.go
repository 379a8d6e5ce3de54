package clicks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"monetize-bot/internal/store"
	"monetize-bot/pkg/models"

	"go.uber.org/zap"
)

// MaxUserAgentLength ограничивает длину user-agent перед хэшированием
const MaxUserAgentLength = 500

// RecordResult представляет исход записи клика
type RecordResult int

const (
	// ResultRecorded — клик уникален и записан
	ResultRecorded RecordResult = iota
	// ResultDuplicate — клик с тем же отпечатком уже записан в этот день
	ResultDuplicate
)

// String возвращает текстовое представление исхода для логов и метрик
func (r RecordResult) String() string {
	if r == ResultRecorded {
		return "recorded"
	}
	return "duplicate"
}

// Qualifier проверяет реферальную квалификацию после нового клика
type Qualifier interface {
	Evaluate(ctx context.Context, refereeID int64) (bool, error)
}

// Service представляет сервис учета кликов
type Service struct {
	clickRepo store.ClickRepository
	userRepo  store.UserRepository
	qualifier Qualifier
	logger    *zap.Logger
}

// NewService создает новый сервис учета кликов
func NewService(clickRepo store.ClickRepository, userRepo store.UserRepository, qualifier Qualifier, logger *zap.Logger) *Service {
	return &Service{
		clickRepo: clickRepo,
		userRepo:  userRepo,
		qualifier: qualifier,
		logger:    logger,
	}
}

// Record пытается записать один клик пользователя. Дубликат по ключу
// (пользователь, день, отпечаток) подавляется уникальным ограничением
// хранилища, без предварительного чтения. Пользователь должен уже
// существовать. На уникальный клик увеличивается видимый счетчик и
// запускается проверка реферальной квалификации.
func (s *Service) Record(ctx context.Context, userID int64, fingerprint string, day time.Time) (RecordResult, error) {
	click := &models.ClickEvent{
		UserID:      userID,
		ClickDate:   day,
		Fingerprint: fingerprint,
	}

	inserted, err := s.clickRepo.Insert(ctx, click)
	if err != nil {
		return ResultDuplicate, fmt.Errorf("ошибка записи клика: %w", err)
	}

	if !inserted {
		s.logger.Debug("дубликат клика пропущен",
			zap.Int64("user_id", userID),
			zap.String("day", models.DayString(day)))
		return ResultDuplicate, nil
	}

	if err := s.userRepo.IncrementClicks(ctx, userID); err != nil {
		return ResultRecorded, fmt.Errorf("ошибка увеличения счетчика кликов: %w", err)
	}

	s.logger.Info("клик записан",
		zap.Int64("user_id", userID),
		zap.String("day", models.DayString(day)))

	// Квалификация — побочный эффект: ее сбой не отменяет записанный клик
	if _, err := s.qualifier.Evaluate(ctx, userID); err != nil {
		s.logger.Error("ошибка проверки реферальной квалификации",
			zap.Int64("user_id", userID),
			zap.Error(err))
	}

	return ResultRecorded, nil
}

// TodayCount подсчитывает клики пользователя за указанный день
func (s *Service) TodayCount(ctx context.Context, userID int64, day time.Time) (int, error) {
	count, err := s.clickRepo.CountByUserAndDate(ctx, userID, day)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета кликов за день: %w", err)
	}
	return count, nil
}

// Fingerprint вычисляет отпечаток клика из сетевого адреса клиента и
// user-agent. В хранилище попадает только хэш, сырые значения не сохраняются.
func Fingerprint(ip, userAgent string) string {
	if len(userAgent) > MaxUserAgentLength {
		userAgent = userAgent[:MaxUserAgentLength]
	}

	sum := sha256.Sum256([]byte(ip + "|" + userAgent))
	return hex.EncodeToString(sum[:])
}
