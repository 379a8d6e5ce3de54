package clicks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"monetize-bot/pkg/models"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// mockClickRepo хранит клики в памяти, повторяя семантику уникального
// ограничения (user_id, click_date, fingerprint)
type mockClickRepo struct {
	inserted  map[string]bool
	insertErr error
}

func newMockClickRepo() *mockClickRepo {
	return &mockClickRepo{inserted: make(map[string]bool)}
}

func (m *mockClickRepo) key(userID int64, day time.Time, fingerprint string) string {
	return fmt.Sprintf("%s/%d/%s", models.DayString(day), userID, fingerprint)
}

func (m *mockClickRepo) Insert(ctx context.Context, click *models.ClickEvent) (bool, error) {
	if m.insertErr != nil {
		return false, m.insertErr
	}
	k := m.key(click.UserID, click.ClickDate, click.Fingerprint)
	if m.inserted[k] {
		return false, nil
	}
	m.inserted[k] = true
	return true, nil
}

func (m *mockClickRepo) CountAllByUser(ctx context.Context, userID int64) (int, error) {
	return len(m.inserted), nil
}

func (m *mockClickRepo) CountByUserAndDate(ctx context.Context, userID int64, day time.Time) (int, error) {
	count := 0
	prefix := models.DayString(day)
	for k := range m.inserted {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			count++
		}
	}
	return count, nil
}

func (m *mockClickRepo) GetQualifiedByDate(ctx context.Context, day time.Time, threshold int) ([]*models.QualifiedUser, error) {
	return nil, nil
}

// mockUserRepo считает только вызовы IncrementClicks
type mockUserRepo struct {
	increments int
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) (bool, error) {
	return true, nil
}

func (m *mockUserRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return &models.User{TelegramID: telegramID}, nil
}

func (m *mockUserRepo) UpdateUsername(ctx context.Context, telegramID int64, username string) error {
	return nil
}

func (m *mockUserRepo) SetPaidLink(ctx context.Context, telegramID int64, paidLink string) error {
	return nil
}

func (m *mockUserRepo) IncrementClicks(ctx context.Context, telegramID int64) error {
	m.increments++
	return nil
}

func (m *mockUserRepo) ResetAllClicks(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *mockUserRepo) GetTopByQualifiedReferrals(ctx context.Context, limit int) ([]*models.User, error) {
	return nil, nil
}

func (m *mockUserRepo) GetAll(ctx context.Context, limit int) ([]*models.User, error) {
	return nil, nil
}

// mockQualifier фиксирует вызовы проверки квалификации
type mockQualifier struct {
	calls int
	err   error
}

func (m *mockQualifier) Evaluate(ctx context.Context, refereeID int64) (bool, error) {
	m.calls++
	return false, m.err
}

func TestRecordUniqueClick(t *testing.T) {
	clickRepo := newMockClickRepo()
	userRepo := &mockUserRepo{}
	qualifier := &mockQualifier{}
	service := NewService(clickRepo, userRepo, qualifier, zap.NewNop())

	result, err := service.Record(context.Background(), 1, "fp1", time.Now())

	assert.NoError(t, err)
	assert.Equal(t, ResultRecorded, result)
	assert.Equal(t, 1, userRepo.increments)
	assert.Equal(t, 1, qualifier.calls)
}

func TestRecordDuplicateClick(t *testing.T) {
	clickRepo := newMockClickRepo()
	userRepo := &mockUserRepo{}
	qualifier := &mockQualifier{}
	service := NewService(clickRepo, userRepo, qualifier, zap.NewNop())

	day := time.Now()
	_, err := service.Record(context.Background(), 1, "fp1", day)
	assert.NoError(t, err)

	// Повтор того же отпечатка в тот же день подавляется
	result, err := service.Record(context.Background(), 1, "fp1", day)

	assert.NoError(t, err)
	assert.Equal(t, ResultDuplicate, result)
	assert.Equal(t, 1, userRepo.increments)
	assert.Equal(t, 1, qualifier.calls)
}

func TestRecordDifferentFingerprints(t *testing.T) {
	clickRepo := newMockClickRepo()
	userRepo := &mockUserRepo{}
	qualifier := &mockQualifier{}
	service := NewService(clickRepo, userRepo, qualifier, zap.NewNop())

	day := time.Now()
	result1, err := service.Record(context.Background(), 1, "fp1", day)
	assert.NoError(t, err)
	result2, err := service.Record(context.Background(), 1, "fp2", day)
	assert.NoError(t, err)

	assert.Equal(t, ResultRecorded, result1)
	assert.Equal(t, ResultRecorded, result2)
	assert.Equal(t, 2, userRepo.increments)
}

func TestRecordInsertError(t *testing.T) {
	clickRepo := newMockClickRepo()
	clickRepo.insertErr = errors.New("база недоступна")
	userRepo := &mockUserRepo{}
	service := NewService(clickRepo, userRepo, &mockQualifier{}, zap.NewNop())

	_, err := service.Record(context.Background(), 1, "fp1", time.Now())

	assert.Error(t, err)
	assert.Equal(t, 0, userRepo.increments)
}

func TestRecordQualifierErrorIsNotFatal(t *testing.T) {
	clickRepo := newMockClickRepo()
	userRepo := &mockUserRepo{}
	qualifier := &mockQualifier{err: errors.New("ошибка квалификации")}
	service := NewService(clickRepo, userRepo, qualifier, zap.NewNop())

	result, err := service.Record(context.Background(), 1, "fp1", time.Now())

	// Сбой квалификации не отменяет записанный клик
	assert.NoError(t, err)
	assert.Equal(t, ResultRecorded, result)
}

func TestFingerprint(t *testing.T) {
	fp1 := Fingerprint("1.2.3.4", "Mozilla/5.0")
	fp2 := Fingerprint("1.2.3.4", "Mozilla/5.0")
	fp3 := Fingerprint("1.2.3.5", "Mozilla/5.0")
	fp4 := Fingerprint("1.2.3.4", "curl/8.0")

	// Детерминированность и чувствительность к каждой компоненте
	assert.Equal(t, fp1, fp2)
	assert.NotEqual(t, fp1, fp3)
	assert.NotEqual(t, fp1, fp4)
	assert.Len(t, fp1, 64)
}

func TestFingerprintLongUserAgent(t *testing.T) {
	long := make([]byte, MaxUserAgentLength*2)
	for i := range long {
		long[i] = 'a'
	}

	// Все, что длиннее лимита, не влияет на отпечаток
	fp1 := Fingerprint("1.2.3.4", string(long))
	fp2 := Fingerprint("1.2.3.4", string(long[:MaxUserAgentLength]))
	assert.Equal(t, fp1, fp2)
}

func TestRecordResultString(t *testing.T) {
	assert.Equal(t, "recorded", ResultRecorded.String())
	assert.Equal(t, "duplicate", ResultDuplicate.String())
}
