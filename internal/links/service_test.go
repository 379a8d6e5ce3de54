package links

import (
	"context"
	"errors"
	"testing"

	"monetize-bot/internal/store"
	"monetize-bot/pkg/models"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type mockUserRepo struct {
	users   map[int64]*models.User
	setErr  error
	paidSet map[int64]string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:   make(map[int64]*models.User),
		paidSet: make(map[int64]string),
	}
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) (bool, error) {
	return true, nil
}

func (m *mockUserRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	u, ok := m.users[telegramID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) UpdateUsername(ctx context.Context, telegramID int64, username string) error {
	return nil
}

func (m *mockUserRepo) SetPaidLink(ctx context.Context, telegramID int64, paidLink string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.paidSet[telegramID] = paidLink
	return nil
}

func (m *mockUserRepo) IncrementClicks(ctx context.Context, telegramID int64) error {
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

type mockSettingRepo struct {
	values map[string]string
}

func newMockSettingRepo() *mockSettingRepo {
	return &mockSettingRepo{values: make(map[string]string)}
}

func (m *mockSettingRepo) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (m *mockSettingRepo) Set(ctx context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func (m *mockSettingRepo) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value
	return true, nil
}

func (m *mockSettingRepo) CompareAndSwap(ctx context.Context, key, old, new string) (bool, error) {
	if m.values[key] != old {
		return false, nil
	}
	m.values[key] = new
	return true, nil
}

type mockShortener struct {
	calls int
	short string
	err   error
}

func (m *mockShortener) Shorten(ctx context.Context, longURL string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.short, nil
}

func TestGetOrCreatePaidLinkCached(t *testing.T) {
	userRepo := newMockUserRepo()
	cached := "https://shrink.me/cached"
	userRepo.users[1] = &models.User{TelegramID: 1, PaidLink: &cached}
	sh := &mockShortener{short: "https://shrink.me/new"}
	service := NewService(userRepo, newMockSettingRepo(), sh, "test_bot", zap.NewNop())

	link, err := service.GetOrCreatePaidLink(context.Background(), 1)

	assert.NoError(t, err)
	assert.Equal(t, cached, link)
	// Кэш избавляет от обращения к внешнему сервису
	assert.Equal(t, 0, sh.calls)
}

func TestGetOrCreatePaidLinkShortens(t *testing.T) {
	userRepo := newMockUserRepo()
	userRepo.users[1] = &models.User{TelegramID: 1}
	sh := &mockShortener{short: "https://shrink.me/new"}
	service := NewService(userRepo, newMockSettingRepo(), sh, "test_bot", zap.NewNop())

	link, err := service.GetOrCreatePaidLink(context.Background(), 1)

	assert.NoError(t, err)
	assert.Equal(t, "https://shrink.me/new", link)
	assert.Equal(t, 1, sh.calls)
	assert.Equal(t, "https://shrink.me/new", userRepo.paidSet[1])
}

func TestGetOrCreatePaidLinkShortenerError(t *testing.T) {
	userRepo := newMockUserRepo()
	userRepo.users[1] = &models.User{TelegramID: 1}
	sh := &mockShortener{err: errors.New("сервис недоступен")}
	service := NewService(userRepo, newMockSettingRepo(), sh, "test_bot", zap.NewNop())

	_, err := service.GetOrCreatePaidLink(context.Background(), 1)

	assert.Error(t, err)
}

func TestGetOrCreatePaidLinkCacheFailureNotFatal(t *testing.T) {
	userRepo := newMockUserRepo()
	userRepo.users[1] = &models.User{TelegramID: 1}
	userRepo.setErr = errors.New("база недоступна")
	sh := &mockShortener{short: "https://shrink.me/new"}
	service := NewService(userRepo, newMockSettingRepo(), sh, "test_bot", zap.NewNop())

	link, err := service.GetOrCreatePaidLink(context.Background(), 1)

	// Ссылка получена, сбой кэша не мешает ответу
	assert.NoError(t, err)
	assert.Equal(t, "https://shrink.me/new", link)
}

func TestResolveRedirectTargetLink(t *testing.T) {
	settingRepo := newMockSettingRepo()
	settingRepo.values[models.SettingTargetLink] = "https://example.com/landing"
	service := NewService(newMockUserRepo(), settingRepo, &mockShortener{}, "test_bot", zap.NewNop())

	target, err := service.ResolveRedirect(context.Background(), 1)

	assert.NoError(t, err)
	assert.Equal(t, "https://example.com/landing", target)
}

func TestResolveRedirectFallsBackToPaidLink(t *testing.T) {
	userRepo := newMockUserRepo()
	cached := "https://shrink.me/cached"
	userRepo.users[1] = &models.User{TelegramID: 1, PaidLink: &cached}
	service := NewService(userRepo, newMockSettingRepo(), &mockShortener{}, "test_bot", zap.NewNop())

	target, err := service.ResolveRedirect(context.Background(), 1)

	assert.NoError(t, err)
	assert.Equal(t, cached, target)
}

func TestResolveRedirectNoTarget(t *testing.T) {
	userRepo := newMockUserRepo()
	userRepo.users[1] = &models.User{TelegramID: 1}
	service := NewService(userRepo, newMockSettingRepo(), &mockShortener{}, "test_bot", zap.NewNop())

	_, err := service.ResolveRedirect(context.Background(), 1)

	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestSetTargetLink(t *testing.T) {
	settingRepo := newMockSettingRepo()
	service := NewService(newMockUserRepo(), settingRepo, &mockShortener{}, "test_bot", zap.NewNop())

	err := service.SetTargetLink(context.Background(), "https://example.com/new")

	assert.NoError(t, err)
	assert.Equal(t, "https://example.com/new", settingRepo.values[models.SettingTargetLink])
}
