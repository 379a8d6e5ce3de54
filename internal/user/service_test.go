package user

import (
	"context"
	"testing"

	"monetize-bot/internal/store"
	"monetize-bot/pkg/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// mockStore хранит пользователей и реферальные связи в памяти, повторяя
// семантику уникальных ограничений хранилища
type mockStore struct {
	users map[int64]*models.User
	edges map[int64]int64 // referee -> referrer
}

func newMockStore() *mockStore {
	return &mockStore{
		users: make(map[int64]*models.User),
		edges: make(map[int64]int64),
	}
}

func (m *mockStore) User() store.UserRepository         { return (*mockUserRepo)(m) }
func (m *mockStore) Click() store.ClickRepository       { return nil }
func (m *mockStore) Referral() store.ReferralRepository { return (*mockReferralRepo)(m) }
func (m *mockStore) Setting() store.SettingRepository   { return nil }
func (m *mockStore) DB() *pgxpool.Pool                  { return nil }
func (m *mockStore) Close() error                       { return nil }

type mockUserRepo mockStore

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) (bool, error) {
	if _, ok := m.users[user.TelegramID]; ok {
		return false, nil
	}
	m.users[user.TelegramID] = user
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
	if u, ok := m.users[telegramID]; ok {
		u.Username = username
	}
	return nil
}

func (m *mockUserRepo) SetPaidLink(ctx context.Context, telegramID int64, paidLink string) error {
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
	users := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	return users, nil
}

type mockReferralRepo mockStore

func (m *mockReferralRepo) CreateEdge(ctx context.Context, referrerID, refereeID int64) (bool, error) {
	if _, ok := m.edges[refereeID]; ok {
		return false, nil
	}
	m.edges[refereeID] = referrerID
	return true, nil
}

func (m *mockReferralRepo) GetByReferee(ctx context.Context, refereeID int64) (*models.ReferralEdge, error) {
	referrerID, ok := m.edges[refereeID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &models.ReferralEdge{ReferrerID: referrerID, RefereeID: refereeID}, nil
}

func (m *mockReferralRepo) Qualify(ctx context.Context, refereeID int64) (bool, error) {
	return false, nil
}

func (m *mockReferralRepo) ListByReferrer(ctx context.Context, referrerID int64, limit int) ([]*models.ReferralEdge, error) {
	return nil, nil
}

func (m *mockReferralRepo) ListNewest(ctx context.Context, limit int) ([]*models.ReferralEdge, error) {
	return nil, nil
}

func (m *mockReferralRepo) GetStats(ctx context.Context, referrerID int64) (*models.ReferralStats, error) {
	return &models.ReferralStats{}, nil
}

func TestEnsureUserCreates(t *testing.T) {
	mock := newMockStore()
	service := NewService(mock, zap.NewNop())

	u, err := service.EnsureUser(context.Background(), 1, "alice", nil)

	assert.NoError(t, err)
	assert.Equal(t, int64(1), u.TelegramID)
	assert.Equal(t, "alice", u.Username)
	assert.Empty(t, mock.edges)
}

func TestEnsureUserWithReferrer(t *testing.T) {
	mock := newMockStore()
	service := NewService(mock, zap.NewNop())

	referrer := int64(10)
	_, err := service.EnsureUser(context.Background(), 1, "alice", &referrer)

	assert.NoError(t, err)
	assert.Equal(t, int64(10), mock.edges[1])
}

func TestEnsureUserExistingKeepsReferrer(t *testing.T) {
	mock := newMockStore()
	service := NewService(mock, zap.NewNop())

	first := int64(10)
	_, err := service.EnsureUser(context.Background(), 1, "alice", &first)
	assert.NoError(t, err)

	// Повторный /start с чужим payload не перепривязывает пользователя
	second := int64(20)
	_, err = service.EnsureUser(context.Background(), 1, "alice", &second)
	assert.NoError(t, err)

	assert.Equal(t, int64(10), mock.edges[1])
}

func TestEnsureUserSelfReferral(t *testing.T) {
	mock := newMockStore()
	service := NewService(mock, zap.NewNop())

	self := int64(1)
	u, err := service.EnsureUser(context.Background(), 1, "alice", &self)

	assert.NoError(t, err)
	assert.Nil(t, u.ReferredBy)
	assert.Empty(t, mock.edges)
}

func TestEnsureUserUpdatesUsername(t *testing.T) {
	mock := newMockStore()
	service := NewService(mock, zap.NewNop())

	_, err := service.EnsureUser(context.Background(), 1, "old_name", nil)
	assert.NoError(t, err)

	u, err := service.EnsureUser(context.Background(), 1, "new_name", nil)
	assert.NoError(t, err)
	assert.Equal(t, "new_name", u.Username)
}
