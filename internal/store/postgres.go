package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"monetize-bot/internal/config"
	"monetize-bot/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrNotFound возвращается, когда запрошенная запись отсутствует
var ErrNotFound = errors.New("запись не найдена")

// Store представляет интерфейс для работы с базой данных
type Store interface {
	User() UserRepository
	Click() ClickRepository
	Referral() ReferralRepository
	Setting() SettingRepository
	DB() *pgxpool.Pool
	Close() error
}

// store реализует интерфейс Store
type store struct {
	db       *pgxpool.Pool
	logger   *zap.Logger
	user     UserRepository
	click    ClickRepository
	referral ReferralRepository
	setting  SettingRepository
}

// UserRepository интерфейс для работы с пользователями
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (bool, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	UpdateUsername(ctx context.Context, telegramID int64, username string) error
	SetPaidLink(ctx context.Context, telegramID int64, paidLink string) error
	IncrementClicks(ctx context.Context, telegramID int64) error
	ResetAllClicks(ctx context.Context) (int64, error)
	GetTopByQualifiedReferrals(ctx context.Context, limit int) ([]*models.User, error)
	GetAll(ctx context.Context, limit int) ([]*models.User, error)
}

// NewStore создает новое подключение к базе данных
func NewStore(cfg *config.Config, logger *zap.Logger) (Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Создание пула подключений
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	// Настройка пула
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	// Создание пула
	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	// Проверка подключения
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ошибка проверки подключения к базе данных: %w", err)
	}

	logger.Info("успешное подключение к базе данных PostgreSQL")

	s := &store{
		db:     db,
		logger: logger,
	}

	// Инициализация репозиториев
	s.user = NewUserRepository(db, logger)
	s.click = NewClickRepository(db, logger)
	s.referral = NewReferralRepository(db, logger)
	s.setting = NewSettingRepository(db, logger)

	return s, nil
}

// User возвращает репозиторий пользователей
func (s *store) User() UserRepository {
	return s.user
}

// Click возвращает репозиторий кликов
func (s *store) Click() ClickRepository {
	return s.click
}

// Referral возвращает репозиторий рефералов
func (s *store) Referral() ReferralRepository {
	return s.referral
}

// Setting возвращает репозиторий настроек
func (s *store) Setting() SettingRepository {
	return s.setting
}

// DB возвращает подключение к базе данных
func (s *store) DB() *pgxpool.Pool {
	return s.db
}

// Close закрывает подключение к базе данных
func (s *store) Close() error {
	s.logger.Info("закрытие подключения к базе данных")
	s.db.Close()
	return nil
}

// userRepository реализует UserRepository
type userRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewUserRepository создает новый репозиторий пользователей
func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) UserRepository {
	return &userRepository{
		db:     db,
		logger: logger,
	}
}

// Create создает нового пользователя. Повторный вызов для существующего
// telegram_id не изменяет запись. Возвращает true, если строка была вставлена.
func (r *userRepository) Create(ctx context.Context, user *models.User) (bool, error) {
	query := `
		INSERT INTO users (telegram_id, username, referred_by, clicks, paid_link, qualified_referrals, created_at, updated_at)
		VALUES ($1, $2, $3, 0, NULL, 0, $4, $4)
		ON CONFLICT (telegram_id) DO NOTHING`

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := r.db.Exec(ctx, query, user.TelegramID, user.Username, user.ReferredBy, now)
	if err != nil {
		return false, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	created := result.RowsAffected() == 1
	if created {
		r.logger.Info("пользователь создан",
			zap.Int64("telegram_id", user.TelegramID),
			zap.String("username", user.Username))
	}

	return created, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (r *userRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `
		SELECT telegram_id, username, referred_by, clicks, paid_link, qualified_referrals, created_at, updated_at
		FROM users WHERE telegram_id = $1`

	user := &models.User{}
	err := r.db.QueryRow(ctx, query, telegramID).Scan(
		&user.TelegramID, &user.Username, &user.ReferredBy,
		&user.Clicks, &user.PaidLink, &user.QualifiedReferrals,
		&user.CreatedAt, &user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя по Telegram ID: %w", err)
	}

	return user, nil
}

// UpdateUsername обновляет имя пользователя
func (r *userRepository) UpdateUsername(ctx context.Context, telegramID int64, username string) error {
	query := `UPDATE users SET username = $2, updated_at = $3 WHERE telegram_id = $1`

	result, err := r.db.Exec(ctx, query, telegramID, username, time.Now())
	if err != nil {
		return fmt.Errorf("ошибка обновления имени пользователя: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("пользователь с ID %d не найден", telegramID)
	}

	return nil
}

// SetPaidLink сохраняет кэшированную монетизированную ссылку пользователя
func (r *userRepository) SetPaidLink(ctx context.Context, telegramID int64, paidLink string) error {
	query := `UPDATE users SET paid_link = $2, updated_at = $3 WHERE telegram_id = $1`

	result, err := r.db.Exec(ctx, query, telegramID, paidLink, time.Now())
	if err != nil {
		return fmt.Errorf("ошибка сохранения монетизированной ссылки: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("пользователь с ID %d не найден", telegramID)
	}

	r.logger.Info("монетизированная ссылка сохранена", zap.Int64("telegram_id", telegramID))
	return nil
}

// IncrementClicks увеличивает видимый счетчик кликов пользователя
func (r *userRepository) IncrementClicks(ctx context.Context, telegramID int64) error {
	query := `UPDATE users SET clicks = clicks + 1, updated_at = $2 WHERE telegram_id = $1`

	result, err := r.db.Exec(ctx, query, telegramID, time.Now())
	if err != nil {
		return fmt.Errorf("ошибка увеличения счетчика кликов: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("пользователь с ID %d не найден", telegramID)
	}

	return nil
}

// ResetAllClicks обнуляет видимые счетчики кликов всех пользователей.
// История событий в таблице clicks не затрагивается.
func (r *userRepository) ResetAllClicks(ctx context.Context) (int64, error) {
	query := `UPDATE users SET clicks = 0, updated_at = $1 WHERE clicks <> 0`

	result, err := r.db.Exec(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("ошибка обнуления счетчиков кликов: %w", err)
	}

	affected := result.RowsAffected()
	r.logger.Info("счетчики кликов обнулены", zap.Int64("users", affected))
	return affected, nil
}

// GetTopByQualifiedReferrals получает рейтинг пользователей по числу
// квалифицированных рефералов (по убыванию)
func (r *userRepository) GetTopByQualifiedReferrals(ctx context.Context, limit int) ([]*models.User, error) {
	query := `
		SELECT telegram_id, username, referred_by, clicks, paid_link, qualified_referrals, created_at, updated_at
		FROM users
		ORDER BY qualified_referrals DESC, created_at ASC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		r.logger.Error("ошибка получения рейтинга рефереров", zap.Error(err))
		return nil, fmt.Errorf("ошибка получения рейтинга рефереров: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows, r.logger)
}

// GetAll получает пользователей, новые первыми, с ограничением размера страницы
func (r *userRepository) GetAll(ctx context.Context, limit int) ([]*models.User, error) {
	query := `
		SELECT telegram_id, username, referred_by, clicks, paid_link, qualified_referrals, created_at, updated_at
		FROM users
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		r.logger.Error("ошибка получения списка пользователей", zap.Error(err))
		return nil, fmt.Errorf("ошибка получения списка пользователей: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows, r.logger)
}

func scanUsers(rows pgx.Rows, logger *zap.Logger) ([]*models.User, error) {
	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		err := rows.Scan(
			&user.TelegramID, &user.Username, &user.ReferredBy,
			&user.Clicks, &user.PaidLink, &user.QualifiedReferrals,
			&user.CreatedAt, &user.UpdatedAt,
		)
		if err != nil {
			logger.Error("ошибка сканирования пользователя", zap.Error(err))
			continue
		}
		users = append(users, user)
	}

	return users, nil
}
