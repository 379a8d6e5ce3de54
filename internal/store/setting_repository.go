package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// SettingRepository определяет интерфейс для работы с настройками
type SettingRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetIfAbsent(ctx context.Context, key, value string) (bool, error)
	CompareAndSwap(ctx context.Context, key, old, new string) (bool, error)
}

// PostgresSettingRepository реализует SettingRepository для PostgreSQL
type PostgresSettingRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewSettingRepository создает новый репозиторий настроек
func NewSettingRepository(db *pgxpool.Pool, logger *zap.Logger) SettingRepository {
	return &PostgresSettingRepository{
		db:     db,
		logger: logger,
	}
}

// Get получает значение настройки по ключу
func (r *PostgresSettingRepository) Get(ctx context.Context, key string) (string, error) {
	query := `SELECT value FROM settings WHERE key = $1`

	var value string
	err := r.db.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("ошибка получения настройки: %w", err)
	}

	return value, nil
}

// Set сохраняет значение настройки, последняя запись выигрывает
func (r *PostgresSettingRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	if _, err := r.db.Exec(ctx, query, key, value, time.Now()); err != nil {
		return fmt.Errorf("ошибка сохранения настройки: %w", err)
	}

	r.logger.Info("настройка сохранена", zap.String("key", key))
	return nil
}

// SetIfAbsent сохраняет значение, только если ключ отсутствует.
// Возвращает true, если запись была создана.
func (r *PostgresSettingRepository) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING`

	result, err := r.db.Exec(ctx, query, key, value, time.Now())
	if err != nil {
		return false, fmt.Errorf("ошибка инициализации настройки: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// CompareAndSwap атомарно заменяет значение настройки, только если текущее
// значение равно old. Второй конкурирующий вызов с тем же old увидит уже
// обновленное значение и вернет false.
func (r *PostgresSettingRepository) CompareAndSwap(ctx context.Context, key, old, new string) (bool, error) {
	query := `UPDATE settings SET value = $3, updated_at = $4 WHERE key = $1 AND value = $2`

	result, err := r.db.Exec(ctx, query, key, old, new, time.Now())
	if err != nil {
		return false, fmt.Errorf("ошибка атомарной замены настройки: %w", err)
	}

	return result.RowsAffected() == 1, nil
}
