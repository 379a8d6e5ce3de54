package store

import (
	"context"
	"fmt"
	"time"

	"monetize-bot/pkg/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ClickRepository определяет интерфейс для работы с событиями кликов
type ClickRepository interface {
	Insert(ctx context.Context, click *models.ClickEvent) (bool, error)
	CountAllByUser(ctx context.Context, userID int64) (int, error)
	CountByUserAndDate(ctx context.Context, userID int64, day time.Time) (int, error)
	GetQualifiedByDate(ctx context.Context, day time.Time, threshold int) ([]*models.QualifiedUser, error)
}

// PostgresClickRepository реализует ClickRepository для PostgreSQL
type PostgresClickRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewClickRepository создает новый репозиторий кликов
func NewClickRepository(db *pgxpool.Pool, logger *zap.Logger) ClickRepository {
	return &PostgresClickRepository{
		db:     db,
		logger: logger,
	}
}

// Insert вставляет событие клика. Дубликат по ключу
// (user_id, click_date, fingerprint) подавляется уникальным ограничением
// на стороне базы: конфликт вставки — ожидаемый исход, а не ошибка.
// Возвращает true, если строка была вставлена.
func (r *PostgresClickRepository) Insert(ctx context.Context, click *models.ClickEvent) (bool, error) {
	query := `
		INSERT INTO clicks (user_id, click_date, fingerprint, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, click_date, fingerprint) DO NOTHING`

	click.CreatedAt = time.Now()
	click.ClickDate = models.Day(click.ClickDate)

	result, err := r.db.Exec(ctx, query,
		click.UserID, click.ClickDate, click.Fingerprint, click.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("ошибка записи события клика: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// CountAllByUser подсчитывает все события кликов пользователя за всё время.
// Именно этот счет, а не дневной агрегат, используется для квалификации.
func (r *PostgresClickRepository) CountAllByUser(ctx context.Context, userID int64) (int, error) {
	query := `SELECT COUNT(*) FROM clicks WHERE user_id = $1`

	var count int
	err := r.db.QueryRow(ctx, query, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета кликов пользователя: %w", err)
	}

	return count, nil
}

// CountByUserAndDate подсчитывает события кликов пользователя за календарный день
func (r *PostgresClickRepository) CountByUserAndDate(ctx context.Context, userID int64, day time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM clicks WHERE user_id = $1 AND click_date = $2`

	var count int
	err := r.db.QueryRow(ctx, query, userID, models.Day(day)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета кликов за день: %w", err)
	}

	return count, nil
}

// GetQualifiedByDate получает пользователей, набравших за день не меньше
// threshold событий кликов
func (r *PostgresClickRepository) GetQualifiedByDate(ctx context.Context, day time.Time, threshold int) ([]*models.QualifiedUser, error) {
	query := `
		SELECT user_id, COUNT(*) AS clicks
		FROM clicks
		WHERE click_date = $1
		GROUP BY user_id
		HAVING COUNT(*) >= $2
		ORDER BY clicks DESC`

	rows, err := r.db.Query(ctx, query, models.Day(day), threshold)
	if err != nil {
		r.logger.Error("ошибка получения квалифицированных за день", zap.Error(err))
		return nil, fmt.Errorf("ошибка получения квалифицированных за день: %w", err)
	}
	defer rows.Close()

	var qualified []*models.QualifiedUser
	for rows.Next() {
		q := &models.QualifiedUser{}
		if err := rows.Scan(&q.UserID, &q.Clicks); err != nil {
			return nil, fmt.Errorf("ошибка сканирования квалифицированного пользователя: %w", err)
		}
		qualified = append(qualified, q)
	}

	return qualified, nil
}
