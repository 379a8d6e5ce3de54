package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"monetize-bot/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ReferralRepository определяет интерфейс для работы с реферальными связями
type ReferralRepository interface {
	CreateEdge(ctx context.Context, referrerID, refereeID int64) (bool, error)
	GetByReferee(ctx context.Context, refereeID int64) (*models.ReferralEdge, error)
	Qualify(ctx context.Context, refereeID int64) (bool, error)
	ListByReferrer(ctx context.Context, referrerID int64, limit int) ([]*models.ReferralEdge, error)
	ListNewest(ctx context.Context, limit int) ([]*models.ReferralEdge, error)
	GetStats(ctx context.Context, referrerID int64) (*models.ReferralStats, error)
}

// PostgresReferralRepository реализует ReferralRepository для PostgreSQL
type PostgresReferralRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewReferralRepository создает новый репозиторий рефералов
func NewReferralRepository(db *pgxpool.Pool, logger *zap.Logger) ReferralRepository {
	return &PostgresReferralRepository{
		db:     db,
		logger: logger,
	}
}

// CreateEdge создает реферальную связь. Приглашенный уникален: при конфликте
// выигрывает первая запись, повторная вставка подавляется. Возвращает true,
// если связь была создана.
func (r *PostgresReferralRepository) CreateEdge(ctx context.Context, referrerID, refereeID int64) (bool, error) {
	query := `
		INSERT INTO referrals (referrer_id, referee_id, qualified, created_at)
		VALUES ($1, $2, FALSE, $3)
		ON CONFLICT (referee_id) DO NOTHING`

	result, err := r.db.Exec(ctx, query, referrerID, refereeID, time.Now())
	if err != nil {
		return false, fmt.Errorf("ошибка создания реферальной связи: %w", err)
	}

	created := result.RowsAffected() == 1
	if created {
		r.logger.Info("создана реферальная связь",
			zap.Int64("referrer_id", referrerID),
			zap.Int64("referee_id", refereeID))
	}

	return created, nil
}

// GetByReferee получает реферальную связь по ID приглашенного пользователя
func (r *PostgresReferralRepository) GetByReferee(ctx context.Context, refereeID int64) (*models.ReferralEdge, error) {
	query := `
		SELECT id, referrer_id, referee_id, qualified, qualified_at, created_at
		FROM referrals
		WHERE referee_id = $1`

	edge := &models.ReferralEdge{}
	err := r.db.QueryRow(ctx, query, refereeID).Scan(
		&edge.ID,
		&edge.ReferrerID,
		&edge.RefereeID,
		&edge.Qualified,
		&edge.QualifiedAt,
		&edge.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения реферальной связи: %w", err)
	}

	return edge, nil
}

// Qualify переводит связь приглашенного в квалифицированную и увеличивает
// счетчик реферера ровно на единицу — в одной транзакции. Условное обновление
// (qualified = FALSE) сериализует конкурирующие вызовы: перейти может только
// один. Возвращает true, если переход действительно произошел.
func (r *PostgresReferralRepository) Qualify(ctx context.Context, refereeID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции квалификации: %w", err)
	}
	defer tx.Rollback(ctx)

	flipQuery := `
		UPDATE referrals
		SET qualified = TRUE, qualified_at = $2
		WHERE referee_id = $1 AND qualified = FALSE
		RETURNING referrer_id`

	var referrerID int64
	err = tx.QueryRow(ctx, flipQuery, refereeID, time.Now()).Scan(&referrerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Связи нет либо она уже квалифицирована — переход не наш
			return false, nil
		}
		return false, fmt.Errorf("ошибка перевода реферала в квалифицированные: %w", err)
	}

	creditQuery := `UPDATE users SET qualified_referrals = qualified_referrals + 1, updated_at = $2 WHERE telegram_id = $1`
	if _, err := tx.Exec(ctx, creditQuery, referrerID, time.Now()); err != nil {
		return false, fmt.Errorf("ошибка начисления квалифицированного реферала: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("ошибка фиксации транзакции квалификации: %w", err)
	}

	r.logger.Info("реферал квалифицирован",
		zap.Int64("referee_id", refereeID),
		zap.Int64("referrer_id", referrerID))

	return true, nil
}

// ListByReferrer получает рефералов приглашающего пользователя, новые первыми
func (r *PostgresReferralRepository) ListByReferrer(ctx context.Context, referrerID int64, limit int) ([]*models.ReferralEdge, error) {
	query := `
		SELECT id, referrer_id, referee_id, qualified, qualified_at, created_at
		FROM referrals
		WHERE referrer_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, referrerID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения рефералов: %w", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// ListNewest получает последние реферальные связи для администратора
func (r *PostgresReferralRepository) ListNewest(ctx context.Context, limit int) ([]*models.ReferralEdge, error) {
	query := `
		SELECT id, referrer_id, referee_id, qualified, qualified_at, created_at
		FROM referrals
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка рефералов: %w", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// GetStats получает сводку рефералов пользователя
func (r *PostgresReferralRepository) GetStats(ctx context.Context, referrerID int64) (*models.ReferralStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_referrals,
			COUNT(CASE WHEN qualified THEN 1 END) AS qualified_referrals,
			COUNT(CASE WHEN NOT qualified THEN 1 END) AS pending_referrals
		FROM referrals
		WHERE referrer_id = $1`

	stats := &models.ReferralStats{}
	err := r.db.QueryRow(ctx, query, referrerID).Scan(
		&stats.TotalReferrals,
		&stats.QualifiedReferrals,
		&stats.PendingReferrals,
	)

	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики рефералов: %w", err)
	}

	return stats, nil
}

func scanEdges(rows pgx.Rows) ([]*models.ReferralEdge, error) {
	var edges []*models.ReferralEdge
	for rows.Next() {
		edge := &models.ReferralEdge{}
		err := rows.Scan(
			&edge.ID,
			&edge.ReferrerID,
			&edge.RefereeID,
			&edge.Qualified,
			&edge.QualifiedAt,
			&edge.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования реферала: %w", err)
		}
		edges = append(edges, edge)
	}

	return edges, nil
}
