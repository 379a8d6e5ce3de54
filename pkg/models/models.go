package models

import (
	"time"
)

// User представляет участника реферальной программы
type User struct {
	TelegramID         int64     `json:"telegram_id" db:"telegram_id"`
	Username           string    `json:"username" db:"username"`
	ReferredBy         *int64    `json:"referred_by" db:"referred_by"` // ID пользователя, который пригласил
	Clicks             int       `json:"clicks" db:"clicks"`           // Видимый счетчик кликов, обнуляется ежедневно
	PaidLink           *string   `json:"paid_link" db:"paid_link"`     // Кэшированная монетизированная ссылка
	QualifiedReferrals int       `json:"qualified_referrals" db:"qualified_referrals"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// ClickEvent представляет одиночное событие клика по редирект-ссылке.
// История кликов append-only: ежедневный сброс обнуляет только агрегат
// users.clicks, строки событий остаются нетронутыми.
type ClickEvent struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	ClickDate   time.Time `json:"click_date" db:"click_date"`   // Календарный день (UTC), единица дедупликации
	Fingerprint string    `json:"fingerprint" db:"fingerprint"` // sha256(ip|ua), сырые значения не хранятся
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Setting представляет значение настройки вида ключ-значение
type Setting struct {
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// QualifiedUser представляет пользователя, набравшего порог кликов за день
type QualifiedUser struct {
	UserID int64 `json:"user_id" db:"user_id"`
	Clicks int   `json:"clicks" db:"clicks"`
}

// Constants для ключей настроек
const (
	SettingTargetLink    = "target_link"     // Глобальная монетизированная ссылка администратора
	SettingLastResetDate = "last_reset_date" // Маркер последнего ежедневного сброса (UTC, YYYY-MM-DD)
)

// DayFormat формат календарного дня для маркера сброса и дедупликации
const DayFormat = "2006-01-02"

// DayString возвращает календарный день в формате маркера (UTC)
func DayString(t time.Time) string {
	return t.UTC().Format(DayFormat)
}

// Day обрезает время до начала календарного дня (UTC)
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
