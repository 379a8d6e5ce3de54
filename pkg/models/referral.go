package models

import (
	"time"
)

// ReferralEdge представляет реферальную связь между пользователями.
// Приглашенный (referee) уникален: пользователь может быть приглашен
// не более одного раза, выигрывает первая запись.
type ReferralEdge struct {
	ID          int64      `json:"id" db:"id"`
	ReferrerID  int64      `json:"referrer_id" db:"referrer_id"`
	RefereeID   int64      `json:"referee_id" db:"referee_id"`
	Qualified   bool       `json:"qualified" db:"qualified"` // Переход false→true ровно один раз
	QualifiedAt *time.Time `json:"qualified_at,omitempty" db:"qualified_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// ReferralStats представляет сводку рефералов пользователя
type ReferralStats struct {
	TotalReferrals     int `json:"total_referrals"`
	QualifiedReferrals int `json:"qualified_referrals"`
	PendingReferrals   int `json:"pending_referrals"`
}

// LeaderboardEntry представляет строку рейтинга рефереров
type LeaderboardEntry struct {
	UserID             int64  `json:"user_id"`
	Username           string `json:"username"`
	QualifiedReferrals int    `json:"qualified_referrals"`
}
