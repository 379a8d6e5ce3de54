package bot

import (
	"testing"

	"monetize-bot/pkg/models"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < MaxRequestsPerMinute; i++ {
		assert.True(t, rl.IsAllowed(1))
	}

	// Следующий запрос в том же окне отклоняется
	assert.False(t, rl.IsAllowed(1))

	// Лимит отсчитывается на каждого пользователя отдельно
	assert.True(t, rl.IsAllowed(2))
}

func TestMessagesContainThreshold(t *testing.T) {
	m := NewMessages()

	assert.Contains(t, m.Welcome(20), "20")
	assert.Contains(t, m.PaidLink("https://shrink.me/abc", 20), "https://shrink.me/abc")
	assert.Contains(t, m.Stats(5, 2, 20), "5")
}

func TestMainKeyboard(t *testing.T) {
	m := NewMessages()

	regular := m.MainKeyboard(false)
	admin := m.MainKeyboard(true)

	// Кнопка админ-панели видна только администраторам
	assert.Greater(t, len(admin.InlineKeyboard), len(regular.InlineKeyboard))
}

func TestQualifiedTodayMessage(t *testing.T) {
	m := NewMessages()

	text := m.QualifiedToday([]*models.QualifiedUser{
		{UserID: 42, Clicks: 25},
	})

	assert.Contains(t, text, "42")
	assert.Contains(t, text, "25")
}
