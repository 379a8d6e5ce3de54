package bot

import (
	"fmt"
	"strings"
	"time"

	"monetize-bot/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Messages формирует тексты и клавиатуры бота
type Messages struct{}

// NewMessages создает новый набор сообщений
func NewMessages() *Messages {
	return &Messages{}
}

// Welcome приветственное сообщение команды /start
func (m *Messages) Welcome(threshold int) string {
	return fmt.Sprintf(
		"Добро пожаловать! Нажимайте кнопки ниже, чтобы получить монетизированную ссылку, "+
			"посмотреть прогресс или своих рефералов.\n\n"+
			"Реферал засчитывается, когда приглашенный набирает %d кликов.", threshold)
}

// Help справка по командам
func (m *Messages) Help() string {
	return "Команды:\n" +
		"/start — главное меню\n" +
		"/help — эта справка\n\n" +
		"Кнопки меню: получить ссылку, статистика, рефералы, прогресс за день."
}

// AdminOnly отказ в административной операции
func (m *Messages) AdminOnly() string {
	return "Команда доступна только администратору."
}

// PaidLink сообщение с монетизированной ссылкой
func (m *Messages) PaidLink(link string, threshold int) string {
	return fmt.Sprintf(
		"🔗 Ваша монетизированная ссылка:\n%s\n\n"+
			"Делитесь ей и набирайте клики!\n"+
			"(Рефералы засчитываются после %d кликов приглашенного)", link, threshold)
}

// PaidLinkFailed сообщение о невозможности создать ссылку
func (m *Messages) PaidLinkFailed() string {
	return "❌ Не удалось создать монетизированную ссылку. Попробуйте позже."
}

// Stats статистика пользователя
func (m *Messages) Stats(todayClicks, qualifiedReferrals, threshold int) string {
	return fmt.Sprintf(
		"📊 Ваша статистика:\n\n"+
			"Клики (сегодня): %d\n"+
			"Квалифицированные рефералы: %d\n"+
			"Порог квалификации: %d", todayClicks, qualifiedReferrals, threshold)
}

// Progress прогресс за текущий день
func (m *Messages) Progress(todayClicks, threshold int) string {
	remaining := threshold - todayClicks
	if remaining < 0 {
		remaining = 0
	}
	return fmt.Sprintf("Клики за сегодня: %d/%d. Осталось: %d.", todayClicks, threshold, remaining)
}

// NoReferrals сообщение об отсутствии рефералов
func (m *Messages) NoReferrals() string {
	return "У вас пока нет рефералов."
}

// Referrals список рефералов пользователя
func (m *Messages) Referrals(edges []*models.ReferralEdge) string {
	var b strings.Builder
	b.WriteString("Ваши рефералы:\n")
	for _, edge := range edges {
		status := "Ожидает"
		if edge.Qualified {
			status = "Квалифицирован"
		}
		fmt.Fprintf(&b, "%d — %s — %s\n", edge.RefereeID, status, edge.CreatedAt.Format(time.DateTime))
	}
	return b.String()
}

// TargetSaved подтверждение сохранения целевой ссылки
func (m *Messages) TargetSaved() string {
	return "Целевая ссылка сохранена."
}

// TargetUsage подсказка по команде /settarget
func (m *Messages) TargetUsage() string {
	return "Использование: /settarget <url>"
}

// NoQualifiedToday сообщение об отсутствии квалифицированных за день
func (m *Messages) NoQualifiedToday() string {
	return "Сегодня нет пользователей, набравших порог."
}

// QualifiedToday список пользователей, набравших порог за день
func (m *Messages) QualifiedToday(qualified []*models.QualifiedUser) string {
	var b strings.Builder
	b.WriteString("Набрали порог сегодня:\n")
	for i, q := range qualified {
		fmt.Fprintf(&b, "%d. %d — %d кликов\n", i+1, q.UserID, q.Clicks)
	}
	return b.String()
}

// Leaderboard рейтинг рефереров
func (m *Messages) Leaderboard(entries []*models.LeaderboardEntry) string {
	if len(entries) == 0 {
		return "Реферальных данных пока нет."
	}

	var b strings.Builder
	b.WriteString("Топ рефереров:\n")
	for i, e := range entries {
		name := e.Username
		if name == "" {
			name = fmt.Sprintf("%d", e.UserID)
		}
		fmt.Fprintf(&b, "%d. %s — %d квалифицированных\n", i+1, name, e.QualifiedReferrals)
	}
	return b.String()
}

// AllUsers список пользователей для администратора
func (m *Messages) AllUsers(users []*models.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Пользователи (последние %d):\n", len(users))
	for _, u := range users {
		fmt.Fprintf(&b, "%d — кликов:%d — рефералов:%d\n", u.TelegramID, u.Clicks, u.QualifiedReferrals)
	}
	return b.String()
}

// ReferralDetails последние реферальные связи для администратора
func (m *Messages) ReferralDetails(edges []*models.ReferralEdge) string {
	var b strings.Builder
	b.WriteString("Рефералы (последние):\n")
	for _, edge := range edges {
		status := "P"
		if edge.Qualified {
			status = "Q"
		}
		fmt.Fprintf(&b, "%d -> %d — %s — %s\n",
			edge.ReferrerID, edge.RefereeID, status, edge.CreatedAt.Format("2006-01-02 15:04"))
	}
	return b.String()
}

// MainKeyboard главное меню
func (m *Messages) MainKeyboard(isAdmin bool) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("🔗 Получить ссылку", "getlink"),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("📊 Моя статистика", "stats"),
			tgbotapi.NewInlineKeyboardButtonData("🧾 Мои рефералы", "myreferrals"),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("🏁 Прогресс за день", "progress"),
		},
	}

	if isAdmin {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Админ-панель", "admin_panel"),
		})
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// AdminKeyboard меню администратора
func (m *Messages) AdminKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 Все пользователи", "admin_all_users"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏆 Набравшие порог", "admin_qualified_today"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧾 Детали рефералов", "admin_ref_details"),
		),
	)
}
