package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Устанавливаем переменные окружения для теста
	os.Setenv("TELEGRAM_BOT_TOKEN", "test_token")
	os.Setenv("TELEGRAM_BOT_USERNAME", "test_bot")
	os.Setenv("ADMIN_IDS", "100,200")
	os.Setenv("DB_HOST", "localhost")
	os.Setenv("DB_USER", "test_user")
	os.Setenv("DB_PASSWORD", "test_password")
	os.Setenv("DB_NAME", "test_db")
	os.Setenv("SHRINKME_API_KEY", "test_key")

	// Загружаем конфигурацию
	cfg, err := Load()

	// Проверяем, что конфигурация загружена без ошибок
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	// Проверяем значения
	assert.Equal(t, "test_token", cfg.Telegram.BotToken)
	assert.Equal(t, "test_bot", cfg.Telegram.BotUsername)
	assert.Equal(t, []int64{100, 200}, cfg.Telegram.AdminIDs)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "test_user", cfg.Database.User)
	assert.Equal(t, "test_password", cfg.Database.Password)
	assert.Equal(t, "test_db", cfg.Database.Name)
	assert.Equal(t, "test_key", cfg.Shortener.APIKey)

	// Проверяем значения по умолчанию
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "https://shrinkme.io", cfg.Shortener.BaseURL)
	assert.Equal(t, 10, cfg.Shortener.TimeoutSeconds)
	assert.Equal(t, 20, cfg.Referral.QualifyClicks)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 8080, cfg.App.Port)
}

func TestLoadConfigRequiresAdmins(t *testing.T) {
	os.Setenv("TELEGRAM_BOT_TOKEN", "test_token")
	os.Setenv("DB_HOST", "localhost")
	os.Setenv("DB_USER", "test_user")
	os.Setenv("DB_PASSWORD", "test_password")
	os.Setenv("DB_NAME", "test_db")
	os.Unsetenv("ADMIN_IDS")

	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "test_user",
		Password: "test_password",
		Name:     "test_db",
		SSLMode:  "disable",
	}

	dsn := cfg.GetDSN()
	expected := "host=localhost port=5432 user=test_user password=test_password dbname=test_db sslmode=disable"
	assert.Equal(t, expected, dsn)
}

func TestIsAdmin(t *testing.T) {
	cfg := &TelegramConfig{AdminIDs: []int64{100, 200}}

	assert.True(t, cfg.IsAdmin(100))
	assert.True(t, cfg.IsAdmin(200))
	assert.False(t, cfg.IsAdmin(300))
}

func TestParseAdminIDs(t *testing.T) {
	ids, err := parseAdminIDs("1, 2,3")
	assert.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	_, err = parseAdminIDs("1,abc")
	assert.Error(t, err)

	ids, err = parseAdminIDs("")
	assert.NoError(t, err)
	assert.Empty(t, ids)
}
