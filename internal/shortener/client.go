package shortener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// ErrNotConfigured возвращается, когда API-ключ сервиса не задан
var ErrNotConfigured = errors.New("API-ключ сервиса сокращения ссылок не задан")

// LinkShortener превращает длинную ссылку в монетизированную короткую.
// Сбой или таймаут обозначают «ссылка не получена» и не должны влиять
// на учет кликов у вызывающей стороны.
type LinkShortener interface {
	Shorten(ctx context.Context, longURL string) (string, error)
}

// Client представляет клиент ShrinkMe API
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient создает новый клиент сервиса сокращения ссылок
func NewClient(apiKey, baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// shortenResponse представляет JSON-ответ ShrinkMe. Разные версии API
// возвращают короткую ссылку под разными именами.
type shortenResponse struct {
	Status        string `json:"status"`
	ShortenedURL  string `json:"shortenedUrl"`
	ShortURL      string `json:"shortUrl"`
	ShortenedURL2 string `json:"shortenedurl"`
	Message       string `json:"message"`
}

func (r *shortenResponse) link() string {
	switch {
	case r.ShortenedURL != "":
		return r.ShortenedURL
	case r.ShortURL != "":
		return r.ShortURL
	default:
		return r.ShortenedURL2
	}
}

// Shorten запрашивает монетизированную короткую ссылку для longURL
func (c *Client) Shorten(ctx context.Context, longURL string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	apiURL := fmt.Sprintf("%s/api?api=%s&url=%s",
		c.baseURL, url.QueryEscape(c.apiKey), url.QueryEscape(longURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("ошибка создания запроса: %w", err)
	}

	c.logger.Debug("запрос сокращения ссылки", zap.String("long_url", longURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ошибка отправки запроса: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ошибка API (статус %d): %s", resp.StatusCode, string(body))
	}

	var response shortenResponse
	if err := json.Unmarshal(body, &response); err != nil {
		// Некоторые версии API возвращают ссылку голой строкой
		raw := strings.TrimSpace(strings.Trim(string(body), `"`))
		if strings.HasPrefix(raw, "http") {
			return raw, nil
		}
		return "", fmt.Errorf("ошибка парсинга ответа: %w, тело: %s", err, string(body))
	}

	short := response.link()
	if short == "" {
		return "", fmt.Errorf("ответ API не содержит короткой ссылки: %s", string(body))
	}

	c.logger.Info("ссылка сокращена",
		zap.String("long_url", longURL),
		zap.String("short_url", short))

	return short, nil
}
