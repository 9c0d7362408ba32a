// Package captcha проверяет токены reCAPTCHA-совместимого провайдера.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	"steppe-logistics.kz/internal/config"
)

var (
	ErrMissingToken = errors.New("не передан токен капчи")
	ErrRejected     = errors.New("проверка капчи не пройдена")
	ErrUnavailable  = errors.New("сервис проверки капчи недоступен")
)

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "captcha_circuit_breaker_state",
		Help: "Состояние circuit breaker капчи (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "captcha_verifications_total",
		Help: "Результаты проверок капчи",
	}, []string{"result"})
)

// Verifier проверяет токен капчи. action - ожидаемое действие (может быть пустым).
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP, action string) error
}

// siteverifyResponse - ответ провайдера.
type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

type Client struct {
	verifyURL  string
	secret     string
	minScore   float64
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*siteverifyResponse]
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func NewClient(cfg config.CaptchaConfig) *Client {
	const name = "captcha"
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Смена состояния circuit breaker", "breaker", name, "from", from.String(), "to", to.String())
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	}
	breakerState.WithLabelValues(name).Set(0)

	return &Client{
		verifyURL:  cfg.VerifyURL,
		secret:     cfg.Secret,
		minScore:   cfg.MinScore,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		breaker:    gobreaker.NewCircuitBreaker[*siteverifyResponse](settings),
	}
}

// Verify принимает токен, только если провайдер подтвердил успех, оценка не ниже
// минимальной и действие совпадает с ожидаемым. Любой сбой провайдера - отказ.
func (c *Client) Verify(ctx context.Context, token, remoteIP, action string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		verifications.WithLabelValues("missing").Inc()
		return ErrMissingToken
	}

	resp, err := c.breaker.Execute(func() (*siteverifyResponse, error) {
		return c.siteverify(ctx, token, remoteIP)
	})
	if err != nil {
		verifications.WithLabelValues("error").Inc()
		slog.Error("Ошибка обращения к сервису капчи", "error", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if !resp.Success {
		verifications.WithLabelValues("rejected").Inc()
		slog.Info("Капча отклонена провайдером", "error_codes", resp.ErrorCodes)
		return ErrRejected
	}
	if resp.Score < c.minScore {
		verifications.WithLabelValues("low_score").Inc()
		slog.Info("Низкая оценка капчи", "score", resp.Score, "min", c.minScore)
		return ErrRejected
	}
	if action != "" && resp.Action != action {
		verifications.WithLabelValues("action_mismatch").Inc()
		slog.Warn("Действие капчи не совпадает", "expected", action, "got", resp.Action)
		return ErrRejected
	}
	verifications.WithLabelValues("ok").Inc()
	return nil
}

func (c *Client) siteverify(ctx context.Context, token, remoteIP string) (*siteverifyResponse, error) {
	form := url.Values{"secret": {c.secret}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("создание запроса siteverify: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("siteverify вернул %d: %s", httpResp.StatusCode, string(body))
	}

	var out siteverifyResponse
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, 64<<10)).Decode(&out); err != nil {
		return nil, fmt.Errorf("разбор ответа siteverify: %w", err)
	}
	return &out, nil
}

func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Disabled принимает любой токен. Только для разработки без секрета.
type Disabled struct{}

func (Disabled) Verify(context.Context, string, string, string) error { return nil }

// rejectAll отказывает всем: без секрета в production проверять нечем.
type rejectAll struct{}

func (rejectAll) Verify(context.Context, string, string, string) error { return ErrUnavailable }

// New выбирает реализацию по конфигурации.
func New(cfg *config.Config) Verifier {
	if cfg.Captcha.Secret == "" {
		if cfg.IsProduction() {
			return rejectAll{}
		}
		slog.Warn("CAPTCHA_SECRET не задан, проверка капчи отключена (только для разработки)")
		return Disabled{}
	}
	return NewClient(cfg.Captcha)
}
