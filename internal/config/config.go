// internal/config/config.go
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	DSN             string `yaml:"dsn"`
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"-"`
	DBName          string `yaml:"dbname"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// FormatDSN собирает DSN для go-sql-driver/mysql, если он не задан целиком.
func (d DatabaseConfig) FormatDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	port := d.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC&multiStatements=true",
		d.User, d.Password, d.Host, port, d.DBName)
}

type SessionConfig struct {
	LifetimeHours    int  `yaml:"lifetime_hours"`
	IdleTimeoutHours int  `yaml:"idle_timeout_hours"`
	CookieSecure     bool `yaml:"cookie_secure"`
}

type EmailConfig struct {
	SMTPhost     string `yaml:"smtp_host"`
	SMTPport     int    `yaml:"smtp_port"`
	SMTPuser     string `yaml:"smtp_user"`
	SMTPpassword string `yaml:"-"`
	Sender       string `yaml:"sender"`
	SenderName   string `yaml:"sender_name"`
	NotifyEmail  string `yaml:"notify_email"`
}

// Enabled - true, если SMTP настроен и письма можно отправлять.
func (e EmailConfig) Enabled() bool {
	return e.SMTPhost != "" && e.Sender != ""
}

type CaptchaConfig struct {
	VerifyURL      string  `yaml:"verify_url"`
	SiteKey        string  `yaml:"site_key"`
	Secret         string  `yaml:"-"`
	MinScore       float64 `yaml:"min_score"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

type RateLimitConfig struct {
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	Burst             int      `yaml:"burst"`
	TrustedProxies    []string `yaml:"trusted_proxies"` // адреса или сети обратных прокси
}

type I18nConfig struct {
	DefaultLocale string   `yaml:"default_locale"`
	Locales       []string `yaml:"locales"`
}

type GuardConfig struct {
	// Сколько ждать загрузки пользователя, прежде чем ответить "pending".
	LookupTimeoutMs int `yaml:"lookup_timeout_ms"`
}

type Config struct {
	SiteName        string          `yaml:"site_name"`
	SiteDescription string          `yaml:"site_description"`
	CurrentYear     int             `yaml:"current_year"`
	BaseURL         string          `yaml:"base_url"`
	Port            int             `yaml:"port"`
	AppEnv          string          `yaml:"app_env"`
	Database        DatabaseConfig  `yaml:"database"`
	Session         SessionConfig   `yaml:"session"`
	Email           EmailConfig     `yaml:"email"`
	Captcha         CaptchaConfig   `yaml:"captcha"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	I18n            I18nConfig      `yaml:"i18n"`
	Guard           GuardConfig     `yaml:"guard"`
	CSRFAuthKey     string          `yaml:"-"`
	FirstAdminEmail string          `yaml:"-"`
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func getStringEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
		slog.Warn("Не удалось преобразовать переменную окружения в число, используется значение по умолчанию", "key", key, "value", valueStr)
	}
	return defaultValue
}

// LoadConfig читает YAML и накладывает переменные окружения поверх.
func LoadConfig(filename string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load("configs/.env"); err != nil {
			slog.Info("configs/.env не найден, используются системные переменные окружения", "error", err)
		} else {
			slog.Info("Переменные окружения загружены из configs/.env")
		}
	}

	file, err := os.Open(filename)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("файл конфигурации не найден: %s", filename)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла конфигурации '%s': %w", filename, err)
	}
	defer file.Close()

	var cfg Config
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка декодирования YAML из файла '%s': %w", filename, err)
	}

	applyEnv(&cfg)
	if err := finalize(&cfg); err != nil {
		return nil, err
	}

	slog.Info("Конфигурация загружена", "app_env", cfg.AppEnv, "base_url", cfg.BaseURL, "port", cfg.Port, "smtp", cfg.Email.Enabled())
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.AppEnv = getStringEnvOrDefault("APP_ENV", cfg.AppEnv)
	cfg.BaseURL = getStringEnvOrDefault("BASE_URL", cfg.BaseURL)
	cfg.Port = getIntEnvOrDefault("PORT", cfg.Port)

	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	} else {
		cfg.Database.Host = getStringEnvOrDefault("DB_HOST", cfg.Database.Host)
		cfg.Database.Port = getIntEnvOrDefault("DB_PORT", cfg.Database.Port)
		cfg.Database.User = getStringEnvOrDefault("DB_USER", cfg.Database.User)
		cfg.Database.DBName = getStringEnvOrDefault("DB_NAME", cfg.Database.DBName)
	}
	cfg.Database.Password = getStringEnvOrDefault("DB_PASSWORD", "")

	cfg.Email.SMTPhost = getStringEnvOrDefault("SMTP_HOST", cfg.Email.SMTPhost)
	cfg.Email.SMTPport = getIntEnvOrDefault("SMTP_PORT", cfg.Email.SMTPport)
	cfg.Email.SMTPuser = getStringEnvOrDefault("SMTP_USER", cfg.Email.SMTPuser)
	cfg.Email.SMTPpassword = getStringEnvOrDefault("SMTP_PASSWORD", "") // только из ENV
	cfg.Email.Sender = getStringEnvOrDefault("EMAIL_SENDER", cfg.Email.Sender)
	cfg.Email.NotifyEmail = getStringEnvOrDefault("NOTIFY_EMAIL", cfg.Email.NotifyEmail)

	cfg.Captcha.Secret = getStringEnvOrDefault("CAPTCHA_SECRET", "")
	cfg.Captcha.SiteKey = getStringEnvOrDefault("CAPTCHA_SITE_KEY", cfg.Captcha.SiteKey)

	if v := getStringEnvOrDefault("TRUSTED_PROXIES", ""); v != "" {
		cfg.RateLimit.TrustedProxies = strings.Split(v, ",")
	}

	cfg.CSRFAuthKey = getStringEnvOrDefault("CSRF_AUTH_KEY", "")
	cfg.FirstAdminEmail = strings.ToLower(strings.TrimSpace(getStringEnvOrDefault("FIRST_ADMIN_EMAIL", "")))
}

func finalize(cfg *Config) error {
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	isProduction := cfg.IsProduction()

	if cfg.CurrentYear == 0 {
		cfg.CurrentYear = time.Now().Year()
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.BaseURL == "" {
		return fmt.Errorf("BASE_URL не задан")
	}
	if isProduction && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return fmt.Errorf("в production окружении BASE_URL должен начинаться с https://")
	}

	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return fmt.Errorf("параметры подключения к БД (DATABASE_DSN или DB_HOST и др.) не заданы")
	}
	if cfg.Database.DSN == "" {
		if cfg.Database.User == "" {
			return fmt.Errorf("DB_USER не задан для подключения к БД")
		}
		if cfg.Database.DBName == "" {
			return fmt.Errorf("DB_NAME не задан для подключения к БД")
		}
		if isProduction && cfg.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD должен быть установлен в переменных окружения для production")
		}
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 25
	}
	if cfg.Database.ConnMaxLifetime <= 0 {
		cfg.Database.ConnMaxLifetime = 5
	}

	if cfg.CSRFAuthKey == "" {
		if isProduction {
			slog.Error("КРИТИЧЕСКАЯ ОШИБКА: CSRF_AUTH_KEY должен быть установлен для production")
			return fmt.Errorf("CSRF_AUTH_KEY должен быть установлен в переменных окружения для production")
		}
		slog.Warn("CSRF_AUTH_KEY не установлен! Используется небезопасный ключ по умолчанию (ТОЛЬКО ДЛЯ РАЗРАБОТКИ).")
	}

	if cfg.Session.LifetimeHours <= 0 {
		cfg.Session.LifetimeHours = 24
	}
	if cfg.Session.IdleTimeoutHours <= 0 {
		cfg.Session.IdleTimeoutHours = 12
	}
	if isProduction {
		cfg.Session.CookieSecure = true
	}

	if cfg.Email.SMTPport == 0 {
		cfg.Email.SMTPport = 587
	}
	if cfg.Email.SenderName == "" {
		cfg.Email.SenderName = cfg.SiteName
	}
	if isProduction && !cfg.Email.Enabled() {
		slog.Warn("Параметры SMTP (SMTP_HOST, EMAIL_SENDER) не настроены для production. Письма отправляться не будут.")
	}

	if cfg.Captcha.Secret == "" && isProduction {
		return fmt.Errorf("CAPTCHA_SECRET должен быть установлен в переменных окружения для production")
	}
	if cfg.Captcha.VerifyURL == "" {
		cfg.Captcha.VerifyURL = "https://www.google.com/recaptcha/api/siteverify"
	}
	if cfg.Captcha.MinScore <= 0 {
		cfg.Captcha.MinScore = 0.5
	}
	if cfg.Captcha.TimeoutSeconds <= 0 {
		cfg.Captcha.TimeoutSeconds = 5
	}

	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 20
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 5
	}

	if cfg.I18n.DefaultLocale == "" {
		cfg.I18n.DefaultLocale = "ru"
	}
	if len(cfg.I18n.Locales) == 0 {
		cfg.I18n.Locales = []string{"ru", "kk", "en"}
	}

	if cfg.Guard.LookupTimeoutMs <= 0 {
		cfg.Guard.LookupTimeoutMs = 2000
	}
	return nil
}

func InitLogger(appEnv string) {
	var logger *slog.Logger
	logLevel := slog.LevelInfo

	if appEnv == "development" {
		logLevel = slog.LevelDebug
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: false,
		}))
	}
	slog.SetDefault(logger)
}
