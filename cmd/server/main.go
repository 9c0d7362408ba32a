// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"steppe-logistics.kz/internal/captcha"
	"steppe-logistics.kz/internal/config"
	"steppe-logistics.kz/internal/db"
	"steppe-logistics.kz/internal/email"
	"steppe-logistics.kz/internal/handlers"
	adminhandlers "steppe-logistics.kz/internal/handlers/admin"
	"steppe-logistics.kz/internal/i18n"
	"steppe-logistics.kz/internal/middleware"
)

func main() {
	configPath := "configs/config.yaml"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Критическая ошибка: не удалось загрузить конфигурацию: %v\n", err)
		os.Exit(1)
	}

	config.InitLogger(cfg.AppEnv)
	slog.Info("Запуск сервера Steppe Logistics...", "app_env", cfg.AppEnv)

	if err = db.InitDB(cfg); err != nil {
		slog.Error("Критическая ошибка: не удалось инициализировать базу данных", "error", err)
		os.Exit(1)
	}
	defer db.DB.Close()
	slog.Info("База данных успешно инициализирована и миграции применены.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db.StartTokenCleanupScheduler(ctx, 24*time.Hour)

	bundle, err := i18n.Load(cfg.I18n.DefaultLocale, cfg.I18n.Locales)
	if err != nil {
		slog.Error("Критическая ошибка: не удалось загрузить словари", "error", err)
		os.Exit(1)
	}

	sessionManager := scs.New()
	sessionManager.Store = mysqlstore.New(db.DB)
	sessionManager.Lifetime = time.Duration(cfg.Session.LifetimeHours) * time.Hour
	sessionManager.IdleTimeout = time.Duration(cfg.Session.IdleTimeoutHours) * time.Hour
	sessionManager.Cookie.Name = "steppe_session"
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.Persist = true
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode
	sessionManager.Cookie.Secure = cfg.Session.CookieSecure
	sessionManager.Cookie.Path = "/"
	slog.Info("Менеджер сессий инициализирован", "store", "mysqlstore", "lifetime", sessionManager.Lifetime, "secure_cookie", sessionManager.Cookie.Secure)

	notifier := email.NewNotifier(email.NewMailer(cfg), cfg.BaseURL, cfg.SiteName, cfg.Email.NotifyEmail)
	app := handlers.NewAppHandlers(cfg, sessionManager, notifier, captcha.New(cfg), bundle, db.GetUserAccess)

	if err := middleware.SetTrustedProxies(cfg.RateLimit.TrustedProxies); err != nil {
		slog.Error("Критическая ошибка: неверный список доверенных прокси", "error", err)
		os.Exit(1)
	}
	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	limiter.StartCleanup(ctx)
	limited := func(h http.HandlerFunc) http.Handler { return limiter.Middleware(h) }
	requireAuth := func(h http.HandlerFunc) http.Handler { return middleware.RequireAuth(h) }

	// --- Site & API Routes ---
	siteMux := http.NewServeMux()

	siteMux.HandleFunc("GET /api/content/{section}", app.ContentHandler)
	siteMux.HandleFunc("GET /api/solutions", app.SolutionsListHandler)
	siteMux.HandleFunc("GET /api/solutions/{slug}", app.SolutionHandler)
	siteMux.HandleFunc("GET /api/news", app.NewsListHandler)
	siteMux.HandleFunc("GET /api/news/{slug}", app.NewsItemHandler)
	siteMux.HandleFunc("GET /api/pages/{slug}", app.PageHandler)
	siteMux.Handle("POST /api/contact", limited(app.ContactHandler))
	siteMux.HandleFunc("GET /api/csrf-token", handlers.CSRFTokenHandler)
	siteMux.HandleFunc("GET /api/flash", app.FlashHandler)
	siteMux.HandleFunc("GET /healthz", handlers.HealthzHandler)

	// Auth
	siteMux.Handle("POST /api/register", limited(app.RegisterHandler))
	siteMux.HandleFunc("GET /verify-email", app.VerifyEmailHandler)
	siteMux.Handle("POST /api/verify-email/resend", limited(app.ResendVerificationEmailHandler))
	siteMux.Handle("POST /api/login", limited(app.LoginHandler))
	siteMux.HandleFunc("POST /api/logout", app.LogoutHandler)
	siteMux.Handle("POST /api/password/forgot", limited(app.RequestPasswordResetHandler))
	siteMux.HandleFunc("GET /api/password/reset", app.CheckResetTokenHandler)
	siteMux.Handle("POST /api/password/reset", limited(app.ProcessPasswordResetHandler))

	// Личный кабинет
	siteMux.Handle("GET /api/me", requireAuth(app.MeHandler))
	siteMux.Handle("POST /api/profile/update", requireAuth(app.UpdateProfileHandler))
	siteMux.Handle("POST /api/profile/change-password", requireAuth(app.ChangePasswordHandler))
	siteMux.Handle("GET /api/settings", requireAuth(app.UserSettingsHandler))
	siteMux.Handle("POST /api/settings/update", requireAuth(app.UpdateUserSettingsHandler))
	siteMux.Handle("GET /api/quotes", requireAuth(app.MyQuotesHandler))
	siteMux.Handle("POST /api/quotes", middleware.RequireAuth(limited(app.CreateQuoteHandler)))
	siteMux.Handle("GET /api/quotes/{ref}", requireAuth(app.MyQuoteHandler))

	// Решение guard'а для клиентской навигации; сессию проверяет сам обработчик.
	siteMux.HandleFunc("GET /api/admin/access", app.AccessHandler)

	siteHandler := middleware.LoadUser(sessionManager, db.GetUserByID)(
		middleware.Locale(bundle)(
			middleware.Maintenance(db.IsMaintenanceMode)(siteMux),
		),
	)

	// --- Admin Routes ---
	adminMux := http.NewServeMux()

	adminMux.HandleFunc("GET /admin", adminhandlers.AdminOverviewHandler(app))

	adminMux.HandleFunc("GET /admin/articles", adminhandlers.AdminArticlesListHandler(app))
	adminMux.HandleFunc("POST /admin/articles", adminhandlers.AdminCreateArticleHandler(app))
	adminMux.HandleFunc("GET /admin/articles/{id}", adminhandlers.AdminArticleHandler(app))
	adminMux.HandleFunc("POST /admin/articles/{id}", adminhandlers.AdminUpdateArticleHandler(app))
	adminMux.HandleFunc("POST /admin/articles/{id}/publish", adminhandlers.AdminPublishArticleHandler(app))
	adminMux.HandleFunc("DELETE /admin/articles/{id}", adminhandlers.AdminDeleteArticleHandler(app))

	adminMux.HandleFunc("GET /admin/quotes", adminhandlers.AdminQuotesListHandler(app))
	adminMux.HandleFunc("GET /admin/quotes/{id}", adminhandlers.AdminQuoteHandler(app))
	adminMux.HandleFunc("POST /admin/quotes/{id}", adminhandlers.AdminUpdateQuoteHandler(app))

	adminMux.HandleFunc("GET /admin/users", adminhandlers.AdminUsersListHandler(app))
	adminMux.HandleFunc("GET /admin/users/{id}", adminhandlers.AdminUserHandler(app))
	adminMux.HandleFunc("POST /admin/users/{id}", adminhandlers.AdminUpdateUserHandler(app))

	adminMux.HandleFunc("GET /admin/messages", adminhandlers.AdminMessagesListHandler(app))
	adminMux.HandleFunc("GET /admin/messages/{id}", adminhandlers.AdminMessageHandler(app))
	adminMux.HandleFunc("POST /admin/messages/{id}/status", adminhandlers.AdminMessageStatusHandler(app))

	adminMux.HandleFunc("GET /admin/pages", adminhandlers.AdminPagesListHandler(app))
	adminMux.HandleFunc("POST /admin/pages", adminhandlers.AdminCreatePageHandler(app))
	adminMux.HandleFunc("GET /admin/pages/{id}", adminhandlers.AdminPageHandler(app))
	adminMux.HandleFunc("POST /admin/pages/{id}", adminhandlers.AdminUpdatePageHandler(app))
	adminMux.HandleFunc("DELETE /admin/pages/{id}", adminhandlers.AdminDeletePageHandler(app))

	adminMux.HandleFunc("GET /admin/settings", adminhandlers.AdminSettingsHandler(app))
	adminMux.HandleFunc("POST /admin/settings", adminhandlers.AdminUpdateSettingsHandler(app))
	adminMux.HandleFunc("GET /admin/settings/permissions", adminhandlers.AdminPermissionsHandler(app))
	adminMux.HandleFunc("POST /admin/settings/permissions", adminhandlers.AdminUpdatePermissionsHandler(app))

	// Guard проверяет каждый запрос под /admin до маршрутизации, включая неизвестные пути.
	guardTimeout := time.Duration(cfg.Guard.LookupTimeoutMs) * time.Millisecond
	adminHandler := middleware.AdminGuard(sessionManager, app.Guard, db.GetUserAccess, guardTimeout)(
		middleware.Locale(bundle)(adminMux),
	)
	// --- End Admin Routes ---

	topLevelMux := http.NewServeMux()
	topLevelMux.Handle("/admin", adminHandler)
	topLevelMux.Handle("/admin/", adminHandler)
	topLevelMux.Handle("/", siteHandler)

	csrfProtected := middleware.NoSurfMiddleware(topLevelMux, cfg.IsProduction(), cfg.CSRFAuthKey)

	rootMux := http.NewServeMux()
	rootMux.Handle("GET /metrics", promhttp.Handler())
	rootMux.Handle("/", sessionManager.LoadAndSave(csrfProtected))

	finalHandler := middleware.Metrics(rootMux)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Сервер запущен и слушает", "address", fmt.Sprintf("http://localhost%s", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Критическая ошибка: не удалось запустить HTTP-сервер", "address", addr, "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Остановка сервера...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Ошибка при остановке HTTP-сервера", "error", err)
	}
	notifier.Wait()
	slog.Info("Сервер остановлен")
}
