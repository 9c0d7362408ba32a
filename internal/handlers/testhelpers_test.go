package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alexedwards/scs/v2"
	"github.com/stretchr/testify/require"

	"steppe-logistics.kz/internal/auth"
	"steppe-logistics.kz/internal/captcha"
	"steppe-logistics.kz/internal/config"
	"steppe-logistics.kz/internal/db"
	"steppe-logistics.kz/internal/email"
	"steppe-logistics.kz/internal/i18n"
	"steppe-logistics.kz/internal/middleware"
	"steppe-logistics.kz/internal/models"
	"steppe-logistics.kz/internal/permissions"
)

func newMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	prev := db.DB
	db.DB = conn
	t.Cleanup(func() {
		db.DB = prev
		conn.Close()
	})
	return mock
}

// recordingMailer запоминает письма вместо отправки.
type recordingMailer struct {
	mu   sync.Mutex
	sent []email.Message
}

func (m *recordingMailer) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []email.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]email.Message(nil), m.sent...)
}

type stubVerifier struct {
	err    error
	action string
	calls  int
}

func (s *stubVerifier) Verify(_ context.Context, _, _, action string) error {
	s.calls++
	s.action = action
	return s.err
}

var _ captcha.Verifier = (*stubVerifier)(nil)

type testApp struct {
	*AppHandlers
	mailer   *recordingMailer
	verifier *stubVerifier
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	bundle, err := i18n.Load("ru", []string{"ru", "kk", "en"})
	require.NoError(t, err)

	cfg := &config.Config{
		SiteName: "Steppe Logistics",
		BaseURL:  "http://localhost:8080",
		AppEnv:   "development",
		Guard:    config.GuardConfig{LookupTimeoutMs: 500},
		Email:    config.EmailConfig{NotifyEmail: "ops@steppe-logistics.kz"},
	}
	mailer := &recordingMailer{}
	notifier := email.NewNotifier(mailer, cfg.BaseURL, cfg.SiteName, cfg.Email.NotifyEmail)
	verifier := &stubVerifier{}

	app := NewAppHandlers(cfg, scs.New(), notifier, verifier, bundle, db.GetUserAccess)
	return &testApp{AppHandlers: app, mailer: mailer, verifier: verifier}
}

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return req
}

// loginCookie создает сессию с userID и возвращает ее cookie.
func loginCookie(t *testing.T, sm *scs.SessionManager, userID int64) *http.Cookie {
	t.Helper()
	h := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, auth.LogIn(r.Context(), sm, userID))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func withUser(req *http.Request, user *models.User) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.UserContextKey, user)
	ctx = context.WithValue(ctx, middleware.PrincipalContextKey, user.Principal())
	return req.WithContext(ctx)
}

var userCols = []string{
	"id", "email", "phone", "password_hash", "first_name", "last_name", "company",
	"created_at", "updated_at", "role_id", "role_name", "can_manage_articles",
	"preferred_locale", "email_notifications",
	"is_email_verified", "email_verified_at",
	"email_verification_token", "email_verification_token_expires_at",
	"password_reset_token", "password_reset_token_expires_at",
}

type userFixture struct {
	id        int64
	email     string
	hash      string
	role      permissions.Role
	verified  bool
	canManage bool
}

func userRows(u userFixture) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userCols).AddRow(
		u.id, u.email, nil, u.hash, "Айгерим", "Сапарова", "",
		now, now, int64(1), string(u.role), u.canManage,
		"ru", true,
		u.verified, nil,
		nil, nil,
		nil, nil,
	)
}

var quoteCols = []string{
	"id", "reference", "user_id", "origin", "destination", "cargo_type", "weight_kg", "volume_m3",
	"pickup_date", "notes", "status", "quoted_amount", "currency", "admin_comment", "created_at", "updated_at", "email",
}
