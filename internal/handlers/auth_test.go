package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steppe-logistics.kz/internal/auth"
	"steppe-logistics.kz/internal/captcha"
	"steppe-logistics.kz/internal/permissions"
)

const userByEmailQuery = "FROM users u"

func TestLoginRedirectsToLanding(t *testing.T) {
	hash, err := auth.HashPassword("Secret123!")
	require.NoError(t, err)

	tests := []struct {
		name      string
		role      permissions.Role
		canManage bool
		next      string
		want      string
	}{
		{"admin lands on overview", permissions.RoleAdmin, false, "", "/admin"},
		{"warehouse lands on overview", permissions.RoleWarehouse, false, "", "/admin"},
		{"staff lands on messages", permissions.RoleStaff, false, "", "/admin/messages"},
		{"customer lands on dashboard", permissions.RoleCustomer, false, "", "/dashboard"},
		{"staff next to granted module", permissions.RoleStaff, false, "/admin/quotes", "/admin/quotes"},
		{"staff next to articles with override", permissions.RoleStaff, true, "/admin/articles/3", "/admin/articles/3"},
		{"staff next to articles without override", permissions.RoleStaff, false, "/admin/articles", "/admin/messages"},
		{"customer next to admin is ignored", permissions.RoleCustomer, false, "/admin", "/dashboard"},
		{"external next is ignored", permissions.RoleAdmin, false, "//evil.example.com/", "/admin"},
		{"local next outside admin", permissions.RoleCustomer, false, "/dashboard/quotes", "/dashboard/quotes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockDB(t)
			app := newTestApp(t)
			mock.ExpectQuery(userByEmailQuery).WithArgs("user@steppe.kz").
				WillReturnRows(userRows(userFixture{id: 42, email: "user@steppe.kz", hash: hash, role: tt.role, verified: true, canManage: tt.canManage}))

			form := url.Values{"email": {" User@Steppe.kz "}, "password": {"Secret123!"}, "next": {tt.next}}
			rec := httptest.NewRecorder()
			app.SessionManager.LoadAndSave(http.HandlerFunc(app.LoginHandler)).
				ServeHTTP(rec, formRequest(http.MethodPost, "/api/login", form))

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var body struct {
				Redirect string `json:"redirect"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body.Redirect)
			assert.NotEmpty(t, rec.Result().Cookies(), "сессия должна быть выдана")
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLoginRejects(t *testing.T) {
	hash, err := auth.HashPassword("Secret123!")
	require.NoError(t, err)

	t.Run("wrong password", func(t *testing.T) {
		mock := newMockDB(t)
		app := newTestApp(t)
		mock.ExpectQuery(userByEmailQuery).
			WillReturnRows(userRows(userFixture{id: 1, email: "a@steppe.kz", hash: hash, role: permissions.RoleAdmin, verified: true}))

		rec := httptest.NewRecorder()
		app.SessionManager.LoadAndSave(http.HandlerFunc(app.LoginHandler)).
			ServeHTTP(rec, formRequest(http.MethodPost, "/api/login", url.Values{"email": {"a@steppe.kz"}, "password": {"nope"}}))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Неверный email или пароль")
	})

	t.Run("unknown email", func(t *testing.T) {
		mock := newMockDB(t)
		app := newTestApp(t)
		mock.ExpectQuery(userByEmailQuery).WillReturnError(sql.ErrNoRows)

		rec := httptest.NewRecorder()
		app.SessionManager.LoadAndSave(http.HandlerFunc(app.LoginHandler)).
			ServeHTTP(rec, formRequest(http.MethodPost, "/api/login", url.Values{"email": {"ghost@steppe.kz"}, "password": {"Secret123!"}}))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unverified email", func(t *testing.T) {
		mock := newMockDB(t)
		app := newTestApp(t)
		mock.ExpectQuery(userByEmailQuery).
			WillReturnRows(userRows(userFixture{id: 2, email: "b@steppe.kz", hash: hash, role: permissions.RoleCustomer}))

		rec := httptest.NewRecorder()
		app.SessionManager.LoadAndSave(http.HandlerFunc(app.LoginHandler)).
			ServeHTTP(rec, formRequest(http.MethodPost, "/api/login", url.Values{"email": {"b@steppe.kz"}, "password": {"Secret123!"}}))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), `"resend_verification":true`)
	})

	t.Run("validation", func(t *testing.T) {
		newMockDB(t)
		app := newTestApp(t)
		rec := httptest.NewRecorder()
		app.LoginHandler(rec, formRequest(http.MethodPost, "/api/login", url.Values{"email": {"not-an-email"}}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var body struct {
			Errors map[string][]string `json:"errors"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body.Errors, "email")
		assert.Contains(t, body.Errors, "password")
	})
}

func validRegistration() url.Values {
	return url.Values{
		"email":            {"new@steppe.kz"},
		"password":         {"Secret123!"},
		"confirm_password": {"Secret123!"},
		"first_name":       {"Ерлан"},
		"last_name":        {"Нурланов"},
		"agree_terms":      {"on"},
		"captcha_token":    {"token"},
	}
}

var settingCols = []string{"setting_key", "setting_value", "description", "updated_at"}

func expectRegistrationSetting(mock sqlmock.Sqlmock, value string) {
	q := mock.ExpectQuery(regexp.QuoteMeta("FROM app_settings WHERE setting_key = ?")).WithArgs("registration_enabled")
	if value == "" {
		q.WillReturnError(sql.ErrNoRows)
		return
	}
	q.WillReturnRows(sqlmock.NewRows(settingCols).AddRow("registration_enabled", value, "", time.Now()))
}

func TestRegisterHandler(t *testing.T) {
	t.Run("closed registration", func(t *testing.T) {
		mock := newMockDB(t)
		app := newTestApp(t)
		expectRegistrationSetting(mock, "false")

		rec := httptest.NewRecorder()
		app.RegisterHandler(rec, formRequest(http.MethodPost, "/api/register", validRegistration()))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Zero(t, app.verifier.calls)
	})

	t.Run("validation errors skip captcha", func(t *testing.T) {
		mock := newMockDB(t)
		app := newTestApp(t)
		expectRegistrationSetting(mock, "")

		form := validRegistration()
		form.Set("confirm_password", "Other123!")
		form.Set("password", "short")
		rec := httptest.NewRecorder()
		app.RegisterHandler(rec, formRequest(http.MethodPost, "/api/register", form))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"password"`)
		assert.Zero(t, app.verifier.calls)
	})

	t.Run("captcha rejected", func(t *testing.T) {
		mock := newMockDB(t)
		app := newTestApp(t)
		app.verifier.err = captcha.ErrRejected
		expectRegistrationSetting(mock, "true")

		rec := httptest.NewRecorder()
		app.RegisterHandler(rec, formRequest(http.MethodPost, "/api/register", validRegistration()))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "captcha_token")
		assert.Equal(t, "register", app.verifier.action)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("captcha unavailable fails closed", func(t *testing.T) {
		mock := newMockDB(t)
		app := newTestApp(t)
		app.verifier.err = captcha.ErrUnavailable
		expectRegistrationSetting(mock, "true")

		rec := httptest.NewRecorder()
		app.RegisterHandler(rec, formRequest(http.MethodPost, "/api/register", validRegistration()))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("duplicate email", func(t *testing.T) {
		mock := newMockDB(t)
		app := newTestApp(t)
		expectRegistrationSetting(mock, "")
		mock.ExpectQuery(regexp.QuoteMeta("FROM roles WHERE name = ?")).WithArgs("CUSTOMER").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at"}).
				AddRow(5, "CUSTOMER", "", time.Now(), time.Now()))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'new@steppe.kz' for key 'uq_users_email'"})

		rec := httptest.NewRecorder()
		app.RegisterHandler(rec, formRequest(http.MethodPost, "/api/register", validRegistration()))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"email"`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("honeypot", func(t *testing.T) {
		mock := newMockDB(t)
		app := newTestApp(t)
		expectRegistrationSetting(mock, "")

		form := validRegistration()
		form.Set("website", "http://spam")
		rec := httptest.NewRecorder()
		app.RegisterHandler(rec, formRequest(http.MethodPost, "/api/register", form))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, app.verifier.calls)
	})
}

func TestVerifyEmailHandler(t *testing.T) {
	t.Run("missing token json", func(t *testing.T) {
		newMockDB(t)
		app := newTestApp(t)
		req := httptest.NewRequest(http.MethodGet, "/verify-email", nil)
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()
		app.VerifyEmailHandler(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("browser gets flash and redirect", func(t *testing.T) {
		newMockDB(t)
		app := newTestApp(t)
		rec := httptest.NewRecorder()
		app.SessionManager.LoadAndSave(http.HandlerFunc(app.VerifyEmailHandler)).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/verify-email", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, permissions.LoginPath, rec.Header().Get("Location"))
	})
}

func TestRequestPasswordResetSameAnswer(t *testing.T) {
	mock := newMockDB(t)
	app := newTestApp(t)
	mock.ExpectQuery(userByEmailQuery).WillReturnError(sql.ErrNoRows)

	rec := httptest.NewRecorder()
	app.RequestPasswordResetHandler(rec, formRequest(http.MethodPost, "/api/password/forgot", url.Values{"email": {"ghost@steppe.kz"}}))

	assert.Equal(t, http.StatusOK, rec.Code)
	app.Notifier.Wait()
	assert.Empty(t, app.mailer.messages())
}
