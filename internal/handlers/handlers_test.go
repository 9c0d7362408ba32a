package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steppe-logistics.kz/internal/captcha"
	"steppe-logistics.kz/internal/db"
	"steppe-logistics.kz/internal/models"
	"steppe-logistics.kz/internal/permissions"
)

func validContact() url.Values {
	return url.Values{
		"name":          {"Данияр"},
		"email":         {"client@cargo.kz"},
		"subject":       {"Перевозка из Алматы"},
		"message":       {"Нужно перевезти две паллеты в Астану."},
		"captcha_token": {"token"},
	}
}

func TestContactHandler(t *testing.T) {
	t.Run("honeypot answers as usual and stores nothing", func(t *testing.T) {
		mock := newMockDB(t)
		app := newTestApp(t)
		form := validContact()
		form.Set("website", "http://spam")

		rec := httptest.NewRecorder()
		app.ContactHandler(rec, formRequest(http.MethodPost, "/api/contact", form))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Zero(t, app.verifier.calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("validation", func(t *testing.T) {
		newMockDB(t)
		app := newTestApp(t)
		form := validContact()
		form.Set("message", "коротко")
		form.Del("email")

		rec := httptest.NewRecorder()
		app.ContactHandler(rec, formRequest(http.MethodPost, "/api/contact", form))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var body struct {
			Errors map[string][]string `json:"errors"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body.Errors, "email")
		assert.Contains(t, body.Errors, "message")
	})

	t.Run("captcha rejected", func(t *testing.T) {
		mock := newMockDB(t)
		app := newTestApp(t)
		app.verifier.err = captcha.ErrMissingToken

		rec := httptest.NewRecorder()
		app.ContactHandler(rec, formRequest(http.MethodPost, "/api/contact", validContact()))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "captcha_token")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stored and ops notified", func(t *testing.T) {
		mock := newMockDB(t)
		app := newTestApp(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO contact_messages")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		rec := httptest.NewRecorder()
		app.ContactHandler(rec, formRequest(http.MethodPost, "/api/contact", validContact()))

		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		assert.Equal(t, "contact", app.verifier.action)
		assert.NoError(t, mock.ExpectationsWereMet())

		app.Notifier.Wait()
		sent := app.mailer.messages()
		require.Len(t, sent, 1)
		assert.Equal(t, []string{"ops@steppe-logistics.kz"}, sent[0].To)
	})
}

func customer() *models.User {
	return &models.User{ID: 11, Email: "client@cargo.kz", FirstName: "Данияр", Role: permissions.RoleCustomer, EmailNotifications: true}
}

func TestCreateQuoteHandler(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		newMockDB(t)
		app := newTestApp(t)
		form := url.Values{"origin": {"Алматы"}, "cargo_type": {"spaceship"}, "weight_kg": {"0"}}

		rec := httptest.NewRecorder()
		app.CreateQuoteHandler(rec, withUser(formRequest(http.MethodPost, "/api/quotes", form), customer()))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "destination")
		assert.Contains(t, body, "cargo_type")
		assert.Contains(t, body, "weight_kg")
	})

	t.Run("created with reference", func(t *testing.T) {
		mock := newMockDB(t)
		app := newTestApp(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quotes")).
			WillReturnResult(sqlmock.NewResult(77, 1))

		form := url.Values{
			"origin":      {"Алматы"},
			"destination": {"Ташкент"},
			"cargo_type":  {"pallets"},
			"weight_kg":   {"1250,5"},
			"volume_m3":   {"6"},
			"pickup_date": {"2026-11-02"},
		}
		rec := httptest.NewRecorder()
		app.CreateQuoteHandler(rec, withUser(formRequest(http.MethodPost, "/api/quotes", form), customer()))

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var body struct {
			Quote models.Quote `json:"quote"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Regexp(t, `^Q-[0-9A-F]{8}$`, body.Quote.Reference)
		assert.Equal(t, models.QuoteNew, body.Quote.Status)
		assert.InDelta(t, 1250.5, body.Quote.WeightKg, 0.001)
		assert.NoError(t, mock.ExpectationsWereMet())

		app.Notifier.Wait()
		assert.Len(t, app.mailer.messages(), 1)
	})
}

func TestMyQuoteHandlerOwnQuotesOnly(t *testing.T) {
	mock := newMockDB(t)
	app := newTestApp(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE q.reference = ? AND q.user_id = ?")).
		WithArgs("Q-1A2B3C4D", int64(11)).
		WillReturnError(sql.ErrNoRows)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/quotes/q-1a2b3c4d", nil), customer())
	req.SetPathValue("ref", "q-1a2b3c4d")
	rec := httptest.NewRecorder()
	app.MyQuoteHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMyQuotesHandlerEmptyList(t *testing.T) {
	mock := newMockDB(t)
	app := newTestApp(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE q.user_id = ?")).WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows(quoteCols))

	rec := httptest.NewRecorder()
	app.MyQuotesHandler(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/quotes", nil), customer()))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

type accessBody struct {
	Module         permissions.Module   `json:"module"`
	KnownModule    bool                 `json:"known_module"`
	CanAccessAdmin bool                 `json:"can_access_admin"`
	CanAccessPath  bool                 `json:"can_access_path"`
	Decision       permissions.Decision `json:"decision"`
}

func TestAccessHandler(t *testing.T) {
	principals := map[int64]permissions.Principal{
		1: {UserID: 1, Role: permissions.RoleStaff},
		2: {UserID: 2, Role: permissions.RoleStaff, CanManageArticles: true},
		3: {UserID: 3, Role: permissions.RolePartner},
	}

	tests := []struct {
		name       string
		userID     int64
		path       string
		wantState  permissions.State
		wantTarget string
		wantPath   bool
	}{
		{"staff to quotes", 1, "/admin/quotes", permissions.StateAuthorized, "", true},
		{"staff to users", 1, "/admin/users", permissions.StateRedirecting, "/admin/messages", false},
		{"staff to articles without flag", 1, "/admin/articles", permissions.StateRedirecting, "/admin/messages", false},
		{"staff to articles with flag", 2, "/admin/articles", permissions.StateAuthorized, "", true},
		{"partner to admin", 3, "/admin", permissions.StateRedirecting, "/dashboard", false},
		{"anonymous", 0, "/admin/quotes", permissions.StateUnauthenticated, "/login?next=%2Fadmin%2Fquotes", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			app.AccessLoader = func(_ context.Context, id int64) (*permissions.Principal, error) {
				p, ok := principals[id]
				if !ok {
					return nil, errors.New("unexpected user")
				}
				return &p, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/api/admin/access?path="+url.QueryEscape(tt.path), nil)
			if tt.userID != 0 {
				req.AddCookie(loginCookie(t, app.SessionManager, tt.userID))
			}
			rec := httptest.NewRecorder()
			app.SessionManager.LoadAndSave(http.HandlerFunc(app.AccessHandler)).ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			var body accessBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantState, body.Decision.State)
			assert.Equal(t, tt.wantTarget, body.Decision.Redirect)
			assert.Equal(t, tt.wantPath, body.CanAccessPath)
			assert.True(t, body.KnownModule)
		})
	}
}

func TestAccessHandlerUnknownPathDeniedForAdmin(t *testing.T) {
	app := newTestApp(t)
	app.AccessLoader = func(_ context.Context, id int64) (*permissions.Principal, error) {
		return &permissions.Principal{UserID: id, Role: permissions.RoleAdmin}, nil
	}
	req := httptest.NewRequest(http.MethodGet, "/api/admin/access?path=/admin/reports", nil)
	req.AddCookie(loginCookie(t, app.SessionManager, 5))
	rec := httptest.NewRecorder()
	app.SessionManager.LoadAndSave(http.HandlerFunc(app.AccessHandler)).ServeHTTP(rec, req)

	var body accessBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.KnownModule)
	assert.True(t, body.CanAccessAdmin)
	assert.False(t, body.CanAccessPath)
	assert.Equal(t, permissions.StateRedirecting, body.Decision.State)
	assert.Equal(t, permissions.ReasonUnknownPath, body.Decision.Reason)
}

func TestPublicSolutions(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/solutions/road", nil)
	req.SetPathValue("slug", "road")
	app.SolutionHandler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/solutions/teleport", nil)
	req.SetPathValue("slug", "teleport")
	app.SolutionHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		query               string
		page, limit, offset int
	}{
		{"", 1, 20, 0},
		{"page=3", 3, 20, 40},
		{"page=-1&per_page=5", 1, 5, 0},
		{"page=2&per_page=1000", 2, 100, 100},
		{"page=9223372036854775807&per_page=100", 100000, 100, 9999900},
		{"page=99999999999999999999", 1, 20, 0},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/x?"+tt.query, nil)
		page, limit, offset := ParsePage(req, 20)
		assert.Equal(t, []int{tt.page, tt.limit, tt.offset}, []int{page, limit, offset}, tt.query)
	}
}

func TestHealthzReportsDatabase(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	prev := db.DB
	db.DB = conn
	t.Cleanup(func() {
		db.DB = prev
		conn.Close()
	})

	mock.ExpectPing().WillReturnError(errors.New("down"))
	rec := httptest.NewRecorder()
	HealthzHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db_unavailable")

	mock.ExpectPing()
	rec = httptest.NewRecorder()
	HealthzHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
