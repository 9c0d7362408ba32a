package db

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steppe-logistics.kz/internal/models"
	"steppe-logistics.kz/internal/permissions"
)

func newMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	prev := DB
	DB = conn
	t.Cleanup(func() {
		DB = prev
		conn.Close()
	})
	return mock
}

var roleCols = []string{"id", "name", "description", "created_at", "updated_at"}

func expectRole(mock sqlmock.Sqlmock, id int64, name string) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM roles WHERE name = ?")).
		WithArgs(name).
		WillReturnRows(sqlmock.NewRows(roleCols).AddRow(id, name, "", time.Now(), time.Now()))
}

func TestGetUserAccess(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta("SELECT r.name, u.can_manage_articles, u.preferred_locale FROM users u")

	t.Run("staff with override", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(query).WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"name", "can_manage_articles", "preferred_locale"}).AddRow("STAFF", true, "ru"))

		p, err := GetUserAccess(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, permissions.Principal{UserID: 7, Role: permissions.RoleStaff, CanManageArticles: true, PreferredLocale: "ru"}, *p)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unrecognised role is unknown, not customer", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(query).WithArgs(int64(8)).
			WillReturnRows(sqlmock.NewRows([]string{"name", "can_manage_articles", "preferred_locale"}).AddRow("SUPERUSER", false, "ru"))

		p, err := GetUserAccess(ctx, 8)
		require.NoError(t, err)
		assert.Equal(t, permissions.RoleUnknown, p.Role)
		assert.False(t, permissions.CanAccessAdmin(p.Role))
	})

	t.Run("missing role row", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(query).WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"name", "can_manage_articles", "preferred_locale"}).AddRow(nil, false, "ru"))

		p, err := GetUserAccess(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, permissions.RoleUnknown, p.Role)
	})

	t.Run("no such user", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(query).WithArgs(int64(10)).WillReturnError(sql.ErrNoRows)

		_, err := GetUserAccess(ctx, 10)
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	mock := newMockDB(t)
	expectRole(mock, 5, "CUSTOMER")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@b.kz' for key 'uq_users_email'"})

	_, err := CreateUser(context.Background(), &models.User{Email: "A@b.kz", PasswordHash: "x"}, "CUSTOMER")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserAssignsRole(t *testing.T) {
	mock := newMockDB(t)
	expectRole(mock, 5, "CUSTOMER")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("new@steppe.kz", sqlmock.AnyArg(), "hash", "Айгуль", "Серикова", "", int64(5), "ru", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(42, 1))

	id, err := CreateUser(context.Background(), &models.User{
		Email: " New@Steppe.kz ", PasswordHash: "hash", FirstName: "Айгуль", LastName: "Серикова",
	}, "CUSTOMER")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetCanManageArticles(t *testing.T) {
	ctx := context.Background()
	access := regexp.QuoteMeta("SELECT r.name, u.can_manage_articles, u.preferred_locale FROM users u")

	t.Run("rejects non staff", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(access).WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"name", "can_manage_articles", "preferred_locale"}).AddRow("FINANCE", false, "ru"))

		err := SetCanManageArticles(ctx, 3, true)
		assert.ErrorIs(t, err, ErrNotStaff)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("updates staff", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(access).WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"name", "can_manage_articles", "preferred_locale"}).AddRow("STAFF", false, "ru"))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET can_manage_articles = ?")).
			WithArgs(true, sqlmock.AnyArg(), int64(4)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, SetCanManageArticles(ctx, 4, true))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreateArticleDuplicateSlug(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO articles")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'rail-2025-ru' for key 'uq_articles_slug_locale'"})

	_, err := CreateArticle(context.Background(), &models.Article{Slug: "rail-2025", Locale: "ru", Status: models.ArticleDraft})
	assert.ErrorIs(t, err, ErrDuplicateSlug)
}

func TestCreateArticlePublishedSetsDate(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO articles")).WillReturnResult(sqlmock.NewResult(11, 1))

	a := &models.Article{Slug: "new-terminal", Locale: "ru", Title: "Новый терминал", Body: "...", Status: models.ArticlePublished}
	id, err := CreateArticle(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.NotNil(t, a.PublishedAt)
}

func TestUpdateArticleNotFound(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE articles SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM articles WHERE id = ?")).WithArgs(int64(99)).WillReturnError(sql.ErrNoRows)

	err := UpdateArticle(context.Background(), &models.Article{ID: 99, Slug: "x", Locale: "ru"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewQuoteReference(t *testing.T) {
	re := regexp.MustCompile(`^Q-[0-9A-F]{8}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		ref := NewQuoteReference()
		assert.Regexp(t, re, ref)
		seen[ref] = true
	}
	assert.Greater(t, len(seen), 45)
}

var quoteCols = []string{"id", "reference", "user_id", "origin", "destination", "cargo_type", "weight_kg", "volume_m3",
	"pickup_date", "notes", "status", "quoted_amount", "currency", "admin_comment", "created_at", "updated_at", "email"}

func TestQuoteStatusRoundTrip(t *testing.T) {
	for _, status := range models.QuoteStatuses() {
		t.Run(string(status), func(t *testing.T) {
			mock := newMockDB(t)
			mock.ExpectQuery(regexp.QuoteMeta("WHERE q.reference = ? AND q.user_id = ?")).
				WithArgs("Q-ABCDEF12", int64(1)).
				WillReturnRows(sqlmock.NewRows(quoteCols).AddRow(
					1, "Q-ABCDEF12", 1, "Алматы", "Астана", "pallets", 1200.0, 8.5,
					nil, nil, string(status), 350000.0, "KZT", nil, time.Now(), time.Now(), "c@steppe.kz"))

			q, err := GetUserQuote(context.Background(), 1, "q-abcdef12")
			require.NoError(t, err)
			assert.Equal(t, status, q.Status)
			require.NotNil(t, q.QuotedAmount)
			assert.Equal(t, 350000.0, *q.QuotedAmount)
		})
	}
}

func TestUpdateQuoteStatusRejectsUnknown(t *testing.T) {
	newMockDB(t)
	err := UpdateQuoteStatus(context.Background(), 1, models.QuoteStatus("shipped"), nil, "", "")
	require.Error(t, err)
}

func TestCreateQuoteRetriesOnReferenceCollision(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quotes")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uq_quotes_reference'"})
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quotes")).WillReturnResult(sqlmock.NewResult(5, 1))

	q := &models.Quote{UserID: 1, Origin: "Алматы", Destination: "Урумчи", CargoType: "container", WeightKg: 20000}
	require.NoError(t, CreateQuote(context.Background(), q))
	assert.Equal(t, int64(5), q.ID)
	assert.Equal(t, models.QuoteNew, q.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListContactMessagesDefaultHidesArchived(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM contact_messages WHERE status <> 'archived'")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM contact_messages WHERE status <> 'archived' ORDER BY created_at DESC")).
		WithArgs(int64(20), int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "phone", "company", "subject", "body", "status", "ip", "created_at", "updated_at"}).
			AddRow("0b8f3c3e-5d0e-4a6b-9f44-1d2d1c3b9a11", "Ерлан", "e@x.kz", "", "", "Тариф", "Нужен расчет", "new", "10.0.0.1", time.Now(), time.Now()))

	msgs, total, err := ListContactMessages(context.Background(), "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MessageNew, msgs[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetContactMessageRejectsMalformedID(t *testing.T) {
	newMockDB(t)
	_, err := GetContactMessage(context.Background(), "1 OR 1=1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCleanupExpiredTokens(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_reset_token = NULL")).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET email_verification_token = NULL")).WillReturnResult(sqlmock.NewResult(0, 3))

	reset, verify := CleanupExpiredTokens(context.Background())
	assert.Equal(t, int64(2), reset)
	assert.Equal(t, int64(3), verify)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsMaintenanceMode(t *testing.T) {
	cols := []string{"setting_key", "setting_value", "description", "updated_at"}
	query := regexp.QuoteMeta("FROM app_settings WHERE setting_key = ?")

	t.Run("enabled", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(query).WithArgs(SettingMaintenanceMode).
			WillReturnRows(sqlmock.NewRows(cols).AddRow(SettingMaintenanceMode, "true", "", time.Now()))
		on, err := IsMaintenanceMode(context.Background())
		require.NoError(t, err)
		assert.True(t, on)
	})

	t.Run("missing setting", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(query).WithArgs(SettingMaintenanceMode).WillReturnError(sql.ErrNoRows)
		on, err := IsMaintenanceMode(context.Background())
		require.NoError(t, err)
		assert.False(t, on)
	})

	t.Run("garbage value", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(query).WithArgs(SettingMaintenanceMode).
			WillReturnRows(sqlmock.NewRows(cols).AddRow(SettingMaintenanceMode, "maybe", nil, time.Now()))
		on, err := IsMaintenanceMode(context.Background())
		require.NoError(t, err)
		assert.False(t, on)
	})
}

func TestGetOverviewStats(t *testing.T) {
	mock := newMockDB(t)
	count := func(n int) *sqlmock.Rows { return sqlmock.NewRows([]string{"count"}).AddRow(n) }
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).WillReturnRows(count(120))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE created_at >= ?")).WillReturnRows(count(4))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE created_at >= ?")).WillReturnRows(count(17))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM contact_messages WHERE status = 'new'")).WillReturnRows(count(3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM articles WHERE status = 'published'")).WillReturnRows(count(9))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) FROM quotes GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("new", 5).AddRow("quoted", 2))

	stats, err := GetOverviewStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120, stats.TotalUsers)
	assert.Equal(t, 4, stats.NewUsersLast7Days)
	assert.Equal(t, 17, stats.NewUsersLast30Days)
	assert.Equal(t, 3, stats.UnreadMessages)
	assert.Equal(t, 9, stats.PublishedArticles)
	assert.Equal(t, 5, stats.QuotesByStatus[models.QuoteNew])
	assert.Equal(t, 0, stats.QuotesByStatus[models.QuoteClosed])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHashToken(t *testing.T) {
	h := HashToken("abc")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken("abc"))
	assert.NotEqual(t, h, HashToken("abd"))
}

func TestNoDatabase(t *testing.T) {
	prev := DB
	DB = nil
	t.Cleanup(func() { DB = prev })

	_, err := GetUserAccess(context.Background(), 1)
	assert.Error(t, err)
	_, _, err = ListQuotes(context.Background(), "", 10, 0)
	assert.Error(t, err)
}
