// internal/db/articles_db.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"steppe-logistics.kz/internal/models"
)

const articleColumns = `id, slug, locale, title, summary, body, status, author_id, published_at, created_at, updated_at`

// ArticleFilter - параметры выборки новостей. Пустые поля не фильтруют.
type ArticleFilter struct {
	Locale string
	Status models.ArticleStatus
	Limit  int
	Offset int
}

func CreateArticle(ctx context.Context, a *models.Article) (int64, error) {
	if DB == nil {
		return 0, errNoDB
	}
	now := time.Now()
	var publishedAt *time.Time
	if a.Status == models.ArticlePublished {
		publishedAt = &now
	}
	res, err := DB.ExecContext(ctx,
		`INSERT INTO articles (slug, locale, title, summary, body, status, author_id, published_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Slug, a.Locale, a.Title, a.Summary, a.Body, a.Status, a.AuthorID, publishedAt, now, now)
	if err != nil {
		if _, dup := duplicateKey(err); dup {
			return 0, ErrDuplicateSlug
		}
		slog.Error("Ошибка создания статьи", "slug", a.Slug, "error", err)
		return 0, fmt.Errorf("не удалось создать статью: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("не удалось получить ID статьи: %w", err)
	}
	a.ID = id
	a.PublishedAt = publishedAt
	slog.Info("Статья создана", "article_id", id, "slug", a.Slug, "locale", a.Locale)
	return id, nil
}

func GetArticleByID(ctx context.Context, id int64) (*models.Article, error) {
	if DB == nil {
		return nil, errNoDB
	}
	return scanArticle(DB.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id))
}

// GetPublishedArticle возвращает опубликованную статью по slug и языку.
func GetPublishedArticle(ctx context.Context, slug, locale string) (*models.Article, error) {
	if DB == nil {
		return nil, errNoDB
	}
	return scanArticle(DB.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE slug = ? AND locale = ? AND status = 'published'`, slug, locale))
}

func ListArticles(ctx context.Context, f ArticleFilter) ([]models.Article, int, error) {
	if DB == nil {
		return nil, 0, errNoDB
	}
	where := " WHERE 1=1"
	var args []any
	if f.Locale != "" {
		where += " AND locale = ?"
		args = append(args, f.Locale)
	}
	if f.Status != "" {
		where += " AND status = ?"
		args = append(args, f.Status)
	}

	var total int
	if err := DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета статей: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	rows, err := DB.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles`+where+` ORDER BY COALESCE(published_at, created_at) DESC, id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка статей: %w", err)
	}
	defer rows.Close()

	var out []models.Article
	for rows.Next() {
		a, errScan := scanArticle(rows)
		if errScan != nil {
			slog.Error("Ошибка сканирования статьи", "error", errScan)
			continue
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации по статьям: %w", err)
	}
	return out, total, nil
}

func UpdateArticle(ctx context.Context, a *models.Article) error {
	if DB == nil {
		return errNoDB
	}
	res, err := DB.ExecContext(ctx,
		`UPDATE articles SET slug = ?, locale = ?, title = ?, summary = ?, body = ?, updated_at = ? WHERE id = ?`,
		a.Slug, a.Locale, a.Title, a.Summary, a.Body, time.Now(), a.ID)
	if err != nil {
		if _, dup := duplicateKey(err); dup {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("не удалось обновить статью %d: %w", a.ID, err)
	}
	return requireAffected(ctx, res, "articles", a.ID)
}

// SetArticlePublished публикует или снимает статью с публикации.
// Дата первой публикации сохраняется при повторной публикации.
func SetArticlePublished(ctx context.Context, id int64, published bool) error {
	if DB == nil {
		return errNoDB
	}
	now := time.Now()
	var res sql.Result
	var err error
	if published {
		res, err = DB.ExecContext(ctx,
			`UPDATE articles SET status = 'published', published_at = COALESCE(published_at, ?), updated_at = ? WHERE id = ?`, now, now, id)
	} else {
		res, err = DB.ExecContext(ctx, `UPDATE articles SET status = 'draft', updated_at = ? WHERE id = ?`, now, id)
	}
	if err != nil {
		return fmt.Errorf("не удалось изменить статус статьи %d: %w", id, err)
	}
	if err := requireAffected(ctx, res, "articles", id); err != nil {
		return err
	}
	slog.Info("Статус публикации статьи изменен", "article_id", id, "published", published)
	return nil
}

func DeleteArticle(ctx context.Context, id int64) error {
	if DB == nil {
		return errNoDB
	}
	res, err := DB.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("не удалось удалить статью %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	slog.Info("Статья удалена", "article_id", id)
	return nil
}

func scanArticle(row scanner) (*models.Article, error) {
	a := &models.Article{}
	var authorID sql.NullInt64
	var publishedAt sql.NullTime
	err := row.Scan(&a.ID, &a.Slug, &a.Locale, &a.Title, &a.Summary, &a.Body, &a.Status,
		&authorID, &publishedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка сканирования статьи: %w", err)
	}
	if authorID.Valid {
		a.AuthorID = &authorID.Int64
	}
	if publishedAt.Valid {
		a.PublishedAt = &publishedAt.Time
	}
	return a, nil
}

// requireAffected отличает "запись не найдена" от "значения не изменились":
// MySQL не считает строку затронутой, если новые значения совпадают со старыми.
func requireAffected(ctx context.Context, res sql.Result, table string, id int64) error {
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var exists int
	err := DB.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return sql.ErrNoRows
	}
	return err
}
