// internal/db/pages_db.go
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

const pageColumns = `id, slug, locale, title, body, is_published, updated_by, created_at, updated_at`

func CreatePage(ctx context.Context, p *models.Page) (int64, error) {
	if DB == nil {
		return 0, errNoDB
	}
	now := time.Now()
	res, err := DB.ExecContext(ctx,
		`INSERT INTO pages (slug, locale, title, body, is_published, updated_by, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Slug, p.Locale, p.Title, p.Body, p.IsPublished, p.UpdatedBy, now, now)
	if err != nil {
		if _, dup := duplicateKey(err); dup {
			return 0, ErrDuplicateSlug
		}
		slog.Error("Ошибка создания страницы", "slug", p.Slug, "error", err)
		return 0, fmt.Errorf("не удалось создать страницу: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("не удалось получить ID страницы: %w", err)
	}
	p.ID = id
	return id, nil
}

func GetPageByID(ctx context.Context, id int64) (*models.Page, error) {
	if DB == nil {
		return nil, errNoDB
	}
	return scanPage(DB.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = ?`, id))
}

// GetPublishedPage ищет страницу на нужном языке, а если ее нет - на языке по умолчанию.
func GetPublishedPage(ctx context.Context, slug, locale, fallbackLocale string) (*models.Page, error) {
	if DB == nil {
		return nil, errNoDB
	}
	p, err := scanPage(DB.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE slug = ? AND locale = ? AND is_published = TRUE`, slug, locale))
	if errors.Is(err, sql.ErrNoRows) && fallbackLocale != "" && fallbackLocale != locale {
		return scanPage(DB.QueryRowContext(ctx,
			`SELECT `+pageColumns+` FROM pages WHERE slug = ? AND locale = ? AND is_published = TRUE`, slug, fallbackLocale))
	}
	return p, err
}

func ListPages(ctx context.Context) ([]models.Page, error) {
	if DB == nil {
		return nil, errNoDB
	}
	rows, err := DB.QueryContext(ctx, `SELECT `+pageColumns+` FROM pages ORDER BY slug, locale`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка страниц: %w", err)
	}
	defer rows.Close()

	var out []models.Page
	for rows.Next() {
		p, errScan := scanPage(rows)
		if errScan != nil {
			slog.Error("Ошибка сканирования страницы", "error", errScan)
			continue
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func UpdatePage(ctx context.Context, p *models.Page) error {
	if DB == nil {
		return errNoDB
	}
	res, err := DB.ExecContext(ctx,
		`UPDATE pages SET slug = ?, locale = ?, title = ?, body = ?, is_published = ?, updated_by = ?, updated_at = ? WHERE id = ?`,
		p.Slug, p.Locale, p.Title, p.Body, p.IsPublished, p.UpdatedBy, time.Now(), p.ID)
	if err != nil {
		if _, dup := duplicateKey(err); dup {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("не удалось обновить страницу %d: %w", p.ID, err)
	}
	return requireAffected(ctx, res, "pages", p.ID)
}

func DeletePage(ctx context.Context, id int64) error {
	if DB == nil {
		return errNoDB
	}
	res, err := DB.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("не удалось удалить страницу %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	slog.Info("Страница удалена", "page_id", id)
	return nil
}

func scanPage(row scanner) (*models.Page, error) {
	p := &models.Page{}
	var updatedBy sql.NullInt64
	err := row.Scan(&p.ID, &p.Slug, &p.Locale, &p.Title, &p.Body, &p.IsPublished, &updatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка сканирования страницы: %w", err)
	}
	if updatedBy.Valid {
		p.UpdatedBy = &updatedBy.Int64
	}
	return p, nil
}
