// internal/db/quotes_db.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"steppe-logistics.kz/internal/models"
)

const quoteSelect = `SELECT q.id, q.reference, q.user_id, q.origin, q.destination, q.cargo_type, q.weight_kg, q.volume_m3,
       q.pickup_date, q.notes, q.status, q.quoted_amount, q.currency, q.admin_comment, q.created_at, q.updated_at, u.email
FROM quotes q JOIN users u ON q.user_id = u.id`

// NewQuoteReference - номер заявки вида Q-1A2B3C4D.
func NewQuoteReference() string {
	id := uuid.New()
	return "Q-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

// CreateQuote сохраняет заявку. При коллизии номера делается несколько попыток.
func CreateQuote(ctx context.Context, q *models.Quote) error {
	if DB == nil {
		return errNoDB
	}
	now := time.Now()
	q.Status = models.QuoteNew
	for attempt := 0; attempt < 3; attempt++ {
		q.Reference = NewQuoteReference()
		res, err := DB.ExecContext(ctx,
			`INSERT INTO quotes (reference, user_id, origin, destination, cargo_type, weight_kg, volume_m3, pickup_date, notes, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			q.Reference, q.UserID, q.Origin, q.Destination, q.CargoType, q.WeightKg, q.VolumeM3, q.PickupDate, q.Notes, q.Status, now, now)
		if err != nil {
			if key, dup := duplicateKey(err); dup && strings.Contains(key, "reference") {
				slog.Warn("Коллизия номера заявки, повтор", "reference", q.Reference)
				continue
			}
			slog.Error("Ошибка создания заявки", "userID", q.UserID, "error", err)
			return fmt.Errorf("не удалось создать заявку: %w", err)
		}
		q.ID, _ = res.LastInsertId()
		q.CreatedAt, q.UpdatedAt = now, now
		slog.Info("Заявка создана", "quote_id", q.ID, "reference", q.Reference, "userID", q.UserID)
		return nil
	}
	return errors.New("не удалось подобрать уникальный номер заявки")
}

func ListQuotesByUser(ctx context.Context, userID int64) ([]models.Quote, error) {
	if DB == nil {
		return nil, errNoDB
	}
	rows, err := DB.QueryContext(ctx, quoteSelect+` WHERE q.user_id = ? ORDER BY q.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения заявок пользователя: %w", err)
	}
	return collectQuotes(rows)
}

// GetUserQuote возвращает заявку только если она принадлежит пользователю.
func GetUserQuote(ctx context.Context, userID int64, reference string) (*models.Quote, error) {
	if DB == nil {
		return nil, errNoDB
	}
	return scanQuote(DB.QueryRowContext(ctx, quoteSelect+` WHERE q.reference = ? AND q.user_id = ?`, strings.ToUpper(reference), userID))
}

func GetQuoteByID(ctx context.Context, id int64) (*models.Quote, error) {
	if DB == nil {
		return nil, errNoDB
	}
	return scanQuote(DB.QueryRowContext(ctx, quoteSelect+` WHERE q.id = ?`, id))
}

func ListQuotes(ctx context.Context, status models.QuoteStatus, limit, offset int) ([]models.Quote, int, error) {
	if DB == nil {
		return nil, 0, errNoDB
	}
	where := ""
	var args []any
	if status != "" {
		where = ` WHERE q.status = ?`
		args = append(args, status)
	}
	var total int
	if err := DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM quotes q`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета заявок: %w", err)
	}
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, offset)
	rows, err := DB.QueryContext(ctx, quoteSelect+where+` ORDER BY q.created_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка заявок: %w", err)
	}
	quotes, err := collectQuotes(rows)
	return quotes, total, err
}

// UpdateQuoteStatus меняет статус и, если передано, предложенную цену.
func UpdateQuoteStatus(ctx context.Context, id int64, status models.QuoteStatus, amount *float64, currency, comment string) error {
	if DB == nil {
		return errNoDB
	}
	if !status.Valid() {
		return fmt.Errorf("неизвестный статус заявки '%s'", status)
	}
	var cur sql.NullString
	if currency != "" {
		cur = sql.NullString{String: currency, Valid: true}
	}
	res, err := DB.ExecContext(ctx,
		`UPDATE quotes SET status = ?, quoted_amount = COALESCE(?, quoted_amount), currency = COALESCE(?, currency),
		 admin_comment = ?, updated_at = ? WHERE id = ?`,
		status, amount, cur, comment, time.Now(), id)
	if err != nil {
		return fmt.Errorf("не удалось обновить заявку %d: %w", id, err)
	}
	if err := requireAffected(ctx, res, "quotes", id); err != nil {
		return err
	}
	slog.Info("Статус заявки изменен", "quote_id", id, "status", status)
	return nil
}

func CountQuotesByStatus(ctx context.Context) (map[models.QuoteStatus]int, error) {
	if DB == nil {
		return nil, errNoDB
	}
	rows, err := DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM quotes GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчета заявок по статусам: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.QuoteStatus]int, len(models.QuoteStatuses()))
	for _, s := range models.QuoteStatuses() {
		counts[s] = 0
	}
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("ошибка сканирования статистики заявок: %w", err)
		}
		counts[models.QuoteStatus(s)] = n
	}
	return counts, rows.Err()
}

func collectQuotes(rows *sql.Rows) ([]models.Quote, error) {
	defer rows.Close()
	var out []models.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			slog.Error("Ошибка сканирования заявки", "error", err)
			continue
		}
		out = append(out, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по заявкам: %w", err)
	}
	return out, nil
}

func scanQuote(row scanner) (*models.Quote, error) {
	q := &models.Quote{}
	var pickup sql.NullTime
	var notes, currency, comment sql.NullString
	var amount sql.NullFloat64
	var status string
	err := row.Scan(&q.ID, &q.Reference, &q.UserID, &q.Origin, &q.Destination, &q.CargoType, &q.WeightKg, &q.VolumeM3,
		&pickup, &notes, &status, &amount, &currency, &comment, &q.CreatedAt, &q.UpdatedAt, &q.CustomerEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка сканирования заявки: %w", err)
	}
	q.Status = models.QuoteStatus(status)
	if pickup.Valid {
		q.PickupDate = &pickup.Time
	}
	if amount.Valid {
		q.QuotedAmount = &amount.Float64
	}
	q.Notes = notes.String
	q.Currency = currency.String
	q.AdminComment = comment.String
	return q, nil
}
