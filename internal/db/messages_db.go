// internal/db/messages_db.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"steppe-logistics.kz/internal/models"
)

const messageColumns = `id, name, email, phone, company, subject, body, status, ip, created_at, updated_at`

func CreateContactMessage(ctx context.Context, m *models.ContactMessage) error {
	if DB == nil {
		return errNoDB
	}
	m.ID = uuid.NewString()
	m.Status = models.MessageNew
	now := time.Now()
	_, err := DB.ExecContext(ctx,
		`INSERT INTO contact_messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Email, m.Phone, m.Company, m.Subject, m.Body, m.Status, m.IP, now, now)
	if err != nil {
		slog.Error("Ошибка сохранения обращения", "email", m.Email, "error", err)
		return fmt.Errorf("не удалось сохранить обращение: %w", err)
	}
	m.CreatedAt, m.UpdatedAt = now, now
	slog.Info("Обращение сохранено", "message_id", m.ID)
	return nil
}

func GetContactMessage(ctx context.Context, id string) (*models.ContactMessage, error) {
	if DB == nil {
		return nil, errNoDB
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, sql.ErrNoRows
	}
	return scanMessage(DB.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM contact_messages WHERE id = ?`, id))
}

// ListContactMessages без статуса возвращает все, кроме архивных.
func ListContactMessages(ctx context.Context, status models.MessageStatus, limit, offset int) ([]models.ContactMessage, int, error) {
	if DB == nil {
		return nil, 0, errNoDB
	}
	where := ` WHERE status <> 'archived'`
	var args []any
	if status != "" {
		where = ` WHERE status = ?`
		args = append(args, status)
	}
	var total int
	if err := DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM contact_messages`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета обращений: %w", err)
	}
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, offset)
	rows, err := DB.QueryContext(ctx, `SELECT `+messageColumns+` FROM contact_messages`+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения обращений: %w", err)
	}
	defer rows.Close()

	var out []models.ContactMessage
	for rows.Next() {
		m, errScan := scanMessage(rows)
		if errScan != nil {
			slog.Error("Ошибка сканирования обращения", "error", errScan)
			continue
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации по обращениям: %w", err)
	}
	return out, total, nil
}

func SetContactMessageStatus(ctx context.Context, id string, status models.MessageStatus) error {
	if DB == nil {
		return errNoDB
	}
	switch status {
	case models.MessageNew, models.MessageRead, models.MessageArchived:
	default:
		return fmt.Errorf("неизвестный статус обращения '%s'", status)
	}
	res, err := DB.ExecContext(ctx, `UPDATE contact_messages SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("не удалось обновить обращение %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if errGet := DB.QueryRowContext(ctx, `SELECT 1 FROM contact_messages WHERE id = ?`, id).Scan(&exists); errors.Is(errGet, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
	}
	return nil
}

func scanMessage(row scanner) (*models.ContactMessage, error) {
	m := &models.ContactMessage{}
	var status string
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Company, &m.Subject, &m.Body, &status, &m.IP, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка сканирования обращения: %w", err)
	}
	m.Status = models.MessageStatus(status)
	return m, nil
}
