// internal/db/reports_db.go
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"steppe-logistics.kz/internal/models"
)

// OverviewStats - цифры для главной страницы админки.
type OverviewStats struct {
	TotalUsers         int                        `json:"total_users"`
	NewUsersLast7Days  int                        `json:"new_users_7d"`
	NewUsersLast30Days int                        `json:"new_users_30d"`
	QuotesByStatus     map[models.QuoteStatus]int `json:"quotes_by_status"`
	UnreadMessages     int                        `json:"unread_messages"`
	PublishedArticles  int                        `json:"published_articles"`
}

// GetOverviewStats собирает статистику. Ошибка отдельного счетчика логируется,
// остальные значения все равно возвращаются.
func GetOverviewStats(ctx context.Context) (*OverviewStats, error) {
	if DB == nil {
		return nil, errNoDB
	}
	stats := &OverviewStats{}

	if err := DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&stats.TotalUsers); err != nil {
		return nil, fmt.Errorf("ошибка получения количества пользователей: %w", err)
	}

	now := time.Now()
	counters := []struct {
		name  string
		query string
		args  []any
		dst   *int
	}{
		{"new_users_7d", "SELECT COUNT(*) FROM users WHERE created_at >= ?", []any{now.AddDate(0, 0, -7)}, &stats.NewUsersLast7Days},
		{"new_users_30d", "SELECT COUNT(*) FROM users WHERE created_at >= ?", []any{now.AddDate(0, 0, -30)}, &stats.NewUsersLast30Days},
		{"unread_messages", "SELECT COUNT(*) FROM contact_messages WHERE status = 'new'", nil, &stats.UnreadMessages},
		{"published_articles", "SELECT COUNT(*) FROM articles WHERE status = 'published'", nil, &stats.PublishedArticles},
	}
	for _, c := range counters {
		if err := DB.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			slog.Error("Ошибка получения показателя статистики", "metric", c.name, "error", err)
		}
	}

	byStatus, err := CountQuotesByStatus(ctx)
	if err != nil {
		slog.Error("Ошибка получения статистики заявок", "error", err)
	}
	stats.QuotesByStatus = byStatus
	return stats, nil
}
