// internal/db/settings_db.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"steppe-logistics.kz/internal/config"
)

const SettingMaintenanceMode = "maintenance_mode"

type AppSetting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EditableSettings - ключи, которые можно менять из админки.
var EditableSettings = []string{
	"site_name",
	"site_description",
	"contact_email",
	"contact_phone",
	"office_address",
	"registration_enabled",
	SettingMaintenanceMode,
}

func IsEditableSetting(key string) bool {
	for _, k := range EditableSettings {
		if k == key {
			return true
		}
	}
	return false
}

// GetSetting возвращает nil, nil, если настройки нет.
func GetSetting(ctx context.Context, key string) (*AppSetting, error) {
	if DB == nil {
		return nil, errNoDB
	}
	row := DB.QueryRowContext(ctx, "SELECT setting_key, setting_value, description, updated_at FROM app_settings WHERE setting_key = ?", key)
	setting := &AppSetting{}
	var value, description sql.NullString
	err := row.Scan(&setting.Key, &value, &description, &setting.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Error("Ошибка получения настройки по ключу", "key", key, "error", err)
		return nil, fmt.Errorf("ошибка получения настройки '%s': %w", key, err)
	}
	setting.Value = value.String
	setting.Description = description.String
	return setting, nil
}

// GetBoolSetting читает булеву настройку; отсутствие или мусор дают false.
func GetBoolSetting(ctx context.Context, key string) (bool, error) {
	s, err := GetSetting(ctx, key)
	if err != nil || s == nil {
		return false, err
	}
	v, errParse := strconv.ParseBool(s.Value)
	if errParse != nil {
		slog.Warn("Некорректное булево значение настройки", "key", key, "value", s.Value)
		return false, nil
	}
	return v, nil
}

func IsMaintenanceMode(ctx context.Context) (bool, error) {
	return GetBoolSetting(ctx, SettingMaintenanceMode)
}

func GetAllAppSettings(ctx context.Context) ([]AppSetting, error) {
	if DB == nil {
		return nil, errNoDB
	}
	rows, err := DB.QueryContext(ctx, "SELECT setting_key, setting_value, description, updated_at FROM app_settings ORDER BY setting_key")
	if err != nil {
		slog.Error("Ошибка получения всех настроек приложения", "error", err)
		return nil, fmt.Errorf("ошибка получения всех настроек: %w", err)
	}
	defer rows.Close()

	var settings []AppSetting
	for rows.Next() {
		var s AppSetting
		var value, description sql.NullString
		if err := rows.Scan(&s.Key, &value, &description, &s.UpdatedAt); err != nil {
			slog.Error("Ошибка сканирования строки настройки", "error", err)
			continue
		}
		s.Value = value.String
		s.Description = description.String
		settings = append(settings, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации настроек: %w", err)
	}
	return settings, nil
}

// UpdateSetting обновляет или создает настройку. Пустое описание не затирает существующее.
func UpdateSetting(ctx context.Context, key, value string, description ...string) error {
	if DB == nil {
		return errNoDB
	}
	desc := ""
	if len(description) > 0 {
		desc = description[0]
	}

	query := `
		INSERT INTO app_settings (setting_key, setting_value, description, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		setting_value = VALUES(setting_value),
		description = IF(VALUES(description) = '' AND description IS NOT NULL, description, VALUES(description)),
		updated_at = VALUES(updated_at)`
	if _, err := DB.ExecContext(ctx, query, key, value, desc, time.Now()); err != nil {
		slog.Error("Ошибка обновления/вставки настройки", "key", key, "error", err)
		return fmt.Errorf("не удалось обновить/вставить настройку '%s': %w", key, err)
	}
	slog.Info("Настройка приложения обновлена", "key", key, "value", value)
	return nil
}

// SeedInitialSettings гарантирует наличие базовых настроек. Вызывается после миграций.
func SeedInitialSettings(cfg *config.Config) {
	ctx := context.Background()
	defaults := []struct {
		Key         string
		Value       string
		Description string
	}{
		{"site_name", cfg.SiteName, "Название сайта в заголовках и письмах."},
		{"site_description", cfg.SiteDescription, "Мета-описание сайта по умолчанию."},
		{"contact_email", cfg.Email.NotifyEmail, "Публичный email для связи."},
		{"contact_phone", "", "Публичный телефон для связи."},
		{"office_address", "", "Адрес офиса."},
		{"registration_enabled", "true", "Разрешена ли регистрация новых клиентов."},
		{SettingMaintenanceMode, "false", "'true' включает режим обслуживания (сайт доступен только сотрудникам)."},
	}

	for _, s := range defaults {
		existing, err := GetSetting(ctx, s.Key)
		if err != nil {
			slog.Error("Ошибка проверки существующей настройки при инициализации", "key", s.Key, "error", err)
			continue
		}
		if existing != nil {
			continue
		}
		if err := UpdateSetting(ctx, s.Key, s.Value, s.Description); err != nil {
			slog.Error("Не удалось инициализировать настройку по умолчанию", "key", s.Key, "error", err)
		}
	}
}
