// internal/db/roles_db.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"steppe-logistics.kz/internal/models"
	"steppe-logistics.kz/internal/permissions"
)

// CreateRoleIfNotExists создает роль, если ее еще нет. Имя нормализуется к верхнему регистру.
func CreateRoleIfNotExists(role *models.Role) (int64, error) {
	if DB == nil {
		return 0, errNoDB
	}
	if !permissions.ParseRole(role.Name).Valid() {
		return 0, fmt.Errorf("неизвестная роль '%s'", role.Name)
	}
	name := string(permissions.ParseRole(role.Name))

	existing, err := GetRoleByName(name)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("ошибка проверки существующей роли '%s': %w", name, err)
	}
	if existing != nil {
		return existing.ID, nil
	}

	now := time.Now()
	res, err := DB.Exec(`INSERT INTO roles (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		name, role.Description, now, now)
	if err != nil {
		if _, dup := duplicateKey(err); dup {
			// параллельный старт второго экземпляра
			if again, errAgain := GetRoleByName(name); errAgain == nil {
				return again.ID, nil
			}
		}
		slog.Error("Ошибка при создании роли", "role_name", name, "error", err)
		return 0, fmt.Errorf("не удалось создать роль '%s': %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("не удалось получить ID роли '%s': %w", name, err)
	}
	slog.Info("Роль создана", "role_id", id, "role_name", name)
	return id, nil
}

// GetRoleByName возвращает роль по имени. Если роли нет, возвращает sql.ErrNoRows.
func GetRoleByName(name string) (*models.Role, error) {
	if DB == nil {
		return nil, errNoDB
	}
	row := DB.QueryRow(`SELECT id, name, description, created_at, updated_at FROM roles WHERE name = ?`,
		string(permissions.ParseRole(name)))
	return scanRole(row)
}

func GetRoleByID(id int64) (*models.Role, error) {
	if DB == nil {
		return nil, errNoDB
	}
	row := DB.QueryRow(`SELECT id, name, description, created_at, updated_at FROM roles WHERE id = ?`, id)
	return scanRole(row)
}

func GetAllRoles(ctx context.Context) ([]models.Role, error) {
	if DB == nil {
		return nil, errNoDB
	}
	rows, err := DB.QueryContext(ctx, `SELECT id, name, description, created_at, updated_at FROM roles ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка ролей: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		role, errScan := scanRole(rows)
		if errScan != nil {
			slog.Error("Ошибка сканирования роли", "error", errScan)
			continue
		}
		roles = append(roles, *role)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по списку ролей: %w", err)
	}
	return roles, nil
}

// CountUsersByRole - количество пользователей на каждую роль. Пользователи без роли
// попадают под ключ permissions.RoleUnknown.
func CountUsersByRole(ctx context.Context) (map[permissions.Role]int, error) {
	if DB == nil {
		return nil, errNoDB
	}
	rows, err := DB.QueryContext(ctx, `SELECT COALESCE(r.name, ''), COUNT(*) FROM users u LEFT JOIN roles r ON u.role_id = r.id GROUP BY r.name`)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчета пользователей по ролям: %w", err)
	}
	defer rows.Close()

	counts := make(map[permissions.Role]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("ошибка сканирования количества по ролям: %w", err)
		}
		counts[permissions.ParseRole(name)] += n
	}
	return counts, rows.Err()
}

func scanRole(row scanner) (*models.Role, error) {
	role := &models.Role{}
	var description sql.NullString
	if err := row.Scan(&role.ID, &role.Name, &description, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка сканирования роли: %w", err)
	}
	role.Description = description.String
	return role, nil
}
