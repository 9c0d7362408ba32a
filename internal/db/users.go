// internal/db/users.go
package db

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"steppe-logistics.kz/internal/models"
	"steppe-logistics.kz/internal/permissions"
)

const (
	PasswordResetTTL     = time.Hour
	EmailVerificationTTL = 24 * time.Hour
)

var ErrNotStaff = errors.New("флаг управления статьями доступен только для роли STAFF")

// AdminUpdateUserData содержит поля, которые администратор может обновить.
type AdminUpdateUserData struct {
	FirstName string
	LastName  string
	Company   string
	Phone     *string
	Role      permissions.Role
}

// StaffOverride - строка матрицы прав для STAFF-пользователя.
type StaffOverride struct {
	UserID            int64  `json:"user_id"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	CanManageArticles bool   `json:"can_manage_articles"`
}

// GenerateSecureToken генерирует безопасный случайный токен.
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken хеширует токен для хранения в БД.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func CreateUser(ctx context.Context, user *models.User, roleName string) (int64, error) {
	if DB == nil {
		return 0, errNoDB
	}
	role, err := GetRoleByName(roleName)
	if err != nil {
		slog.Error("Не удалось получить роль для нового пользователя", "roleName", roleName, "error", err)
		return 0, fmt.Errorf("роль '%s' не найдена: %w", roleName, err)
	}
	locale := user.PreferredLocale
	if locale == "" {
		locale = "ru"
	}

	query := `INSERT INTO users (email, phone, password_hash, first_name, last_name, company, role_id,
	                             preferred_locale, email_notifications, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	res, err := DB.ExecContext(ctx, query,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.Phone,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Company,
		role.ID,
		locale,
		true,
		now,
		now,
	)
	if err != nil {
		if key, dup := duplicateKey(err); dup {
			if strings.Contains(key, "phone") {
				return 0, ErrDuplicatePhone
			}
			return 0, ErrDuplicateEmail
		}
		slog.Error("Ошибка при создании пользователя", "error", err, "email", user.Email)
		return 0, fmt.Errorf("не удалось создать пользователя: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("не удалось получить ID пользователя: %w", err)
	}
	slog.Info("Пользователь создан", "user_id", id, "email", user.Email, "role", role.Name)
	return id, nil
}

func GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if DB == nil {
		return nil, errNoDB
	}
	row := DB.QueryRowContext(ctx, getFullUserQuery()+" WHERE u.email = ?", strings.ToLower(strings.TrimSpace(email)))
	return scanFullUser(row)
}

func GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	if DB == nil {
		return nil, errNoDB
	}
	row := DB.QueryRowContext(ctx, getFullUserQuery()+" WHERE u.id = ?", id)
	return scanFullUser(row)
}

// GetUserAccess загружает только то, что нужно для проверки доступа.
// Неизвестное имя роли превращается в permissions.RoleUnknown.
func GetUserAccess(ctx context.Context, id int64) (*permissions.Principal, error) {
	if DB == nil {
		return nil, errNoDB
	}
	var roleName sql.NullString
	var canManage bool
	var locale string
	err := DB.QueryRowContext(ctx,
		`SELECT r.name, u.can_manage_articles, u.preferred_locale FROM users u LEFT JOIN roles r ON u.role_id = r.id WHERE u.id = ?`, id,
	).Scan(&roleName, &canManage, &locale)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка загрузки прав пользователя %d: %w", id, err)
	}
	return &permissions.Principal{
		UserID:            id,
		Role:              permissions.ParseRole(roleName.String),
		CanManageArticles: canManage,
		PreferredLocale:   locale,
	}, nil
}

func ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	if DB == nil {
		return nil, 0, errNoDB
	}
	var total int
	if err := DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		slog.Error("Ошибка при подсчете пользователей", "error", err)
		return nil, 0, fmt.Errorf("ошибка подсчета пользователей: %w", err)
	}

	rows, err := DB.QueryContext(ctx, getFullUserQuery()+" ORDER BY u.created_at DESC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка пользователей: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, errScan := scanFullUser(rows)
		if errScan != nil {
			slog.Error("Ошибка сканирования пользователя при получении списка", "error", errScan)
			continue
		}
		users = append(users, user)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации по списку пользователей: %w", err)
	}
	return users, total, nil
}

// UpdateUserByAdmin обновляет данные пользователя. Смена роли с STAFF на любую другую
// сбрасывает флаг управления статьями.
func UpdateUserByAdmin(ctx context.Context, userID int64, data AdminUpdateUserData) error {
	if DB == nil {
		return errNoDB
	}
	if !data.Role.Valid() {
		return fmt.Errorf("неизвестная роль '%s'", data.Role)
	}
	role, err := GetRoleByName(string(data.Role))
	if err != nil {
		return fmt.Errorf("ошибка при проверке роли %s: %w", data.Role, err)
	}

	query := `UPDATE users SET
                first_name = ?,
                last_name = ?,
                company = ?,
                phone = ?,
                role_id = ?,
                can_manage_articles = IF(? = 'STAFF', can_manage_articles, FALSE),
                updated_at = ?
              WHERE id = ?`
	res, err := DB.ExecContext(ctx, query,
		data.FirstName, data.LastName, data.Company, data.Phone,
		role.ID, role.Name, time.Now(), userID)
	if err != nil {
		if key, dup := duplicateKey(err); dup && strings.Contains(key, "phone") {
			return ErrDuplicatePhone
		}
		slog.Error("Ошибка обновления пользователя админом", "userID", userID, "error", err)
		return fmt.Errorf("не удалось обновить данные пользователя: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, errGet := GetUserByID(ctx, userID); errors.Is(errGet, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
	}
	slog.Info("Пользователь обновлен админом", "userID", userID, "role", role.Name)
	return nil
}

// SetCanManageArticles включает или выключает доступ STAFF-пользователя к статьям.
func SetCanManageArticles(ctx context.Context, userID int64, enabled bool) error {
	if DB == nil {
		return errNoDB
	}
	access, err := GetUserAccess(ctx, userID)
	if err != nil {
		return err
	}
	if access.Role != permissions.RoleStaff {
		return ErrNotStaff
	}
	if _, err := DB.ExecContext(ctx, `UPDATE users SET can_manage_articles = ?, updated_at = ? WHERE id = ?`, enabled, time.Now(), userID); err != nil {
		return fmt.Errorf("не удалось обновить флаг управления статьями: %w", err)
	}
	slog.Info("Флаг управления статьями изменен", "userID", userID, "enabled", enabled)
	return nil
}

func ListStaffOverrides(ctx context.Context) ([]StaffOverride, error) {
	if DB == nil {
		return nil, errNoDB
	}
	rows, err := DB.QueryContext(ctx, `SELECT u.id, u.email, u.first_name, u.last_name, u.can_manage_articles
		FROM users u JOIN roles r ON u.role_id = r.id WHERE r.name = ? ORDER BY u.email`, string(permissions.RoleStaff))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка сотрудников: %w", err)
	}
	defer rows.Close()

	var out []StaffOverride
	for rows.Next() {
		var o StaffOverride
		var first, last string
		if err := rows.Scan(&o.UserID, &o.Email, &first, &last, &o.CanManageArticles); err != nil {
			return nil, fmt.Errorf("ошибка сканирования сотрудника: %w", err)
		}
		o.Name = strings.TrimSpace(first + " " + last)
		out = append(out, o)
	}
	return out, rows.Err()
}

func UpdateUserProfile(ctx context.Context, userID int64, firstName, lastName, company string, phone *string) error {
	if DB == nil {
		return errNoDB
	}
	query := `UPDATE users SET first_name = ?, last_name = ?, company = ?, phone = ?, updated_at = ? WHERE id = ?`
	if _, err := DB.ExecContext(ctx, query, firstName, lastName, company, phone, time.Now(), userID); err != nil {
		if key, dup := duplicateKey(err); dup && strings.Contains(key, "phone") {
			return ErrDuplicatePhone
		}
		slog.Error("Ошибка обновления профиля пользователя", "userID", userID, "error", err)
		return fmt.Errorf("не удалось обновить профиль пользователя: %w", err)
	}
	slog.Info("Профиль пользователя обновлен", "userID", userID)
	return nil
}

func UpdateUserPassword(ctx context.Context, userID int64, newPasswordHash string) error {
	if DB == nil {
		return errNoDB
	}
	if _, err := DB.ExecContext(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, newPasswordHash, time.Now(), userID); err != nil {
		slog.Error("Ошибка обновления пароля пользователя", "userID", userID, "error", err)
		return fmt.Errorf("не удалось обновить пароль пользователя: %w", err)
	}
	slog.Info("Пароль пользователя обновлен", "userID", userID)
	return nil
}

func UpdateUserSettings(ctx context.Context, userID int64, locale string, emailNotifications bool) error {
	if DB == nil {
		return errNoDB
	}
	if _, err := DB.ExecContext(ctx, `UPDATE users SET preferred_locale = ?, email_notifications = ?, updated_at = ? WHERE id = ?`,
		locale, emailNotifications, time.Now(), userID); err != nil {
		slog.Error("Ошибка обновления настроек пользователя", "userID", userID, "error", err)
		return fmt.Errorf("не удалось обновить настройки: %w", err)
	}
	return nil
}

// PromoteFirstAdmin назначает роль ADMIN пользователю с указанным email, если он существует.
func PromoteFirstAdmin(email string) error {
	ctx := context.Background()
	user, err := GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Info("FIRST_ADMIN_EMAIL задан, но пользователь еще не зарегистрирован", "email", email)
			return nil
		}
		return err
	}
	if user.Role == permissions.RoleAdmin {
		return nil
	}
	role, err := GetRoleByName(string(permissions.RoleAdmin))
	if err != nil {
		return err
	}
	if _, err := DB.ExecContext(ctx, `UPDATE users SET role_id = ?, can_manage_articles = FALSE, updated_at = ? WHERE id = ?`, role.ID, time.Now(), user.ID); err != nil {
		return fmt.Errorf("не удалось назначить роль ADMIN: %w", err)
	}
	slog.Warn("Пользователю назначена роль ADMIN по FIRST_ADMIN_EMAIL", "userID", user.ID, "email", email)
	return nil
}

func SetPasswordResetToken(ctx context.Context, userID int64, rawToken string) error {
	if DB == nil {
		return errNoDB
	}
	query := `UPDATE users SET password_reset_token = ?, password_reset_token_expires_at = ?, updated_at = ? WHERE id = ?`
	if _, err := DB.ExecContext(ctx, query, HashToken(rawToken), time.Now().Add(PasswordResetTTL), time.Now(), userID); err != nil {
		slog.Error("Ошибка установки токена сброса пароля", "userID", userID, "error", err)
		return fmt.Errorf("не удалось установить токен сброса пароля: %w", err)
	}
	return nil
}

// GetUserByPasswordResetToken возвращает ErrInvalidToken для неизвестного или просроченного токена.
func GetUserByPasswordResetToken(ctx context.Context, rawToken string) (*models.User, error) {
	if DB == nil {
		return nil, errNoDB
	}
	row := DB.QueryRowContext(ctx, getFullUserQuery()+" WHERE u.password_reset_token = ?", HashToken(rawToken))
	user, err := scanFullUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if user.PasswordResetTokenExpiresAt == nil || time.Now().After(*user.PasswordResetTokenExpiresAt) {
		return nil, ErrInvalidToken
	}
	return user, nil
}

// ResetPassword меняет пароль и гасит токен сброса одним запросом.
func ResetPassword(ctx context.Context, userID int64, newPasswordHash string) error {
	if DB == nil {
		return errNoDB
	}
	query := `UPDATE users SET password_hash = ?, password_reset_token = NULL, password_reset_token_expires_at = NULL, updated_at = ? WHERE id = ?`
	if _, err := DB.ExecContext(ctx, query, newPasswordHash, time.Now(), userID); err != nil {
		slog.Error("Ошибка сброса пароля", "userID", userID, "error", err)
		return fmt.Errorf("не удалось сбросить пароль: %w", err)
	}
	slog.Info("Пароль сброшен по токену", "userID", userID)
	return nil
}

func SetEmailVerificationToken(ctx context.Context, userID int64, rawToken string) error {
	if DB == nil {
		return errNoDB
	}
	query := `UPDATE users SET
                email_verification_token = ?,
                email_verification_token_expires_at = ?,
                updated_at = ?
              WHERE id = ? AND is_email_verified = FALSE`
	res, err := DB.ExecContext(ctx, query, HashToken(rawToken), time.Now().Add(EmailVerificationTTL), time.Now(), userID)
	if err != nil {
		slog.Error("Ошибка установки токена верификации email", "userID", userID, "error", err)
		return fmt.Errorf("не удалось установить токен верификации email: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyVerified
	}
	return nil
}

// VerifyUserEmail подтверждает email по токену и возвращает ID пользователя.
func VerifyUserEmail(ctx context.Context, rawToken string) (int64, error) {
	if DB == nil {
		return 0, errNoDB
	}
	hashedToken := HashToken(rawToken)

	var userID int64
	var expiresAt sql.NullTime
	var verified bool
	err := DB.QueryRowContext(ctx, `SELECT id, email_verification_token_expires_at, is_email_verified FROM users WHERE email_verification_token = ?`, hashedToken).
		Scan(&userID, &expiresAt, &verified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrInvalidToken
		}
		slog.Error("Ошибка поиска пользователя по токену верификации email", "error", err)
		return 0, fmt.Errorf("ошибка сервера при проверке токена: %w", err)
	}
	if verified {
		return userID, ErrAlreadyVerified
	}
	if !expiresAt.Valid || time.Now().After(expiresAt.Time) {
		if _, errClear := DB.ExecContext(ctx, `UPDATE users SET email_verification_token = NULL, email_verification_token_expires_at = NULL WHERE id = ?`, userID); errClear != nil {
			slog.Error("Ошибка очистки просроченного токена верификации", "userID", userID, "error", errClear)
		}
		return 0, ErrInvalidToken
	}

	now := time.Now()
	res, err := DB.ExecContext(ctx, `UPDATE users SET
	                    is_email_verified = TRUE,
	                    email_verified_at = ?,
	                    email_verification_token = NULL,
	                    email_verification_token_expires_at = NULL,
	                    updated_at = ?
	                WHERE id = ? AND email_verification_token = ?`, now, now, userID, hashedToken)
	if err != nil {
		return 0, fmt.Errorf("не удалось верифицировать email: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrInvalidToken
	}
	slog.Info("Email подтвержден", "userID", userID)
	return userID, nil
}

func getFullUserQuery() string {
	return `SELECT u.id, u.email, u.phone, u.password_hash, u.first_name, u.last_name, u.company,
                   u.created_at, u.updated_at, u.role_id, r.name AS role_name, u.can_manage_articles,
                   u.preferred_locale, u.email_notifications,
                   u.is_email_verified, u.email_verified_at,
                   u.email_verification_token, u.email_verification_token_expires_at,
                   u.password_reset_token, u.password_reset_token_expires_at
            FROM users u
            LEFT JOIN roles r ON u.role_id = r.id`
}

// scanner удовлетворяется и *sql.Row, и *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFullUser(row scanner) (*models.User, error) {
	user := &models.User{}
	var phone, roleName, verifyToken, resetToken sql.NullString
	var roleID sql.NullInt64
	var verifiedAt, verifyExpires, resetExpires sql.NullTime

	err := row.Scan(
		&user.ID, &user.Email, &phone, &user.PasswordHash, &user.FirstName, &user.LastName, &user.Company,
		&user.CreatedAt, &user.UpdatedAt, &roleID, &roleName, &user.CanManageArticles,
		&user.PreferredLocale, &user.EmailNotifications,
		&user.IsEmailVerified, &verifiedAt,
		&verifyToken, &verifyExpires,
		&resetToken, &resetExpires,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка сканирования данных пользователя: %w", err)
	}

	user.Role = permissions.ParseRole(roleName.String)
	if phone.Valid {
		user.Phone = &phone.String
	}
	if roleID.Valid {
		user.RoleID = &roleID.Int64
	}
	if verifiedAt.Valid {
		user.EmailVerifiedAt = &verifiedAt.Time
	}
	if verifyToken.Valid {
		user.EmailVerificationToken = &verifyToken.String
	}
	if verifyExpires.Valid {
		user.EmailVerificationTokenExpiresAt = &verifyExpires.Time
	}
	if resetToken.Valid {
		user.PasswordResetToken = &resetToken.String
	}
	if resetExpires.Valid {
		user.PasswordResetTokenExpiresAt = &resetExpires.Time
	}
	return user, nil
}
