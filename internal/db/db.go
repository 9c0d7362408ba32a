// internal/db/db.go
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"steppe-logistics.kz/internal/config"
	"steppe-logistics.kz/internal/models"
	"steppe-logistics.kz/migrations"
)

var DB *sql.DB

var errNoDB = errors.New("база данных не инициализирована")

// RunMigrations применяет встроенные SQL-миграции.
func RunMigrations(dbConn *sql.DB, dbName string) error {
	driverInstance, err := migratemysql.WithInstance(dbConn, &migratemysql.Config{
		DatabaseName: dbName,
	})
	if err != nil {
		return fmt.Errorf("не удалось создать драйвер миграций mysql: %w", err)
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("не удалось открыть встроенные миграции: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "mysql", driverInstance)
	if err != nil {
		return fmt.Errorf("ошибка создания экземпляра migrate: %w", err)
	}

	slog.Info("Применение миграций MariaDB...")
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		version, dirty, verr := m.Version()
		if verr != nil {
			slog.Error("Ошибка получения статуса миграции после неудачного Up", "migration_error", err, "status_error", verr)
		} else {
			slog.Error("Ошибка применения миграций", "current_version", version, "dirty_state", dirty, "error_up", err)
		}
		return fmt.Errorf("ошибка применения миграций MariaDB: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("Миграции MariaDB: нет изменений.")
	} else {
		slog.Info("Миграции MariaDB успешно применены.")
	}
	return nil
}

// safeDSN скрывает пароль при логировании.
func safeDSN(dsn string) string {
	parsed, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "<invalid dsn>"
	}
	if parsed.Passwd != "" {
		parsed.Passwd = "****"
	}
	return parsed.FormatDSN()
}

func InitDB(appConfig *config.Config) error {
	dbCfg := appConfig.Database
	dsn := dbCfg.FormatDSN()

	parsed, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return fmt.Errorf("некорректный DSN для MariaDB: %w", err)
	}
	if !parsed.ParseTime {
		return fmt.Errorf("DSN должен содержать parseTime=true")
	}
	if !strings.Contains(dsn, "multiStatements=true") {
		parsed.MultiStatements = true
		dsn = parsed.FormatDSN()
	}
	slog.Info("Подключение к MariaDB", "dsn", safeDSN(dsn))

	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("ошибка открытия соединения с MariaDB: %w", err)
	}

	DB.SetConnMaxLifetime(time.Duration(dbCfg.ConnMaxLifetime) * time.Minute)
	DB.SetMaxOpenConns(dbCfg.MaxOpenConns)
	DB.SetMaxIdleConns(dbCfg.MaxIdleConns)

	if err = DB.Ping(); err != nil {
		_ = DB.Close()
		return fmt.Errorf("ошибка подключения к MariaDB (ping failed): %w", err)
	}
	slog.Info("Успешное подключение к MariaDB.")

	if err = RunMigrations(DB, parsed.DBName); err != nil {
		_ = DB.Close()
		return fmt.Errorf("ошибка выполнения миграций MariaDB: %w", err)
	}

	for _, r := range models.DefaultRoles {
		if _, errRole := CreateRoleIfNotExists(&r); errRole != nil {
			slog.Warn("Не удалось создать/проверить роль по умолчанию", "role_name", r.Name, "error", errRole)
		}
	}

	SeedInitialSettings(appConfig)

	if appConfig.FirstAdminEmail != "" {
		if errPromote := PromoteFirstAdmin(appConfig.FirstAdminEmail); errPromote != nil {
			slog.Warn("Не удалось назначить первого администратора", "email", appConfig.FirstAdminEmail, "error", errPromote)
		}
	}

	slog.Info("База данных MariaDB успешно инициализирована (включая миграции и начальные данные).")
	return nil
}
