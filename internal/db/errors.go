// internal/db/errors.go
package db

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrDuplicateEmail  = errors.New("пользователь с таким email уже существует")
	ErrDuplicatePhone  = errors.New("пользователь с таким телефоном уже существует")
	ErrDuplicateSlug   = errors.New("запись с таким адресом (slug) уже существует для этого языка")
	ErrInvalidToken    = errors.New("неверная или истекшая ссылка")
	ErrAlreadyVerified = errors.New("email уже подтвержден")
)

// duplicateKey возвращает имя нарушенного уникального индекса для ошибки 1062.
func duplicateKey(err error) (string, bool) {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return strings.ToLower(mysqlErr.Message), true
	}
	return "", false
}
