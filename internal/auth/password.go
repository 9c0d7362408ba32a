// internal/auth/password.go
package auth

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IsPasswordComplex: не короче 8 символов, есть буква, цифра и символ.
func IsPasswordComplex(password string) bool {
	if len([]rune(password)) < 8 {
		return false
	}
	var hasLetter, hasDigit, hasSymbol bool
	for _, char := range password {
		switch {
		case unicode.IsLetter(char):
			hasLetter = true
		case unicode.IsDigit(char):
			hasDigit = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSymbol = true
		}
	}
	return hasLetter && hasDigit && hasSymbol
}

var nonAlphaSpaceDash = regexp.MustCompile(`[^\p{L}\s-]`)

// SanitizeName убирает из имени все, кроме букв, пробелов и дефисов, и делает первую букву заглавной.
func SanitizeName(name string) string {
	cleaned := strings.Join(strings.Fields(nonAlphaSpaceDash.ReplaceAllString(name, "")), " ")
	if cleaned == "" {
		return ""
	}
	r := []rune(cleaned)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

var (
	phoneRegex     = regexp.MustCompile(`^\+7\d{10}$`)
	phoneJunkRegex = regexp.MustCompile(`[\s()\-]`)
)

// NormalizePhone приводит казахстанский номер к виду +7XXXXXXXXXX.
// 8XXXXXXXXXX и 7XXXXXXXXXX тоже принимаются.
func NormalizePhone(phone string) string {
	p := phoneJunkRegex.ReplaceAllString(strings.TrimSpace(phone), "")
	switch {
	case len(p) == 11 && strings.HasPrefix(p, "8"):
		p = "+7" + p[1:]
	case len(p) == 11 && strings.HasPrefix(p, "7"):
		p = "+" + p
	}
	return p
}

func ValidatePhone(phone string) bool {
	return phoneRegex.MatchString(NormalizePhone(phone))
}
