// internal/models/user.go
package models

import (
	"time"

	"steppe-logistics.kz/internal/permissions"
)

type User struct {
	ID                              int64            `json:"id"`
	Email                           string           `json:"email"`
	Phone                           *string          `json:"phone"`
	PasswordHash                    string           `json:"-"`
	PasswordResetToken              *string          `json:"-"`
	PasswordResetTokenExpiresAt     *time.Time       `json:"-"`
	FirstName                       string           `json:"first_name"`
	LastName                        string           `json:"last_name"`
	Company                         string           `json:"company,omitempty"`
	CreatedAt                       time.Time        `json:"created_at"`
	UpdatedAt                       time.Time        `json:"updated_at"`
	RoleID                          *int64           `json:"-"`
	Role                            permissions.Role `json:"role"`
	CanManageArticles               bool             `json:"can_manage_articles"`
	PreferredLocale                 string           `json:"preferred_locale"`
	EmailNotifications              bool             `json:"email_notifications"`
	EmailVerificationToken          *string          `json:"-"`
	EmailVerificationTokenExpiresAt *time.Time       `json:"-"`
	IsEmailVerified                 bool             `json:"is_email_verified"`
	EmailVerifiedAt                 *time.Time       `json:"-"`
}

// Principal - данные пользователя, нужные для проверки доступа.
func (u *User) Principal() permissions.Principal {
	if u == nil {
		return permissions.Principal{Role: permissions.RoleUnknown}
	}
	return permissions.Principal{
		UserID:            u.ID,
		Role:              u.Role,
		CanManageArticles: u.CanManageArticles,
		PreferredLocale:   u.PreferredLocale,
	}
}

func (u *User) DisplayName() string {
	if u.FirstName == "" {
		return u.Email
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type RegistrationForm struct {
	Email        string `form:"email" validate:"required,email,max=255"`
	Phone        string `form:"phone" validate:"omitempty,valid_phone"`
	Password     string `form:"password" validate:"required,min=8,complex_password"`
	ConfirmPass  string `form:"confirm_password" validate:"required,eqfield=Password"`
	FirstName    string `form:"first_name" validate:"required,alpha_space,max=100"`
	LastName     string `form:"last_name" validate:"required,alpha_space,max=100"`
	Company      string `form:"company" validate:"omitempty,max=255"`
	AgreeTerms   string `form:"agree_terms" validate:"required"`
	CaptchaToken string `form:"captcha_token"`
	Honeypot     string `form:"website"`
}

type LoginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
	Next     string `form:"next"`
}
