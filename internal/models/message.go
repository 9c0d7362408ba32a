// internal/models/message.go
package models

import "time"

type MessageStatus string

const (
	MessageNew      MessageStatus = "new"
	MessageRead     MessageStatus = "read"
	MessageArchived MessageStatus = "archived"
)

// ContactMessage - обращение с формы обратной связи.
type ContactMessage struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Phone     string        `json:"phone,omitempty"`
	Company   string        `json:"company,omitempty"`
	Subject   string        `json:"subject"`
	Body      string        `json:"body"`
	Status    MessageStatus `json:"status"`
	IP        string        `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type ContactForm struct {
	Name         string `form:"name" validate:"required,alpha_space,max=120"`
	Email        string `form:"email" validate:"required,email,max=255"`
	Phone        string `form:"phone" validate:"omitempty,valid_phone"`
	Company      string `form:"company" validate:"max=255"`
	Subject      string `form:"subject" validate:"required,max=200"`
	Message      string `form:"message" validate:"required,min=10,max=5000"`
	CaptchaToken string `form:"captcha_token"`
	Honeypot     string `form:"website"`
}
