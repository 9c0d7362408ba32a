// internal/models/quote.go
package models

import "time"

type QuoteStatus string

const (
	QuoteNew      QuoteStatus = "new"
	QuoteInReview QuoteStatus = "in_review"
	QuoteQuoted   QuoteStatus = "quoted"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteRejected QuoteStatus = "rejected"
	QuoteClosed   QuoteStatus = "closed"
)

var quoteStatuses = []QuoteStatus{QuoteNew, QuoteInReview, QuoteQuoted, QuoteAccepted, QuoteRejected, QuoteClosed}

func QuoteStatuses() []QuoteStatus {
	out := make([]QuoteStatus, len(quoteStatuses))
	copy(out, quoteStatuses)
	return out
}

func (s QuoteStatus) Valid() bool {
	for _, v := range quoteStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Quote - заявка клиента на расчет стоимости перевозки.
type Quote struct {
	ID           int64       `json:"id"`
	Reference    string      `json:"reference"`
	UserID       int64       `json:"user_id"`
	Origin       string      `json:"origin"`
	Destination  string      `json:"destination"`
	CargoType    string      `json:"cargo_type"`
	WeightKg     float64     `json:"weight_kg"`
	VolumeM3     float64     `json:"volume_m3"`
	PickupDate   *time.Time  `json:"pickup_date,omitempty"`
	Notes        string      `json:"notes,omitempty"`
	Status       QuoteStatus `json:"status"`
	QuotedAmount *float64    `json:"quoted_amount,omitempty"`
	Currency     string      `json:"currency,omitempty"`
	AdminComment string      `json:"admin_comment,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`

	CustomerEmail string `json:"customer_email,omitempty"`
}

type QuoteRequestForm struct {
	Origin      string  `form:"origin" validate:"required,max=255"`
	Destination string  `form:"destination" validate:"required,max=255"`
	CargoType   string  `form:"cargo_type" validate:"required,oneof=general pallets container bulk refrigerated dangerous oversized"`
	WeightKg    float64 `form:"weight_kg" validate:"gt=0,lte=1000000"`
	VolumeM3    float64 `form:"volume_m3" validate:"gte=0,lte=100000"`
	PickupDate  string  `form:"pickup_date" validate:"omitempty,datetime=2006-01-02"`
	Notes       string  `form:"notes" validate:"max=2000"`
}

type QuoteStatusForm struct {
	Status       string `form:"status" validate:"required,quote_status"`
	QuotedAmount string `form:"quoted_amount" validate:"omitempty,numeric"`
	Currency     string `form:"currency" validate:"omitempty,oneof=KZT USD EUR RUB CNY"`
	AdminComment string `form:"admin_comment" validate:"max=2000"`
}
