package domain

import "time"

type Customer struct {
	ID              int64      `json:"id"`
	FullName        string     `json:"full_name"`
	Phone           string     `json:"phone"`
	Birthday        *time.Time `json:"birthday,omitempty"`
	SpouseName      string     `json:"spouse_name,omitempty"`
	SpousePhone     string     `json:"spouse_phone,omitempty"`
	SpouseBirthday  *time.Time `json:"spouse_birthday,omitempty"`
	FavoriteFlowers string     `json:"favorite_flowers,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	Points          int        `json:"points"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// BirthdayMatch is a digest entry: the customer's own birthday, or the spouse's
// when Spouse is set.
type BirthdayMatch struct {
	Customer Customer `json:"customer"`
	Spouse   bool     `json:"spouse"`
}

// SameDay reports whether t falls on the month and day of ref.
func SameDay(t *time.Time, ref time.Time) bool {
	if t == nil {
		return false
	}
	return t.Month() == ref.Month() && t.Day() == ref.Day()
}

// Recipient is a staff chat registered with the messaging bot.
type Recipient struct {
	ChatID       string `json:"chat_id"`
	Name         string `json:"name"`
	Active       bool   `json:"active"`
	NotifyOrders bool   `json:"notify_orders"`
}
