package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"taxidispatch/pkg/errs"
)

// Profile is the identity Telegram reports for a user.
type Profile struct {
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
}

type Client struct {
	ID         string    `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewClient(p Profile) *Client {
	return &Client{
		ID:         uuid.NewString(),
		TelegramID: p.TelegramID,
		Username:   p.Username,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		CreatedAt:  time.Now().UTC(),
	}
}

func (c *Client) HasPhone() bool {
	return c.Phone != ""
}

// NormalizePhone trims the number and makes sure it carries a leading "+".
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || phone == "+" {
		return "", errs.NewValidationError("phone", "phone number is required")
	}
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	for _, r := range phone[1:] {
		if (r < '0' || r > '9') && r != ' ' && r != '-' && r != '(' && r != ')' {
			return "", errs.NewValidationError("phone", "phone number contains invalid characters")
		}
	}
	return phone, nil
}
