package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// JobRef identifies the scheduled job derived from one notification rule.
type JobRef struct {
	UserID         int64
	PaymentID      int64
	NotificationID int64
}

// Name returns the job key, e.g. "u1p1n1". It only depends on the three ids,
// so it survives restarts and needs no storage.
func (r JobRef) Name() string {
	return fmt.Sprintf("u%dp%dn%d", r.UserID, r.PaymentID, r.NotificationID)
}

// Payload is what a reminder is about: who gets it and what it says.
type Payload struct {
	RecipientID int64 // Telegram chat id
	DisplayName string
	PaymentName string
	Price       decimal.Decimal
	DaysBefore  int
}

// ReminderText renders the message sent when a reminder fires.
func ReminderText(p Payload) string {
	lines := []string{
		fmt.Sprintf("Hi, %s!", p.DisplayName),
		fmt.Sprintf("Payment for %s is due in %s.", p.PaymentName, DaysLeft(p.DaysBefore)),
		"Price: " + FormatPrice(p.Price),
	}
	return strings.Join(lines, "\n")
}

// DaysLeft formats n with the matching form of "day".
func DaysLeft(n int) string {
	if n == 1 || n == -1 {
		return fmt.Sprintf("%d day", n)
	}
	return fmt.Sprintf("%d days", n)
}

// FormatPrice prints a price with two decimals.
func FormatPrice(p decimal.Decimal) string {
	return p.StringFixed(2)
}
