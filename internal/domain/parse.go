package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentDraft is a parsed "add payment" request, not yet stored.
type PaymentDraft struct {
	Name        string
	Description string
	Price       decimal.Decimal
	DueDate     time.Time
}

var dateLayouts = []string{"2006-01-02", "02.01.2006", "02.01"}

// ParsePaymentDraft parses "name; description; price; due" where due is a
// day of month ("7") or a date ("2025-05-07", "07.05.2025", "07.05").
// A bare day is anchored to the current month of now.
func ParsePaymentDraft(s string, now time.Time) (PaymentDraft, error) {
	parts := strings.Split(s, ";")
	if len(parts) != 4 {
		return PaymentDraft{}, ErrInvalidPaymentRow
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	name, desc := parts[0], parts[1]
	if name == "" {
		return PaymentDraft{}, errors.New("empty name")
	}
	if len(name) > 64 {
		return PaymentDraft{}, errors.New("name too long: max 64")
	}
	price, err := ParsePrice(parts[2])
	if err != nil {
		return PaymentDraft{}, err
	}
	due, err := ParseDueDate(parts[3], now)
	if err != nil {
		return PaymentDraft{}, err
	}
	return PaymentDraft{Name: name, Description: desc, Price: price, DueDate: due}, nil
}

// ParsePrice accepts "9.99" or "9,99". Negative prices are rejected.
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Zero, ErrInvalidPrice
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidPrice, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative", ErrInvalidPrice)
	}
	return d, nil
}

// ParseDueDate parses a day of month or one of the supported date layouts.
func ParseDueDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if isAllDigits(s) {
		day, _ := strconv.Atoi(s)
		if day < 1 || day > 31 {
			return time.Time{}, ErrInvalidDueDay
		}
		// Day 31 in a short month would normalize into the next month and
		// lose the day, so anchor bare days to January.
		return time.Date(now.Year(), time.January, day, 0, 0, 0, 0, time.UTC), nil
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if layout == "02.01" {
			t = time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: use a day (7) or YYYY-MM-DD", s)
}

// ParseDaysBefore parses and validates the number of days before a due date.
func ParseDaysBefore(s string) (int, error) {
	s = strings.TrimSpace(s)
	if !isAllDigits(s) {
		return 0, ErrDaysBeforeRange
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrDaysBeforeRange
	}
	if err := ValidateDaysBefore(n); err != nil {
		return 0, err
	}
	return n, nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (*time.Location, error) {
	return time.LoadLocation(tz)
}

// FormatDueDay renders the due day for lists, e.g. "every month on the 7th".
func FormatDueDay(day int) string {
	return "every month on the " + Ordinal(day)
}

// Ordinal returns 1st, 2nd, 3rd, 4th, 11th, 21st...
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
