package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicatePayment  = errors.New("payment with this name already exists")
	ErrDaysBeforeRange   = errors.New("days before must be between 1 and 19")
	ErrInvalidDueDay     = errors.New("due day must be between 1 and 31")
	ErrInvalidHour       = errors.New("hour must be between 0 and 23")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrInvalidPaymentRow = errors.New("expected: name; description; price; day")
)

const (
	MinDaysBefore = 1
	MaxDaysBefore = 19
)

// ValidateDaysBefore rejects values outside [MinDaysBefore, MaxDaysBefore].
func ValidateDaysBefore(days int) error {
	if days < MinDaysBefore || days > MaxDaysBefore {
		return ErrDaysBeforeRange
	}
	return nil
}
