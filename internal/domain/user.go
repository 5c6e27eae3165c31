package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultUsername is used when Telegram does not report a username.
const DefaultUsername = "Default User"

// User is a bot user identified by their Telegram id.
type User struct {
	ID         int64
	TelegramID int64
	Username   string
	IsAdmin    bool
	CreatedAt  time.Time // UTC
}

// Payment is a recurring payment owned by a single user.
type Payment struct {
	ID          int64
	UserID      int64
	Name        string
	Description string
	Price       decimal.Decimal
	DueDate     time.Time // only the day of month drives recurrence
	CreatedAt   time.Time // UTC
}

// DueDay returns the day of month the payment is due on.
func (p Payment) DueDay() int {
	return p.DueDate.Day()
}

// Notification is a reminder rule: remind DaysBefore days before the payment is due.
type Notification struct {
	ID         int64
	PaymentID  int64
	DaysBefore int
}

// Target is a notification rule with its owning payment and user resolved.
type Target struct {
	User         User
	Payment      Payment
	Notification Notification
}

// Ref returns the job reference for the target.
func (t Target) Ref() JobRef {
	return JobRef{
		UserID:         t.User.ID,
		PaymentID:      t.Payment.ID,
		NotificationID: t.Notification.ID,
	}
}

// Payload captures what a reminder says at the moment it is built.
func (t Target) Payload() Payload {
	return Payload{
		RecipientID: t.User.TelegramID,
		DisplayName: t.User.Username,
		PaymentName: t.Payment.Name,
		Price:       t.Payment.Price,
		DaysBefore:  t.Notification.DaysBefore,
	}
}
