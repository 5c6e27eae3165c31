package store

import (
	"context"

	"github.com/ykvlv/payment-bot/internal/domain"
)

// Repo defines storage operations for users, payments and notification rules.
// Lookups that find nothing return domain.ErrNotFound.
type Repo interface {
	// Users
	EnsureUser(ctx context.Context, telegramID int64, username string, isAdmin bool) (*domain.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
	RenameUser(ctx context.Context, telegramID int64, username string) error
	ListUsers(ctx context.Context) ([]domain.User, error)

	// Payments
	CreatePayment(ctx context.Context, userID int64, d domain.PaymentDraft) (*domain.Payment, error)
	GetPayment(ctx context.Context, id int64) (*domain.Payment, error)
	ListPayments(ctx context.Context, userID int64) ([]domain.Payment, error)
	DeletePayment(ctx context.Context, id int64) (bool, error)

	// Notification rules
	CreateNotification(ctx context.Context, paymentID int64, daysBefore int) (domain.Notification, bool, error)
	GetNotification(ctx context.Context, id int64) (*domain.Notification, error)
	ListNotifications(ctx context.Context, paymentID int64) ([]domain.Notification, error)
	ListAllNotifications(ctx context.Context) ([]domain.Notification, error)
	DeleteNotification(ctx context.Context, id int64) (bool, error)
	ResolveReminder(ctx context.Context, notificationID int64) (domain.Target, error)

	Close() error
}
