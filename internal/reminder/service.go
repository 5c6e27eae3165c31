// Package reminder keeps notification rules in the store and jobs in the
// scheduler in step. The store cannot call back into the scheduler, so every
// change that creates or removes rules goes through Service.
package reminder

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ykvlv/payment-bot/internal/domain"
	"github.com/ykvlv/payment-bot/internal/scheduler"
)

// Store is the part of store.Repo the service needs.
type Store interface {
	CreateNotification(ctx context.Context, paymentID int64, daysBefore int) (domain.Notification, bool, error)
	ListNotifications(ctx context.Context, paymentID int64) ([]domain.Notification, error)
	ListAllNotifications(ctx context.Context) ([]domain.Notification, error)
	DeleteNotification(ctx context.Context, id int64) (bool, error)
	ResolveReminder(ctx context.Context, notificationID int64) (domain.Target, error)
	GetPayment(ctx context.Context, id int64) (*domain.Payment, error)
	DeletePayment(ctx context.Context, id int64) (bool, error)
}

// Service coordinates rule persistence and job scheduling.
type Service struct {
	store Store
	sched *scheduler.Scheduler
	log   *zap.Logger
}

func New(store Store, sched *scheduler.Scheduler, log *zap.Logger) *Service {
	return &Service{store: store, sched: sched, log: log.Named("reminder")}
}

// AddReminder creates (or finds) the rule for paymentID and schedules its
// job. Out-of-range daysBefore is rejected before anything is stored.
func (s *Service) AddReminder(ctx context.Context, paymentID int64, daysBefore int) (domain.Notification, bool, error) {
	if err := domain.ValidateDaysBefore(daysBefore); err != nil {
		return domain.Notification{}, false, err
	}
	n, created, err := s.store.CreateNotification(ctx, paymentID, daysBefore)
	if err != nil {
		return domain.Notification{}, false, fmt.Errorf("create notification: %w", err)
	}
	if _, err := s.ScheduleReminder(ctx, n.ID); err != nil {
		return n, created, err
	}
	return n, created, nil
}

// ScheduleReminder (re)schedules the job for an existing rule.
func (s *Service) ScheduleReminder(ctx context.Context, notificationID int64) (scheduler.Job, error) {
	t, err := s.store.ResolveReminder(ctx, notificationID)
	if err != nil {
		return scheduler.Job{}, fmt.Errorf("resolve notification %d: %w", notificationID, err)
	}
	job, err := s.sched.Schedule(t)
	if err != nil {
		return scheduler.Job{}, fmt.Errorf("schedule %s: %w", t.Ref().Name(), err)
	}
	return job, nil
}

// CancelReminder removes the job of a rule. Unknown jobs are ignored.
func (s *Service) CancelReminder(ref domain.JobRef) bool {
	return s.sched.Cancel(ref.Name())
}

// RemoveReminder cancels the rule's job and deletes the rule. It returns
// false if the rule did not exist.
func (s *Service) RemoveReminder(ctx context.Context, notificationID int64) (bool, error) {
	t, err := s.store.ResolveReminder(ctx, notificationID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resolve notification %d: %w", notificationID, err)
	}

	s.CancelReminder(t.Ref())
	ok, err := s.store.DeleteNotification(ctx, notificationID)
	if err != nil {
		return false, fmt.Errorf("delete notification %d: %w", notificationID, err)
	}
	return ok, nil
}

// DeletePayment cancels the jobs of all the payment's rules, then deletes the
// payment. The store cascades the rules.
func (s *Service) DeletePayment(ctx context.Context, paymentID int64) (bool, error) {
	p, err := s.store.GetPayment(ctx, paymentID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get payment %d: %w", paymentID, err)
	}

	rules, err := s.store.ListNotifications(ctx, paymentID)
	if err != nil {
		return false, fmt.Errorf("list notifications: %w", err)
	}
	for _, n := range rules {
		s.CancelReminder(domain.JobRef{UserID: p.UserID, PaymentID: p.ID, NotificationID: n.ID})
	}
	// Jobs whose rule vanished without going through RemoveReminder.
	for _, j := range s.sched.JobsForPayment(paymentID) {
		s.sched.Cancel(j.ID)
	}

	ok, err := s.store.DeletePayment(ctx, paymentID)
	if err != nil {
		return false, fmt.Errorf("delete payment %d: %w", paymentID, err)
	}
	s.log.Info("payment deleted",
		zap.Int64("payment_id", paymentID),
		zap.Int("rules", len(rules)),
	)
	return ok, nil
}

// Reminders lists the scheduled jobs of one payment.
func (s *Service) Reminders(paymentID int64) []scheduler.Job {
	return s.sched.JobsForPayment(paymentID)
}

// RehydrateResult summarizes a RehydrateAll run.
type RehydrateResult struct {
	Scheduled int
	Failed    int
}

// RehydrateAll schedules a job for every stored rule. It must run once at
// startup because the job table does not survive a restart. A rule that
// fails is logged and skipped; only failing to list rules is an error.
func (s *Service) RehydrateAll(ctx context.Context) (RehydrateResult, error) {
	rules, err := s.store.ListAllNotifications(ctx)
	if err != nil {
		return RehydrateResult{}, fmt.Errorf("list notifications: %w", err)
	}

	var res RehydrateResult
	for _, n := range rules {
		if _, err := s.ScheduleReminder(ctx, n.ID); err != nil {
			res.Failed++
			s.log.Error("rehydrate rule failed",
				zap.Int64("notification_id", n.ID),
				zap.Error(err),
			)
			continue
		}
		res.Scheduled++
	}
	s.log.Info("rehydrated reminders",
		zap.Int("scheduled", res.Scheduled),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}
