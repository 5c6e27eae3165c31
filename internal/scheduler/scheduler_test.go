package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ykvlv/payment-bot/internal/domain"
)

type sent struct {
	chatID int64
	text   string
}

// fakeSender records messages and optionally fails.
type fakeSender struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (f *fakeSender) SendMessage(chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, sent{chatID: chatID, text: text})
	return nil
}

func (f *fakeSender) all() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.msgs...)
}

// fakeResolver serves targets from a map keyed by notification id.
type fakeResolver struct {
	targets map[int64]domain.Target
	err     error
}

func (f *fakeResolver) ResolveReminder(_ context.Context, id int64) (domain.Target, error) {
	if f.err != nil {
		return domain.Target{}, f.err
	}
	t, ok := f.targets[id]
	if !ok {
		return domain.Target{}, domain.ErrNotFound
	}
	return t, nil
}

func target(userID, paymentID, notifID int64, dueDay, daysBefore int) domain.Target {
	return domain.Target{
		User:    domain.User{ID: userID, TelegramID: 1000 + userID, Username: "alice"},
		Payment: domain.Payment{
			ID:      paymentID,
			UserID:  userID,
			Name:    "Netflix",
			Price:   decimal.RequireFromString("9.99"),
			DueDate: time.Date(2025, time.January, dueDay, 0, 0, 0, 0, time.UTC),
		},
		Notification: domain.Notification{ID: notifID, PaymentID: paymentID, DaysBefore: daysBefore},
	}
}

func newTestScheduler(r Resolver, s Sender) *Scheduler {
	return New(r, s, zap.NewNop(), Options{Location: time.UTC, Hour: 10})
}

func TestSchedule_RegistersJobUnderDerivedName(t *testing.T) {
	s := newTestScheduler(nil, &fakeSender{})

	job, err := s.Schedule(target(1, 1, 1, 7, 3))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if job.ID != "u1p1n1" {
		t.Fatalf("want u1p1n1, got %s", job.ID)
	}
	got, ok := s.Lookup("u1p1n1")
	if !ok {
		t.Fatalf("job not in table")
	}
	if got.Trigger.Day() != 4 || got.Trigger.Hour() != 10 {
		t.Fatalf("unexpected trigger: day=%d hour=%d", got.Trigger.Day(), got.Trigger.Hour())
	}
	if got.Payload.RecipientID != 1001 || got.Payload.DaysBefore != 3 {
		t.Fatalf("unexpected payload: %+v", got.Payload)
	}

	next := got.Next(time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC))
	if want := time.Date(2025, time.May, 4, 10, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("want next %s, got %s", want, next)
	}
}

func TestSchedule_ReplacesExistingJob(t *testing.T) {
	s := newTestScheduler(nil, &fakeSender{})

	tg := target(1, 1, 1, 7, 3)
	if _, err := s.Schedule(tg); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	tg.Payment.Name = "Netflix Premium"
	if _, err := s.Schedule(tg); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("want 1 job, got %d", s.Len())
	}
	if len(s.cron.Entries()) != 1 {
		t.Fatalf("want 1 cron entry, got %d", len(s.cron.Entries()))
	}
	got, _ := s.Lookup("u1p1n1")
	if got.Payload.PaymentName != "Netflix Premium" {
		t.Fatalf("last write did not win: %+v", got.Payload)
	}
}

func TestSchedule_RejectsInvalidRule(t *testing.T) {
	s := newTestScheduler(nil, &fakeSender{})

	for _, days := range []int{0, 20} {
		if _, err := s.Schedule(target(1, 1, 1, 7, days)); !errors.Is(err, domain.ErrDaysBeforeRange) {
			t.Fatalf("days=%d: want ErrDaysBeforeRange, got %v", days, err)
		}
	}
	if s.Len() != 0 {
		t.Fatalf("invalid rule was scheduled")
	}
}

func TestCancel_IsIdempotentAndIsolated(t *testing.T) {
	s := newTestScheduler(nil, &fakeSender{})

	_, _ = s.Schedule(target(1, 1, 1, 7, 3))
	_, _ = s.Schedule(target(1, 1, 2, 7, 5))

	if !s.Cancel("u1p1n1") {
		t.Fatalf("first cancel should report removal")
	}
	if s.Cancel("u1p1n1") {
		t.Fatalf("second cancel should be a no-op")
	}
	if s.Cancel("u9p9n9") {
		t.Fatalf("cancel of unknown job should be a no-op")
	}
	if _, ok := s.Lookup("u1p1n2"); !ok {
		t.Fatalf("unrelated job was removed")
	}
	if len(s.cron.Entries()) != 1 {
		t.Fatalf("want 1 cron entry, got %d", len(s.cron.Entries()))
	}
}

func TestJobsForPayment(t *testing.T) {
	s := newTestScheduler(nil, &fakeSender{})

	_, _ = s.Schedule(target(1, 1, 1, 7, 3))
	_, _ = s.Schedule(target(1, 1, 2, 7, 5))
	_, _ = s.Schedule(target(1, 2, 3, 9, 1))

	jobs := s.JobsForPayment(1)
	if len(jobs) != 2 || jobs[0].ID != "u1p1n1" || jobs[1].ID != "u1p1n2" {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
	if all := s.Jobs(); len(all) != 3 {
		t.Fatalf("want 3 jobs, got %d", len(all))
	}
}

func TestDispatch_ResolvesLiveState(t *testing.T) {
	tg := target(1, 1, 1, 7, 3)
	r := &fakeResolver{targets: map[int64]domain.Target{1: tg}}
	snd := &fakeSender{}
	s := newTestScheduler(r, snd)

	job, _ := s.Schedule(tg)

	// Rename after scheduling: the reminder uses the name at fire time.
	live := tg
	live.User.Username = "Alice B."
	r.targets[1] = live

	s.dispatch(job)

	msgs := snd.all()
	if len(msgs) != 1 {
		t.Fatalf("want 1 message, got %d", len(msgs))
	}
	if msgs[0].chatID != 1001 {
		t.Fatalf("wrong recipient: %d", msgs[0].chatID)
	}
	if !strings.Contains(msgs[0].text, "Hi, Alice B.!") || !strings.Contains(msgs[0].text, "Netflix") {
		t.Fatalf("unexpected text: %q", msgs[0].text)
	}
}

func TestDispatch_SendFailureKeepsJob(t *testing.T) {
	snd := &fakeSender{err: errors.New("bot was blocked by the user")}
	s := newTestScheduler(nil, snd)

	job, _ := s.Schedule(target(1, 1, 1, 7, 3))
	s.dispatch(job)

	if _, ok := s.Lookup(job.ID); !ok {
		t.Fatalf("job must survive a delivery failure")
	}
}

func TestDispatch_MissingRuleSkipsSend(t *testing.T) {
	snd := &fakeSender{}
	s := newTestScheduler(&fakeResolver{targets: map[int64]domain.Target{}}, snd)

	job, _ := s.Schedule(target(1, 1, 1, 7, 3))
	s.dispatch(job)

	if len(snd.all()) != 0 {
		t.Fatalf("reminder for a deleted rule was sent")
	}
}

func TestDispatch_ResolveErrorFallsBackToSnapshot(t *testing.T) {
	snd := &fakeSender{}
	s := newTestScheduler(&fakeResolver{err: errors.New("database is locked")}, snd)

	job, _ := s.Schedule(target(1, 1, 1, 7, 3))
	s.dispatch(job)

	msgs := snd.all()
	if len(msgs) != 1 || !strings.Contains(msgs[0].text, "Hi, alice!") {
		t.Fatalf("snapshot not sent: %+v", msgs)
	}
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler(nil, &fakeSender{})
	_, _ = s.Schedule(target(1, 1, 1, 7, 3))

	s.Start()
	// Jobs can still be managed while the engine runs.
	_, _ = s.Schedule(target(1, 1, 2, 7, 4))
	s.Cancel("u1p1n1")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("want 1 job, got %d", s.Len())
	}
}
