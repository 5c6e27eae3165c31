package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ykvlv/payment-bot/internal/domain"
)

// Sender is a minimal interface the scheduler needs to send a text message.
// telegram.Sender implements this.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Resolver loads the current state of a notification rule at fire time.
// store.SQLiteRepo implements this.
type Resolver interface {
	ResolveReminder(ctx context.Context, notificationID int64) (domain.Target, error)
}

// Job is a scheduled reminder derived from one notification rule.
type Job struct {
	ID      string
	Ref     domain.JobRef
	Trigger domain.Trigger
	Payload domain.Payload // snapshot taken when the job was scheduled
}

// Next returns the first firing of the job after t.
func (j Job) Next(t time.Time) time.Time {
	return j.Trigger.Next(t)
}

// Options configures a Scheduler.
type Options struct {
	Location        *time.Location // single fixed zone for all triggers
	Hour            int            // hour of day reminders fire at
	DispatchTimeout time.Duration  // budget for resolving a job at fire time
}

type entry struct {
	cronID cron.EntryID
	job    Job
}

// Scheduler keeps the reminder job table and fires jobs through a cron engine.
// The table lives in memory only; see reminder.Service.RehydrateAll.
type Scheduler struct {
	cron     *cron.Cron
	log      *zap.Logger
	sender   Sender
	resolver Resolver
	loc      *time.Location
	hour     int
	timeout  time.Duration

	mu   sync.Mutex
	jobs map[string]entry
}

// New creates a stopped Scheduler. resolver may be nil, in which case jobs
// always send their snapshot payload.
func New(resolver Resolver, sender Sender, log *zap.Logger, opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = 10 * time.Second
	}
	log = log.Named("scheduler")
	cl := cronLogger{log: log.Sugar()}

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(opts.Location),
			cron.WithLogger(cl),
			// A job never overlaps itself, and a panicking dispatch does not
			// take the engine down.
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:      log,
		sender:   sender,
		resolver: resolver,
		loc:      opts.Location,
		hour:     opts.Hour,
		timeout:  opts.DispatchTimeout,
		jobs:     make(map[string]entry),
	}
}

// Start runs the cron engine in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", s.Len()))
}

// Stop stops the engine and waits for running dispatches or ctx, whichever
// comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule registers the job for a resolved rule. An existing job with the
// same id is replaced, so scheduling the same rule twice is harmless.
func (s *Scheduler) Schedule(t domain.Target) (Job, error) {
	tr, err := domain.NewTrigger(t.Payment.DueDay(), t.Notification.DaysBefore, s.hour, s.loc)
	if err != nil {
		return Job{}, err
	}
	ref := t.Ref()
	job := Job{
		ID:      ref.Name(),
		Ref:     ref,
		Trigger: tr,
		Payload: t.Payload(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[job.ID]; ok {
		s.cron.Remove(old.cronID)
	}
	id := s.cron.Schedule(tr, cron.FuncJob(func() { s.dispatch(job) }))
	s.jobs[job.ID] = entry{cronID: id, job: job}

	s.log.Debug("job scheduled",
		zap.String("job_id", job.ID),
		zap.Int("day", tr.Day()),
		zap.Int("hour", tr.Hour()),
	)
	return job, nil
}

// Cancel removes a job. It reports whether the job existed; cancelling an
// unknown id is a no-op. A dispatch already running is not interrupted.
func (s *Scheduler) Cancel(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[jobID]
	if !ok {
		return false
	}
	s.cron.Remove(e.cronID)
	delete(s.jobs, jobID)
	s.log.Debug("job cancelled", zap.String("job_id", jobID))
	return true
}

// Lookup returns the job with the given id.
func (s *Scheduler) Lookup(jobID string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[jobID]
	return e.job, ok
}

// Jobs returns all jobs ordered by id.
func (s *Scheduler) Jobs() []Job {
	return s.filter(func(Job) bool { return true })
}

// JobsForPayment returns the jobs derived from one payment's rules.
func (s *Scheduler) JobsForPayment(paymentID int64) []Job {
	return s.filter(func(j Job) bool { return j.Ref.PaymentID == paymentID })
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) filter(keep func(Job) bool) []Job {
	s.mu.Lock()
	res := make([]Job, 0, len(s.jobs))
	for _, e := range s.jobs {
		if keep(e.job) {
			res = append(res, e.job)
		}
	}
	s.mu.Unlock()

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// dispatch sends one reminder. Failures are logged and never stop the job:
// the next recurrence is the retry.
func (s *Scheduler) dispatch(job Job) {
	log := s.log.With(zap.String("job_id", job.ID))
	payload := job.Payload

	if s.resolver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		target, err := s.resolver.ResolveReminder(ctx, job.Ref.NotificationID)
		cancel()
		switch {
		case errors.Is(err, domain.ErrNotFound):
			log.Warn("rule no longer exists, skipping reminder")
			return
		case err != nil:
			log.Warn("resolve failed, sending snapshot", zap.Error(err))
		default:
			payload = target.Payload()
		}
	}

	if err := s.sender.SendMessage(payload.RecipientID, domain.ReminderText(payload)); err != nil {
		log.Warn("send failed", zap.Error(err), zap.Int64("chatID", payload.RecipientID))
		return
	}
	log.Info("reminder sent", zap.Int64("chatID", payload.RecipientID))
}
