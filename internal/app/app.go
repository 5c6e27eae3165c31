package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/payment-bot/internal/config"
	"github.com/ykvlv/payment-bot/internal/reminder"
	"github.com/ykvlv/payment-bot/internal/scheduler"
	"github.com/ykvlv/payment-bot/internal/selection"
	"github.com/ykvlv/payment-bot/internal/store"
	"github.com/ykvlv/payment-bot/internal/telegram"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
	loc     *time.Location

	repo      store.Repo
	sched     *scheduler.Scheduler
	reminders *reminder.Service
	selection *selection.Cache
	router    *telegram.Router
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, bot: bot, httpSrv: srv, loc: loc}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting payment-bot",
		zap.String("mode", a.cfg.RunMode),
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("tz", a.loc.String()),
		zap.Int("remind_hour", a.cfg.RemindHour),
	)

	// Open SQLite and run migrations.
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.selection = selection.New(a.cfg.SelectionTTL)
	a.sched = scheduler.New(repo, telegram.NewSender(a.bot), a.log, scheduler.Options{
		Location:        a.loc,
		Hour:            a.cfg.RemindHour,
		DispatchTimeout: a.cfg.DispatchTimeout,
	})
	a.reminders = reminder.New(repo, a.sched, a.log)
	a.router = telegram.NewRouter(a.bot, a.log, telegram.Deps{
		Repo:      repo,
		Reminders: a.reminders,
		Selection: a.selection,
		Location:  a.loc,
		IsAdmin:   a.cfg.IsAdmin,
	})

	// The job table starts empty on every start: rebuild it before taking traffic.
	res, err := a.reminders.RehydrateAll(ctx)
	if err != nil {
		a.log.Error("rehydrate failed", zap.Error(err))
		_ = a.repo.Close()
		return err
	}
	if res.Failed > 0 {
		a.log.Warn("some reminders could not be restored", zap.Int("failed", res.Failed))
	}
	a.sched.Start()
	go a.selection.Run(ctx, a.cfg.SelectionSweep, a.log.Named("selection"))

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.shutdown()
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}

// shutdown stops intake first, then lets running reminders finish.
func (a *App) shutdown() {
	a.bot.StopReceivingUpdates()

	// Create a short-lived shutdown context and cancel it immediately after use.
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.httpSrv.Shutdown(shCtx); err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}
	if err := a.sched.Stop(shCtx); err != nil {
		a.log.Warn("scheduler shutdown error", zap.Error(err))
	}
	if a.repo != nil {
		_ = a.repo.Close()
	}
}
