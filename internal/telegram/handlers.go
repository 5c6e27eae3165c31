package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/payment-bot/internal/domain"
)

// ensureUser makes sure a user row exists for the chat.
func (r *Router) ensureUser(ctx context.Context, chatID int64, username string) (*domain.User, error) {
	return r.repo.EnsureUser(ctx, chatID, username, r.isAdmin(chatID))
}

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	_, _ = r.bot.Send(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

// sendMenu sends text with the main reply keyboard.
func (r *Router) sendMenu(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	isAdmin := r.isAdmin(chatID)
	if u, err := r.repo.GetUserByTelegramID(ctx, chatID); err == nil {
		isAdmin = isAdmin || u.IsAdmin
	}
	msg.ReplyMarkup = mainMenuKeyboard(isAdmin)
	_, _ = r.bot.Send(msg)
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, chatID int64, username string) {
	if _, err := r.ensureUser(ctx, chatID, username); err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, "Profile initialization error. Please try again later.")
		return
	}
	r.sendMenu(ctx, chatID, startText)
}

// --- Rename flow ---

func (r *Router) askRename(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, askNameText)
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	_, _ = r.bot.Send(msg)
	r.setPending(chatID, pendingRename)
}

func (r *Router) rename(ctx context.Context, chatID int64, name string) {
	if name == "" || len(name) > 64 {
		r.sendText(chatID, "Please send a name of 1 to 64 characters.")
		r.setPending(chatID, pendingRename)
		return
	}
	if _, err := r.ensureUser(ctx, chatID, ""); err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, genericErrorText)
		return
	}
	if err := r.repo.RenameUser(ctx, chatID, name); err != nil {
		r.log.Error("rename failed", zap.Error(err))
		r.sendText(chatID, "Could not save your name.")
		return
	}
	r.sendMenu(ctx, chatID, "Great, I will call you "+name+" from now on!")
}

// --- Payments ---

func (r *Router) handlePayments(ctx context.Context, chatID int64) {
	u, err := r.ensureUser(ctx, chatID, "")
	if err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, genericErrorText)
		return
	}
	payments, err := r.repo.ListPayments(ctx, u.ID)
	if err != nil {
		r.log.Error("list payments failed", zap.Error(err))
		r.sendText(chatID, genericErrorText)
		return
	}

	var b strings.Builder
	if len(payments) == 0 {
		b.WriteString(noPaymentsText)
	} else {
		b.WriteString("Your payments:")
		for i, p := range payments {
			fmt.Fprintf(&b, "\n%d.\t%s — %s, %s", i+1, p.Name, domain.FormatPrice(p.Price), domain.FormatDueDay(p.DueDay()))
		}
	}
	msg := tgbotapi.NewMessage(chatID, b.String())
	msg.ReplyMarkup = paymentsKeyboard(payments)
	_, _ = r.bot.Send(msg)
}

func (r *Router) askPayment(chatID int64) {
	r.sendText(chatID, askPaymentText)
	r.setPending(chatID, pendingPayment)
}

func (r *Router) addPayment(ctx context.Context, chatID int64, text string) {
	d, err := domain.ParsePaymentDraft(text, time.Now().In(r.loc))
	if err != nil {
		r.sendText(chatID, "Invalid payment: "+err.Error()+"\n\n"+askPaymentText)
		r.setPending(chatID, pendingPayment)
		return
	}
	u, err := r.ensureUser(ctx, chatID, "")
	if err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, genericErrorText)
		return
	}
	p, err := r.repo.CreatePayment(ctx, u.ID, d)
	if errors.Is(err, domain.ErrDuplicatePayment) {
		r.sendText(chatID, "You already have a payment called "+d.Name+". Pick another name.")
		r.setPending(chatID, pendingPayment)
		return
	}
	if err != nil {
		r.log.Error("create payment failed", zap.Error(err))
		r.sendText(chatID, "Could not save the payment.")
		return
	}
	r.selection.Touch(chatID, p.ID)
	r.showPayment(ctx, chatID, p)
}

func (r *Router) handleSelectPayment(ctx context.Context, chatID int64, raw string) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return
	}
	p, err := r.ownedPayment(ctx, chatID, id)
	if err != nil {
		r.sendText(chatID, selectionGoneText)
		return
	}
	r.selection.Touch(chatID, p.ID)
	r.showPayment(ctx, chatID, p)
}

func (r *Router) showPayment(ctx context.Context, chatID int64, p *domain.Payment) {
	rules, err := r.repo.ListNotifications(ctx, p.ID)
	if err != nil {
		r.log.Error("list notifications failed", zap.Error(err))
	}
	desc := p.Description
	if desc == "" {
		desc = "—"
	}
	body := fmt.Sprintf(paymentCardFmt, p.Name, desc, domain.FormatPrice(p.Price), domain.FormatDueDay(p.DueDay()), len(rules))
	msg := tgbotapi.NewMessage(chatID, body)
	msg.ReplyMarkup = paymentKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleDeletePayment(ctx context.Context, chatID int64) {
	p, ok := r.selectedPayment(ctx, chatID)
	if !ok {
		return
	}
	if _, err := r.reminders.DeletePayment(ctx, p.ID); err != nil {
		r.log.Error("delete payment failed", zap.Error(err), zap.Int64("payment_id", p.ID))
		r.sendText(chatID, "Could not delete the payment.")
		return
	}
	r.selection.Clear(chatID)
	r.sendText(chatID, "Payment "+p.Name+" deleted.")
	r.handlePayments(ctx, chatID)
}

// ownedPayment loads a payment and checks it belongs to the chat's user.
func (r *Router) ownedPayment(ctx context.Context, chatID, paymentID int64) (*domain.Payment, error) {
	u, err := r.repo.GetUserByTelegramID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	p, err := r.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.UserID != u.ID {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// selectedPayment returns the payment remembered in the selection cache.
// It tells the user and returns false if there is none.
func (r *Router) selectedPayment(ctx context.Context, chatID int64) (*domain.Payment, bool) {
	id, ok := r.selection.Get(chatID)
	if !ok {
		r.sendText(chatID, selectionGoneText)
		return nil, false
	}
	p, err := r.ownedPayment(ctx, chatID, id)
	if err != nil {
		r.selection.Clear(chatID)
		r.sendText(chatID, selectionGoneText)
		return nil, false
	}
	r.selection.Touch(chatID, p.ID)
	return p, true
}

// --- Reminders ---

func (r *Router) handleReminders(ctx context.Context, chatID int64) {
	p, ok := r.selectedPayment(ctx, chatID)
	if !ok {
		return
	}
	rules, err := r.repo.ListNotifications(ctx, p.ID)
	if err != nil {
		r.log.Error("list notifications failed", zap.Error(err))
		r.sendText(chatID, genericErrorText)
		return
	}

	jobs := make(map[int64]time.Time)
	now := time.Now()
	for _, j := range r.reminders.Reminders(p.ID) {
		jobs[j.Ref.NotificationID] = j.Next(now)
	}

	var b strings.Builder
	if len(rules) == 0 {
		b.WriteString(noRemindersText)
	} else {
		b.WriteString("Reminders for " + p.Name + ":")
		for i, n := range rules {
			next := "not scheduled"
			if t, ok := jobs[n.ID]; ok && !t.IsZero() {
				next = t.In(r.loc).Format(nextDateLayout)
			}
			b.WriteString("\n")
			fmt.Fprintf(&b, reminderLineFmt, i+1, domain.DaysLeft(n.DaysBefore), next)
		}
	}
	msg := tgbotapi.NewMessage(chatID, b.String())
	msg.ReplyMarkup = remindersKeyboard(rules)
	_, _ = r.bot.Send(msg)
}

func (r *Router) askReminder(ctx context.Context, chatID int64) {
	if _, ok := r.selectedPayment(ctx, chatID); !ok {
		return
	}
	r.sendText(chatID, askDaysText)
	r.setPending(chatID, pendingReminder)
}

func (r *Router) addReminder(ctx context.Context, chatID int64, text string) {
	days, err := domain.ParseDaysBefore(text)
	if err != nil {
		r.sendText(chatID, daysRangeErrorText)
		r.setPending(chatID, pendingReminder)
		return
	}
	p, ok := r.selectedPayment(ctx, chatID)
	if !ok {
		return
	}
	_, created, err := r.reminders.AddReminder(ctx, p.ID, days)
	if err != nil {
		r.log.Error("add reminder failed", zap.Error(err), zap.Int64("payment_id", p.ID))
		r.sendText(chatID, "Could not add the reminder.")
		return
	}
	if !created {
		r.sendText(chatID, "You already have a reminder "+domain.DaysLeft(days)+" before "+p.Name+".")
	} else {
		r.sendText(chatID, "Done! I will remind you "+domain.DaysLeft(days)+" before "+p.Name+" is due.")
	}
	r.handleReminders(ctx, chatID)
}

func (r *Router) handleDeleteReminder(ctx context.Context, chatID int64, raw string) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return
	}
	p, ok := r.selectedPayment(ctx, chatID)
	if !ok {
		return
	}
	n, err := r.repo.GetNotification(ctx, id)
	if err != nil || n.PaymentID != p.ID {
		r.sendText(chatID, "This reminder no longer exists.")
		r.handleReminders(ctx, chatID)
		return
	}
	if _, err := r.reminders.RemoveReminder(ctx, id); err != nil {
		r.log.Error("remove reminder failed", zap.Error(err), zap.Int64("notification_id", id))
		r.sendText(chatID, "Could not delete the reminder.")
		return
	}
	r.sendText(chatID, "Reminder deleted.")
	r.handleReminders(ctx, chatID)
}

// --- Broadcast (admins only) ---

func (r *Router) askBroadcast(chatID int64) {
	if !r.isAdmin(chatID) {
		return
	}
	r.sendText(chatID, askBroadcastText)
	r.setPending(chatID, pendingBroadcast)
}

func (r *Router) broadcast(ctx context.Context, chatID int64, text string) {
	if !r.isAdmin(chatID) || text == "" {
		return
	}
	users, err := r.repo.ListUsers(ctx)
	if err != nil {
		r.log.Error("list users failed", zap.Error(err))
		r.sendText(chatID, genericErrorText)
		return
	}
	failed := 0
	for _, u := range users {
		if err := r.SendMessage(u.TelegramID, text); err != nil {
			failed++
			r.log.Warn("broadcast send failed", zap.Error(err), zap.Int64("chatID", u.TelegramID))
		}
	}
	r.sendMenu(ctx, chatID, fmt.Sprintf("Broadcast sent to %d of %d users.", len(users)-failed, len(users)))
}

// --- Free-form dispatcher (for all pending inputs) ---

func (r *Router) handleFreeForm(ctx context.Context, chatID int64, text string) {
	pending := r.getPending(chatID)
	r.clearPending(chatID)

	switch pending {
	case pendingRename:
		r.rename(ctx, chatID, text)
	case pendingPayment:
		r.addPayment(ctx, chatID, text)
	case pendingReminder:
		r.addReminder(ctx, chatID, text)
	case pendingBroadcast:
		r.broadcast(ctx, chatID, text)
	default:
		// No pending flow: ignore free-form message
	}
}
