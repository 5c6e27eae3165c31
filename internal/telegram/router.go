package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/payment-bot/internal/reminder"
	"github.com/ykvlv/payment-bot/internal/selection"
	"github.com/ykvlv/payment-bot/internal/store"
)

// Pending state keys used in conversational flows.
const (
	pendingRename    = "await_name_text"
	pendingPayment   = "await_payment_text"
	pendingReminder  = "await_days_text"
	pendingBroadcast = "await_broadcast_text"
)

// Deps are the collaborators a Router works with.
type Deps struct {
	Repo      store.Repo
	Reminders *reminder.Service
	Selection *selection.Cache
	Location  *time.Location   // used to show next reminder dates
	IsAdmin   func(int64) bool // from ADMIN_IDS
}

// Router wires Telegram updates to handlers and holds minimal in-memory state.
type Router struct {
	bot       *tgbotapi.BotAPI
	sender    *Sender
	log       *zap.Logger
	repo      store.Repo
	reminders *reminder.Service
	selection *selection.Cache
	loc       *time.Location
	isAdmin   func(int64) bool

	state map[int64]string // chatID -> pending state
	mu    sync.RWMutex
}

// NewRouter creates a new Telegram router.
func NewRouter(bot *tgbotapi.BotAPI, log *zap.Logger, d Deps) *Router {
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.IsAdmin == nil {
		d.IsAdmin = func(int64) bool { return false }
	}
	return &Router{
		bot:       bot,
		sender:    NewSender(bot),
		log:       log.Named("telegram"),
		repo:      d.Repo,
		reminders: d.Reminders,
		selection: d.Selection,
		loc:       d.Location,
		isAdmin:   d.IsAdmin,
		state:     make(map[int64]string),
	}
}

// setPending sets a pending state for a chat (non-persistent, in-memory).
func (r *Router) setPending(chatID int64, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = s
}

// getPending returns current pending state for a chat.
func (r *Router) getPending(chatID int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[chatID]
}

// clearPending clears a pending state for a chat.
func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// HandleUpdate routes a single update to appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	// Text messages
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		text := strings.TrimSpace(msg.Text)
		username := ""
		if msg.From != nil {
			username = msg.From.UserName
		}

		switch {
		case strings.HasPrefix(text, "/start"), strings.HasPrefix(text, "/help"):
			r.clearPending(chatID)
			r.handleStart(ctx, chatID, username)
		case strings.HasPrefix(text, "/cancel"):
			r.clearPending(chatID)
			r.sendMenu(ctx, chatID, cancelledText)
		case text == btnRename:
			r.askRename(chatID)
		case text == btnPayments, strings.HasPrefix(text, "/payments"):
			r.clearPending(chatID)
			r.handlePayments(ctx, chatID)
		case text == btnBroadcast:
			r.askBroadcast(chatID)
		default:
			// Free-form text used by the pending flows.
			r.handleFreeForm(ctx, chatID, text)
		}
		return
	}

	// Callback queries (inline buttons)
	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		if cb.Message == nil {
			return
		}
		data := cb.Data
		chatID := cb.Message.Chat.ID
		_ = r.answerCallback(cb.ID, "")

		switch {
		case data == cbPaymentAdd:
			r.askPayment(chatID)
		case strings.HasPrefix(data, cbPaymentPrefix):
			r.handleSelectPayment(ctx, chatID, strings.TrimPrefix(data, cbPaymentPrefix))
		case data == cbPaymentDelete:
			r.handleDeletePayment(ctx, chatID)
		case data == cbNotifList:
			r.handleReminders(ctx, chatID)
		case data == cbNotifAdd:
			r.askReminder(ctx, chatID)
		case strings.HasPrefix(data, cbNotifDelPrefix):
			r.handleDeleteReminder(ctx, chatID, strings.TrimPrefix(data, cbNotifDelPrefix))
		case data == cbBack:
			r.selection.Clear(chatID)
			r.handlePayments(ctx, chatID)
		default:
			// Unknown callback: ignore.
		}
		return
	}
}

// SendMessage sends a plain text message to the given chat.
func (r *Router) SendMessage(chatID int64, text string) error {
	return r.sender.SendMessage(chatID, text)
}
