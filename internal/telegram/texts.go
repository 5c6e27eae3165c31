package telegram

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ykvlv/payment-bot/internal/domain"
)

// Reply keyboard buttons.
const (
	btnRename    = "✏️ Change name"
	btnPayments  = "💳 Payments"
	btnBroadcast = "📣 Broadcast"
)

// Callback data.
const (
	cbPaymentAdd     = "pay:add"
	cbPaymentPrefix  = "pay:"
	cbPaymentDelete  = "pay_del"
	cbNotifList      = "notif_list"
	cbNotifAdd       = "notif_add"
	cbNotifDelPrefix = "notif_del:"
	cbBack           = "back"
)

// UI texts in English
const (
	startText = "👋 I keep track of your recurring payments and remind you before they are due.\n\n" +
		"Open 💳 Payments to add a payment, then add reminders a few days before its due date."
	askNameText        = "How should I call you from now on?"
	askPaymentText     = "Send the payment in one message:\nname; description; price; due day\n\nExample: Netflix; family plan; 9.99; 7"
	askDaysText        = "How many days before the due date should I remind you? (1–19)"
	askBroadcastText   = "Send the text to broadcast to every user, or /cancel."
	selectionGoneText  = "This payment is no longer selected. Open 💳 Payments and pick it again."
	noPaymentsText     = "You have no payments yet."
	noRemindersText    = "No reminders for this payment yet."
	cancelledText      = "Cancelled."
	genericErrorText   = "Something went wrong. Please try again later."
	paymentCardFmt     = "💳 %s\n%s\n• Price: %s\n• Due: %s\n• Reminders: %d"
	reminderLineFmt    = "%d. %s before (next: %s)"
	nextDateLayout     = "02 Jan 2006 15:04"
	daysRangeErrorText = "Please send a number from 1 to 19."
)

// mainMenuKeyboard builds the reply keyboard; admins also get Broadcast.
func mainMenuKeyboard(isAdmin bool) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnRename),
			tgbotapi.NewKeyboardButton(btnPayments),
		),
	}
	if isAdmin {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnBroadcast)))
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

// paymentsKeyboard has one numbered button per payment plus "Add".
func paymentsKeyboard(payments []domain.Payment) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, p := range payments {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			strconv.Itoa(i+1), cbPaymentPrefix+strconv.FormatInt(p.ID, 10)))
		if len(row) == 5 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("➕ Add", cbPaymentAdd),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func paymentKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔔 Add reminder", cbNotifAdd),
			tgbotapi.NewInlineKeyboardButtonData("📋 Reminders", cbNotifList),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", cbPaymentDelete),
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cbBack),
		),
	)
}

// remindersKeyboard has a delete button per rule.
func remindersKeyboard(rules []domain.Notification) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, n := range rules {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🗑 %d. %s before", i+1, domain.DaysLeft(n.DaysBefore)),
				cbNotifDelPrefix+strconv.FormatInt(n.ID, 10)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔔 Add reminder", cbNotifAdd),
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cbBack),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
