package telegram

import (
	"strings"
	"testing"

	"github.com/ykvlv/payment-bot/internal/domain"
)

func TestMainMenuKeyboard_AdminGetsBroadcast(t *testing.T) {
	if rows := mainMenuKeyboard(false).Keyboard; len(rows) != 1 {
		t.Fatalf("want 1 row for users, got %d", len(rows))
	}
	rows := mainMenuKeyboard(true).Keyboard
	if len(rows) != 2 || rows[1][0].Text != btnBroadcast {
		t.Fatalf("admin keyboard lacks broadcast: %+v", rows)
	}
}

func TestPaymentsKeyboard(t *testing.T) {
	var payments []domain.Payment
	for i := int64(1); i <= 7; i++ {
		payments = append(payments, domain.Payment{ID: i * 10})
	}
	kb := paymentsKeyboard(payments).InlineKeyboard

	// 5 + 2 numbered buttons, then the Add row.
	if len(kb) != 3 || len(kb[0]) != 5 || len(kb[1]) != 2 {
		t.Fatalf("unexpected layout: %+v", kb)
	}
	if kb[0][0].Text != "1" || *kb[0][0].CallbackData != "pay:10" {
		t.Fatalf("unexpected first button: %+v", kb[0][0])
	}
	if *kb[2][0].CallbackData != cbPaymentAdd {
		t.Fatalf("last row is not Add: %+v", kb[2])
	}
	if !strings.HasPrefix(*kb[1][1].CallbackData, cbPaymentPrefix) {
		t.Fatalf("unexpected callback: %s", *kb[1][1].CallbackData)
	}
}

func TestRemindersKeyboard(t *testing.T) {
	kb := remindersKeyboard([]domain.Notification{{ID: 5, DaysBefore: 1}, {ID: 6, DaysBefore: 3}}).InlineKeyboard
	if len(kb) != 3 {
		t.Fatalf("want 3 rows, got %d", len(kb))
	}
	if *kb[1][0].CallbackData != "notif_del:6" || !strings.Contains(kb[1][0].Text, "3 days") {
		t.Fatalf("unexpected button: %+v", kb[1][0])
	}
}
