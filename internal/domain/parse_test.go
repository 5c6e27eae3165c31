package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParsePaymentDraft(t *testing.T) {
	now := time.Date(2025, time.May, 5, 12, 0, 0, 0, time.UTC)

	d, err := ParsePaymentDraft("Netflix; family plan; 9,99; 7", now)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Name != "Netflix" || d.Description != "family plan" {
		t.Fatalf("unexpected draft: %+v", d)
	}
	if !d.Price.Equal(decimal.RequireFromString("9.99")) {
		t.Fatalf("want 9.99, got %s", d.Price)
	}
	if d.DueDate.Day() != 7 {
		t.Fatalf("want due day 7, got %d", d.DueDate.Day())
	}

	d, err = ParsePaymentDraft("Rent;;500;2025-06-01", now)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.DueDate.Day() != 1 || d.DueDate.Month() != time.June {
		t.Fatalf("unexpected due date: %s", d.DueDate)
	}
}

func TestParsePaymentDraft_Errors(t *testing.T) {
	now := time.Now()
	cases := []string{
		"",
		"only; three; parts",
		"; desc; 1; 7",
		"Name; desc; abc; 7",
		"Name; desc; -1; 7",
		"Name; desc; 1; 32",
		"Name; desc; 1; someday",
	}
	for _, c := range cases {
		if _, err := ParsePaymentDraft(c, now); err == nil {
			t.Fatalf("%q: expected error", c)
		}
	}
}

func TestParseDueDate_Day31KeepsDay(t *testing.T) {
	d, err := ParseDueDate("31", time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Day() != 31 {
		t.Fatalf("want 31, got %d", d.Day())
	}
}

func TestParseDueDate_DayMonth(t *testing.T) {
	d, err := ParseDueDate("07.05", time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Year() != 2025 || d.Month() != time.May || d.Day() != 7 {
		t.Fatalf("unexpected date %s", d)
	}
}

func TestParseDaysBefore(t *testing.T) {
	for _, s := range []string{"1", " 19 ", "7"} {
		if _, err := ParseDaysBefore(s); err != nil {
			t.Fatalf("%q: %v", s, err)
		}
	}
	for _, s := range []string{"0", "20", "-3", "x", ""} {
		if _, err := ParseDaysBefore(s); !errors.Is(err, ErrDaysBeforeRange) {
			t.Fatalf("%q: want ErrDaysBeforeRange, got %v", s, err)
		}
	}
}

func TestOrdinal(t *testing.T) {
	cases := map[int]string{1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 11: "11th", 12: "12th", 13: "13th", 21: "21st", 22: "22nd", 31: "31st"}
	for n, want := range cases {
		if got := Ordinal(n); got != want {
			t.Fatalf("%d: want %s, got %s", n, want, got)
		}
	}
}
