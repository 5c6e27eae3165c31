package domain

import "time"

// Trigger fires once a month, DaysBefore days before the payment's due day,
// at a fixed hour in a fixed location. Month and year are wildcards.
//
// Trigger satisfies cron.Schedule from github.com/robfig/cron/v3.
type Trigger struct {
	dueDay     int
	daysBefore int
	hour       int
	loc        *time.Location
}

// NewTrigger validates its arguments. A nil loc means UTC.
func NewTrigger(dueDay, daysBefore, hour int, loc *time.Location) (Trigger, error) {
	if dueDay < 1 || dueDay > 31 {
		return Trigger{}, ErrInvalidDueDay
	}
	if err := ValidateDaysBefore(daysBefore); err != nil {
		return Trigger{}, err
	}
	if hour < 0 || hour > 23 {
		return Trigger{}, ErrInvalidHour
	}
	if loc == nil {
		loc = time.UTC
	}
	return Trigger{dueDay: dueDay, daysBefore: daysBefore, hour: hour, loc: loc}, nil
}

// Day is the nominal day of month the trigger fires on: due day minus days
// before. Zero or negative values count back from the end of the previous
// month (0 is its last day, -1 the one before, and so on).
func (t Trigger) Day() int { return t.dueDay - t.daysBefore }

func (t Trigger) Hour() int                { return t.hour }
func (t Trigger) DueDay() int              { return t.dueDay }
func (t Trigger) DaysBefore() int          { return t.daysBefore }
func (t Trigger) Location() *time.Location { return t.loc }

// Next returns the first firing strictly after now. The result is in the
// trigger's location.
func (t Trigger) Next(now time.Time) time.Time {
	if t.loc == nil {
		return time.Time{}
	}
	local := now.In(t.loc)
	// Start one month back: a due date next month may fire this month.
	y, m := local.Year(), local.Month()-1
	for i := 0; i < 4; i++ {
		fire := t.fireFor(y, m+time.Month(i))
		if fire.After(local) {
			return fire
		}
	}
	// Unreachable for a valid trigger; one due date per month always lands
	// within the window scanned above.
	return time.Time{}
}

// fireFor computes the firing for the due date in month m of year y.
// time.Date normalizes out-of-range months and days.
func (t Trigger) fireFor(y int, m time.Month) time.Time {
	first := time.Date(y, m, 1, 0, 0, 0, 0, t.loc)
	due := t.dueDay
	if last := daysIn(first); due > last {
		due = last
	}
	return time.Date(first.Year(), first.Month(), due-t.daysBefore, t.hour, 0, 0, 0, t.loc)
}

// daysIn returns the number of days in the month of t.
func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
