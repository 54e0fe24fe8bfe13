package market

import (
	"time"
)

// Schedule holds the regular session hours in US Eastern Time.
type Schedule struct {
	OpenHour  int
	OpenMin   int
	CloseHour int
	CloseMin  int
}

// DefaultSchedule is the NYSE/NASDAQ regular session
func DefaultSchedule() Schedule {
	return Schedule{
		OpenHour:  9,
		OpenMin:   30,
		CloseHour: 16,
		CloseMin:  0,
	}
}

// Status describes whether the market is open and when it changes state.
type Status struct {
	IsOpen        bool
	CurrentTimeET time.Time
	OpenTime      time.Time
	CloseTime     time.Time
	Reason        string // "open", "weekend", "holiday", "pre-market", "after-hours"
}

// ETLocation returns the US Eastern timezone, falling back to a fixed EST
// offset when the tz database is unavailable
func ETLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// GetStatus evaluates the schedule at the given instant
func GetStatus(schedule Schedule, now time.Time) Status {
	loc := ETLocation()
	now = now.In(loc)

	status := Status{CurrentTimeET: now}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	status.OpenTime = today.Add(time.Duration(schedule.OpenHour)*time.Hour + time.Duration(schedule.OpenMin)*time.Minute)
	status.CloseTime = today.Add(time.Duration(schedule.CloseHour)*time.Hour + time.Duration(schedule.CloseMin)*time.Minute)

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		status.Reason = "weekend"
		return status
	}
	if IsUSHoliday(now) {
		status.Reason = "holiday"
		return status
	}

	switch {
	case now.Before(status.OpenTime):
		status.Reason = "pre-market"
	case !now.Before(status.CloseTime):
		status.Reason = "after-hours"
	default:
		status.IsOpen = true
		status.Reason = "open"
	}
	return status
}

// IsTradingDay reports whether t falls on a regular session day
func IsTradingDay(t time.Time) bool {
	t = t.In(ETLocation())
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !IsUSHoliday(t)
}

// PriorClose returns the most recent completed session close at or before
// now. During a session (or before it opens) that is the previous trading
// day's close; after hours it is today's.
func PriorClose(now time.Time) time.Time {
	loc := ETLocation()
	now = now.In(loc)
	schedule := DefaultSchedule()

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	closeToday := day.Add(time.Duration(schedule.CloseHour)*time.Hour + time.Duration(schedule.CloseMin)*time.Minute)

	if IsTradingDay(now) && !now.Before(closeToday) {
		return closeToday
	}

	for {
		day = day.AddDate(0, 0, -1)
		if IsTradingDay(day) {
			return day.Add(time.Duration(schedule.CloseHour)*time.Hour + time.Duration(schedule.CloseMin)*time.Minute)
		}
	}
}

var usHolidays = []string{
	"2024-01-01", // New Year's Day
	"2024-01-15", // MLK Day
	"2024-02-19", // Presidents Day
	"2024-03-29", // Good Friday
	"2024-05-27", // Memorial Day
	"2024-06-19", // Juneteenth
	"2024-07-04", // Independence Day
	"2024-09-02", // Labor Day
	"2024-11-28", // Thanksgiving
	"2024-12-25", // Christmas

	"2025-01-01", // New Year's Day
	"2025-01-20", // MLK Day
	"2025-02-17", // Presidents Day
	"2025-04-18", // Good Friday
	"2025-05-26", // Memorial Day
	"2025-06-19", // Juneteenth
	"2025-07-04", // Independence Day
	"2025-09-01", // Labor Day
	"2025-11-27", // Thanksgiving
	"2025-12-25", // Christmas

	"2026-01-01", // New Year's Day
	"2026-01-19", // MLK Day
	"2026-02-16", // Presidents Day
	"2026-04-03", // Good Friday
	"2026-05-25", // Memorial Day
	"2026-06-19", // Juneteenth
	"2026-07-03", // Independence Day (observed)
	"2026-09-07", // Labor Day
	"2026-11-26", // Thanksgiving
	"2026-12-25", // Christmas
}

// IsUSHoliday checks the major US market holidays
func IsUSHoliday(t time.Time) bool {
	dateStr := t.Format("2006-01-02")
	for _, h := range usHolidays {
		if h == dateStr {
			return true
		}
	}
	return false
}
