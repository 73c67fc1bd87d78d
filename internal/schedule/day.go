/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule builds the listener-facing schedule view: a window of
// upcoming days, programming bucketed by local day, and a day selector.
package schedule

import (
	"fmt"
	"time"
)

// DefaultWindowDays is today plus the following nine days.
const DefaultWindowDays = 10

// DayKey formats t's calendar date in loc as YYYY-MM-DD. The date
// components are read after converting to loc, never from a UTC-truncated instant.
func DayKey(t time.Time, loc *time.Location) string {
	y, m, d := t.In(loc).Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)
}

// Day is one tab of the day window.
type Day struct {
	Key     string    `json:"key"`
	Date    time.Time `json:"date"`
	Weekday string    `json:"weekday"`
	Label   string    `json:"label"`
}

// Window returns n consecutive calendar days in loc starting with the day containing now.
// n <= 0 uses DefaultWindowDays.
func Window(now time.Time, loc *time.Location, n int) []Day {
	if n <= 0 {
		n = DefaultWindowDays
	}
	y, m, d := now.In(loc).Date()

	days := make([]Day, 0, n)
	for i := 0; i < n; i++ {
		// time.Date normalises d+i across month ends and DST shifts.
		date := time.Date(y, m, d+i, 0, 0, 0, 0, loc)
		days = append(days, Day{
			Key:     DayKey(date, loc),
			Date:    date,
			Weekday: date.Format("Monday"),
			Label:   date.Format("Jan 2"),
		})
	}
	return days
}
