/*
Copyright (C) 2026 RBC Television

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"errors"
	"fmt"
	"time"
)

// EmptyDayMessage is shown instead of a blank pane.
const EmptyDayMessage = "No shows available for this day."

// ErrUnknownDay is returned when selecting a key outside the window.
var ErrUnknownDay = errors.New("day is not in the schedule window")

// Tab is a day in the selector strip.
type Tab struct {
	Day
	Selected bool `json:"selected"`
}

// EntryView is an entry formatted for display.
type EntryView struct {
	Entry
	StartLabel string `json:"start_label"`
	EndLabel   string `json:"end_label"`
	OnAir      bool   `json:"on_air"`
}

// DayView is what the selected tab shows.
type DayView struct {
	Day     Day         `json:"day"`
	Heading string      `json:"heading"`
	Entries []EntryView `json:"entries"`
	Empty   bool        `json:"empty"`
	Message string      `json:"message,omitempty"`
}

// Selector tracks the selected day. Switching days never refetches; all
// buckets are supplied up front.
type Selector struct {
	window   []Day
	buckets  map[string]Bucket
	loc      *time.Location
	selected string
}

// NewSelector starts on the first day of window, which is today.
func NewSelector(window []Day, buckets map[string]Bucket, loc *time.Location) *Selector {
	s := &Selector{window: window, buckets: buckets, loc: loc}
	if len(window) > 0 {
		s.selected = window[0].Key
	}
	return s
}

// Selected returns the current day key.
func (s *Selector) Selected() string {
	return s.selected
}

// Select switches to key. Unknown keys leave the selection unchanged.
func (s *Selector) Select(key string) error {
	for _, d := range s.window {
		if d.Key == key {
			s.selected = key
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownDay, key)
}

// Tabs returns the window with the selected day flagged.
func (s *Selector) Tabs() []Tab {
	tabs := make([]Tab, len(s.window))
	for i, d := range s.window {
		tabs[i] = Tab{Day: d, Selected: d.Key == s.selected}
	}
	return tabs
}

// View renders the selected day.
func (s *Selector) View() DayView {
	var day Day
	for _, d := range s.window {
		if d.Key == s.selected {
			day = d
			break
		}
	}

	view := DayView{Day: day, Heading: day.Date.Format("Monday, January 2")}
	for _, e := range s.buckets[s.selected].Entries {
		view.Entries = append(view.Entries, EntryView{
			Entry:      e,
			StartLabel: e.Start.In(s.loc).Format("03:04 PM"),
			EndLabel:   e.End.In(s.loc).Format("03:04 PM"),
			OnAir:      e.IsNow,
		})
	}
	if len(view.Entries) == 0 {
		view.Empty = true
		view.Message = EmptyDayMessage
		view.Entries = []EntryView{}
	}
	return view
}
