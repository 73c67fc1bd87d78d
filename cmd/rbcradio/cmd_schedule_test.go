package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rbctelevision/rbcradio/internal/schedule"
)

func TestPrintDayViewMarksOnAir(t *testing.T) {
	view := schedule.DayView{
		Heading: "Monday, Jan 6",
		Entries: []schedule.EntryView{
			{Entry: schedule.Entry{Name: "Morning Drive"}, StartLabel: "7:00 AM", EndLabel: "9:00 AM", OnAir: true},
			{Entry: schedule.Entry{Name: "Lunch Mix"}, StartLabel: "12:00 PM", EndLabel: "1:00 PM"},
		},
	}

	var out bytes.Buffer
	if err := printDayView(&out, view); err != nil {
		t.Fatalf("printDayView: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want heading plus 2 entries:\n%s", len(lines), out.String())
	}
	if lines[0] != "Monday, Jan 6" {
		t.Fatalf("heading=%q", lines[0])
	}
	if !strings.Contains(lines[1], "Morning Drive") || !strings.HasSuffix(lines[1], "ON AIR") {
		t.Fatalf("on-air line=%q", lines[1])
	}
	if strings.Contains(lines[2], "ON AIR") {
		t.Fatalf("off-air line marked on air: %q", lines[2])
	}
}

func TestPrintDayViewEmpty(t *testing.T) {
	var out bytes.Buffer
	view := schedule.DayView{Heading: "Tuesday, Jan 7", Empty: true, Message: "No shows available for this day."}
	if err := printDayView(&out, view); err != nil {
		t.Fatalf("printDayView: %v", err)
	}
	if got := out.String(); got != "Tuesday, Jan 7\nNo shows available for this day.\n" {
		t.Fatalf("output=%q", got)
	}
}
