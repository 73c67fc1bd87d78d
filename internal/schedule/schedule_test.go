package schedule

import (
	"encoding/json"
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"
)

var est = time.FixedZone("EST", -5*3600)

func at(loc *time.Location, y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, loc)
}

func TestDayKeyUsesLocalDateNearMidnight(t *testing.T) {
	// 23:30 EST on Jan 1 is already Jan 2 in UTC.
	ts := at(est, 2025, time.January, 1, 23, 30)
	if got := DayKey(ts, est); got != "2025-01-01" {
		t.Fatalf("DayKey=%q, want 2025-01-01", got)
	}
	if got := DayKey(ts, time.UTC); got != "2025-01-02" {
		t.Fatalf("DayKey UTC=%q, want 2025-01-02", got)
	}
}

func TestWindowShape(t *testing.T) {
	instants := []time.Time{
		at(est, 2025, time.January, 1, 0, 0),
		at(est, 2025, time.January, 28, 23, 59),
		at(est, 2024, time.February, 25, 12, 0),
		at(est, 2024, time.December, 30, 6, 0),
	}
	for _, now := range instants {
		days := Window(now, est, DefaultWindowDays)
		if len(days) != 10 {
			t.Fatalf("len=%d, want 10", len(days))
		}
		if days[0].Key != DayKey(now, est) {
			t.Fatalf("first key=%q, want %q", days[0].Key, DayKey(now, est))
		}
		for i := 1; i < len(days); i++ {
			if days[i].Key <= days[i-1].Key {
				t.Fatalf("keys not ascending at %d: %q <= %q", i, days[i].Key, days[i-1].Key)
			}
			if want := days[i-1].Date.AddDate(0, 0, 1); !days[i].Date.Equal(want) {
				t.Fatalf("gap between %q and %q", days[i-1].Key, days[i].Key)
			}
		}
	}
}

func TestWindowLabels(t *testing.T) {
	days := Window(at(est, 2025, time.January, 1, 9, 0), est, 2)
	if days[0].Weekday != "Wednesday" || days[0].Label != "Jan 1" {
		t.Fatalf("unexpected labels: %+v", days[0])
	}
	if days[1].Key != "2025-01-02" || days[1].Weekday != "Thursday" {
		t.Fatalf("unexpected second day: %+v", days[1])
	}
}

func TestWindowContiguousAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	days := Window(time.Date(2025, time.March, 5, 23, 30, 0, 0, ny), ny, 10)
	want := []string{"2025-03-05", "2025-03-06", "2025-03-07", "2025-03-08", "2025-03-09", "2025-03-10"}
	for i, k := range want {
		if days[i].Key != k {
			t.Fatalf("day %d key=%q, want %q", i, days[i].Key, k)
		}
	}
}

func TestWindowDefaultsSize(t *testing.T) {
	if got := len(Window(time.Now(), time.UTC, 0)); got != DefaultWindowDays {
		t.Fatalf("len=%d, want %d", got, DefaultWindowDays)
	}
}

func randomEntries(r *rand.Rand, n int) []Entry {
	base := at(est, 2025, time.January, 1, 0, 0)
	out := make([]Entry, n)
	for i := range out {
		// Coarse 30-minute slots so equal starts are common.
		start := base.Add(time.Duration(r.Intn(96)) * 30 * time.Minute)
		out[i] = Entry{ID: int64(i), Name: "show", Start: start, End: start.Add(time.Hour)}
	}
	return out
}

func TestGroupFlattenIsStablePermutation(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		input := randomEntries(r, 40)
		flat := Flatten(Group(input, est))

		if len(flat) != len(input) {
			t.Fatalf("len=%d, want %d", len(flat), len(input))
		}
		seen := make(map[int64]bool)
		for _, e := range flat {
			if seen[e.ID] {
				t.Fatalf("entry %d appears twice", e.ID)
			}
			seen[e.ID] = true
		}

		for i := 1; i < len(flat); i++ {
			prev, cur := flat[i-1], flat[i]
			if DayKey(prev.Start, est) != DayKey(cur.Start, est) {
				continue
			}
			if cur.Start.Before(prev.Start) {
				t.Fatalf("trial %d: bucket not sorted at %d", trial, i)
			}
			// IDs follow input order, so equal starts must keep ascending IDs.
			if cur.Start.Equal(prev.Start) && cur.ID < prev.ID {
				t.Fatalf("trial %d: tie order not preserved (%d before %d)", trial, prev.ID, cur.ID)
			}
		}
	}
}

func TestGroupIsIdempotent(t *testing.T) {
	input := randomEntries(rand.New(rand.NewSource(7)), 25)
	first := Group(input, est)
	second := Group(input, est)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("regrouping produced different buckets")
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatal("regrouping produced different bytes")
	}

	regrouped := Group(Flatten(first), est)
	if !reflect.DeepEqual(first, regrouped) {
		t.Fatal("grouping an already grouped list changed the buckets")
	}
}

func TestGroupKeepsDaysOutsideWindow(t *testing.T) {
	far := Entry{ID: 1, Start: at(est, 2025, time.March, 1, 10, 0)}
	buckets := Group([]Entry{far}, est)
	if _, ok := buckets["2025-03-01"]; !ok {
		t.Fatal("expected out-of-window day to be retained")
	}
}

func TestSelectorDayTabsScenario(t *testing.T) {
	entries := []Entry{
		{ID: 2, Name: "Late Morning", Start: at(est, 2025, time.January, 1, 11, 0), End: at(est, 2025, time.January, 1, 12, 0)},
		{ID: 3, Name: "Overnight", Start: at(est, 2025, time.January, 2, 0, 0), End: at(est, 2025, time.January, 2, 1, 0), IsNow: true},
		{ID: 1, Name: "Morning", Start: at(est, 2025, time.January, 1, 10, 0), End: at(est, 2025, time.January, 1, 11, 0)},
	}
	now := at(est, 2025, time.January, 1, 8, 0)
	sel := NewSelector(Window(now, est, DefaultWindowDays), Group(entries, est), est)

	if sel.Selected() != "2025-01-01" {
		t.Fatalf("initial selection=%q, want today", sel.Selected())
	}

	view := sel.View()
	if len(view.Entries) != 2 {
		t.Fatalf("2025-01-01 entries=%d, want 2", len(view.Entries))
	}
	if view.Entries[0].Name != "Morning" || view.Entries[1].Name != "Late Morning" {
		t.Fatalf("entries out of order: %q, %q", view.Entries[0].Name, view.Entries[1].Name)
	}
	if view.Entries[0].OnAir || view.Entries[1].OnAir {
		t.Fatal("2025-01-01 entries should not be on air")
	}
	if view.Entries[0].StartLabel != "10:00 AM" {
		t.Fatalf("StartLabel=%q, want 10:00 AM", view.Entries[0].StartLabel)
	}

	if err := sel.Select("2025-01-02"); err != nil {
		t.Fatalf("select: %v", err)
	}
	view = sel.View()
	if len(view.Entries) != 1 || !view.Entries[0].OnAir {
		t.Fatalf("2025-01-02 view=%+v, want one on-air entry", view.Entries)
	}
	if view.Heading != "Thursday, January 2" {
		t.Fatalf("Heading=%q", view.Heading)
	}

	tabs := sel.Tabs()
	if len(tabs) != 10 || !tabs[1].Selected || tabs[0].Selected {
		t.Fatalf("unexpected tab selection: %+v", tabs[:2])
	}
}

func TestSelectorEmptyDayAndUnknownKey(t *testing.T) {
	now := at(est, 2025, time.January, 1, 8, 0)
	sel := NewSelector(Window(now, est, 3), map[string]Bucket{}, est)

	view := sel.View()
	if !view.Empty || view.Message != EmptyDayMessage {
		t.Fatalf("empty view=%+v", view)
	}
	if view.Entries == nil {
		t.Fatal("entries should be an empty slice, not nil")
	}

	err := sel.Select("2025-02-01")
	if !errors.Is(err, ErrUnknownDay) {
		t.Fatalf("err=%v, want ErrUnknownDay", err)
	}
	if sel.Selected() != "2025-01-01" {
		t.Fatalf("selection changed to %q after bad select", sel.Selected())
	}
}

func TestICal(t *testing.T) {
	entries := []Entry{{ID: 9, Name: "Talk; News, Weather", Start: at(time.UTC, 2025, time.January, 1, 10, 0), End: at(time.UTC, 2025, time.January, 1, 11, 0)}}
	out := string(ICal("RBC Radio", "rbcradio", entries, at(time.UTC, 2025, time.January, 1, 0, 0)))

	for _, want := range []string{
		"BEGIN:VCALENDAR\r\n",
		"DTSTART:20250101T100000Z\r\n",
		"SUMMARY:Talk\\; News\\, Weather\r\n",
		"END:VCALENDAR\r\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("ical missing %q:\n%s", want, out)
		}
	}
}
