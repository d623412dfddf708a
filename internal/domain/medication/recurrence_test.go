package medication

import (
	"errors"
	"testing"
	"time"

	"github.com/sanacare/go-care/internal/i18n"
	"github.com/sanacare/go-care/pkg/clock"
)

// monday is a fixed Monday used as "today" throughout.
var monday = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func testMedication(freq FrequencyType, days []int, times []string) *Medication {
	return &Medication{
		ID:            "med-1",
		UserID:        "user-1",
		Name:          i18n.LocalizedText{FR: "Doliprane", EN: "Doliprane"},
		FrequencyType: freq,
		SpecificDays:  days,
		TimeOfDay:     times,
		IsActive:      true,
	}
}

func TestExpandDaily(t *testing.T) {
	e := NewExpander(clock.NewFake(monday))
	m := testMedication(FrequencyDaily, nil, []string{"08:00", "20:00"})

	w := Window{Start: DayUTC(monday), End: DayUTC(monday).AddDate(0, 0, 6)}
	rs, err := e.Expand(m, w)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if want := 7 * 2; len(rs) != want {
		t.Fatalf("got %d reminders, want %d", len(rs), want)
	}
	for _, r := range rs {
		if r.ScheduledDate.Hour() != 0 || r.ScheduledDate.Location() != time.UTC {
			t.Fatalf("scheduled date not midnight UTC: %v", r.ScheduledDate)
		}
		if r.Resolved() {
			t.Fatalf("new reminder already resolved")
		}
		if r.Message.FR == "" || r.Message.EN == "" {
			t.Fatalf("reminder message not localized: %+v", r.Message)
		}
	}
}

func TestExpandWeekly(t *testing.T) {
	e := NewExpander(clock.NewFake(monday))
	// Monday and Wednesday over two weeks starting on a Monday.
	m := testMedication(FrequencyWeekly, []int{1, 3}, []string{"09:00"})

	w := Window{Start: DayUTC(monday), End: DayUTC(monday).AddDate(0, 0, 13)}
	rs, err := e.Expand(m, w)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if want := 4; len(rs) != want {
		t.Fatalf("got %d reminders, want %d", len(rs), want)
	}
	for _, r := range rs {
		wd := int(r.ScheduledDate.Weekday())
		if wd != 1 && wd != 3 {
			t.Fatalf("reminder on weekday %d", wd)
		}
	}
}

func TestExpandSpecificDaysBehavesAsWeekly(t *testing.T) {
	e := NewExpander(clock.NewFake(monday))
	weekly := testMedication(FrequencyWeekly, []int{5}, []string{"12:00"})
	specific := testMedication(FrequencySpecificDays, []int{5}, []string{"12:00"})

	w := Window{Start: DayUTC(monday), End: DayUTC(monday).AddDate(0, 0, 20)}
	a, err := e.Expand(weekly, w)
	if err != nil {
		t.Fatalf("expand weekly: %v", err)
	}
	b, err := e.Expand(specific, w)
	if err != nil {
		t.Fatalf("expand specific_days: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("weekly produced %d, specific_days %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].ScheduledDate.Equal(b[i].ScheduledDate) {
			t.Fatalf("day %d differs: %v vs %v", i, a[i].ScheduledDate, b[i].ScheduledDate)
		}
	}
}

func TestExpandMonthly(t *testing.T) {
	e := NewExpander(clock.NewFake(monday))
	m := testMedication(FrequencyMonthly, []int{5, 15}, []string{"10:00"})

	w := Window{Start: DayUTC(monday), End: DayUTC(monday).AddDate(0, 0, 30)}
	rs, err := e.Expand(m, w)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	// March 5, March 15 inside [Mar 2, Apr 1].
	if want := 2; len(rs) != want {
		t.Fatalf("got %d reminders, want %d", len(rs), want)
	}
	for _, r := range rs {
		if d := r.ScheduledDate.Day(); d != 5 && d != 15 {
			t.Fatalf("reminder on day of month %d", d)
		}
	}
}

func TestWindowForFloorsAtToday(t *testing.T) {
	e := NewExpander(clock.NewFake(monday))

	m := testMedication(FrequencyDaily, nil, []string{"08:00"})
	m.StartDate = monday.AddDate(0, 0, -10)

	w, err := e.WindowFor(m)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if !w.Start.Equal(DayUTC(monday)) {
		t.Fatalf("window start %v, want today", w.Start)
	}
	if !w.End.Equal(DayUTC(monday).AddDate(0, 0, DefaultWindowDays)) {
		t.Fatalf("window end %v", w.End)
	}
}

func TestWindowForEndBeforeStart(t *testing.T) {
	e := NewExpander(clock.NewFake(monday))

	m := testMedication(FrequencyDaily, nil, []string{"08:00"})
	end := monday.AddDate(0, 0, -1)
	m.EndDate = &end

	if _, err := e.WindowFor(m); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("got %v, want ErrInvalidRange", err)
	}
}

func TestExpandRejectsMalformedTimeOfDay(t *testing.T) {
	e := NewExpander(clock.NewFake(monday))
	w := Window{Start: DayUTC(monday), End: DayUTC(monday)}

	for _, tod := range []string{"8:00", "25:00", "12:60", "noon", ""} {
		m := testMedication(FrequencyDaily, nil, []string{tod})
		if _, err := e.Expand(m, w); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("timeOfDay %q: got %v, want ErrInvalidInput", tod, err)
		}
	}
}

func TestMinutesOfDay(t *testing.T) {
	mins, err := MinutesOfDay("14:30")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if mins != 14*60+30 {
		t.Fatalf("got %d minutes", mins)
	}
}
