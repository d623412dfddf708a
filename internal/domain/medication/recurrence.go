package medication

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sanacare/go-care/internal/i18n"
	"github.com/sanacare/go-care/pkg/clock"
)

// Window is an inclusive calendar-day range for recurrence expansion.
type Window struct {
	Start time.Time
	End   time.Time
}

// Expander turns a medication's recurrence rule into concrete reminder
// occurrences over a date window.
type Expander struct {
	clock clock.Clock
}

// NewExpander creates an expander using clk as its notion of "today".
func NewExpander(clk clock.Clock) *Expander {
	if clk == nil {
		clk = clock.System{}
	}
	return &Expander{clock: clk}
}

// WindowFor derives the default expansion window for m: the floor is the later
// of today and the medication's start date; the ceiling is the end date, or
// floor+30 days when none is set.
func (e *Expander) WindowFor(m *Medication) (Window, error) {
	today := DayUTC(e.clock.Now())

	start := today
	if !m.StartDate.IsZero() {
		if d := DayUTC(m.StartDate); d.After(start) {
			start = d
		}
	}

	end := start.AddDate(0, 0, DefaultWindowDays)
	if m.EndDate != nil {
		end = DayUTC(*m.EndDate)
	}

	if end.Before(start) {
		return Window{}, fmt.Errorf("%w: end %s before start %s",
			ErrInvalidRange, end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return Window{Start: start, End: end}, nil
}

// Expand walks each calendar day of w and emits one reminder per configured
// time of day on every day the recurrence rule includes. Scheduled dates are
// normalized to midnight UTC; the time of day is carried as an "HH:MM" string
// so date and time never drift across timezones.
func (e *Expander) Expand(m *Medication, w Window) ([]*Reminder, error) {
	if w.End.Before(w.Start) {
		return nil, ErrInvalidRange
	}
	if len(m.TimeOfDay) == 0 {
		return nil, fmt.Errorf("%w: timeOfDay is empty", ErrInvalidInput)
	}
	for _, tod := range m.TimeOfDay {
		if _, err := MinutesOfDay(tod); err != nil {
			return nil, err
		}
	}

	now := e.clock.Now()
	var out []*Reminder

	for day := w.Start; !day.After(w.End); day = day.AddDate(0, 0, 1) {
		if !includesDay(m, day) {
			continue
		}
		for _, tod := range m.TimeOfDay {
			out = append(out, &Reminder{
				ID:            uuid.New().String(),
				MedicationID:  m.ID,
				UserID:        m.UserID,
				ScheduledDate: day,
				ScheduledTime: tod,
				Message:       reminderMessage(m),
				CreatedAt:     now,
			})
		}
	}
	return out, nil
}

// includesDay applies the recurrence rule to one calendar day.
func includesDay(m *Medication, day time.Time) bool {
	switch m.FrequencyType {
	case FrequencyDaily:
		return true
	case FrequencyWeekly, FrequencySpecificDays:
		return containsInt(m.SpecificDays, int(day.Weekday()))
	case FrequencyMonthly:
		return containsInt(m.SpecificDays, day.Day())
	default:
		return false
	}
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func reminderMessage(m *Medication) i18n.LocalizedText {
	return i18n.LocalizedText{
		FR: "C'est l'heure de prendre " + m.Name.Resolve(i18n.LangFR),
		EN: "Time to take " + m.Name.Resolve(i18n.LangEN),
	}
}

// MinutesOfDay parses an "HH:MM" string into minutes since midnight.
func MinutesOfDay(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil || len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: malformed time of day %q", ErrInvalidInput, s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: time of day %q out of range", ErrInvalidInput, s)
	}
	return h*60 + m, nil
}
