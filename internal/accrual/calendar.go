package accrual

import "time"

// Calendar answers business-day questions for accrual generation. Weekends
// are always non-business; holidays come from a pluggable set keyed by
// "2006-01-02" date strings.
type Calendar struct {
	holidays map[string]struct{}
}

// NewCalendar builds a calendar with the given holiday dates.
func NewCalendar(holidays []time.Time) *Calendar {
	set := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		set[h.UTC().Format("2006-01-02")] = struct{}{}
	}
	return &Calendar{holidays: set}
}

// IsBusinessDay checks weekends and the holiday set.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	_, holiday := c.holidays[t.UTC().Format("2006-01-02")]
	return !holiday
}

// NextBusinessDay returns the first business day strictly after t.
func (c *Calendar) NextBusinessDay(t time.Time) time.Time {
	t = t.AddDate(0, 0, 1)
	for !c.IsBusinessDay(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}
