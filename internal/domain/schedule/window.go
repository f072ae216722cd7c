package schedule

import (
	"fmt"
	"time"

	"github.com/golang-sql/civil"
)

// Days before and after a milestone day during which an EQ-5D-5L entry
// still counts for that milestone.
const (
	windowLeadDays  = 3
	windowTrailDays = 7
)

// Window is an inclusive range of calendar dates.
type Window struct {
	Start civil.Date
	End   civil.Date
}

// MilestoneWindow returns the tolerance window around enrollment + day.
func MilestoneWindow(enrolled civil.Date, day int) Window {
	return Window{
		Start: enrolled.AddDays(day - windowLeadDays),
		End:   enrolled.AddDays(day + windowTrailDays),
	}
}

func (w Window) Contains(d civil.Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.Start, w.End)
}

// DaysBetween returns the whole calendar days from a to b, negative when b
// is earlier than a.
func DaysBetween(a, b civil.Date) int {
	return b.DaysSince(a)
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) civil.Date {
	if loc == nil {
		loc = time.UTC
	}
	return civil.DateOf(now.In(loc))
}
