package schedule

import (
	"fmt"

	"github.com/golang-sql/civil"
)

// MilestoneDays are the EQ-5D-5L milestones in days since enrollment,
// ascending. Lower milestones take priority.
var MilestoneDays = []int{14, 30, 90, 180, 365}

type Milestone struct {
	Day    int
	Window Window
}

func (m Milestone) Reason() string {
	return fmt.Sprintf("EQ-5D-5L due for the day %d milestone (window %s to %s)",
		m.Day, m.Window.Start, m.Window.End)
}

// ReachableWindows returns the milestones whose window has opened by today,
// in priority order. Future milestones are omitted.
func ReachableWindows(enrolled, today civil.Date) []Milestone {
	var out []Milestone
	for _, day := range MilestoneDays {
		w := MilestoneWindow(enrolled, day)
		if today.Before(w.Start) {
			continue
		}
		out = append(out, Milestone{Day: day, Window: w})
	}
	return out
}

// NextMilestone returns the lowest reachable milestone whose window holds no
// EQ-5D-5L entry according to satisfied. A milestone stays open after its
// window closes until an entry is found inside that window.
func NextMilestone(enrolled, today civil.Date, satisfied func(Window) bool) (Milestone, bool) {
	for _, m := range ReachableWindows(enrolled, today) {
		if !satisfied(m.Window) {
			return m, true
		}
	}
	return Milestone{}, false
}
