package schedule

import "github.com/golang-sql/civil"

// IsDue reports whether a recurring questionnaire last submitted on last is
// due on today. A nil last means never submitted, which is always due. A
// last date after today is never due.
func IsDue(last *civil.Date, today civil.Date, minIntervalDays int) bool {
	if last == nil {
		return true
	}
	return DaysBetween(*last, today) >= minIntervalDays
}
