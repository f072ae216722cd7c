package entry

// Severity is the LARS score band.
type Severity string

const (
	SeverityNone  Severity = "no_lars"
	SeverityMinor Severity = "minor_lars"
	SeverityMajor Severity = "major_lars"
)

// Points per answer index for each LARS item. Bowel frequency answers run
// "more than 7 a day", "4-7", "1-3", "less than once a day".
var (
	flatusPoints    = [...]int{0, 4, 7}
	liquidPoints    = [...]int{0, 3, 3}
	frequencyPoints = [...]int{4, 2, 0, 5}
	repeatPoints    = [...]int{0, 9, 11}
	urgencyPoints   = [...]int{0, 11, 16}
)

// LARSScore sums the item points, 0 to 42. Answers must already be in range.
func LARSScore(e *WeeklyEntry) int {
	return flatusPoints[e.FlatusControl] +
		liquidPoints[e.LiquidStoolLeakage] +
		frequencyPoints[e.BowelFrequency] +
		repeatPoints[e.RepeatBowelOpening] +
		urgencyPoints[e.UrgencyToToilet]
}

func SeverityFor(score int) Severity {
	switch {
	case score >= 30:
		return SeverityMajor
	case score >= 21:
		return SeverityMinor
	default:
		return SeverityNone
	}
}
