package patient

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
)

// Patient is created on the first submission of any questionnaire. The
// enrollment date is the server's calendar date at that moment and never
// changes afterwards.
type Patient struct {
	ID             uuid.UUID  `json:"id"`
	Code           string     `json:"patient_code"`
	EnrollmentDate civil.Date `json:"enrollment_date"`
	CreatedAt      time.Time  `json:"created_at"`
}

var (
	ErrMissingCode = errors.New("missing patient code")
	ErrInvalidCode = errors.New("invalid patient code format")
	ErrNotFound    = errors.New("patient not found")
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{4,64}$`)

// NormalizeCode trims and upper-cases raw and checks it is 4 to 64
// characters of A-Z and 0-9.
func NormalizeCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", ErrMissingCode
	}
	if !codePattern.MatchString(code) {
		return "", ErrInvalidCode
	}
	return code, nil
}
