package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Type identifies a questionnaire. The zero value means no questionnaire.
type Type string

const (
	TypeNone    Type = ""
	TypeDaily   Type = "daily"
	TypeWeekly  Type = "weekly"
	TypeMonthly Type = "monthly"
	TypeEQ5D5L  Type = "eq5d5l"
)

// Types lists every questionnaire type in priority order.
var Types = []Type{TypeEQ5D5L, TypeWeekly, TypeMonthly, TypeDaily}

var ErrUnknownType = errors.New("unknown questionnaire type")

// ParseType accepts a type name case-insensitively.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return TypeNone, fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// TypeNames returns the names of Types joined with ", ".
func TypeNames() string {
	names := make([]string, len(Types))
	for i, t := range Types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func (t Type) String() string {
	if t == TypeNone {
		return "none"
	}
	return string(t)
}

// MarshalJSON encodes TypeNone as null.
func (t Type) MarshalJSON() ([]byte, error) {
	if t == TypeNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(t))
}

func (t *Type) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = TypeNone
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Minimum whole days between two submissions of a recurring questionnaire.
const (
	DailyIntervalDays   = 1
	WeeklyIntervalDays  = 7
	MonthlyIntervalDays = 28
)

// Decision is the answer to "which questionnaire is due today".
type Decision struct {
	Type          Type   `json:"questionnaire_type"`
	IsTodayFilled bool   `json:"is_today_filled"`
	Reason        string `json:"reason"`
}
