package entry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	"github.com/lars/lars/internal/domain/schedule"
)

// Payloads as posted by the patient app. Answer fields are pointers so a
// missing answer can be told apart from a zero answer.

type WeeklyPayload struct {
	EntryDate          string                 `json:"entry_date" validate:"omitempty,calendar_date"`
	FlatusControl      *int                   `json:"flatus_control" validate:"required,min=0,max=2"`
	LiquidStoolLeakage *int                   `json:"liquid_stool_leakage" validate:"required,min=0,max=2"`
	BowelFrequency     *int                   `json:"bowel_frequency" validate:"required,min=0,max=3"`
	RepeatBowelOpening *int                   `json:"repeat_bowel_opening" validate:"required,min=0,max=2"`
	UrgencyToToilet    *int                   `json:"urgency_to_toilet" validate:"required,min=0,max=2"`
	RawData            map[string]interface{} `json:"raw_data"`
}

type DailyPayload struct {
	EntryDate        string                 `json:"entry_date" validate:"omitempty,calendar_date"`
	BristolScale     *int                   `json:"bristol_scale" validate:"omitempty,min=1,max=7"`
	FoodConsumption  map[string]float64     `json:"food_consumption" validate:"omitempty,dive,keys,min=1,max=64,endkeys,gte=0"`
	DrinkConsumption map[string]float64     `json:"drink_consumption" validate:"omitempty,dive,keys,min=1,max=64,endkeys,gte=0"`
	RawData          map[string]interface{} `json:"raw_data"`
}

type MonthlyPayload struct {
	EntryDate string                 `json:"entry_date" validate:"omitempty,calendar_date"`
	QOLScore  *int                   `json:"qol_score" validate:"omitempty,min=0,max=10"`
	RawData   map[string]interface{} `json:"raw_data"`
}

type EQ5D5LPayload struct {
	EntryDate         string                 `json:"entry_date" validate:"omitempty,calendar_date"`
	Mobility          *int                   `json:"mobility" validate:"required,min=1,max=5"`
	SelfCare          *int                   `json:"self_care" validate:"required,min=1,max=5"`
	UsualActivities   *int                   `json:"usual_activities" validate:"required,min=1,max=5"`
	PainDiscomfort    *int                   `json:"pain_discomfort" validate:"required,min=1,max=5"`
	AnxietyDepression *int                   `json:"anxiety_depression" validate:"required,min=1,max=5"`
	VAS               *int                   `json:"vas" validate:"omitempty,min=0,max=100"`
	RawData           map[string]interface{} `json:"raw_data"`
}

// Stored values, built from a validated payload.

type WeeklyEntry struct {
	FlatusControl      int
	LiquidStoolLeakage int
	BowelFrequency     int
	RepeatBowelOpening int
	UrgencyToToilet    int
	TotalScore         int
	Severity           Severity
	RawData            map[string]interface{}
}

type DailyEntry struct {
	BristolScale     *int
	FoodConsumption  map[string]float64
	DrinkConsumption map[string]float64
	RawData          map[string]interface{}
}

type MonthlyEntry struct {
	QOLScore *int
	RawData  map[string]interface{}
}

type EQ5D5LEntry struct {
	Mobility          int
	SelfCare          int
	UsualActivities   int
	PainDiscomfort    int
	AnxietyDepression int
	HealthState       string
	VAS               *int
	RawData           map[string]interface{}
}

func (p *WeeklyPayload) entry() *WeeklyEntry {
	e := &WeeklyEntry{
		FlatusControl:      *p.FlatusControl,
		LiquidStoolLeakage: *p.LiquidStoolLeakage,
		BowelFrequency:     *p.BowelFrequency,
		RepeatBowelOpening: *p.RepeatBowelOpening,
		UrgencyToToilet:    *p.UrgencyToToilet,
		RawData:            p.RawData,
	}
	e.TotalScore = LARSScore(e)
	e.Severity = SeverityFor(e.TotalScore)
	return e
}

func (p *DailyPayload) entry() *DailyEntry {
	return &DailyEntry{
		BristolScale:     p.BristolScale,
		FoodConsumption:  p.FoodConsumption,
		DrinkConsumption: p.DrinkConsumption,
		RawData:          p.RawData,
	}
}

func (p *MonthlyPayload) entry() *MonthlyEntry {
	return &MonthlyEntry{QOLScore: p.QOLScore, RawData: p.RawData}
}

func (p *EQ5D5LPayload) entry() *EQ5D5LEntry {
	e := &EQ5D5LEntry{
		Mobility:          *p.Mobility,
		SelfCare:          *p.SelfCare,
		UsualActivities:   *p.UsualActivities,
		PainDiscomfort:    *p.PainDiscomfort,
		AnxietyDepression: *p.AnxietyDepression,
		VAS:               p.VAS,
		RawData:           p.RawData,
	}
	e.HealthState = HealthState(e)
	return e
}

// HealthState is the EQ-5D-5L profile: the five dimension levels in
// instrument order, e.g. "11213".
func HealthState(e *EQ5D5LEntry) string {
	return fmt.Sprintf("%d%d%d%d%d",
		e.Mobility, e.SelfCare, e.UsualActivities, e.PainDiscomfort, e.AnxietyDepression)
}

// Record is one stored entry as listed on the staff API. Answers holds the
// type-specific columns.
type Record struct {
	ID        uuid.UUID       `json:"id"`
	Type      schedule.Type   `json:"questionnaire_type"`
	EntryDate civil.Date      `json:"entry_date"`
	Answers   json.RawMessage `json:"answers"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SubmitResponse is returned by every send* route.
type SubmitResponse struct {
	Status string    `json:"status"`
	ID     uuid.UUID `json:"id"`
}
