package entry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	"github.com/lars/lars/internal/domain/patient"
	"github.com/lars/lars/internal/domain/schedule"
)

var today = civil.Date{Year: 2024, Month: time.March, Day: 15}

func fixedToday() civil.Date { return today }

func intp(n int) *int { return &n }

type mockPatients struct {
	byCode map[string]*patient.Patient
	err    error
}

func newMockPatients() *mockPatients {
	return &mockPatients{byCode: make(map[string]*patient.Patient)}
}

func (m *mockPatients) Upsert(_ context.Context, code string, enrolledOn civil.Date) (*patient.Patient, error) {
	if m.err != nil {
		return nil, m.err
	}
	if p, ok := m.byCode[code]; ok {
		return p, nil
	}
	p := &patient.Patient{ID: uuid.New(), Code: code, EnrollmentDate: enrolledOn, CreatedAt: time.Now()}
	m.byCode[code] = p
	return p, nil
}

func (m *mockPatients) GetByCode(_ context.Context, code string) (*patient.Patient, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.byCode[code]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return p, nil
}

func (m *mockPatients) EnrollmentDate(_ context.Context, code string) (civil.Date, bool, error) {
	if m.err != nil {
		return civil.Date{}, false, m.err
	}
	p, ok := m.byCode[code]
	if !ok {
		return civil.Date{}, false, nil
	}
	return p.EnrollmentDate, true, nil
}

func (m *mockPatients) List(_ context.Context, limit, offset int) ([]*patient.Patient, int, error) {
	return nil, 0, m.err
}

type rowKey struct {
	patientID uuid.UUID
	date      civil.Date
}

type storedRow struct {
	id     uuid.UUID
	code   string
	date   civil.Date
	answer interface{}
}

// mockEntries keeps one row per (type, patient, date) like the unique
// constraint in Postgres.
type mockEntries struct {
	mu       sync.Mutex
	patients *mockPatients
	rows     map[schedule.Type]map[rowKey]*storedRow
	err      error
	upserts  int
}

func newMockEntries(patients *mockPatients) *mockEntries {
	return &mockEntries{patients: patients, rows: make(map[schedule.Type]map[rowKey]*storedRow)}
}

func (m *mockEntries) codeOf(id uuid.UUID) string {
	for code, p := range m.patients.byCode {
		if p.ID == id {
			return code
		}
	}
	return ""
}

func (m *mockEntries) put(t schedule.Type, patientID uuid.UUID, date civil.Date, answer interface{}) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return uuid.Nil, m.err
	}
	m.upserts++
	if m.rows[t] == nil {
		m.rows[t] = make(map[rowKey]*storedRow)
	}
	k := rowKey{patientID, date}
	if row, ok := m.rows[t][k]; ok {
		row.answer = answer
		return row.id, nil
	}
	row := &storedRow{id: uuid.New(), code: m.codeOf(patientID), date: date, answer: answer}
	m.rows[t][k] = row
	return row.id, nil
}

func (m *mockEntries) UpsertWeekly(_ context.Context, patientID uuid.UUID, date civil.Date, e *WeeklyEntry) (uuid.UUID, error) {
	return m.put(schedule.TypeWeekly, patientID, date, e)
}

func (m *mockEntries) UpsertDaily(_ context.Context, patientID uuid.UUID, date civil.Date, e *DailyEntry) (uuid.UUID, error) {
	return m.put(schedule.TypeDaily, patientID, date, e)
}

func (m *mockEntries) UpsertMonthly(_ context.Context, patientID uuid.UUID, date civil.Date, e *MonthlyEntry) (uuid.UUID, error) {
	return m.put(schedule.TypeMonthly, patientID, date, e)
}

func (m *mockEntries) UpsertEQ5D5L(_ context.Context, patientID uuid.UUID, date civil.Date, e *EQ5D5LEntry) (uuid.UUID, error) {
	return m.put(schedule.TypeEQ5D5L, patientID, date, e)
}

func (m *mockEntries) dates(code string, t schedule.Type) []civil.Date {
	var out []civil.Date
	for _, row := range m.rows[t] {
		if row.code == code {
			out = append(out, row.date)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out
}

func (m *mockEntries) ListByPatient(_ context.Context, code string, t schedule.Type, limit, offset int) ([]*Record, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	var out []*Record
	for _, d := range m.dates(code, t) {
		out = append(out, &Record{Type: t, EntryDate: d})
	}
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (m *mockEntries) LastEntryDate(_ context.Context, code string, t schedule.Type) (civil.Date, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return civil.Date{}, false, m.err
	}
	ds := m.dates(code, t)
	if len(ds) == 0 {
		return civil.Date{}, false, nil
	}
	return ds[0], true, nil
}

func (m *mockEntries) HasEntryInWindow(_ context.Context, code string, t schedule.Type, w schedule.Window) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for _, d := range m.dates(code, t) {
		if w.Contains(d) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEntries) HasEntryOn(ctx context.Context, code string, t schedule.Type, d civil.Date) (bool, error) {
	return m.HasEntryInWindow(ctx, code, t, schedule.Window{Start: d, End: d})
}

// mockTx runs fn directly and records how often it was used.
type mockTx struct {
	calls int
	err   error
}

func (m *mockTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	return fn(ctx)
}
