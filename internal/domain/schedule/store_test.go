package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/golang-sql/civil"
)

var day0 = civil.Date{Year: 2024, Month: time.January, Day: 1}

// at returns day0 + n days.
func at(n int) civil.Date {
	return day0.AddDays(n)
}

// fakeStore is an in-memory EntryStore. Errors can be injected per method.
type fakeStore struct {
	mu       sync.Mutex
	enrolled map[string]civil.Date
	entries  map[string]map[Type][]civil.Date
	calls    map[string]int

	enrollErr error
	lastErr   map[Type]error
	windowErr error
	onErr     error
	// hasOn overrides HasEntryOn when set.
	hasOn func(t Type, d civil.Date) bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		enrolled: make(map[string]civil.Date),
		entries:  make(map[string]map[Type][]civil.Date),
		calls:    make(map[string]int),
		lastErr:  make(map[Type]error),
	}
}

func (f *fakeStore) enroll(code string, d civil.Date) *fakeStore {
	f.enrolled[code] = d
	return f
}

func (f *fakeStore) add(code string, t Type, dates ...civil.Date) *fakeStore {
	if f.entries[code] == nil {
		f.entries[code] = make(map[Type][]civil.Date)
	}
	f.entries[code][t] = append(f.entries[code][t], dates...)
	return f
}

func (f *fakeStore) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeStore) record(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

func (f *fakeStore) EnrollmentDate(_ context.Context, code string) (civil.Date, bool, error) {
	f.record("EnrollmentDate")
	if f.enrollErr != nil {
		return civil.Date{}, false, f.enrollErr
	}
	d, ok := f.enrolled[code]
	return d, ok, nil
}

func (f *fakeStore) LastEntryDate(_ context.Context, code string, t Type) (civil.Date, bool, error) {
	f.record("LastEntryDate")
	if err := f.lastErr[t]; err != nil {
		return civil.Date{}, false, err
	}
	var last civil.Date
	found := false
	for _, d := range f.entries[code][t] {
		if !found || d.After(last) {
			last, found = d, true
		}
	}
	return last, found, nil
}

func (f *fakeStore) HasEntryInWindow(_ context.Context, code string, t Type, w Window) (bool, error) {
	f.record("HasEntryInWindow")
	if f.windowErr != nil {
		return false, f.windowErr
	}
	return datesCover(f.entries[code][t])(w), nil
}

func (f *fakeStore) HasEntryOn(_ context.Context, code string, t Type, d civil.Date) (bool, error) {
	f.record("HasEntryOn")
	if f.onErr != nil {
		return false, f.onErr
	}
	if f.hasOn != nil {
		return f.hasOn(t, d), nil
	}
	for _, e := range f.entries[code][t] {
		if e == d {
			return true, nil
		}
	}
	return false, nil
}

// datesCover returns a satisfied func backed by a list of EQ-5D-5L entry dates.
func datesCover(dates []civil.Date) func(Window) bool {
	return func(w Window) bool {
		for _, d := range dates {
			if w.Contains(d) {
				return true
			}
		}
		return false
	}
}
