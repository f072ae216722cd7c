package schedule

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/rs/zerolog"
)

const code = "PT0001"

func newTestScheduler(store EntryStore, today civil.Date) *Scheduler {
	clock := func() time.Time { return today.In(time.UTC).Add(10 * time.Hour) }
	return NewScheduler(store, clock, time.UTC, zerolog.Nop())
}

func decideAt(t *testing.T, store EntryStore, today civil.Date) Decision {
	t.Helper()
	d, err := newTestScheduler(store, today).Decide(context.Background(), code)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	return d
}

// allMilestonesMet records an EQ-5D-5L entry inside every milestone window.
func allMilestonesMet(f *fakeStore) *fakeStore {
	for _, m := range MilestoneDays {
		f.add(code, TypeEQ5D5L, at(m))
	}
	return f
}

func TestDecide_UnknownPatientGetsWelcomeWeekly(t *testing.T) {
	store := newFakeStore()
	d := decideAt(t, store, at(0))

	if d.Type != TypeWeekly {
		t.Fatalf("expected weekly, got %s", d.Type)
	}
	if d.IsTodayFilled {
		t.Error("expected is_today_filled false")
	}
	if !strings.HasPrefix(d.Reason, "Welcome") {
		t.Errorf("expected welcome reason, got %q", d.Reason)
	}
	if n := store.count("HasEntryInWindow"); n != 0 {
		t.Errorf("expected no milestone lookups for an unknown patient, got %d", n)
	}
}

func TestDecide_NoHistoryAlwaysWeekly(t *testing.T) {
	for _, today := range []int{0, 3, 9, 500} {
		store := newFakeStore()
		d := decideAt(t, store, at(today))
		if d.Type != TypeWeekly || d.IsTodayFilled {
			t.Errorf("day %d: expected weekly not filled, got %+v", today, d)
		}
	}
}

func TestDecide_RecentWeeklyNeverSelected(t *testing.T) {
	today := at(400)
	for gap := 0; gap < WeeklyIntervalDays; gap++ {
		for _, monthlyGap := range []int{-1, 0, 10, 40} {
			for _, dailyGap := range []int{-1, 0, 1} {
				store := allMilestonesMet(newFakeStore().enroll(code, day0))
				store.add(code, TypeWeekly, today.AddDays(-gap))
				if monthlyGap >= 0 {
					store.add(code, TypeMonthly, today.AddDays(-monthlyGap))
				}
				if dailyGap >= 0 {
					store.add(code, TypeDaily, today.AddDays(-dailyGap))
				}

				d := decideAt(t, store, today)
				if d.Type == TypeWeekly {
					t.Errorf("weekly gap %d, monthly gap %d, daily gap %d: weekly selected", gap, monthlyGap, dailyGap)
				}
			}
		}
	}
}

func TestDecide_MilestoneBeatsWeekly(t *testing.T) {
	store := newFakeStore().enroll(code, day0)
	d := decideAt(t, store, at(14))

	if d.Type != TypeEQ5D5L {
		t.Fatalf("expected eq5d5l, got %s (%s)", d.Type, d.Reason)
	}
	if !strings.Contains(d.Reason, "day 14") {
		t.Errorf("expected reason to name the day 14 milestone, got %q", d.Reason)
	}
}

func TestDecide_SatisfiedMilestoneFallsThrough(t *testing.T) {
	store := newFakeStore().enroll(code, day0).add(code, TypeEQ5D5L, at(13))
	d := decideAt(t, store, at(20))

	if d.Type != TypeWeekly {
		t.Fatalf("expected weekly after the milestone is met, got %s (%s)", d.Type, d.Reason)
	}
}

func TestDecide_MonthlyWhenWeeklyRecent(t *testing.T) {
	store := newFakeStore().enroll(code, day0).
		add(code, TypeEQ5D5L, at(14), at(28)).
		add(code, TypeMonthly, at(0)).
		add(code, TypeWeekly, at(25))
	d := decideAt(t, store, at(29))

	if d.Type != TypeMonthly {
		t.Fatalf("expected monthly, got %s (%s)", d.Type, d.Reason)
	}
	if !strings.Contains(d.Reason, "29 days") {
		t.Errorf("expected reason to mention 29 days, got %q", d.Reason)
	}
}

func TestDecide_MonthlyNeverWhileWeeklyDue(t *testing.T) {
	today := at(400)
	for _, weeklyGap := range []int{-1, 7, 8, 30} {
		for _, monthlyGap := range []int{-1, 28, 60} {
			store := allMilestonesMet(newFakeStore().enroll(code, day0))
			if weeklyGap >= 0 {
				store.add(code, TypeWeekly, today.AddDays(-weeklyGap))
			}
			if monthlyGap >= 0 {
				store.add(code, TypeMonthly, today.AddDays(-monthlyGap))
			}
			d := decideAt(t, store, today)
			if d.Type != TypeWeekly {
				t.Errorf("weekly gap %d, monthly gap %d: expected weekly, got %s", weeklyGap, monthlyGap, d.Type)
			}
		}
	}
}

func TestDecide_DailyFallback(t *testing.T) {
	today := at(400)
	store := allMilestonesMet(newFakeStore().enroll(code, day0)).
		add(code, TypeWeekly, today.AddDays(-2)).
		add(code, TypeMonthly, today.AddDays(-5)).
		add(code, TypeDaily, today.AddDays(-1))
	d := decideAt(t, store, today)

	if d.Type != TypeDaily {
		t.Fatalf("expected daily, got %s", d.Type)
	}
	if d.IsTodayFilled {
		t.Error("expected is_today_filled false")
	}
}

func TestDecide_DailyNeverFilled(t *testing.T) {
	today := at(400)
	store := allMilestonesMet(newFakeStore().enroll(code, day0)).
		add(code, TypeWeekly, today.AddDays(-2)).
		add(code, TypeMonthly, today.AddDays(-5))
	d := decideAt(t, store, today)

	if d.Type != TypeDaily {
		t.Fatalf("expected daily, got %s", d.Type)
	}
	if !strings.Contains(d.Reason, "not been filled") {
		t.Errorf("unexpected reason %q", d.Reason)
	}
}

func TestDecide_NothingDue(t *testing.T) {
	today := at(400)
	store := allMilestonesMet(newFakeStore().enroll(code, day0)).
		add(code, TypeWeekly, today.AddDays(-2)).
		add(code, TypeMonthly, today.AddDays(-5)).
		add(code, TypeDaily, today)
	d := decideAt(t, store, today)

	if d.Type != TypeNone {
		t.Fatalf("expected none, got %s", d.Type)
	}
	if d.IsTodayFilled {
		t.Error("expected is_today_filled false when nothing is selected")
	}
	if n := store.count("HasEntryOn"); n != 0 {
		t.Errorf("expected no today-filled read when nothing is selected, got %d", n)
	}
}

func TestDecide_IsTodayFilledTracksSelectedType(t *testing.T) {
	// Day 14 window closed on day 21; an entry today does not satisfy it,
	// so EQ-5D-5L is still selected and today's entry must be reported.
	store := newFakeStore().enroll(code, day0).add(code, TypeEQ5D5L, at(25))
	d := decideAt(t, store, at(25))

	if d.Type != TypeEQ5D5L {
		t.Fatalf("expected eq5d5l, got %s", d.Type)
	}
	if !d.IsTodayFilled {
		t.Error("expected is_today_filled true for an eq5d5l entry dated today")
	}
}

func TestDecide_IsTodayFilledIndependentOfSelection(t *testing.T) {
	today := at(400)
	store := allMilestonesMet(newFakeStore().enroll(code, day0)).
		add(code, TypeWeekly, today.AddDays(-9))
	// A retried submission landed after the last-date read.
	store.hasOn = func(qt Type, d civil.Date) bool { return qt == TypeWeekly && d == today }

	d := decideAt(t, store, today)
	if d.Type != TypeWeekly || !d.IsTodayFilled {
		t.Errorf("expected weekly filled today, got %+v", d)
	}

	store.hasOn = func(qt Type, d civil.Date) bool { return qt == TypeDaily }
	d = decideAt(t, store, today)
	if d.IsTodayFilled {
		t.Error("an entry of another type must not mark today filled")
	}
}

func TestDecide_TodayFilledReadFailsOpen(t *testing.T) {
	store := newFakeStore().enroll(code, day0)
	store.onErr = errors.New("connection reset")

	d, err := newTestScheduler(store, at(14)).Decide(context.Background(), code)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if d.Type != TypeEQ5D5L {
		t.Errorf("failure must not change the selection, got %s", d.Type)
	}
	if d.IsTodayFilled {
		t.Error("expected is_today_filled false on read failure")
	}
}

func TestDecide_SelectionReadFailures(t *testing.T) {
	boom := errors.New("connection refused")
	tests := []struct {
		name  string
		setup func(f *fakeStore)
	}{
		{"enrollment", func(f *fakeStore) { f.enrollErr = boom }},
		{"last weekly", func(f *fakeStore) { f.lastErr[TypeWeekly] = boom }},
		{"last monthly", func(f *fakeStore) { f.lastErr[TypeMonthly] = boom }},
		{"last daily", func(f *fakeStore) { f.lastErr[TypeDaily] = boom }},
		{"milestone window", func(f *fakeStore) { f.windowErr = boom }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore().enroll(code, day0)
			tt.setup(store)

			_, err := newTestScheduler(store, at(14)).Decide(context.Background(), code)
			if !errors.Is(err, ErrStoreUnavailable) {
				t.Fatalf("expected ErrStoreUnavailable, got %v", err)
			}
			if !errors.Is(err, boom) {
				t.Errorf("expected the cause to be preserved, got %v", err)
			}
		})
	}
}

func TestDecide_ReadsMilestoneWindowsOnce(t *testing.T) {
	store := newFakeStore().enroll(code, day0)
	decideAt(t, store, at(100))

	// Days 14, 30 and 90 are reachable on day 100.
	if n := store.count("HasEntryInWindow"); n != 3 {
		t.Errorf("expected 3 window lookups, got %d", n)
	}
	if n := store.count("LastEntryDate"); n != 3 {
		t.Errorf("expected 3 last-date lookups, got %d", n)
	}
}

func TestScheduler_TodayUsesClockAndLocation(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, time.March, 1, 23, 30, 0, 0, time.UTC) }
	s := NewScheduler(newFakeStore(), clock, time.FixedZone("UTC+2", 2*60*60), zerolog.Nop())

	if got := s.Today(); got != (civil.Date{Year: 2024, Month: time.March, Day: 2}) {
		t.Errorf("expected 2024-03-02, got %s", got)
	}
}

func TestDecideOn_ExplicitDate(t *testing.T) {
	store := newFakeStore().enroll(code, day0)
	s := newTestScheduler(store, at(0))

	d, err := s.DecideOn(context.Background(), code, at(14))
	if err != nil {
		t.Fatalf("DecideOn: %v", err)
	}
	if d.Type != TypeEQ5D5L {
		t.Errorf("expected eq5d5l on day 14, got %s", d.Type)
	}
}

func TestDecide_PriorityTableOrder(t *testing.T) {
	want := []Type{TypeEQ5D5L, TypeWeekly, TypeMonthly, TypeDaily}
	if len(priority) != len(want) {
		t.Fatalf("expected %d rules, got %d", len(want), len(priority))
	}
	for i, r := range priority {
		if r.qtype != want[i] {
			t.Errorf("rule %d: expected %s, got %s", i, want[i], r.qtype)
		}
	}
}
