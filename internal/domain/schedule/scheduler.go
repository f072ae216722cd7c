package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-sql/civil"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// EntryStore is the read side of the questionnaire history. Implementations
// must be safe for concurrent use. An unknown patient is reported as ok=false,
// not as an error.
type EntryStore interface {
	EnrollmentDate(ctx context.Context, patientCode string) (civil.Date, bool, error)
	LastEntryDate(ctx context.Context, patientCode string, t Type) (civil.Date, bool, error)
	HasEntryInWindow(ctx context.Context, patientCode string, t Type, w Window) (bool, error)
	HasEntryOn(ctx context.Context, patientCode string, t Type, d civil.Date) (bool, error)
}

// ErrStoreUnavailable wraps any read failure that prevents a decision.
var ErrStoreUnavailable = errors.New("entry store unavailable")

type Scheduler struct {
	store  EntryStore
	clock  func() time.Time
	loc    *time.Location
	logger zerolog.Logger
}

// NewScheduler builds a Scheduler. clock defaults to time.Now and loc to UTC;
// together they define the single calendar "today" of a decision.
func NewScheduler(store EntryStore, clock func() time.Time, loc *time.Location, logger zerolog.Logger) *Scheduler {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{store: store, clock: clock, loc: loc, logger: logger}
}

func (s *Scheduler) Today() civil.Date {
	return Today(s.clock(), s.loc)
}

// Decide picks the questionnaire due today for patientCode. The code must
// already be normalized.
func (s *Scheduler) Decide(ctx context.Context, patientCode string) (Decision, error) {
	return s.DecideOn(ctx, patientCode, s.Today())
}

// DecideOn is Decide with an explicit "today".
func (s *Scheduler) DecideOn(ctx context.Context, patientCode string, today civil.Date) (Decision, error) {
	h, err := s.load(ctx, patientCode, today)
	if err != nil {
		return Decision{}, err
	}

	d := decide(h, today)
	if d.Type == TypeNone {
		return d, nil
	}

	filled, err := s.store.HasEntryOn(ctx, patientCode, d.Type, today)
	if err != nil {
		// Showing a form twice beats blocking the patient.
		s.logger.Warn().Err(err).
			Str("patient_code", patientCode).
			Str("questionnaire_type", string(d.Type)).
			Msg("today-filled check failed, reporting not filled")
		return d, nil
	}
	d.IsTodayFilled = filled
	return d, nil
}

// history is the point-in-time view of a patient a decision is made from.
type history struct {
	known       bool
	enrolled    civil.Date
	lastWeekly  *civil.Date
	lastMonthly *civil.Date
	lastDaily   *civil.Date

	milestone    Milestone
	milestoneDue bool
}

func (s *Scheduler) load(ctx context.Context, code string, today civil.Date) (*history, error) {
	h := &history{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, ok, err := s.store.EnrollmentDate(gctx, code)
		if err != nil {
			return fmt.Errorf("%w: enrollment date: %w", ErrStoreUnavailable, err)
		}
		h.enrolled, h.known = d, ok
		return nil
	})
	lastOf := func(t Type, dst **civil.Date) func() error {
		return func() error {
			d, ok, err := s.store.LastEntryDate(gctx, code, t)
			if err != nil {
				return fmt.Errorf("%w: last %s entry: %w", ErrStoreUnavailable, t, err)
			}
			if ok {
				*dst = &d
			}
			return nil
		}
	}
	g.Go(lastOf(TypeWeekly, &h.lastWeekly))
	g.Go(lastOf(TypeMonthly, &h.lastMonthly))
	g.Go(lastOf(TypeDaily, &h.lastDaily))
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !h.known {
		return h, nil
	}

	reachable := ReachableWindows(h.enrolled, today)
	covered := make(map[Window]bool, len(reachable))
	found := make([]bool, len(reachable))
	g, gctx = errgroup.WithContext(ctx)
	for i, m := range reachable {
		g.Go(func() error {
			ok, err := s.store.HasEntryInWindow(gctx, code, TypeEQ5D5L, m.Window)
			if err != nil {
				return fmt.Errorf("%w: eq5d5l window %s: %w", ErrStoreUnavailable, m.Window, err)
			}
			found[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, m := range reachable {
		covered[m.Window] = found[i]
	}

	h.milestone, h.milestoneDue = NextMilestone(h.enrolled, today, func(w Window) bool {
		return covered[w]
	})
	return h, nil
}

// rule selects qtype when check holds. Rules are evaluated in order and the
// first match wins.
type rule struct {
	qtype Type
	check func(h *history, today civil.Date) (reason string, ok bool)
}

var priority = []rule{
	{TypeEQ5D5L, milestoneRule},
	{TypeWeekly, weeklyRule},
	{TypeMonthly, monthlyRule},
	{TypeDaily, dailyRule},
}

const upToDateReason = "All questionnaires are up to date for today"

func decide(h *history, today civil.Date) Decision {
	for _, r := range priority {
		if reason, ok := r.check(h, today); ok {
			return Decision{Type: r.qtype, Reason: reason}
		}
	}
	return Decision{Type: TypeNone, Reason: upToDateReason}
}

func milestoneRule(h *history, _ civil.Date) (string, bool) {
	if !h.known || !h.milestoneDue {
		return "", false
	}
	return h.milestone.Reason(), true
}

func weeklyRule(h *history, today civil.Date) (string, bool) {
	if !IsDue(h.lastWeekly, today, WeeklyIntervalDays) {
		return "", false
	}
	if !h.known && h.lastWeekly == nil {
		return "Welcome! Start with the weekly LARS questionnaire", true
	}
	return dueReason("Weekly LARS questionnaire", h.lastWeekly, today), true
}

// Monthly yields to Weekly whenever Weekly is due, even when the 28-day
// interval has independently elapsed.
func monthlyRule(h *history, today civil.Date) (string, bool) {
	if IsDue(h.lastWeekly, today, WeeklyIntervalDays) {
		return "", false
	}
	if !IsDue(h.lastMonthly, today, MonthlyIntervalDays) {
		return "", false
	}
	return dueReason("Monthly quality-of-life questionnaire", h.lastMonthly, today), true
}

func dailyRule(h *history, today civil.Date) (string, bool) {
	if !IsDue(h.lastDaily, today, DailyIntervalDays) {
		return "", false
	}
	return dueReason("Daily diary", h.lastDaily, today), true
}

func dueReason(name string, last *civil.Date, today civil.Date) string {
	if last == nil {
		return name + " has not been filled yet"
	}
	days := DaysBetween(*last, today)
	unit := "days"
	if days == 1 {
		unit = "day"
	}
	return fmt.Sprintf("%s due: last filled %d %s ago (%s)", name, days, unit, last)
}
