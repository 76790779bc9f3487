package flowcontrol_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aglayrton/fluxo-agua/internal/db"
	"github.com/aglayrton/fluxo-agua/internal/flowcontrol"
	"github.com/aglayrton/fluxo-agua/internal/repository"
)

type fakeStateStore struct {
	states map[string]*db.FlowControlState
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[string]*db.FlowControlState)}
}

func (f *fakeStateStore) WithState(_ context.Context, day time.Time, fn func(st *db.FlowControlState) (bool, error)) (*db.FlowControlState, error) {
	key := day.Format("2006-01-02")
	st, ok := f.states[key]
	if !ok {
		st = &db.FlowControlState{Day: day, Status: db.StatusOn}
		f.states[key] = st
	}
	if _, err := fn(st); err != nil {
		return nil, err
	}
	copied := *st
	return &copied, nil
}

type fakeGoalSource struct {
	goal *db.ConsumptionGoal
}

func (f *fakeGoalSource) CurrentGoal(context.Context) (*db.ConsumptionGoal, error) {
	if f.goal == nil {
		return nil, repository.ErrGoalNotFound
	}
	return f.goal, nil
}

type fakeTotalSource struct {
	totals map[string]decimal.Decimal
}

func (f *fakeTotalSource) ResidenceTotal(_ context.Context, day time.Time) (decimal.Decimal, error) {
	return f.totals[day.Format("2006-01-02")], nil
}

type fakeNotifier struct {
	calls     int
	lastTotal decimal.Decimal
	lastGoal  decimal.Decimal
}

func (f *fakeNotifier) Notify(_ context.Context, _ time.Time, total, goal decimal.Decimal) {
	f.calls++
	f.lastTotal = total
	f.lastGoal = goal
}

type fakeEventSink struct {
	calls int
}

func (f *fakeEventSink) ShutoffOccurred(context.Context, time.Time, decimal.Decimal, decimal.Decimal) {
	f.calls++
}

type controllerFixture struct {
	states   *fakeStateStore
	goals    *fakeGoalSource
	totals   *fakeTotalSource
	notifier *fakeNotifier
	events   *fakeEventSink
	ctrl     *flowcontrol.Controller
}

func newFixture(goalLiters string) *controllerFixture {
	f := &controllerFixture{
		states:   newFakeStateStore(),
		totals:   &fakeTotalSource{totals: make(map[string]decimal.Decimal)},
		notifier: &fakeNotifier{},
		events:   &fakeEventSink{},
	}
	f.goals = &fakeGoalSource{}
	if goalLiters != "" {
		f.goals.goal = &db.ConsumptionGoal{DailyLiters: decimal.RequireFromString(goalLiters)}
	}
	f.ctrl = flowcontrol.NewController(f.states, f.goals, f.totals, f.notifier, f.events, nil, zap.NewNop())
	return f
}

func (f *controllerFixture) setTotal(day time.Time, total string) {
	f.totals.totals[day.Format("2006-01-02")] = decimal.RequireFromString(total)
}

func (f *controllerFixture) state(day time.Time) *db.FlowControlState {
	return f.states.states[day.Format("2006-01-02")]
}

var testDay = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func TestEvaluate_NoGoalConfigured(t *testing.T) {
	f := newFixture("")
	f.setTotal(testDay, "9999.00")

	if err := f.ctrl.Evaluate(context.Background(), testDay); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if f.notifier.calls != 0 {
		t.Error("Expected no notification without a configured goal")
	}
	if f.state(testDay) != nil {
		t.Error("Expected no state record to be touched without a goal")
	}
}

func TestEvaluate_BelowGoal(t *testing.T) {
	f := newFixture("200.00")
	f.setTotal(testDay, "150.00")

	if err := f.ctrl.Evaluate(context.Background(), testDay); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if f.notifier.calls != 0 || f.events.calls != 0 {
		t.Error("Expected no shutoff or notification below the goal")
	}
}

func TestEvaluate_GoalExceeded(t *testing.T) {
	f := newFixture("200.00")
	f.setTotal(testDay, "210.50")

	if err := f.ctrl.Evaluate(context.Background(), testDay); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	st := f.state(testDay)
	if st == nil {
		t.Fatal("Expected a state record for the day")
	}
	if st.Status != db.StatusOff {
		t.Errorf("Expected status off after exceeding the goal, got %s", st.Status)
	}
	if !st.AutoShutoffOccurred {
		t.Error("Expected auto_shutoff_occurred to be set")
	}
	if !st.NotificationSent {
		t.Error("Expected notification_sent to be set")
	}
	if f.notifier.calls != 1 {
		t.Errorf("Expected exactly one notification, got %d", f.notifier.calls)
	}
	if f.events.calls != 1 {
		t.Errorf("Expected exactly one shutoff event, got %d", f.events.calls)
	}
	if f.notifier.lastTotal.StringFixed(2) != "210.50" {
		t.Errorf("Expected notified total 210.50, got %s", f.notifier.lastTotal.StringFixed(2))
	}
	if f.notifier.lastGoal.StringFixed(2) != "200.00" {
		t.Errorf("Expected notified goal 200.00, got %s", f.notifier.lastGoal.StringFixed(2))
	}
}

func TestEvaluate_ExactlyAtGoal(t *testing.T) {
	f := newFixture("200.00")
	f.setTotal(testDay, "200.00")

	if err := f.ctrl.Evaluate(context.Background(), testDay); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if f.notifier.calls != 1 {
		t.Errorf("Reaching the goal exactly should trigger the alert, got %d calls", f.notifier.calls)
	}
}

func TestEvaluate_NotificationAtMostOncePerDay(t *testing.T) {
	f := newFixture("200.00")
	f.setTotal(testDay, "210.00")

	for i := 0; i < 5; i++ {
		if err := f.ctrl.Evaluate(context.Background(), testDay); err != nil {
			t.Fatalf("Evaluate %d failed: %v", i, err)
		}
	}

	if f.notifier.calls != 1 {
		t.Errorf("Expected exactly one notification across repeated evaluations, got %d", f.notifier.calls)
	}
	if f.events.calls != 1 {
		t.Errorf("Expected exactly one shutoff event across repeated evaluations, got %d", f.events.calls)
	}
}

func TestEvaluate_ManualOverrideWins(t *testing.T) {
	f := newFixture("200.00")
	f.setTotal(testDay, "210.00")

	// User re-opens the flow before the goal is exceeded
	if _, err := f.ctrl.SetStatus(context.Background(), testDay, db.StatusOn); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	if err := f.ctrl.Evaluate(context.Background(), testDay); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	st := f.state(testDay)
	if st.Status != db.StatusOn {
		t.Errorf("Expected manual status to survive evaluation, got %s", st.Status)
	}
	if st.AutoShutoffOccurred {
		t.Error("Automatic shutoff must not fire after a manual override")
	}
	if !st.UserOverrode {
		t.Error("Expected user_overrode to be set")
	}
	if f.notifier.calls != 1 {
		t.Errorf("Notification is independent of the override, expected 1 got %d", f.notifier.calls)
	}
}

func TestEvaluate_OverrideAfterShutoffStaysSticky(t *testing.T) {
	f := newFixture("200.00")
	f.setTotal(testDay, "210.00")

	if err := f.ctrl.Evaluate(context.Background(), testDay); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if _, err := f.ctrl.SetStatus(context.Background(), testDay, db.StatusOn); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if err := f.ctrl.Evaluate(context.Background(), testDay); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	st := f.state(testDay)
	if st.Status != db.StatusOn {
		t.Errorf("Expected flow to stay on after re-open, got %s", st.Status)
	}
	if !st.AutoShutoffOccurred || !st.UserOverrode || !st.NotificationSent {
		t.Error("Sticky flags must never regress within the day")
	}
	if f.events.calls != 1 {
		t.Errorf("Shutoff must not repeat after the user re-opened the flow, got %d events", f.events.calls)
	}
}

func TestEvaluate_DailyIsolation(t *testing.T) {
	f := newFixture("200.00")
	nextDay := testDay.AddDate(0, 0, 1)
	f.setTotal(testDay, "210.00")
	f.setTotal(nextDay, "205.00")

	if err := f.ctrl.Evaluate(context.Background(), testDay); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if err := f.ctrl.Evaluate(context.Background(), nextDay); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if f.notifier.calls != 2 {
		t.Errorf("Each day gets its own notification, expected 2 got %d", f.notifier.calls)
	}
	if !f.state(testDay).AutoShutoffOccurred || !f.state(nextDay).AutoShutoffOccurred {
		t.Error("Expected both days to record their own shutoff")
	}
}

func TestSetStatus_InvalidStatus(t *testing.T) {
	f := newFixture("200.00")

	_, err := f.ctrl.SetStatus(context.Background(), testDay, "open")
	if !errors.Is(err, flowcontrol.ErrInvalidStatus) {
		t.Errorf("Expected ErrInvalidStatus, got %v", err)
	}
}

func TestStatus_CreatesDefaultRecord(t *testing.T) {
	f := newFixture("200.00")

	st, err := f.ctrl.Status(context.Background(), testDay)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}

	if st.Status != db.StatusOn {
		t.Errorf("Expected default status on, got %s", st.Status)
	}
	if st.AutoShutoffOccurred || st.UserOverrode || st.NotificationSent {
		t.Error("Expected a fresh record with all flags false")
	}
}
