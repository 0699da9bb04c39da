package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestValidateCronExpr(t *testing.T) {
	valid := []string{"0 3 * * *", "*/5 * * * *", "0 9 * * 1-5"}
	for _, expr := range valid {
		if err := ValidateCronExpr(expr); err != nil {
			t.Errorf("ValidateCronExpr(%q) = %v, want nil", expr, err)
		}
	}

	invalid := []string{"", "not a cron", "61 * * * *", "* * * *"}
	for _, expr := range invalid {
		if err := ValidateCronExpr(expr); err == nil {
			t.Errorf("ValidateCronExpr(%q) = nil, want error", expr)
		}
	}
}

func TestSchedule_NextDue(t *testing.T) {
	s := Schedule{CronExpr: "0 3 * * *"}

	from := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	next, err := s.NextDue(from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 8, 27, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestSchedule_IsDue(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	now := time.Now()

	cases := []struct {
		name string
		s    Schedule
		want bool
	}{
		{"due", Schedule{Enabled: true, NextDueAt: &past}, true},
		{"not yet", Schedule{Enabled: true, NextDueAt: &future}, false},
		{"disabled", Schedule{Enabled: false, NextDueAt: &past}, false},
		{"no next_due", Schedule{Enabled: true}, false},
	}

	for _, tc := range cases {
		if got := tc.s.IsDue(now); got != tc.want {
			t.Errorf("%s: IsDue = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSchedule_AdvanceAndRecordRun(t *testing.T) {
	s := Schedule{CronExpr: "*/5 * * * *", Enabled: true}

	next := time.Now().Add(5 * time.Minute)
	s.Advance(next)
	if s.LastRunAt == nil {
		t.Error("Advance should set LastRunAt")
	}
	if s.NextDueAt == nil || !s.NextDueAt.Equal(next) {
		t.Error("Advance should set NextDueAt")
	}

	execID := uuid.New()
	s.RecordRun(execID)
	if s.LastExecutionID == nil || *s.LastExecutionID != execID {
		t.Error("RecordRun should set LastExecutionID")
	}
}
