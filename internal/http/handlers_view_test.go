package http

import (
	"context"
	"net/http"
	"testing"

	"billtrack/internal/core"
	"billtrack/internal/schedule"
	"billtrack/internal/state"
)

func TestViewProjection(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/bills",
		`{"name":"Internet","category":"Utilities","dueDate":"2026-03-20","amountDue":80,"recurrence":"One-time"}`)
	env.do(t, http.MethodPost, "/api/v1/bills",
		`{"name":"Water","category":"Utilities","dueDate":"2026-04-01","amountDue":45,"recurrence":"One-time"}`)

	rr := env.do(t, http.MethodGet, "/api/v1/view", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var vm state.ViewModel
	decode(t, rr, &vm)
	if len(vm.Bills) != 2 {
		t.Errorf("bills = %d, want 2", len(vm.Bills))
	}
	if len(vm.Periods) != 4 {
		t.Errorf("periods = %d, want 4", len(vm.Periods))
	}
	if vm.AutoIndex != 1 {
		t.Errorf("auto index = %d, want 1", vm.AutoIndex)
	}
	if vm.DisplayMode != state.DisplayModeList {
		t.Errorf("display mode = %q, want list", vm.DisplayMode)
	}
	if vm.Selection.ViewMode != schedule.ViewModeAll {
		t.Errorf("view mode = %q, want all", vm.Selection.ViewMode)
	}
	if vm.Aggregates.TotalBills != 2 || vm.Aggregates.UnpaidCount != 2 {
		t.Errorf("aggregates = %+v, want two unpaid bills", vm.Aggregates)
	}
	if vm.ScheduleError != "" {
		t.Errorf("schedule error = %q, want empty", vm.ScheduleError)
	}
}

func TestSelectionActions(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, vm state.ViewModel)
	}{
		{
			name: "select period",
			body: `{"action":"selectPeriod","periodIndex":1}`,
			check: func(t *testing.T, vm state.ViewModel) {
				if vm.Selection.ViewMode != schedule.ViewModeFiltered {
					t.Errorf("view mode = %q, want filtered", vm.Selection.ViewMode)
				}
				if vm.Selection.PeriodIndex == nil || *vm.Selection.PeriodIndex != 1 {
					t.Errorf("period index = %v, want 1", vm.Selection.PeriodIndex)
				}
				if want := core.NewCivilDate(2026, 3, 1); vm.CalendarMonth != want {
					t.Errorf("calendar month = %s, want %s", vm.CalendarMonth, want)
				}
			},
		},
		{
			name: "select all",
			body: `{"action":"selectAll"}`,
			check: func(t *testing.T, vm state.ViewModel) {
				if vm.Selection.ViewMode != schedule.ViewModeAll {
					t.Errorf("view mode = %q, want all", vm.Selection.ViewMode)
				}
				if vm.Selection.PeriodIndex != nil {
					t.Errorf("period index = %v, want nil", *vm.Selection.PeriodIndex)
				}
			},
		},
		{
			name: "select category",
			body: `{"action":"selectCategory","category":"Utilities"}`,
			check: func(t *testing.T, vm state.ViewModel) {
				if vm.Selection.Category == nil || *vm.Selection.Category != "Utilities" {
					t.Errorf("category = %v, want Utilities", vm.Selection.Category)
				}
				if vm.Selection.ViewMode != schedule.ViewModeFiltered {
					t.Errorf("view mode = %q, want filtered", vm.Selection.ViewMode)
				}
			},
		},
		{
			name: "clear category",
			body: `{"action":"selectCategory"}`,
			check: func(t *testing.T, vm state.ViewModel) {
				if vm.Selection.Category != nil {
					t.Errorf("category = %v, want nil", *vm.Selection.Category)
				}
			},
		},
		{
			name: "set payment filter",
			body: `{"action":"setPaymentFilter","paymentFilter":"unpaid"}`,
			check: func(t *testing.T, vm state.ViewModel) {
				if vm.Selection.PaymentFilter != schedule.PaymentFilterUnpaid {
					t.Errorf("payment filter = %q, want unpaid", vm.Selection.PaymentFilter)
				}
			},
		},
		{
			name: "set carry forward",
			body: `{"action":"setCarryForward","showCarryForward":false}`,
			check: func(t *testing.T, vm state.ViewModel) {
				if vm.Selection.ShowCarryForward {
					t.Error("carry forward still on")
				}
			},
		},
		{
			name: "set display mode",
			body: `{"action":"setDisplayMode","displayMode":"calendar"}`,
			check: func(t *testing.T, vm state.ViewModel) {
				if vm.DisplayMode != state.DisplayModeCalendar {
					t.Errorf("display mode = %q, want calendar", vm.DisplayMode)
				}
			},
		},
		{
			name: "set calendar month snaps to month start",
			body: `{"action":"setCalendarMonth","month":"2026-04-15"}`,
			check: func(t *testing.T, vm state.ViewModel) {
				if want := core.NewCivilDate(2026, 4, 1); vm.CalendarMonth != want {
					t.Errorf("calendar month = %s, want %s", vm.CalendarMonth, want)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rr := env.do(t, http.MethodPut, "/api/v1/selection", tt.body)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
			}
			var vm state.ViewModel
			decode(t, rr, &vm)
			tt.check(t, vm)
		})
	}
}

func TestSelectionRejections(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"unknown action", `{"action":"teleport"}`},
		{"select period without index", `{"action":"selectPeriod"}`},
		{"period index out of range", `{"action":"selectPeriod","periodIndex":99}`},
		{"negative period index", `{"action":"selectPeriod","periodIndex":-1}`},
		{"unknown payment filter", `{"action":"setPaymentFilter","paymentFilter":"overdue"}`},
		{"unknown display mode", `{"action":"setDisplayMode","displayMode":"grid"}`},
		{"unparsable month", `{"action":"setCalendarMonth","month":"15/04/2026"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPut, "/api/v1/selection", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestViewSurvivesMisconfiguredSchedule(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/bills",
		`{"name":"Internet","category":"Utilities","dueDate":"2026-03-20","amountDue":80,"recurrence":"One-time"}`)

	// Build a good projection, then break the stored schedule underneath it.
	if rr := env.do(t, http.MethodGet, "/api/v1/view", ""); rr.Code != http.StatusOK {
		t.Fatalf("first view status = %d, want 200", rr.Code)
	}
	if err := env.store.SetPayConfig(context.Background(), core.PayConfig{}); err != nil {
		t.Fatalf("SetPayConfig: %v", err)
	}

	rr := env.do(t, http.MethodGet, "/api/v1/view", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var vm state.ViewModel
	decode(t, rr, &vm)
	if vm.ScheduleError == "" {
		t.Error("schedule error missing from view")
	}
	if len(vm.Periods) != 4 {
		t.Errorf("periods = %d, want last good geometry", len(vm.Periods))
	}
	if len(vm.Bills) != 1 {
		t.Errorf("bills = %d, want last good view", len(vm.Bills))
	}

	// Period selection stays blocked until the schedule is repaired.
	rr = env.do(t, http.MethodPut, "/api/v1/selection", `{"action":"selectPeriod","periodIndex":0}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("selection status = %d, want 422 (body %s)", rr.Code, rr.Body.String())
	}
}

func TestPeriods(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/v1/periods", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var body periodsResponse
	decode(t, rr, &body)
	if len(body.Periods) != 4 {
		t.Fatalf("periods = %d, want 4", len(body.Periods))
	}
	if body.Periods[0] != core.NewCivilDate(2026, 3, 1) {
		t.Errorf("first boundary = %s, want 2026-03-01", body.Periods[0])
	}
	if body.Labels[0] != "Mar 1 - Mar 14" {
		t.Errorf("first label = %q, want Mar 1 - Mar 14", body.Labels[0])
	}
	if body.AutoIndex != 1 {
		t.Errorf("auto index = %d, want 1", body.AutoIndex)
	}
}

func TestPeriodsMisconfiguredIs422(t *testing.T) {
	env := newTestEnv(t)
	if err := env.store.SetPayConfig(context.Background(), core.PayConfig{}); err != nil {
		t.Fatalf("SetPayConfig: %v", err)
	}

	rr := env.do(t, http.MethodGet, "/api/v1/periods", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422 (body %s)", rr.Code, rr.Body.String())
	}
}
