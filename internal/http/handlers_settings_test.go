package http

import (
	"net/http"
	"testing"

	"billtrack/internal/core"
)

func TestPayConfigRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/v1/settings/payconfig", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rr.Code)
	}
	var cfg core.PayConfig
	decode(t, rr, &cfg)
	if cfg.Frequency != core.FrequencyBiWeekly || cfg.PayPeriodsToShow != 4 {
		t.Errorf("config = %+v, want seeded bi-weekly schedule", cfg)
	}

	rr = env.do(t, http.MethodPut, "/api/v1/settings/payconfig",
		`{"startDate":"2026-04-01","frequency":"weekly","payPeriodsToShow":6}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("put status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/v1/settings/payconfig", "")
	decode(t, rr, &cfg)
	if cfg.Frequency != core.FrequencyWeekly {
		t.Errorf("frequency = %q, want weekly", cfg.Frequency)
	}
	if cfg.StartDate != core.NewCivilDate(2026, 4, 1) {
		t.Errorf("start date = %s, want 2026-04-01", cfg.StartDate)
	}
}

func TestPayConfigRejections(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{
			name: "unknown frequency",
			body: `{"startDate":"2026-04-01","frequency":"sometimes","payPeriodsToShow":6}`,
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "zero periods",
			body: `{"startDate":"2026-04-01","frequency":"weekly","payPeriodsToShow":0}`,
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "custom frequency without days",
			body: `{"startDate":"2026-04-01","frequency":"custom","payPeriodsToShow":6}`,
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "malformed body",
			body: `{`,
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPut, "/api/v1/settings/payconfig", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestCategoriesRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/v1/settings/categories", "")
	var got categoriesResponse
	decode(t, rr, &got)
	if len(got.Categories) != 0 {
		t.Errorf("fresh categories = %v, want none", got.Categories)
	}

	rr = env.do(t, http.MethodPut, "/api/v1/settings/categories",
		`{"categories":["Pets"," Utilities ",""]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("put status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	decode(t, rr, &got)
	if len(got.Categories) != 2 || got.Categories[0] != "Pets" || got.Categories[1] != "Utilities" {
		t.Errorf("categories = %v, want trimmed [Pets Utilities]", got.Categories)
	}
}

func TestDeleteCategoryCascades(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPut, "/api/v1/settings/categories", `{"categories":["Pets","Utilities"]}`)
	env.do(t, http.MethodPost, "/api/v1/bills",
		`{"name":"Vet","category":"Pets","dueDate":"2026-03-20","amountDue":200,"recurrence":"One-time"}`)

	rr := env.do(t, http.MethodDelete, "/api/v1/settings/categories/Pets", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var result struct {
		Category     string `json:"category"`
		DeletedBills int    `json:"deletedBills"`
	}
	decode(t, rr, &result)
	if result.Category != "Pets" || result.DeletedBills != 1 {
		t.Errorf("result = %+v, want Pets with one deleted bill", result)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/settings/categories", "")
	var got categoriesResponse
	decode(t, rr, &got)
	if len(got.Categories) != 1 || got.Categories[0] != "Utilities" {
		t.Errorf("categories = %v, want [Utilities]", got.Categories)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/bills", "")
	var list billsResponse
	decode(t, rr, &list)
	if list.Count != 0 {
		t.Errorf("bills = %d, want cascade delete", list.Count)
	}
}

func TestProfilePartialUpdate(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/v1/settings/profile", "")
	var profile profileResponse
	decode(t, rr, &profile)
	if profile.UserEmail != "" || profile.Theme != "light" {
		t.Errorf("defaults = %+v, want empty email and light theme", profile)
	}

	rr = env.do(t, http.MethodPut, "/api/v1/settings/profile", `{"userEmail":"user@example.com"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("put email status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	decode(t, rr, &profile)
	if profile.UserEmail != "user@example.com" || profile.Theme != "light" {
		t.Errorf("profile = %+v, want email set and theme untouched", profile)
	}

	rr = env.do(t, http.MethodPut, "/api/v1/settings/profile", `{"theme":"DARK"}`)
	decode(t, rr, &profile)
	if profile.Theme != "dark" {
		t.Errorf("theme = %q, want dark", profile.Theme)
	}
	if profile.UserEmail != "user@example.com" {
		t.Errorf("email = %q, theme change must not clear it", profile.UserEmail)
	}

	rr = env.do(t, http.MethodPut, "/api/v1/settings/profile", `{"userEmail":""}`)
	decode(t, rr, &profile)
	if profile.UserEmail != "" {
		t.Errorf("email = %q, want cleared", profile.UserEmail)
	}
}

func TestProfileRejections(t *testing.T) {
	env := newTestEnv(t)

	if rr := env.do(t, http.MethodPut, "/api/v1/settings/profile", `{"userEmail":"not-an-address"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("bad email status = %d, want 400", rr.Code)
	}
	if rr := env.do(t, http.MethodPut, "/api/v1/settings/profile", `{"theme":"purple"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("bad theme status = %d, want 400", rr.Code)
	}
}
