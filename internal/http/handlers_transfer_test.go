package http

import (
	"net/http"
	"strings"
	"testing"

	"billtrack/internal/core"
	"billtrack/internal/services"
)

func TestExportDownload(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/bills",
		`{"name":"Internet","category":"Utilities","dueDate":"2026-03-20","amountDue":80,"recurrence":"One-time"}`)

	rr := env.do(t, http.MethodGet, "/api/v1/export", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	cd := rr.Header().Get("Content-Disposition")
	if !strings.Contains(cd, `attachment; filename="billtrack-export-`) || !strings.Contains(cd, `.json"`) {
		t.Errorf("Content-Disposition = %q, want dated attachment filename", cd)
	}

	var env2 services.ExportEnvelope
	decode(t, rr, &env2)
	if env2.Version != services.EnvelopeVersion {
		t.Errorf("version = %q, want %q", env2.Version, services.EnvelopeVersion)
	}
	if len(env2.Bills) != 1 || env2.Bills[0].Name != "Internet" {
		t.Errorf("bills = %+v, want the seeded bill", env2.Bills)
	}
	if env2.PaymentSettings.Frequency != core.FrequencyBiWeekly {
		t.Errorf("payment settings = %+v, want seeded schedule", env2.PaymentSettings)
	}
}

func TestImportRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/bills",
		`{"name":"Internet","category":"Utilities","dueDate":"2026-03-20","amountDue":80,"recurrence":"One-time"}`)
	env.do(t, http.MethodPost, "/api/v1/bills",
		`{"name":"Water","category":"Utilities","dueDate":"2026-04-01","amountDue":45,"recurrence":"One-time"}`)
	env.do(t, http.MethodPut, "/api/v1/settings/categories", `{"categories":["Pets"]}`)

	exported := env.do(t, http.MethodGet, "/api/v1/export", "").Body.String()

	rr := env.do(t, http.MethodPost, "/api/v1/import", exported)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var summary services.ImportSummary
	decode(t, rr, &summary)
	if summary.Imported != 2 {
		t.Errorf("imported = %d, want 2", summary.Imported)
	}
	if summary.Categories != 1 {
		t.Errorf("categories = %d, want 1", summary.Categories)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/bills", "")
	var list billsResponse
	decode(t, rr, &list)
	if list.Count != 2 {
		t.Errorf("bills after import = %d, want 2", list.Count)
	}
}

func TestImportPreservesIDs(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/v1/import",
		`{"version":"1.0","bills":[{"id":"keep-me","name":"Internet","category":"Utilities","dueDate":"2026-03-20","amountDue":80,"recurrence":"One-time"}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/v1/bills/keep-me", "")
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want imported id to resolve", rr.Code)
	}
}

func TestImportRejections(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"unsupported version", `{"version":"2.0","bills":[]}`, http.StatusBadRequest},
		{"missing bills", `{"version":"1.0"}`, http.StatusBadRequest},
		{
			name: "bad record fails the batch",
			body: `{"version":"1.0","bills":[{"name":"X","category":"C","dueDate":"not-a-date","amountDue":10,"recurrence":"One-time"}]}`,
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/v1/import", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestImportOversizedIs413(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/v1/import", strings.Repeat("x", services.MaxImportBytes+1))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rr.Code)
	}
	var body errorBody
	decode(t, rr, &body)
	if !strings.Contains(body.Error, "exceeds") {
		t.Errorf("error = %q, want size message", body.Error)
	}
}

func TestImportCSV(t *testing.T) {
	env := newTestEnv(t)

	csv := "Name,Due Date,Amount,Category,Recurrence\n" +
		"Water,2026-03-18,45.50,Utilities,Monthly\n" +
		",2026-03-19,10,Misc,\n" +
		"Power,bad-date,30,Utilities,Monthly\n"

	rr := env.do(t, http.MethodPost, "/api/v1/import/csv", csv)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var summary services.ImportSummary
	decode(t, rr, &summary)
	if summary.Imported != 1 || summary.Skipped != 2 {
		t.Errorf("summary = %+v, want 1 imported and 2 skipped", summary)
	}
	if summary.Categories != 1 {
		t.Errorf("categories = %d, want Utilities added", summary.Categories)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/bills", "")
	var list billsResponse
	decode(t, rr, &list)
	if list.Count != 1 || list.Bills[0].Name != "Water" {
		t.Fatalf("bills = %+v, want just Water", list.Bills)
	}
	if list.Bills[0].AmountDue.Cents != 4550 {
		t.Errorf("amount = %d cents, want 4550", list.Bills[0].AmountDue.Cents)
	}
	if list.Bills[0].Recurrence.Kind != core.Monthly {
		t.Errorf("recurrence = %q, want Monthly", list.Bills[0].Recurrence.Kind)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/settings/categories", "")
	var cats categoriesResponse
	decode(t, rr, &cats)
	if len(cats.Categories) != 1 || cats.Categories[0] != "Utilities" {
		t.Errorf("categories = %v, want [Utilities]", cats.Categories)
	}
}
