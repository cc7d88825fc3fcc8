package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"billtrack/internal/core"
	"billtrack/internal/storage"
)

func testBill(id string, due core.CivilDate) core.Bill {
	return core.Bill{
		ID:         id,
		Name:       "Rent",
		Category:   "Housing",
		DueDate:    due,
		AmountDue:  core.Money{Cents: 120000},
		Balance:    core.Money{Cents: 120000},
		Recurrence: core.Recurrence{Kind: core.Monthly},
	}
}

func TestBillCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	bill := testBill("b1", core.NewCivilDate(2025, 1, 15))
	if err := s.CreateBill(ctx, bill); err != nil {
		t.Fatalf("CreateBill() error = %v", err)
	}
	if err := s.CreateBill(ctx, bill); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("CreateBill() duplicate error = %v, want ErrValidation", err)
	}

	got, err := s.GetBill(ctx, "b1")
	if err != nil {
		t.Fatalf("GetBill() error = %v", err)
	}
	if got.Name != "Rent" || got.DueDate != bill.DueDate {
		t.Fatalf("GetBill() = %+v, want %+v", got, bill)
	}

	got.Name = "Mortgage"
	if err := s.UpdateBill(ctx, got); err != nil {
		t.Fatalf("UpdateBill() error = %v", err)
	}
	got, _ = s.GetBill(ctx, "b1")
	if got.Name != "Mortgage" {
		t.Errorf("after update Name = %q, want Mortgage", got.Name)
	}

	if err := s.DeleteBill(ctx, "b1"); err != nil {
		t.Fatalf("DeleteBill() error = %v", err)
	}
	if _, err := s.GetBill(ctx, "b1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetBill() after delete error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteBill(ctx, "b1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteBill() twice error = %v, want ErrNotFound", err)
	}
	if err := s.UpdateBill(ctx, bill); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("UpdateBill() missing error = %v, want ErrNotFound", err)
	}
}

func TestListBillsSortedAndCopied(t *testing.T) {
	ctx := context.Background()
	s := New()

	later := testBill("z-late", core.NewCivilDate(2025, 3, 1))
	early := testBill("a-early", core.NewCivilDate(2025, 1, 1))
	sameDay := testBill("b-same", core.NewCivilDate(2025, 1, 1))
	for _, b := range []core.Bill{later, early, sameDay} {
		if err := s.CreateBill(ctx, b); err != nil {
			t.Fatalf("CreateBill(%s) error = %v", b.ID, err)
		}
	}

	bills, err := s.ListBills(ctx)
	if err != nil {
		t.Fatalf("ListBills() error = %v", err)
	}
	wantOrder := []string{"a-early", "b-same", "z-late"}
	for i, id := range wantOrder {
		if bills[i].ID != id {
			t.Errorf("ListBills()[%d].ID = %s, want %s", i, bills[i].ID, id)
		}
	}

	// Mutating the returned slice must not leak into the store.
	bills[0].Name = "mutated"
	bills[0].PaymentHistory = append(bills[0].PaymentHistory, core.Payment{ID: "p"})
	got, _ := s.GetBill(ctx, "a-early")
	if got.Name == "mutated" || len(got.PaymentHistory) != 0 {
		t.Error("ListBills() leaked internal state to the caller")
	}
}

func TestReplaceAllBills(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.CreateBill(ctx, testBill("old", core.NewCivilDate(2025, 1, 1))); err != nil {
		t.Fatalf("CreateBill() error = %v", err)
	}

	next := []core.Bill{
		testBill("n1", core.NewCivilDate(2025, 2, 1)),
		testBill("n2", core.NewCivilDate(2025, 2, 15)),
	}
	if err := s.ReplaceAllBills(ctx, next); err != nil {
		t.Fatalf("ReplaceAllBills() error = %v", err)
	}

	bills, _ := s.ListBills(ctx)
	if len(bills) != 2 {
		t.Fatalf("ListBills() len = %d, want 2", len(bills))
	}
	if _, err := s.GetBill(ctx, "old"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("old bill survived ReplaceAllBills: err = %v", err)
	}

	dup := []core.Bill{
		testBill("d", core.NewCivilDate(2025, 2, 1)),
		testBill("d", core.NewCivilDate(2025, 2, 15)),
	}
	if err := s.ReplaceAllBills(ctx, dup); !errors.Is(err, core.ErrValidation) {
		t.Errorf("ReplaceAllBills() duplicate ids error = %v, want ErrValidation", err)
	}
	// A rejected replace must leave the previous collection intact.
	bills, _ = s.ListBills(ctx)
	if len(bills) != 2 || bills[0].ID != "n1" {
		t.Errorf("collection changed after rejected replace: %v", bills)
	}
}

func TestAppendPayment(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.CreateBill(ctx, testBill("b1", core.NewCivilDate(2025, 1, 15))); err != nil {
		t.Fatalf("CreateBill() error = %v", err)
	}

	payment := core.Payment{
		ID:     "p1",
		Date:   core.NewCivilDate(2025, 1, 10),
		Amount: core.Money{Cents: 50000},
		Method: "ACH",
	}
	got, err := s.AppendPayment(ctx, "b1", payment)
	if err != nil {
		t.Fatalf("AppendPayment() error = %v", err)
	}
	if len(got.PaymentHistory) != 1 || got.PaymentHistory[0].ID != "p1" {
		t.Fatalf("AppendPayment() history = %v, want one entry p1", got.PaymentHistory)
	}

	stored, _ := s.GetBill(ctx, "b1")
	if len(stored.PaymentHistory) != 1 {
		t.Errorf("stored history len = %d, want 1", len(stored.PaymentHistory))
	}

	if _, err := s.AppendPayment(ctx, "missing", payment); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("AppendPayment() missing bill error = %v, want ErrNotFound", err)
	}
}

func TestSettingsDefaults(t *testing.T) {
	ctx := context.Background()
	s := New()

	cfg, err := s.GetPayConfig(ctx)
	if err != nil {
		t.Fatalf("GetPayConfig() error = %v", err)
	}
	if cfg.Frequency != core.FrequencyBiWeekly || cfg.PayPeriodsToShow != 6 {
		t.Errorf("GetPayConfig() default = %+v, want bi-weekly with 6 periods", cfg)
	}

	want := core.PayConfig{
		StartDate:        core.NewCivilDate(2025, 1, 8),
		Frequency:        core.FrequencyMonthly,
		PayPeriodsToShow: 4,
	}
	if err := s.SetPayConfig(ctx, want); err != nil {
		t.Fatalf("SetPayConfig() error = %v", err)
	}
	cfg, _ = s.GetPayConfig(ctx)
	if cfg != want {
		t.Errorf("GetPayConfig() = %+v, want %+v", cfg, want)
	}

	theme, _ := s.GetTheme(ctx)
	if theme != storage.DefaultTheme {
		t.Errorf("GetTheme() default = %q, want %q", theme, storage.DefaultTheme)
	}
	if err := s.SetTheme(ctx, "dark"); err != nil {
		t.Fatalf("SetTheme() error = %v", err)
	}
	theme, _ = s.GetTheme(ctx)
	if theme != "dark" {
		t.Errorf("GetTheme() = %q, want dark", theme)
	}

	cats, _ := s.GetCustomCategories(ctx)
	if len(cats) != 0 {
		t.Errorf("GetCustomCategories() default = %v, want empty", cats)
	}
	if err := s.SetCustomCategories(ctx, []string{"Streaming", "Pets"}); err != nil {
		t.Fatalf("SetCustomCategories() error = %v", err)
	}
	cats, _ = s.GetCustomCategories(ctx)
	if len(cats) != 2 || cats[0] != "Streaming" {
		t.Errorf("GetCustomCategories() = %v", cats)
	}

	if err := s.SetUserEmail(ctx, "user@example.com"); err != nil {
		t.Fatalf("SetUserEmail() error = %v", err)
	}
	email, _ := s.GetUserEmail(ctx)
	if email != "user@example.com" {
		t.Errorf("GetUserEmail() = %q", email)
	}

	if err := s.SetSelectedCategory(ctx, "Housing"); err != nil {
		t.Fatalf("SetSelectedCategory() error = %v", err)
	}
	cat, _ := s.GetSelectedCategory(ctx)
	if cat != "Housing" {
		t.Errorf("GetSelectedCategory() = %q", cat)
	}
}

func TestSyncStateBookkeeping(t *testing.T) {
	ctx := context.Background()
	s := New()

	state, err := s.GetSyncState(ctx)
	if err != nil {
		t.Fatalf("GetSyncState() error = %v", err)
	}
	if state.Pending() {
		t.Error("fresh store reports pending sync")
	}

	v1, _ := s.BumpDataVersion(ctx)
	v2, _ := s.BumpDataVersion(ctx)
	if v1 != 1 || v2 != 2 {
		t.Fatalf("BumpDataVersion() = %d, %d, want 1, 2", v1, v2)
	}

	state, _ = s.GetSyncState(ctx)
	if !state.Pending() {
		t.Error("bumped store does not report pending sync")
	}

	at := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	if err := s.MarkSynced(ctx, v2, at); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}
	state, _ = s.GetSyncState(ctx)
	if state.Pending() {
		t.Error("synced store still reports pending")
	}
	if state.LastStatus != storage.SyncStatusOK || !state.LastSyncAt.Equal(at) {
		t.Errorf("GetSyncState() = %+v, want ok at %v", state, at)
	}

	// A stale MarkSynced must not rewind the synced version.
	if err := s.MarkSynced(ctx, v1, at.Add(time.Minute)); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}
	state, _ = s.GetSyncState(ctx)
	if state.SyncedVersion != v2 {
		t.Errorf("SyncedVersion = %d, want %d after stale mark", state.SyncedVersion, v2)
	}

	if err := s.MarkSyncError(ctx, at.Add(2*time.Minute), errors.New("remote down")); err != nil {
		t.Fatalf("MarkSyncError() error = %v", err)
	}
	state, _ = s.GetSyncState(ctx)
	if state.LastStatus != storage.SyncStatusError || state.LastError != "remote down" {
		t.Errorf("GetSyncState() after error = %+v", state)
	}
}
