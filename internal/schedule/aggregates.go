package schedule

import "billtrack/internal/core"

// Aggregates are the rollups computed over a visible set. Unpaid and total
// amounts sum the bills' amount due, not the running balances, so a partial
// payment does not shrink the headline numbers.
type Aggregates struct {
	TotalBills     int        `json:"totalBills"`
	TotalAmountDue core.Money `json:"totalAmountDue"`
	UnpaidCount    int        `json:"unpaidCount"`
	UnpaidAmount   core.Money `json:"unpaidAmount"`
	OverdueCount   int        `json:"overdueCount"`
}

// ComputeAggregates folds the visible set into its summary numbers.
// Overdue means unpaid and due strictly before today.
func ComputeAggregates(visible []core.Bill, today core.CivilDate) Aggregates {
	agg := Aggregates{TotalBills: len(visible)}
	for _, b := range visible {
		agg.TotalAmountDue = agg.TotalAmountDue.Add(b.AmountDue)
		if b.IsPaid {
			continue
		}
		agg.UnpaidCount++
		agg.UnpaidAmount = agg.UnpaidAmount.Add(b.AmountDue)
		if b.DueDate.Before(today) {
			agg.OverdueCount++
		}
	}
	return agg
}
