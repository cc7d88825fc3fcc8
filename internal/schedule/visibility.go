package schedule

import (
	"sort"

	"billtrack/internal/core"
)

type (
	// ViewMode selects between the full collection and a single period
	// slice.
	ViewMode string

	// PaymentFilter narrows a view to paid or unpaid bills.
	PaymentFilter string

	// Selection captures everything the visible set depends on.
	Selection struct {
		ViewMode         ViewMode      `json:"viewMode"`
		PeriodIndex      *int          `json:"periodIndex"`
		Category         *string       `json:"category"`
		PaymentFilter    PaymentFilter `json:"paymentFilter"`
		ShowCarryForward bool          `json:"showCarryForward"`
	}
)

const (
	ViewModeAll      ViewMode = "all"
	ViewModeFiltered ViewMode = "filtered"

	PaymentFilterAll    PaymentFilter = "all"
	PaymentFilterPaid   PaymentFilter = "paid"
	PaymentFilterUnpaid PaymentFilter = "unpaid"
)

// Visible computes the ordered bill set for a selection. In all mode the
// whole collection passes through the payment filter. In filtered mode a
// bill must match the selected category and either fall inside the selected
// period window or qualify as carry-forward: an unpaid bill due before the
// window whose period still starts before the planning boundary, the start
// of the period after the active one. Both modes sort by due date with ties
// keeping input order. A filtered selection missing its period or category
// yields an empty set, never an error.
func Visible(bills []core.Bill, sel Selection, cfg core.PayConfig, periods []core.CivilDate, today core.CivilDate) ([]core.Bill, error) {
	if sel.ViewMode != ViewModeFiltered {
		out := make([]core.Bill, 0, len(bills))
		for _, b := range bills {
			if matchesPaymentFilter(b, sel.PaymentFilter) {
				out = append(out, b)
			}
		}
		sortByDueDate(out)
		return out, nil
	}

	if sel.PeriodIndex == nil || sel.Category == nil {
		return []core.Bill{}, nil
	}
	start, end, err := Window(periods, *sel.PeriodIndex, cfg)
	if err != nil {
		return nil, err
	}
	autoIdx := AutoIndex(periods, today)
	var boundary core.CivilDate
	hasBoundary := autoIdx+1 < len(periods)
	if hasBoundary {
		boundary = periods[autoIdx+1]
	}

	out := make([]core.Bill, 0)
	for _, b := range bills {
		if b.Category != *sel.Category || !matchesPaymentFilter(b, sel.PaymentFilter) {
			continue
		}
		inWindow := !b.DueDate.Before(start) && b.DueDate.Before(end)
		carried := sel.ShowCarryForward && !b.IsPaid && b.DueDate.Before(start) &&
			(!hasBoundary || start.Before(boundary))
		if inWindow || carried {
			out = append(out, b)
		}
	}
	sortByDueDate(out)
	return out, nil
}

func matchesPaymentFilter(b core.Bill, f PaymentFilter) bool {
	switch f {
	case PaymentFilterPaid:
		return b.IsPaid
	case PaymentFilterUnpaid:
		return !b.IsPaid
	}
	return true
}

func sortByDueDate(bills []core.Bill) {
	sort.SliceStable(bills, func(i, j int) bool {
		return bills[i].DueDate.Before(bills[j].DueDate)
	})
}
