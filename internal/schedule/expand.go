package schedule

import (
	"sort"

	"github.com/google/uuid"

	"billtrack/internal/core"
)

// DefaultHorizonYear bounds recurrence expansion when no horizon is
// configured. Chains stop once the cursor advances past December 31 of
// this year.
const DefaultHorizonYear = 2027

// Expander materializes recurring bills into concrete per-period
// instances. The zero value works; NewID defaults to random UUIDs and
// HorizonYear to DefaultHorizonYear.
type Expander struct {
	HorizonYear int
	NewID       func() string
}

// NewExpander returns an expander bounded by the given horizon year.
func NewExpander(horizonYear int) *Expander {
	if horizonYear <= 0 {
		horizonYear = DefaultHorizonYear
	}
	return &Expander{HorizonYear: horizonYear, NewID: uuid.NewString}
}

// instanceKey is the identity an occurrence has for deduplication. Two
// bills with the same key are the same occurrence regardless of id.
type instanceKey struct {
	name       string
	category   string
	dueDate    core.CivilDate
	recurrence core.Recurrence
}

func keyOf(b core.Bill) instanceKey {
	return instanceKey{name: b.Name, category: b.Category, dueDate: b.DueDate, recurrence: b.Recurrence}
}

func dedupSet(bills []core.Bill) map[instanceKey]bool {
	set := make(map[instanceKey]bool, len(bills))
	for _, b := range bills {
		set[keyOf(b)] = true
	}
	return set
}

// Expand walks every recurring bill in the collection through the pay
// period windows and returns the instances that do not exist yet, sorted
// by due date then name. The input is never mutated and the result
// carries only the new instances; running Expand again over input plus
// result yields nothing.
func (e *Expander) Expand(bills []core.Bill, cfg core.PayConfig) ([]core.Bill, error) {
	periods, err := Boundaries(cfg)
	if err != nil {
		return nil, err
	}
	stride, err := cfg.StrideDays()
	if err != nil {
		return nil, err
	}
	seen := dedupSet(bills)
	var out []core.Bill
	for _, b := range bills {
		if !b.Recurrence.IsRecurring() {
			continue
		}
		out = append(out, e.expandTemplate(b, bills, periods, stride, seen)...)
	}
	sortInstances(out)
	return out, nil
}

// sortInstances orders minted instances by due date then name, so the
// appended tail of the collection is deterministic regardless of which
// template's chain emitted first.
func sortInstances(instances []core.Bill) {
	sort.SliceStable(instances, func(i, j int) bool {
		if c := instances[i].DueDate.Compare(instances[j].DueDate); c != 0 {
			return c < 0
		}
		return instances[i].Name < instances[j].Name
	})
}

// expandTemplate walks one template's recurrence chain across the period
// windows. seen accumulates occurrence keys across templates so parallel
// chains of the same bill converge instead of duplicating.
func (e *Expander) expandTemplate(t core.Bill, base []core.Bill, periods []core.CivilDate, stride int, seen map[instanceKey]bool) []core.Bill {
	var out []core.Bill
	cursor := t.DueDate
	horizon := e.horizon()
	for i := range periods {
		start := periods[i]
		end := start.AddDays(stride)
		if i+1 < len(periods) {
			end = periods[i+1]
		}
		for cursor.Before(end) {
			if !cursor.Before(start) {
				k := instanceKey{name: t.Name, category: t.Category, dueDate: cursor, recurrence: t.Recurrence}
				if !seen[k] {
					seen[k] = true
					out = append(out, e.mint(t, cursor, base))
				}
			}
			next, ok := t.Recurrence.Advance(cursor)
			if !ok {
				return out
			}
			cursor = next
			if cursor.Year > horizon {
				return out
			}
		}
	}
	return out
}

// mint builds a fresh unpaid instance of the template at the given due
// date. The balance carries over from the most recent unpaid bill of the
// same name and category that is due before this one, so debt rolls
// forward instead of resetting; without a predecessor the template's own
// balance is used.
func (e *Expander) mint(t core.Bill, due core.CivilDate, base []core.Bill) core.Bill {
	carried := t.Balance
	if pred, ok := latestUnpaidPredecessor(base, t.Name, t.Category, due); ok {
		carried = pred.Balance
	}
	return core.Bill{
		ID:             e.newID(),
		Name:           t.Name,
		Category:       t.Category,
		DueDate:        due,
		AmountDue:      t.AmountDue,
		Balance:        carried,
		Recurrence:     t.Recurrence,
		Notes:          t.Notes,
		Website:        t.Website,
		IsPaid:         false,
		PaymentHistory: []core.Payment{},
	}
}

// latestUnpaidPredecessor finds the unpaid bill sharing name and category
// whose due date is the latest one strictly before due.
func latestUnpaidPredecessor(bills []core.Bill, name, category string, due core.CivilDate) (core.Bill, bool) {
	var best core.Bill
	found := false
	for _, b := range bills {
		if b.IsPaid || b.Name != name || b.Category != category || !b.DueDate.Before(due) {
			continue
		}
		if !found || b.DueDate.After(best.DueDate) {
			best = b
			found = true
		}
	}
	return best, found
}

// RollForward advances a recurring bill's due date one recurrence step.
// It is called when a bill flips from unpaid to paid: the bill stays
// paid, keeps its balance, and no new instance is minted here. Expansion
// owns instance creation. One-time bills pass through unchanged.
func RollForward(b core.Bill) core.Bill {
	next, ok := b.Recurrence.Advance(b.DueDate)
	if !ok {
		return b
	}
	b.DueDate = next
	return b
}

// Regenerate rebuilds the recurring instances of the whole collection. It
// keeps one-time bills, paid bills, and anything due on or before today,
// then picks one template per (name, category, recurrence) group - the
// instance with the earliest due date, ties broken by id - and expands the
// templates against the kept set. Unpaid future instances are dropped and
// reminted, so edits to a series propagate forward.
func (e *Expander) Regenerate(bills []core.Bill, cfg core.PayConfig, today core.CivilDate) ([]core.Bill, error) {
	periods, err := Boundaries(cfg)
	if err != nil {
		return nil, err
	}
	stride, err := cfg.StrideDays()
	if err != nil {
		return nil, err
	}

	keep := make([]core.Bill, 0, len(bills))
	for _, b := range bills {
		if !b.Recurrence.IsRecurring() || b.IsPaid || !b.DueDate.After(today) {
			keep = append(keep, b)
		}
	}

	type templateKey struct {
		name       string
		category   string
		recurrence core.Recurrence
	}
	templates := make(map[templateKey]core.Bill)
	var order []templateKey
	for _, b := range bills {
		if !b.Recurrence.IsRecurring() {
			continue
		}
		k := templateKey{name: b.Name, category: b.Category, recurrence: b.Recurrence}
		cur, ok := templates[k]
		if !ok {
			templates[k] = b
			order = append(order, k)
			continue
		}
		if b.DueDate.Before(cur.DueDate) || (b.DueDate == cur.DueDate && b.ID < cur.ID) {
			templates[k] = b
		}
	}

	var minted []core.Bill
	seen := dedupSet(keep)
	for _, k := range order {
		minted = append(minted, e.expandTemplate(templates[k], keep, periods, stride, seen)...)
	}
	sortInstances(minted)
	return append(keep, minted...), nil
}

func (e *Expander) horizon() int {
	if e.HorizonYear <= 0 {
		return DefaultHorizonYear
	}
	return e.HorizonYear
}

func (e *Expander) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}
