// Package state coordinates the volatile selection, the view model
// projected from it, and the debounced cloud sync trigger.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"billtrack/internal/core"
	"billtrack/internal/log"
	"billtrack/internal/schedule"
	"billtrack/internal/storage"
)

// DisplayMode names how the visible set is rendered.
type DisplayMode string

const (
	DisplayModeList      DisplayMode = "list"
	DisplayModeCalendar  DisplayMode = "calendar"
	DisplayModeAnalytics DisplayMode = "analytics"
)

// ViewModel is the render-ready projection of the current selection:
// the visible bills, their rollups, the period geometry, and the
// selection that produced them.
type ViewModel struct {
	Bills         []core.Bill         `json:"bills"`
	Aggregates    schedule.Aggregates `json:"aggregates"`
	Periods       []core.CivilDate    `json:"periods"`
	PeriodLabels  []string            `json:"periodLabels"`
	AutoIndex     int                 `json:"autoIndex"`
	Selection     schedule.Selection  `json:"selection"`
	DisplayMode   DisplayMode         `json:"displayMode"`
	CalendarMonth core.CivilDate      `json:"calendarMonth"`
	ScheduleError string              `json:"scheduleError,omitempty"`
}

// Subscriber receives a fresh view model after every change.
type Subscriber func(ViewModel)

// Coordinator owns the selection state machine. Selection transitions and
// data-change notifications are serialized behind one mutex; every change
// reprojects the view model and notifies subscribers. Data mutations also
// arm the debounced cloud sync. When the pay schedule is misconfigured the
// coordinator keeps serving the last good view model and blocks period
// selection until the config is repaired.
type Coordinator struct {
	store     storage.Store
	scheduler *SyncScheduler
	logger    *log.Logger

	// Today is injectable for tests; it defaults to the local civil date.
	Today func() core.CivilDate

	mu            sync.Mutex
	selection     schedule.Selection
	displayMode   DisplayMode
	calendarMonth core.CivilDate
	lastGood      ViewModel
	schedErr      error

	subMu  sync.Mutex
	subs   map[int]Subscriber
	nextID int
}

func NewCoordinator(store storage.Store, scheduler *SyncScheduler, logger *log.Logger) *Coordinator {
	c := &Coordinator{
		store:     store,
		scheduler: scheduler,
		logger:    logger,
		Today:     core.Today,
		selection: schedule.Selection{
			ViewMode:         schedule.ViewModeAll,
			PaymentFilter:    schedule.PaymentFilterAll,
			ShowCarryForward: true,
		},
		displayMode: DisplayModeList,
		subs:        make(map[int]Subscriber),
	}
	c.calendarMonth = c.Today().MonthStart()
	return c
}

// Subscribe registers a view model listener and returns its remover.
func (c *Coordinator) Subscribe(fn Subscriber) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

// Current returns the last good view model.
func (c *Coordinator) Current() ViewModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Refresh reprojects the view model from storage and notifies
// subscribers. Call it at startup and after any out-of-band data change.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	vm, err := c.rebuildLocked(ctx)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.notify(vm)
	return nil
}

// OnDataChanged is the mutation hook: reproject, notify, and arm the
// debounced cloud sync. Projection failures keep the last good view and
// still schedule the sync; the data change itself already landed.
func (c *Coordinator) OnDataChanged(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		c.logger.WarnContext(ctx, "View refresh after data change failed", log.FieldError, err)
	}
	if c.scheduler != nil {
		c.scheduler.Schedule()
	}
}

// SelectPeriod focuses one pay period: filtered mode, the period recorded,
// and the calendar synced to the month of that boundary.
func (c *Coordinator) SelectPeriod(ctx context.Context, index int) error {
	c.mu.Lock()
	if c.schedErr != nil {
		err := c.schedErr
		c.mu.Unlock()
		return err
	}

	cfg, err := c.store.GetPayConfig(ctx)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	periods, err := schedule.Boundaries(cfg)
	if err != nil {
		c.schedErr = err
		c.mu.Unlock()
		return err
	}
	if index < 0 || index >= len(periods) {
		c.mu.Unlock()
		return fmt.Errorf("%w: period index %d out of range [0,%d)", core.ErrValidation, index, len(periods))
	}

	i := index
	c.selection.ViewMode = schedule.ViewModeFiltered
	c.selection.PeriodIndex = &i
	c.calendarMonth = periods[index].MonthStart()

	vm, err := c.rebuildLocked(ctx)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.notify(vm)
	return nil
}

// SelectAll returns to the unfiltered view and resets the calendar to
// today's month.
func (c *Coordinator) SelectAll(ctx context.Context) error {
	c.mu.Lock()
	c.selection.ViewMode = schedule.ViewModeAll
	c.selection.PeriodIndex = nil
	c.calendarMonth = c.Today().MonthStart()
	vm, err := c.rebuildLocked(ctx)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.notify(vm)
	return nil
}

// SelectCategory sets or clears the category filter. A non-nil category
// forces filtered list mode; clearing leaves the mode alone. The selected
// category also persists so it survives restarts.
func (c *Coordinator) SelectCategory(ctx context.Context, category *string) error {
	c.mu.Lock()
	if category != nil {
		cat := *category
		c.selection.Category = &cat
		c.selection.ViewMode = schedule.ViewModeFiltered
		c.displayMode = DisplayModeList
	} else {
		c.selection.Category = nil
	}
	vm, err := c.rebuildLocked(ctx)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	persisted := ""
	if category != nil {
		persisted = *category
	}
	if err := c.store.SetSelectedCategory(ctx, persisted); err != nil {
		c.logger.WarnContext(ctx, "Failed to persist selected category", log.FieldError, err)
	}

	c.notify(vm)
	return nil
}

// SetPaymentFilter narrows the view to paid or unpaid bills without
// touching the mode.
func (c *Coordinator) SetPaymentFilter(ctx context.Context, filter schedule.PaymentFilter) error {
	switch filter {
	case schedule.PaymentFilterAll, schedule.PaymentFilterPaid, schedule.PaymentFilterUnpaid:
	default:
		return fmt.Errorf("%w: unknown payment filter %q", core.ErrValidation, filter)
	}
	c.mu.Lock()
	c.selection.PaymentFilter = filter
	vm, err := c.rebuildLocked(ctx)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.notify(vm)
	return nil
}

// SetShowCarryForward toggles carry-forward visibility without touching
// the mode.
func (c *Coordinator) SetShowCarryForward(ctx context.Context, show bool) error {
	c.mu.Lock()
	c.selection.ShowCarryForward = show
	vm, err := c.rebuildLocked(ctx)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.notify(vm)
	return nil
}

// SetDisplayMode switches between list, calendar and analytics freely.
func (c *Coordinator) SetDisplayMode(ctx context.Context, mode DisplayMode) error {
	switch mode {
	case DisplayModeList, DisplayModeCalendar, DisplayModeAnalytics:
	default:
		return fmt.Errorf("%w: unknown display mode %q", core.ErrValidation, mode)
	}
	c.mu.Lock()
	c.displayMode = mode
	vm, err := c.rebuildLocked(ctx)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.notify(vm)
	return nil
}

// SetCalendarMonth points the calendar view at the month containing d.
func (c *Coordinator) SetCalendarMonth(ctx context.Context, d core.CivilDate) error {
	if !d.IsValid() {
		return fmt.Errorf("%w: calendar month: %v", core.ErrValidation, d)
	}
	c.mu.Lock()
	c.calendarMonth = d.MonthStart()
	vm, err := c.rebuildLocked(ctx)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.notify(vm)
	return nil
}

// ScheduleError returns the blocking schedule misconfiguration, if any.
func (c *Coordinator) ScheduleError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.schedErr
}

// rebuildLocked reprojects the view model from storage under c.mu. On a
// misconfigured schedule it records the error and leaves the last good
// view in place.
func (c *Coordinator) rebuildLocked(ctx context.Context) (ViewModel, error) {
	bills, err := c.store.ListBills(ctx)
	if err != nil {
		return ViewModel{}, err
	}
	cfg, err := c.store.GetPayConfig(ctx)
	if err != nil {
		return ViewModel{}, err
	}

	periods, err := schedule.Boundaries(cfg)
	if err != nil {
		c.schedErr = err
		return ViewModel{}, err
	}
	labels, err := schedule.Labels(periods, cfg)
	if err != nil {
		c.schedErr = err
		return ViewModel{}, err
	}

	today := c.Today()
	visible, err := schedule.Visible(bills, c.selection, cfg, periods, today)
	if err != nil {
		return ViewModel{}, err
	}

	c.schedErr = nil
	c.lastGood = ViewModel{
		Bills:         visible,
		Aggregates:    schedule.ComputeAggregates(visible, today),
		Periods:       periods,
		PeriodLabels:  labels,
		AutoIndex:     schedule.AutoIndex(periods, today),
		Selection:     c.selection,
		DisplayMode:   c.displayMode,
		CalendarMonth: c.calendarMonth,
	}
	return c.snapshotLocked(), nil
}

// snapshotLocked deep-copies the last good view model and stamps the
// current schedule error onto it.
func (c *Coordinator) snapshotLocked() ViewModel {
	vm := c.lastGood
	vm.Bills = core.CloneBills(vm.Bills)
	vm.Periods = append([]core.CivilDate(nil), vm.Periods...)
	vm.PeriodLabels = append([]string(nil), vm.PeriodLabels...)
	if c.selection.PeriodIndex != nil {
		i := *c.selection.PeriodIndex
		vm.Selection.PeriodIndex = &i
	}
	if c.selection.Category != nil {
		cat := *c.selection.Category
		vm.Selection.Category = &cat
	}
	vm.ScheduleError = ""
	if c.schedErr != nil {
		vm.ScheduleError = c.schedErr.Error()
	}
	return vm
}

func (c *Coordinator) notify(vm ViewModel) {
	c.subMu.Lock()
	subs := make([]Subscriber, 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()
	for _, fn := range subs {
		fn(vm)
	}
}

// IsMisconfigured reports whether err is the blocking schedule error kind.
func IsMisconfigured(err error) bool {
	return errors.Is(err, core.ErrMisconfiguredSchedule)
}
