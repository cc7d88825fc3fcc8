package http

import (
	"fmt"
	"net/http"

	"billtrack/internal/core"
	"billtrack/internal/schedule"
	"billtrack/internal/state"
)

// handleView reprojects and returns the current view model. A misconfigured
// pay schedule does not fail the request; the snapshot carries the error
// alongside the last good view.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if err := s.coordinator.Refresh(r.Context()); err != nil && !state.IsMisconfigured(err) {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, s.coordinator.Current())
}

// selectionRequest is one selection state transition. Action picks the
// operation; the other fields carry its argument.
type selectionRequest struct {
	Action           string  `json:"action"`
	PeriodIndex      *int    `json:"periodIndex,omitempty"`
	Category         *string `json:"category,omitempty"`
	PaymentFilter    string  `json:"paymentFilter,omitempty"`
	ShowCarryForward *bool   `json:"showCarryForward,omitempty"`
	DisplayMode      string  `json:"displayMode,omitempty"`
	Month            string  `json:"month,omitempty"`
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var in selectionRequest
	if err := readJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	ctx := r.Context()
	var err error
	switch in.Action {
	case "selectPeriod":
		if in.PeriodIndex == nil {
			err = fmt.Errorf("%w: selectPeriod requires periodIndex", core.ErrValidation)
			break
		}
		err = s.coordinator.SelectPeriod(ctx, *in.PeriodIndex)
	case "selectAll":
		err = s.coordinator.SelectAll(ctx)
	case "selectCategory":
		err = s.coordinator.SelectCategory(ctx, in.Category)
	case "setPaymentFilter":
		err = s.coordinator.SetPaymentFilter(ctx, schedule.PaymentFilter(in.PaymentFilter))
	case "setCarryForward":
		if in.ShowCarryForward == nil {
			err = fmt.Errorf("%w: setCarryForward requires showCarryForward", core.ErrValidation)
			break
		}
		err = s.coordinator.SetShowCarryForward(ctx, *in.ShowCarryForward)
	case "setDisplayMode":
		err = s.coordinator.SetDisplayMode(ctx, state.DisplayMode(in.DisplayMode))
	case "setCalendarMonth":
		var d core.CivilDate
		if d, err = core.ParseCivil(in.Month); err != nil {
			break
		}
		err = s.coordinator.SetCalendarMonth(ctx, d)
	default:
		err = fmt.Errorf("%w: unknown selection action %q", core.ErrValidation, in.Action)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, s.coordinator.Current())
}

type periodsResponse struct {
	Periods   []core.CivilDate `json:"periods"`
	Labels    []string         `json:"labels"`
	AutoIndex int              `json:"autoIndex"`
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetPayConfig(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	periods, err := schedule.Boundaries(cfg)
	if err != nil {
		respondError(w, r, err)
		return
	}
	labels, err := schedule.Labels(periods, cfg)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, periodsResponse{
		Periods:   periods,
		Labels:    labels,
		AutoIndex: schedule.AutoIndex(periods, s.coordinator.Today()),
	})
}
