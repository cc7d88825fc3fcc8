package http

import (
	"net/http"

	"billtrack/internal/core"
	"billtrack/internal/services"
)

type billsResponse struct {
	Bills []core.Bill `json:"bills"`
	Count int         `json:"count"`
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := s.bills.ListBills(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if bills == nil {
		bills = []core.Bill{}
	}
	respondJSON(w, r, http.StatusOK, billsResponse{Bills: bills, Count: len(bills)})
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var in services.BillInput
	if err := readJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	bill, err := s.bills.AddBill(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, bill)
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	bill, err := s.bills.GetBill(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, bill)
}

func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	var in services.BillInput
	if err := readJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	bill, err := s.bills.UpdateBill(r.Context(), r.PathValue("id"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, bill)
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := s.bills.DeleteBill(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var in services.PaymentInput
	if err := readJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	bill, err := s.bills.RecordPayment(r.Context(), r.PathValue("id"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, bill)
}

func (s *Server) handleTogglePaid(w http.ResponseWriter, r *http.Request) {
	bill, err := s.bills.TogglePaid(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, bill)
}

func (s *Server) handleUpdateBalance(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Balance core.Money `json:"balance"`
	}
	if err := readJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	bill, err := s.bills.UpdateBalance(r.Context(), r.PathValue("id"), in.Balance)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, bill)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	count, err := s.bills.Regenerate(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]int{"bills": count})
}
