package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"billtrack/internal/core"
	"billtrack/internal/services"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.transfer.ExportJSON(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	filename := fmt.Sprintf("billtrack-export-%s.json", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := readImportBody(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	summary, err := s.transfer.ImportJSON(r.Context(), data)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, summary)
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	data, err := readImportBody(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	summary, err := s.transfer.ImportCSV(r.Context(), data)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, summary)
}

// readImportBody reads up to the import cap plus one byte, so the services
// layer's own size check stays authoritative while a grossly oversized
// upload is cut off at the transport.
func readImportBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxImportBytes+1)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, services.ErrImportTooLarge
		}
		return nil, fmt.Errorf("%w: reading request body: %v", core.ErrImportFailure, err)
	}
	return data, nil
}
