package http

import (
	"net/http"
	"time"

	"billtrack/internal/amqp"
	"billtrack/internal/storage"
)

type syncStatusResponse struct {
	DataVersion   int64      `json:"dataVersion"`
	SyncedVersion int64      `json:"syncedVersion"`
	Pending       bool       `json:"pending"`
	LastSyncAt    *time.Time `json:"lastSyncAt,omitempty"`
	LastStatus    string     `json:"lastStatus,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

func syncStatusFrom(st storage.SyncState) syncStatusResponse {
	out := syncStatusResponse{
		DataVersion:   st.DataVersion,
		SyncedVersion: st.SyncedVersion,
		Pending:       st.Pending(),
		LastStatus:    st.LastStatus,
		LastError:     st.LastError,
	}
	if !st.LastSyncAt.IsZero() {
		at := st.LastSyncAt
		out.LastSyncAt = &at
	}
	return out
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.sync.Status(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, syncStatusFrom(st))
}

// handleSyncNow requests an immediate sync. With a relay configured the
// request is published and picked up by the worker; otherwise the push
// happens in-process before the response.
func (s *Server) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	if err := s.sync.RequestSync(r.Context(), amqp.ReasonManual); err != nil {
		respondError(w, r, err)
		return
	}
	st, err := s.sync.Status(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusAccepted, syncStatusFrom(st))
}
