package http

import (
	"fmt"
	"net/http"
	"strings"

	"billtrack/internal/core"
)

func (s *Server) handleGetPayConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetPayConfig(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, cfg)
}

func (s *Server) handleSetPayConfig(w http.ResponseWriter, r *http.Request) {
	var cfg core.PayConfig
	if err := readJSON(w, r, &cfg); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.bills.SetPayConfig(r.Context(), cfg); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, cfg)
}

type categoriesResponse struct {
	Categories []string `json:"categories"`
}

func (s *Server) handleGetCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.bills.GetCustomCategories(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	respondJSON(w, r, http.StatusOK, categoriesResponse{Categories: categories})
}

func (s *Server) handleSetCategories(w http.ResponseWriter, r *http.Request) {
	var in categoriesResponse
	if err := readJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.bills.SetCustomCategories(r.Context(), in.Categories); err != nil {
		respondError(w, r, err)
		return
	}
	categories, err := s.bills.GetCustomCategories(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	respondJSON(w, r, http.StatusOK, categoriesResponse{Categories: categories})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	deleted, err := s.bills.DeleteCategory(r.Context(), name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"category":     name,
		"deletedBills": deleted,
	})
}

type profileResponse struct {
	UserEmail string `json:"userEmail"`
	Theme     string `json:"theme"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.loadProfile(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, profile)
}

// handleSetProfile updates only the fields present in the body, so a theme
// change cannot clear the sync email.
func (s *Server) handleSetProfile(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserEmail *string `json:"userEmail"`
		Theme     *string `json:"theme"`
	}
	if err := readJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	ctx := r.Context()
	if in.UserEmail != nil {
		email := strings.TrimSpace(*in.UserEmail)
		if email != "" && !strings.Contains(email, "@") {
			respondError(w, r, fmt.Errorf("%w: invalid email %q", core.ErrValidation, email))
			return
		}
		if err := s.store.SetUserEmail(ctx, email); err != nil {
			respondError(w, r, err)
			return
		}
	}
	if in.Theme != nil {
		theme := strings.ToLower(strings.TrimSpace(*in.Theme))
		if theme != "light" && theme != "dark" {
			respondError(w, r, fmt.Errorf("%w: theme must be light or dark, got %q", core.ErrValidation, *in.Theme))
			return
		}
		if err := s.store.SetTheme(ctx, theme); err != nil {
			respondError(w, r, err)
			return
		}
	}

	profile, err := s.loadProfile(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, profile)
}

func (s *Server) loadProfile(r *http.Request) (profileResponse, error) {
	email, err := s.store.GetUserEmail(r.Context())
	if err != nil {
		return profileResponse{}, err
	}
	theme, err := s.store.GetTheme(r.Context())
	if err != nil {
		return profileResponse{}, err
	}
	return profileResponse{UserEmail: email, Theme: theme}, nil
}
