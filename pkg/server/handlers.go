package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/entrhq/catalogsync/pkg/catalog"
	"github.com/entrhq/catalogsync/pkg/types"
)

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.StartSession(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleCheckSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"authenticated": s.svc.CheckAuthenticated(r.Context())})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"ok": s.svc.CloseSession()})
}

// processRequest carries either inline items or a path to an item file.
type processRequest struct {
	Items  []types.Item `json:"items,omitempty"`
	Path   string       `json:"path,omitempty"`
	Source string       `json:"source,omitempty"`
}

type processResponse struct {
	RunID  string          `json:"run_id"`
	Total  int             `json:"total"`
	Issues []catalog.Issue `json:"issues,omitempty"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if status, err := decodeJSONBody(w, r, &req, false); err != nil {
		respondError(w, status, err)
		return
	}
	if (req.Path == "") == (len(req.Items) == 0) {
		respondError(w, http.StatusBadRequest, errors.New("exactly one of items or path is required"))
		return
	}

	items := req.Items
	source := req.Source
	var issues []catalog.Issue
	if req.Path != "" {
		if s.root == nil {
			respondError(w, http.StatusBadRequest, errors.New("loading item files by path is disabled"))
			return
		}
		path, err := s.root.Resolve(req.Path)
		if err != nil {
			respondError(w, statusFor(err), err)
			return
		}
		rep, err := catalog.LoadFile(path, s.catalog)
		if err != nil {
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				status = http.StatusBadRequest
			}
			respondError(w, status, err)
			return
		}
		items, issues = rep.Items, rep.Issues
		if source == "" {
			source = req.Path
		}
	} else {
		for i, it := range items {
			if err := catalog.ValidateItem(it); err != nil {
				respondError(w, http.StatusBadRequest, fmt.Errorf("item %d: %w", i, err))
				return
			}
		}
		if source == "" {
			source = "api"
		}
	}

	runID, err := s.svc.ProcessItems(items, source)
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusAccepted, processResponse{RunID: runID, Total: len(items), Issues: issues})
}

func (s *Server) handleControl(fn func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		ok := fn()
		respondJSON(w, http.StatusOK, map[string]any{
			"ok":    ok,
			"state": s.svc.Status().State,
		})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			respondError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = v
	}
	runs, err := s.svc.History(r.Context(), limit)
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleRunResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.svc.RunResults(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	runID, err := s.svc.RetryRun(r.Context(), id)
	if err != nil {
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "retry_of": id})
}
