package web

import (
	"net/http"
	"time"
)

type adminStatus struct {
	Source      string     `json:"source"`
	Loader      string     `json:"loader,omitempty"`
	Events      int        `json:"events"`
	LoadedAt    time.Time  `json:"loaded_at"`
	NextRefresh *time.Time `json:"next_refresh,omitempty"`
}

func (s *Server) status() adminStatus {
	c := s.catalog.Current()
	st := adminStatus{
		Source:   c.Source(),
		Events:   c.Len(),
		LoadedAt: c.LoadedAt(),
	}
	if s.refresher != nil {
		st.Loader = s.refresher.Source()
		if next := s.refresher.Next(); !next.IsZero() {
			st.NextRefresh = &next
		}
	}
	return st
}

// GET /api/admin/status
func (s *Server) handleAdminStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

// handleAdminReload reloads the catalog now. A failed reload keeps the
// current snapshot and answers 502.
//
// POST /api/admin/reload
func (s *Server) handleAdminReload(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog reload is not configured")
		return
	}
	if _, err := s.refresher.Reload(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "reload failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}
