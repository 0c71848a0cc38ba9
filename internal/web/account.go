package web

import (
	"net/http"
	"sort"
	"time"

	"evently/internal/auth"
	"evently/internal/ics"
	"evently/internal/model"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuth(w) {
		return
	}
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuth(w) {
		return
	}
	var req auth.SignupRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := s.auth.Signup(r.Context(), req)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuth(w) {
		return
	}
	if err := s.auth.Logout(r.Context()); err != nil {
		writeAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request) {
	if !s.requireAuth(w) {
		return
	}
	u, ok := s.auth.CurrentUser()
	if !ok {
		writeAuthError(w, auth.ErrNotLoggedIn)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuth(w) {
		return
	}
	var upd auth.ProfileUpdate
	if err := readJSON(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := s.auth.UpdateProfile(r.Context(), upd)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleRegistrations(w http.ResponseWriter, _ *http.Request) {
	if !s.requireAuth(w) {
		return
	}
	if _, ok := s.auth.CurrentUser(); !ok {
		writeAuthError(w, auth.ErrNotLoggedIn)
		return
	}
	writeJSON(w, http.StatusOK, s.auth.Registrations())
}

type registerRequest struct {
	EventID string `json:"event_id"`
}

// handleRegister registers the current user for a catalog event. The
// registration keeps a snapshot of the event as it is now.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuth(w) {
		return
	}
	var req registerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev, ok := s.catalog.Current().Lookup(req.EventID)
	if !ok {
		writeAuthError(w, auth.ErrUnknownEvent)
		return
	}
	reg, err := s.auth.RegisterForEvent(r.Context(), ev)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuth(w) {
		return
	}
	if err := s.auth.UnregisterFromEvent(r.Context(), r.PathValue("event_id")); err != nil {
		writeAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRegistrationsICS exports the registrations as a subscribable
// calendar.
func (s *Server) handleRegistrationsICS(w http.ResponseWriter, _ *http.Request) {
	if !s.requireAuth(w) {
		return
	}
	u, ok := s.auth.CurrentUser()
	if !ok {
		writeAuthError(w, auth.ErrNotLoggedIn)
		return
	}
	body := ics.ExportRegistrations(u.Name+" - Evently", s.auth.Registrations(), s.now())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="evently.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// dashboardResponse backs the profile page stats.
type dashboardResponse struct {
	User            model.User           `json:"user"`
	RegisteredCount int                  `json:"registered_count"`
	TotalAttendees  int                  `json:"total_attendees"`
	Verified        bool                 `json:"verified"`
	MemberSince     string               `json:"member_since"`
	Upcoming        []model.Registration `json:"upcoming"`
}

const upcomingLimit = 3

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	if !s.requireAuth(w) {
		return
	}
	u, ok := s.auth.CurrentUser()
	if !ok {
		writeAuthError(w, auth.ErrNotLoggedIn)
		return
	}
	regs := s.auth.Registrations()

	resp := dashboardResponse{
		User:            u,
		RegisteredCount: len(regs),
		Verified:        u.Verified,
		MemberSince:     u.JoinedAt.In(s.loc).Format("January 2006"),
		Upcoming:        upcoming(regs, s.now(), upcomingLimit),
	}
	for _, reg := range regs {
		resp.TotalAttendees += reg.Event.Attendees
	}
	writeJSON(w, http.StatusOK, resp)
}

// upcoming returns up to limit registrations whose event is today or later,
// soonest first.
func upcoming(regs []model.Registration, now time.Time, limit int) []model.Registration {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	out := make([]model.Registration, 0, len(regs))
	for _, reg := range regs {
		if !reg.Event.Date.IsZero() && !reg.Event.Date.Before(today) {
			out = append(out, reg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Event.Date.Before(out[j].Event.Date)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
