package http

import (
	"net/http"
	"strings"

	"fintrack/internal/api"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

type dashboardView struct {
	services.Dashboard
	Warning string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p := pageData{Title: "Dashboard", Nav: "dashboard"}

	d, err := s.dashboard.Load(r.Context(), s.service(w, r))
	if err != nil {
		if s.handleRemote(w, r, log.OpRead, err) {
			return
		}
		p.Error = api.Message(err, "Failed to load accounts. Please try again.")
	}

	view := dashboardView{Dashboard: d}
	if d.PartiallyLoaded() {
		view.Warning = "Some transactions could not be loaded: " + strings.Join(d.FailedAccounts, ", ")
	}
	p.Data = &view
	s.render(w, r, http.StatusOK, "dashboard.html", p)
}
