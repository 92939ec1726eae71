package http

import (
	"net/http"

	"finanzas/internal/core"
)

type dashboardView struct {
	core.Summary
	// PEN month total shown on the headline card; other currencies are
	// listed below it.
	MonthPEN core.Money
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())

	summary, err := s.ledger.Dashboard(r.Context(), user.ID)
	if err != nil {
		s.serverError(w, r, "Dashboard failed", err)
		return
	}

	s.render(w, r, http.StatusOK, "dashboard.html", page{
		Title: "Resumen",
		User:  &user,
		Flash: s.popFlash(w, r),
		Data:  dashboardView{Summary: summary, MonthPEN: summary.MonthTotal(core.PEN)},
	})
}
