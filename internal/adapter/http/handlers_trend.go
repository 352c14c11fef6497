package adapthttp

import (
	"net/http"

	"slimmom/internal/domain"
)

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	days := intQuery(r, "days", 30)
	today := domain.Today(s.dayLoc)

	points, err := s.trend.GetDaily(r.Context(), user.ID, days, today)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"days":  len(points),
		"today": today,
		"items": points,
	})
}
