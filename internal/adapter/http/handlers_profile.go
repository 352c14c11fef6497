package adapthttp

import (
	"net/http"

	"github.com/shopspring/decimal"

	"slimmom/internal/app"
)

type profileRequest struct {
	Age           int             `json:"age"`
	Height        int             `json:"height"`
	CurrentWeight decimal.Decimal `json:"currentWeight"`
	DesiredWeight decimal.Decimal `json:"desiredWeight"`
	BloodType     int             `json:"bloodType"`
	Gender        string          `json:"gender"`
	ActivityLevel string          `json:"activityLevel"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	view, err := s.profiles.Get(r.Context(), userFromContext(r).ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var body profileRequest
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := s.profiles.Put(r.Context(), userFromContext(r).ID, app.ProfileInput{
		Age:             body.Age,
		HeightCm:        body.Height,
		CurrentWeightKg: body.CurrentWeight,
		DesiredWeightKg: body.DesiredWeight,
		BloodType:       body.BloodType,
		Gender:          body.Gender,
		ActivityLevel:   body.ActivityLevel,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
