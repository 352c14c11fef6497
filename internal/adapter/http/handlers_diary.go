package adapthttp

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"slimmom/internal/app"
	"slimmom/internal/domain"
)

type addEntryRequest struct {
	Date            string           `json:"date"`
	ProductID       string           `json:"productId"`
	Name            string           `json:"name"`
	CaloriesPer100g *decimal.Decimal `json:"caloriesPer100g"`
	QuantityGrams   decimal.Decimal  `json:"quantityGrams"`
}

func (s *Server) today() string {
	return domain.Today(s.dayLoc).String()
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var body addEntryRequest
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	date := body.Date
	if date == "" {
		date = s.today()
	}

	entry, err := s.ledger.AddEntry(r.Context(), userFromContext(r).ID, date, app.EntryInput{
		ProductID:       body.ProductID,
		Name:            body.Name,
		CaloriesPer100g: body.CaloriesPer100g,
		QuantityGrams:   body.QuantityGrams,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	entryID := mux.Vars(r)["id"]
	if err := s.ledger.RemoveEntry(r.Context(), userFromContext(r).ID, entryID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": entryID})
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	if date := r.URL.Query().Get("date"); date != "" {
		entries, err := s.ledger.GetEntriesForDate(r.Context(), user.ID, date)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": entries})
		return
	}

	items, err := s.diary.GetHistory(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleDailyView(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if date == "today" {
		date = s.today()
	}
	view, err := s.diary.GetDailyView(r.Context(), userFromContext(r).ID, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	res, err := s.ledger.Reconcile(r.Context(), userFromContext(r).ID, mux.Vars(r)["date"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
