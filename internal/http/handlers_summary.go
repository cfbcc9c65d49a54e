package http

import (
	"net/http"
	"strings"

	"timesheet/internal/core"
)

type summaryResponse struct {
	YearMonth  string     `json:"yearMonth"`
	UserID     string     `json:"userId"`
	TotalHours core.Hours `json:"totalHours"`
}

// handleSummaries serves the monthly totals the summary page renders.
// With userId it returns one user's total; without, every user's total
// for the month. Totals are read as stored, never recomputed here.
func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "invalid-argument", "Method not allowed.")
		return
	}

	yearMonth := strings.TrimSpace(r.URL.Query().Get("yearMonth"))
	if _, _, err := core.ParseYearMonth(yearMonth); err != nil {
		writeError(w, http.StatusBadRequest, "invalid-argument", `A valid yearMonth query parameter (e.g. "YYYY-MM") is required.`)
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID != "" {
		summary, err := s.entries.GetSummary(r.Context(), core.SummaryKey{YearMonth: yearMonth, UserID: userID})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, summaryResponse{
			YearMonth:  yearMonth,
			UserID:     userID,
			TotalHours: summary.TotalHours,
		})
		return
	}

	records, err := s.entries.MonthSummaries(r.Context(), yearMonth)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	summaries := make([]summaryResponse, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, summaryResponse{
			YearMonth:  rec.Key.YearMonth,
			UserID:     rec.Key.UserID,
			TotalHours: rec.TotalHours,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"summaries": summaries})
}
