package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"timesheet/internal/recalc"
)

var recalcStatus = map[recalc.Code]int{
	recalc.CodeUnauthenticated:  http.StatusUnauthorized,
	recalc.CodePermissionDenied: http.StatusForbidden,
	recalc.CodeInvalidArgument:  http.StatusBadRequest,
	recalc.CodeInternal:         http.StatusInternalServerError,
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "invalid-argument", "Method not allowed.")
		return
	}

	var req recalc.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid-argument", "Invalid request body.")
		return
	}

	principal := principalFrom(r)
	result, err := s.recalc.Recalculate(r.Context(), &principal, req)
	if err != nil {
		var rerr *recalc.Error
		if errors.As(err, &rerr) {
			status, ok := recalcStatus[rerr.Code]
			if !ok {
				status = http.StatusInternalServerError
			}
			writeError(w, status, string(rerr.Code), rerr.Message)
			return
		}
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
