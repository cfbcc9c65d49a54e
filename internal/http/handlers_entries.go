package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"timesheet/internal/services"
	"timesheet/internal/store"
)

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listEntries(w, r)
	case http.MethodPost:
		s.createEntry(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "invalid-argument", "Method not allowed.")
	}
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonthQuery(r)
	filter := store.EntryFilter{
		Year:   year,
		Month:  month,
		UserID: strings.TrimSpace(r.URL.Query().Get("userId")),
	}

	entries, err := s.entries.ListEntries(r.Context(), principalFrom(r), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	var in services.EntryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid-argument", "Invalid request body.")
		return
	}

	entry, err := s.entries.CreateEntry(r.Context(), principalFrom(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleEntryByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/entries/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not-found", "Entry not found.")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var in services.EntryInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid-argument", "Invalid request body.")
			return
		}
		entry, err := s.entries.UpdateEntry(r.Context(), principalFrom(r), id, in)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case http.MethodDelete:
		if err := s.entries.DeleteEntry(r.Context(), principalFrom(r), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	default:
		w.Header().Set("Allow", "PUT, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "invalid-argument", "Method not allowed.")
	}
}
