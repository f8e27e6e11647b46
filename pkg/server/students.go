package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/blackgold9/canvas-integration/pkg/calendar"
	"github.com/blackgold9/canvas-integration/pkg/coordinator"
	"github.com/blackgold9/canvas-integration/pkg/entities"
	"github.com/blackgold9/canvas-integration/pkg/log"
	"github.com/blackgold9/canvas-integration/pkg/storage"
	"github.com/blackgold9/canvas-integration/pkg/types"
)

const (
	// default range of the events endpoint
	defaultEventsRange = 30 * 24 * time.Hour

	// range of the calendar feed relative to now
	feedLookback  = 30 * 24 * time.Hour
	feedLookahead = 365 * 24 * time.Hour
)

type statusResponse struct {
	EntryID     string    `json:"entryID"`
	RefreshedAt time.Time `json:"refreshedAt,omitzero"`
	coordinator.Status
}

// coordinatorFor writes a 404 and returns false when no coordinator runs
// for the request's entry.
func (s *Server) coordinatorFor(w http.ResponseWriter, r *http.Request) (*coordinator.Coordinator, bool) {
	c, ok := s.coords.Get(r.PathValue("entryID"))
	if !ok {
		writeJSONError(w, "entry not found", http.StatusNotFound)
		return nil, false
	}
	return c, true
}

// snapshotFor writes an error and returns false when the entry has not
// completed a refresh yet.
func (s *Server) snapshotFor(w http.ResponseWriter, r *http.Request) (*types.Snapshot, bool) {
	c, ok := s.coordinatorFor(w, r)
	if !ok {
		return nil, false
	}
	snap := c.Snapshot()
	if snap == nil {
		writeJSONError(w, "no_data", http.StatusServiceUnavailable)
		return nil, false
	}
	return snap, true
}

func (s *Server) studentFor(w http.ResponseWriter, r *http.Request) (types.StudentSnapshot, bool) {
	snap, ok := s.snapshotFor(w, r)
	if !ok {
		return types.StudentSnapshot{}, false
	}
	st, ok := snap.Student(r.PathValue("studentID"))
	if !ok {
		writeJSONError(w, "student not found", http.StatusNotFound)
		return types.StudentSnapshot{}, false
	}
	return st, true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	c, ok := s.coordinatorFor(w, r)
	if !ok {
		return
	}
	resp := statusResponse{
		EntryID: c.EntryID(),
		Status:  c.Status(),
	}
	if snap := c.Snapshot(); snap != nil {
		resp.RefreshedAt = snap.RefreshedAt
	}
	writeJSON(w, resp, http.StatusOK)
}

func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshotFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, snap, http.StatusOK)
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, ok := s.snapshotFor(w, r)
	if !ok {
		return
	}

	id := r.PathValue("entryID")
	opts, err := s.entryOptions(r, id)
	if err != nil {
		if errors.Is(err, storage.ErrEntryNotFound) {
			writeJSONError(w, "entry not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to get entry", slog.String("entryID", id), slog.Any("error", err))
		writeJSONError(w, "failed to get entry", http.StatusInternalServerError)
		return
	}

	states, err := entities.Build(snap, opts, s.currentTime())
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to build entities", slog.Any("error", err))
		writeJSONError(w, "failed to build entities", http.StatusInternalServerError)
		return
	}
	writeJSON(w, states, http.StatusOK)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start := s.currentTime()
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, "invalid start", http.StatusBadRequest)
			return
		}
		start = t
	}
	end := start.Add(defaultEventsRange)
	if v := q.Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, "invalid end", http.StatusBadRequest)
			return
		}
		end = t
	}
	if end.Before(start) {
		writeJSONError(w, "end before start", http.StatusBadRequest)
		return
	}

	st, ok := s.studentFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, calendar.Project(st.Assignments, start, end), http.StatusOK)
}

func (s *Server) handleCalendarFeed(w http.ResponseWriter, r *http.Request) {
	st, ok := s.studentFor(w, r)
	if !ok {
		return
	}
	now := s.currentTime()
	events := calendar.Project(st.Assignments, now.Add(-feedLookback), now.Add(feedLookahead))

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(calendar.RenderICS(st.Name+" Assignments", events, now))); err != nil {
		panic(http.ErrAbortHandler)
	}
}
