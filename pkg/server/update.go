package server

import (
	"log/slog"
	"net/http"

	"github.com/blackgold9/canvas-integration/pkg/log"
)

type updateResult struct {
	EntryID string `json:"entryID"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// handleUpdate refreshes every running entry now, one after another, and
// reports the outcome of each. A failed entry keeps its previous snapshot.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	results := []updateResult{}
	for _, id := range s.coords.IDs() {
		c, ok := s.coords.Get(id)
		if !ok {
			// removed while we were iterating
			continue
		}
		res := updateResult{EntryID: id, OK: true}
		if err := c.Refresh(ctx); err != nil {
			res.OK = false
			res.Error = err.Error()
		}
		results = append(results, res)
	}

	log.Ctx(ctx).InfoContext(ctx, "update finished", slog.Int("entries", len(results)))
	writeJSON(w, struct {
		Results []updateResult `json:"results"`
	}{Results: results}, http.StatusOK)
}
