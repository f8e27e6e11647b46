package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blackgold9/canvas-integration/pkg/log"
	"github.com/blackgold9/canvas-integration/pkg/storage"
	"github.com/blackgold9/canvas-integration/pkg/types"
)

const defaultEntryTitle = "Canvas LMS"

type createEntryRequest struct {
	URL     string         `json:"url" validate:"required,http_url"`
	Token   string         `json:"token" validate:"required"`
	Options *types.Options `json:"options"`
}

type entryResponse struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	URL       string        `json:"url"`
	UserID    string        `json:"userID,omitempty"`
	Options   types.Options `json:"options"`
	CreatedAt time.Time     `json:"createdAt,omitzero"`
	Static    bool          `json:"static,omitempty"`
	Running   bool          `json:"running"`
}

func (s *Server) toEntryResponse(e types.Entry) entryResponse {
	_, running := s.coords.Get(e.ID)
	return entryResponse{
		ID:        e.ID,
		Title:     e.Title,
		URL:       e.URL,
		UserID:    e.UserID,
		Options:   e.Options,
		CreatedAt: e.CreatedAt,
		Static:    e.ID == staticEntryID,
		Running:   running,
	}
}

func (s *Server) staticEntry() types.Entry {
	return types.Entry{
		ID:      staticEntryID,
		Title:   entryTitle(s.staticURL),
		URL:     s.staticURL,
		Options: types.DefaultOptions(),
		Version: types.CurrentEntryVersion,
	}
}

// normalizeURL trims whitespace and trailing slashes.
func normalizeURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

func entryTitle(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return u.Host
	}
	return defaultEntryTitle
}

// entryID derives a stable ID so the same account on the same instance can
// only be configured once.
func entryID(baseURL, userID string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(baseURL) + "|" + userID))
	return hex.EncodeToString(sum[:])[:12]
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := s.storage.ListEntries(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list entries", slog.Any("error", err))
		writeJSONError(w, "failed to list entries", http.StatusInternalServerError)
		return
	}

	resp := make([]entryResponse, 0, len(entries)+1)
	if s.staticURL != "" {
		resp = append(resp, s.toEntryResponse(s.staticEntry()))
	}
	for _, e := range entries {
		resp = append(resp, s.toEntryResponse(e))
	}
	writeJSON(w, resp, http.StatusOK)
}

// handleCreateEntry validates the URL and token with a single profile fetch
// before storing the entry and starting its coordinator.
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}
	req.URL = normalizeURL(req.URL)
	req.Token = strings.TrimSpace(req.Token)
	if err := types.Validate(req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "invalid entry request", slog.Any("error", err))
		writeJSONError(w, "invalid_input", http.StatusBadRequest)
		return
	}

	opts := types.DefaultOptions()
	if req.Options != nil {
		opts = *req.Options
	}
	if err := opts.Validate(); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "invalid entry options", slog.Any("error", err))
		writeJSONError(w, "invalid_options", http.StatusBadRequest)
		return
	}

	api := s.newAPI(req.URL, req.Token)
	profile, err := api.GetProfile(ctx)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to connect to canvas", slog.String("url", req.URL), slog.Any("error", err))
		writeJSONError(w, "cannot_connect", http.StatusBadRequest)
		return
	}

	id := entryID(req.URL, string(profile.ID))
	if _, err := s.storage.GetEntry(ctx, id); err == nil {
		writeJSONError(w, "already_configured", http.StatusConflict)
		return
	} else if !errors.Is(err, storage.ErrEntryNotFound) {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get entry", slog.String("entryID", id), slog.Any("error", err))
		writeJSONError(w, "failed to get entry", http.StatusInternalServerError)
		return
	}

	encrypted, err := s.encryptToken(ctx, req.Token)
	if err != nil {
		writeJSONError(w, "failed to encrypt token", http.StatusInternalServerError)
		return
	}

	entry := types.Entry{
		ID:             id,
		Title:          entryTitle(req.URL),
		URL:            req.URL,
		UserID:         string(profile.ID),
		EncryptedToken: encrypted,
		Options:        opts,
		CreatedAt:      s.currentTime().UTC(),
		Version:        types.CurrentEntryVersion,
	}
	if err := s.storage.PutEntry(ctx, entry); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save entry", slog.String("entryID", id), slog.Any("error", err))
		writeJSONError(w, "failed to save entry", http.StatusInternalServerError)
		return
	}

	s.startCoordinator(entry.ID, api)
	email, _ := ctx.Value(emailContextKey).(string)
	log.Ctx(ctx).InfoContext(ctx, "entry created", slog.String("entryID", id), slog.String("url", req.URL), slog.String("createdBy", email))
	writeJSON(w, s.toEntryResponse(entry), http.StatusCreated)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("entryID")
	if id == staticEntryID {
		writeJSONError(w, "static entry cannot be changed", http.StatusBadRequest)
		return
	}

	if _, err := s.storage.GetEntry(ctx, id); err != nil {
		if errors.Is(err, storage.ErrEntryNotFound) {
			writeJSONError(w, "entry not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to get entry", slog.String("entryID", id), slog.Any("error", err))
		writeJSONError(w, "failed to get entry", http.StatusInternalServerError)
		return
	}

	s.coords.Stop(id)
	if err := s.storage.DeleteEntry(ctx, id); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to delete entry", slog.String("entryID", id), slog.Any("error", err))
		writeJSONError(w, "failed to delete entry", http.StatusInternalServerError)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "entry deleted", slog.String("entryID", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("entryID")
	if id == staticEntryID {
		writeJSONError(w, "static entry cannot be changed", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var opts types.Options
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := opts.Validate(); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "invalid entry options", slog.Any("error", err))
		writeJSONError(w, "invalid_options", http.StatusBadRequest)
		return
	}

	entry, err := s.storage.GetEntry(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrEntryNotFound) {
			writeJSONError(w, "entry not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to get entry", slog.String("entryID", id), slog.Any("error", err))
		writeJSONError(w, "failed to get entry", http.StatusInternalServerError)
		return
	}

	entry.Options = opts
	if err := s.storage.PutEntry(ctx, entry); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save entry", slog.String("entryID", id), slog.Any("error", err))
		writeJSONError(w, "failed to save entry", http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.toEntryResponse(entry), http.StatusOK)
}

// entryOptions returns the window options of a running entry.
func (s *Server) entryOptions(r *http.Request, id string) (types.Options, error) {
	if id == staticEntryID {
		return types.DefaultOptions(), nil
	}
	entry, err := s.storage.GetEntry(r.Context(), id)
	if err != nil {
		return types.Options{}, err
	}
	return entry.Options, nil
}
