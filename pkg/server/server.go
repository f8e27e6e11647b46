package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/levenlabs/go-lflag"

	"github.com/blackgold9/canvas-integration/pkg/canvas"
	"github.com/blackgold9/canvas-integration/pkg/coordinator"
	"github.com/blackgold9/canvas-integration/pkg/log"
	"github.com/blackgold9/canvas-integration/pkg/storage"
)

// staticEntryID is the ID of the entry configured through flags. It is
// never stored.
const staticEntryID = "static"

// tokenVerifier is a function that validates an OIDC ID Token.
type tokenVerifier func(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)

// apiFactory returns a client for one Canvas instance and token.
type apiFactory func(baseURL, token string) canvas.API

// Server exposes configured entries, their refresh state and the entities
// derived from their snapshots over HTTP.
type Server struct {
	coords  *coordinator.Map
	storage storage.Database
	newAPI  apiFactory
	now     func() time.Time

	// context the coordinators run under, set by Run
	runCtx context.Context

	listenAddr string
	httpServer *http.Server

	adminEmails     []string
	verifier        tokenVerifier
	encryptionKey   string
	staticURL       string
	staticToken     string
	refreshInterval time.Duration
	refreshMode     coordinator.Mode
	serverName      string
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(m *coordinator.Map, s storage.Database) *Server {
	srv := &Server{
		coords:     m,
		storage:    s,
		newAPI:     defaultAPIFactory,
		now:        time.Now,
		serverName: "canvas-integration",
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	adminEmails := lflag.String("admin-emails", "", "comma-delimited list of email addresses allowed to use the API")
	oidcAudience := lflag.String("oidc-audience", "", "audience of the id tokens to accept, empty disables authentication")
	oidcIssuer := lflag.String("oidc-issuer", "https://accounts.google.com", "issuer of the id tokens to accept")
	encryptionKey := lflag.RequiredString("credentials-encryption-key", "Key for encrypting Canvas API tokens")
	canvasURL := lflag.String("canvas-url", "", "base URL of a Canvas instance to refresh without storing an entry")
	canvasToken := lflag.String("canvas-token", "", "API token for canvas-url")
	refreshInterval := lflag.Duration("refresh-interval", coordinator.DefaultInterval, "time between refreshes of each entry")
	refreshMode := lflag.String("refresh-mode", string(coordinator.ModePlanner), "how assignments are collected (planner or per-course)")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		if *adminEmails != "" {
			srv.adminEmails = strings.Split(*adminEmails, ",")
			for i, email := range srv.adminEmails {
				srv.adminEmails[i] = strings.TrimSpace(email)
			}
		}
		if *oidcAudience != "" {
			provider, err := oidc.NewProvider(context.Background(), *oidcIssuer)
			if err != nil {
				log.Ctx(context.Background()).Error("failed to initialize OIDC provider", slog.String("issuer", *oidcIssuer), slog.Any("error", err))
				os.Exit(1)
			}
			srv.verifier = provider.Verifier(&oidc.Config{ClientID: *oidcAudience}).Verify
		}

		if len(*encryptionKey) != 32 {
			log.Ctx(context.Background()).Error("credentials-encryption-key must be 32 characters")
			os.Exit(1)
		}
		srv.encryptionKey = *encryptionKey

		if (*canvasURL == "") != (*canvasToken == "") {
			log.Ctx(context.Background()).Error("canvas-url and canvas-token must be set together")
			os.Exit(1)
		}
		srv.staticURL = normalizeURL(*canvasURL)
		srv.staticToken = *canvasToken
		if srv.staticURL != "" {
			if err := canvas.New(srv.staticURL, srv.staticToken).Validate(); err != nil {
				log.Ctx(context.Background()).Error("invalid canvas-url", slog.Any("error", err))
				os.Exit(1)
			}
		}

		mode, err := coordinator.ParseMode(*refreshMode)
		if err != nil {
			log.Ctx(context.Background()).Error("invalid refresh-mode", slog.Any("error", err))
			os.Exit(1)
		}
		srv.refreshMode = mode
		srv.refreshInterval = *refreshInterval
	})

	return srv
}

func defaultAPIFactory(baseURL, token string) canvas.API {
	return canvas.New(baseURL, token)
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/entries", s.handleListEntries)
	apiMux.HandleFunc("POST /api/entries", s.handleCreateEntry)
	apiMux.HandleFunc("DELETE /api/entries/{entryID}", s.handleDeleteEntry)
	apiMux.HandleFunc("POST /api/entries/{entryID}/options", s.handleUpdateOptions)
	apiMux.HandleFunc("GET /api/entries/{entryID}/status", s.handleStatus)
	apiMux.HandleFunc("GET /api/entries/{entryID}/students", s.handleStudents)
	apiMux.HandleFunc("GET /api/entries/{entryID}/entities", s.handleEntities)
	apiMux.HandleFunc("GET /api/entries/{entryID}/students/{studentID}/events", s.handleEvents)
	apiMux.HandleFunc("GET /api/entries/{entryID}/students/{studentID}/calendar.ics", s.handleCalendarFeed)
	apiMux.HandleFunc("POST /api/update", s.handleUpdate)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.authMiddleware(apiMux))
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))
}

// Run starts every configured entry and the HTTP server and blocks until
// the context is canceled or an error occurs. It also handles graceful
// shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.runCtx = ctx
	defer s.coords.StopAll()

	if err := s.startEntries(ctx); err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// startEntries starts a coordinator for the flag configured entry and for
// every stored entry. Entries whose token cannot be decrypted are skipped.
func (s *Server) startEntries(ctx context.Context) error {
	if s.staticURL != "" {
		s.startCoordinator(staticEntryID, s.newAPI(s.staticURL, s.staticToken))
	}

	entries, err := s.storage.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}
	for _, e := range entries {
		token, err := s.decryptToken(ctx, e.EncryptedToken)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "skipping entry with unreadable token", slog.String("entryID", e.ID), slog.Any("error", err))
			continue
		}
		s.startCoordinator(e.ID, s.newAPI(e.URL, token))
	}
	log.Ctx(ctx).InfoContext(ctx, "started entries", slog.Int("count", len(s.coords.IDs())))
	return nil
}

func (s *Server) startCoordinator(entryID string, api canvas.API) {
	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	opts := []coordinator.Option{
		coordinator.WithInterval(s.refreshInterval),
	}
	if s.refreshMode != "" {
		opts = append(opts, coordinator.WithMode(s.refreshMode))
	}
	if s.now != nil {
		opts = append(opts, coordinator.WithClock(s.now))
	}
	s.coords.Start(ctx, coordinator.New(entryID, api, opts...))
}

func (s *Server) currentTime() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func writeJSON(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, struct {
		Error string `json:"error"`
	}{Error: msg}, code)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}
