package server

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blackgold9/canvas-integration/pkg/canvas"
	"github.com/blackgold9/canvas-integration/pkg/storage/storagemock"
	"github.com/blackgold9/canvas-integration/pkg/types"
)

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &storagemock.MockDatabase{}, &mockAPI{})

	rr := doRequest(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.Equal(t, "test", rr.Header().Get("Server"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestGzip(t *testing.T) {
	db := &storagemock.MockDatabase{}
	srv := newTestServer(t, db, &mockAPI{})

	entries := make([]types.Entry, 0, 50)
	for i := 0; i < 50; i++ {
		entries = append(entries, types.Entry{ID: "entry", Title: strings.Repeat("canvas ", 10), Options: types.DefaultOptions()})
	}
	db.On("ListEntries", mock.Anything).Return(entries, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	srv.setupHandler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"id":"entry"`)
}

func TestStartEntries(t *testing.T) {
	db := &storagemock.MockDatabase{}
	api := &mockAPI{}
	api.On("GetObservees", mock.Anything).Return([]canvas.Profile{}, nil).Maybe()
	api.On("GetProfile", mock.Anything).Return(canvas.Profile{ID: "42"}, nil).Maybe()
	api.On("GetCourses", mock.Anything, "42").Return([]canvas.Course{}, nil).Maybe()

	srv := newTestServer(t, db, api)
	srv.staticURL = "https://static.instructure.com"
	srv.staticToken = "static-token"

	var tokens []string
	srv.newAPI = func(baseURL, token string) canvas.API {
		tokens = append(tokens, token)
		return api
	}

	encrypted, err := srv.encryptToken(t.Context(), "stored-token")
	require.NoError(t, err)
	db.On("ListEntries", mock.Anything).Return([]types.Entry{
		{ID: "good", URL: "https://school.instructure.com", EncryptedToken: encrypted},
		{ID: "broken", URL: "https://school.instructure.com", EncryptedToken: []byte("garbage-garbage-garbage")},
	}, nil)

	require.NoError(t, srv.startEntries(context.Background()))
	assert.Equal(t, []string{"good", staticEntryID}, srv.coords.IDs())
	assert.Equal(t, []string{"static-token", "stored-token"}, tokens)
}
