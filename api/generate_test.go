package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpostr-proxy/config"
)

func TestBuild_DisablesFileSinks(t *testing.T) {
	a, err := build(func() (*config.Config, error) {
		cfg := config.Defaults(config.ProfileVercel)
		cfg.Log.Level = "panic"
		cfg.Log.File = "should-not-exist.log"
		cfg.Log.RequestLogDB = "should-not-exist.db"
		return cfg, nil
	})
	require.NoError(t, err)
	defer a.Close()

	assert.Empty(t, a.Config.Log.File)
	assert.Empty(t, a.Config.Log.RequestLogDB)
}

func TestServe_ConfigError(t *testing.T) {
	_, err := build(func() (*config.Config, error) {
		return nil, errors.New("credential #1 is encrypted but CREDENTIAL_SECRET is not set")
	})
	require.Error(t, err)

	w := httptest.NewRecorder()
	serve(w, httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"prompt":"p"}`)), nil, err)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t, `{"error":"Server configuration error: credential #1 is encrypted but CREDENTIAL_SECRET is not set"}`, w.Body.String())

	w = httptest.NewRecorder()
	serve(w, httptest.NewRequest(http.MethodOptions, "/api/generate", nil), nil, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestServe_RoutesToEngine(t *testing.T) {
	a, err := build(func() (*config.Config, error) {
		cfg := config.Defaults(config.ProfileVercel)
		cfg.Log.Level = "panic"
		return cfg, nil
	})
	require.NoError(t, err)
	defer a.Close()

	w := httptest.NewRecorder()
	serve(w, httptest.NewRequest(http.MethodGet, "/api/generate", nil), a, nil)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.JSONEq(t, `{"error":"Method not allowed"}`, w.Body.String())
}
