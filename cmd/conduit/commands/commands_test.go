package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tfkr-ae/conduit"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupServer(t *testing.T, dir string) *server {
	t.Helper()
	cfg, err := conduit.LoadConfig(dir)
	require.NoError(t, err)

	srv, err := newServer(cfg, discardLogger())
	require.NoError(t, err)
	return srv
}

func TestVersionCmd(t *testing.T) {
	original := version
	version = "test-version-1.0.0"
	defer func() { version = original }()

	out, err := execute(t, "version")

	assert.NoError(t, err)
	assert.Contains(t, out, "conduit version test-version-1.0.0")
}

func TestConfigCmd(t *testing.T) {
	t.Run("should print the settings", func(t *testing.T) {
		dir := t.TempDir()

		out, err := execute(t, "config", "--config-dir", dir)

		require.NoError(t, err)
		assert.Contains(t, out, "default_format: html")
		assert.Contains(t, out, "redirect_status: 303")
	})

	t.Run("should save a setting", func(t *testing.T) {
		dir := t.TempDir()

		out, err := execute(t, "config", "set", "default_format", "json", "--config-dir", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "default_format set to json")

		cfg, err := conduit.LoadConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, conduit.FormatJSON, cfg.Format())
	})

	t.Run("should reject unknown keys and invalid values", func(t *testing.T) {
		dir := t.TempDir()

		_, err := execute(t, "config", "set", "colour", "blue", "--config-dir", dir)
		assert.ErrorContains(t, err, "unknown setting")

		_, err = execute(t, "config", "set", "redirect_status", "200", "--config-dir", dir)
		assert.ErrorIs(t, err, conduit.ErrInvalidConfig)
	})
}

func TestServer(t *testing.T) {
	t.Run("should serve until the context is cancelled", func(t *testing.T) {
		srv := setupServer(t, t.TempDir())
		defer srv.Close()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Serve(ctx, ln) }()

		resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "go_goroutines")

		cancel()
		assert.NoError(t, <-done)
	})

	t.Run("should run the configured params script", func(t *testing.T) {
		dir := t.TempDir()
		script := `
			function process_params(params)
				if type(params.article) == "string" and params.article ~= "" then
					local doc = conduit.encoding.json:decode(params.article)
					doc.title = conduit.strings:upper(doc.title)
					params.article = conduit.encoding.json:encode(doc)
				end
				return params
			end
		`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "params.lua"), []byte(script), 0600))
		_, err := execute(t, "config", "set", "lua_script", "params.lua", "--config-dir", dir)
		require.NoError(t, err)

		srv := setupServer(t, dir)
		defer srv.Close()

		req := httptest.NewRequest(http.MethodPost, "/articles", strings.NewReader(`{"title":"quiet","body":"text"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()
		srv.http.Handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"title":"QUIET"`)
	})

	t.Run("should fail on a broken params script", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "params.lua"), []byte(`local x = 1`), 0600))
		_, err := execute(t, "config", "set", "lua_script", "params.lua", "--config-dir", dir)
		require.NoError(t, err)

		cfg, err := conduit.LoadConfig(dir)
		require.NoError(t, err)
		_, err = newServer(cfg, discardLogger())
		assert.Error(t, err)
	})
}

func TestJournalCmd(t *testing.T) {
	t.Run("should list dispatches and stats", func(t *testing.T) {
		dir := t.TempDir()
		srv := setupServer(t, dir)

		req := httptest.NewRequest(http.MethodPost, "/articles", strings.NewReader(`{"title":"Hello","body":"text"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()
		srv.http.Handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		requestID := rec.Header().Get(conduit.RequestIDHeader)
		require.NoError(t, srv.Close())

		out, err := execute(t, "journal", "--config-dir", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "dispatches: 1 (invalid: 0)")
		assert.Contains(t, out, "articles: 1")
		assert.Contains(t, out, requestID)
		assert.Contains(t, out, "respond")

		out, err = execute(t, "journal", "show", requestID, "--config-dir", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "verb: respond")
		assert.Contains(t, out, "path: /articles")
		assert.Contains(t, out, "request_id: "+requestID)

		out, err = execute(t, "journal", "--yaml", "--config-dir", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "invalid_dispatches: 0")
	})

	t.Run("should keep requests replaying a request id", func(t *testing.T) {
		dir := t.TempDir()
		srv := setupServer(t, dir)

		requestID := "0190c9a2-7d0e-7000-8000-000000000001"
		for _, title := range []string{"First", "Second"} {
			req := httptest.NewRequest(http.MethodPost, "/articles", strings.NewReader(`{"title":"`+title+`","body":"text"}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json")
			req.Header.Set(conduit.RequestIDHeader, requestID)
			rec := httptest.NewRecorder()
			srv.http.Handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusCreated, rec.Code)
		}
		require.NoError(t, srv.Close())

		out, err := execute(t, "journal", "show", requestID, "--config-dir", dir)
		require.NoError(t, err)
		assert.Equal(t, 2, strings.Count(out, "request_id: "+requestID))

		out, err = execute(t, "journal", "--config-dir", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "dispatches: 2 (invalid: 0)")
	})

	t.Run("should reject malformed request ids", func(t *testing.T) {
		_, err := execute(t, "journal", "show", "nope", "--config-dir", t.TempDir())
		assert.ErrorContains(t, err, "parsing request id")
	})
}
