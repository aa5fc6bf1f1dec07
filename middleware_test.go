package conduit

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestMethodOverride(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		want        string
	}{
		{"should override POST forms", http.MethodPost, "application/x-www-form-urlencoded", "_method=delete", http.MethodDelete},
		{"should allow PATCH", http.MethodPost, "application/x-www-form-urlencoded", "_method=PATCH&title=x", http.MethodPatch},
		{"should ignore unknown methods", http.MethodPost, "application/x-www-form-urlencoded", "_method=GET", http.MethodPost},
		{"should ignore documents", http.MethodPost, "application/json", `{"_method":"DELETE"}`, http.MethodPost},
		{"should ignore other methods", http.MethodGet, "application/x-www-form-urlencoded", "", http.MethodGet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := MethodOverride(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				got = req.Method
			}))

			req := httptest.NewRequest(tt.method, "/articles/42", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Fatalf("\nwanted:\n%v\ngot:\n%v", tt.want, got)
			}
		})
	}

	t.Run("should keep the form readable downstream", func(t *testing.T) {
		var params Params
		handler := MethodOverride(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			params, _ = ParamsFromRequest(req)
		}))

		req := httptest.NewRequest(http.MethodPost, "/articles/42", strings.NewReader("_method=put&article[title]=x"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if params.String("article", "title") != "x" {
			t.Fatalf("\nwanted:\nx\ngot:\n%v", params)
		}
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Run("should stamp and echo the request id", func(t *testing.T) {
		var got uuid.UUID
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			got, _ = RequestIDFromContext(req.Context())
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if got == uuid.Nil {
			t.Fatalf("\nwanted:\nrequest id\ngot:\n%v", got)
		}
		if rec.Header().Get(RequestIDHeader) != got.String() {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", got, rec.Header().Get(RequestIDHeader))
		}
	})
}

func TestDumpRequests(t *testing.T) {
	t.Run("should log the prettified request and keep the body readable", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		var body []byte
		handler := DumpRequests(logger)(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			body, _ = io.ReadAll(req.Body)
		}))

		req := httptest.NewRequest(http.MethodPost, "/articles", strings.NewReader(`{"title":"x"}`))
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if string(body) != `{"title":"x"}` {
			t.Fatalf("\nwanted:\n%s\ngot:\n%s", `{"title":"x"}`, body)
		}
		if !strings.Contains(buf.String(), "POST /articles") || !strings.Contains(buf.String(), `\"title\": \"x\"`) {
			t.Fatalf("\nwanted:\nrequest dump\ngot:\n%s", buf.String())
		}
	})

	t.Run("should not read the body above debug level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		handler := DumpRequests(logger)(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/articles", strings.NewReader("x")))

		if buf.Len() != 0 {
			t.Fatalf("\nwanted:\nno output\ngot:\n%s", buf.String())
		}
	})
}
