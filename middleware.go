package conduit

import (
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/tfkr-ae/conduit/render"
)

// MethodOverrideField is the form field that carries the intended method of HTML form submissions.
const MethodOverrideField = "_method"

var overridableMethods = map[string]bool{
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// MethodOverride lets HTML forms, which can only POST, reach PUT, PATCH and DELETE routes.
// A POST with a urlencoded or multipart body whose _method field names one of those methods
// is forwarded with that method.
func MethodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			next.ServeHTTP(w, req)
			return
		}

		mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
		if mediaType != "application/x-www-form-urlencoded" && mediaType != "multipart/form-data" {
			next.ServeHTTP(w, req)
			return
		}

		method := strings.ToUpper(req.PostFormValue(MethodOverrideField))
		if overridableMethods[method] {
			req = req.Clone(req.Context())
			req.Method = method
		}
		next.ServeHTTP(w, req)
	})
}

// RequestID makes sure every request carries a request ID in its context and echoes it in the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := requestID(req)
		w.Header().Set(RequestIDHeader, id.String())
		next.ServeHTTP(w, ContextWithRequestID(req, id))
	})
}

// dumpLimit is the number of body bytes included in request dumps.
const dumpLimit = 64 << 10

// DumpRequests logs a dump of every request at debug level, with a prettified body.
// Nothing is read when the logger does not record debug messages.
func DumpRequests(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if logger.Enabled(req.Context(), slog.LevelDebug) {
				dump, err := render.DumpRequest(req, dumpLimit)
				if err != nil {
					logger.Debug("dumping request", "error", err)
				} else {
					logger.Debug("request", "request_id", requestID(req).String(), "dump", dump)
				}
			}
			next.ServeHTTP(w, req)
		})
	}
}
