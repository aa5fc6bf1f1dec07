package render

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
)

// readCloser joins the bytes already read from a body with its unread rest.
type readCloser struct {
	io.Reader
	io.Closer
}

// DumpRequest dumps the request head and up to limit bytes of its body, then resets the body
// so it can be consumed again. The returned dump has the body prettified when possible.
// A limit of zero or less dumps the whole body.
func DumpRequest(req *http.Request, limit int64) (string, error) {
	head, err := httputil.DumpRequest(req, false)
	if err != nil {
		return "", fmt.Errorf("dumping request : %w", err)
	}
	if req.Body == nil || req.Body == http.NoBody {
		return string(head), nil
	}

	reader := io.Reader(req.Body)
	if limit > 0 {
		reader = io.LimitReader(req.Body, limit)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("reading request body : %w", err)
	}
	req.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(body), req.Body), Closer: req.Body}

	// appending to head directly could share its backing array
	dump := make([]byte, 0, len(head)+len(body))
	dump = append(dump, head...)
	return string(append(dump, Indent(body)...)), nil
}
