package conduit

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrBodyTooLarge is returned when a raw request body exceeds the configured limit
	ErrBodyTooLarge = errors.New("request body too large")

	// ErrUnsupportedEncoding is returned when the request body uses an unknown Content-Encoding
	ErrUnsupportedEncoding = errors.New("unsupported content encoding")

	// ErrReadBody is returned when the request body cannot be read
	ErrReadBody = errors.New("failed to read the body")
)

// sniffLen is the number of body bytes inspected when a request carries no Content-Type, matching mimetype's read limit.
const sniffLen = 3072

// formMediaTypes are the request media types parsed into params by the framework rather than by the operation.
var formMediaTypes = map[string]bool{
	"application/x-www-form-urlencoded": true,
	"multipart/form-data":               true,
	"text/html":                         true,
}

// IsFormRequest reports whether the request input is HTML form data.
//
// The Content-Type header decides when present. Without it a non-empty body is sniffed,
// and an empty body falls back to whether the negotiated format is HTML.
func IsFormRequest(req *http.Request, negotiated Format) (bool, error) {
	if contentType := req.Header.Get("Content-Type"); contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return false, nil
		}
		return formMediaTypes[mediaType], nil
	}

	body, err := peekBody(req, sniffLen)
	if err != nil {
		return false, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return negotiated == FormatHTML, nil
	}

	detected := mimetype.Detect(body)
	return detected.Is("text/html"), nil
}

// ReadRawBody returns the decoded request body, honouring gzip and br Content-Encoding.
// The bytes read are put back on req.Body so the body can be read again.
// Both the encoded and the decoded body are capped at limit bytes, and no more than limit+1 bytes
// are read from the client. A limit of zero or less disables the size check.
func ReadRawBody(req *http.Request, limit int64) ([]byte, error) {
	readLimit := int64(-1)
	if limit > 0 {
		readLimit = limit + 1
	}
	raw, err := peekBody(req, readLimit)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(raw)) > limit {
		return nil, fmt.Errorf("body exceeds %d bytes : %w", limit, ErrBodyTooLarge)
	}

	var reader io.Reader
	encoding := strings.ToLower(strings.TrimSpace(req.Header.Get("Content-Encoding")))
	switch encoding {
	case "", "identity":
		reader = bytes.NewReader(raw)
	case "gzip", "x-gzip":
		gzipReader, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader : %w: %w", ErrReadBody, err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	case "br":
		reader = brotli.NewReader(bytes.NewReader(raw))
	default:
		return nil, fmt.Errorf("content encoding %q : %w", encoding, ErrUnsupportedEncoding)
	}

	if limit > 0 {
		reader = io.LimitReader(reader, limit+1)
	}

	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("decoding %s body : %w: %w", encoding, ErrReadBody, err)
	}
	if limit > 0 && int64(len(decoded)) > limit {
		return nil, fmt.Errorf("body exceeds %d bytes : %w", limit, ErrBodyTooLarge)
	}
	return decoded, nil
}

// bodyReader joins the bytes already read from a body with its unread rest.
type bodyReader struct {
	io.Reader
	io.Closer
}

// peekBody reads up to n bytes of the body, or all of it when n is negative, and resets req.Body
// so the next reader sees the whole body again.
func peekBody(req *http.Request, n int64) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return []byte{}, nil
	}

	reader := io.Reader(req.Body)
	if n >= 0 {
		reader = io.LimitReader(req.Body, n)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading request body : %w: %w", ErrReadBody, err)
	}
	req.Body = bodyReader{Reader: io.MultiReader(bytes.NewReader(body), req.Body), Closer: req.Body}
	return body, nil
}
