package conduit

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
)

func TestIsFormRequest(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		negotiated  Format
		want        bool
	}{
		{"should accept urlencoded bodies", "application/x-www-form-urlencoded", "a=b", FormatJSON, true},
		{"should accept multipart bodies", "multipart/form-data; boundary=x", "", FormatJSON, true},
		{"should accept html bodies", "text/html; charset=utf-8", "<p>x</p>", FormatJSON, true},
		{"should reject json bodies", "application/json", `{"a":1}`, FormatHTML, false},
		{"should reject malformed content types", "application/json; =", `{}`, FormatHTML, false},
		{"should sniff html without a content type", "", "<html><body>x</body></html>", FormatJSON, true},
		{"should sniff documents without a content type", "", `{"a":1}`, FormatHTML, false},
		{"should fall back to html negotiation for empty bodies", "", "", FormatHTML, true},
		{"should fall back to api negotiation for empty bodies", "", "", FormatJSON, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/articles", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			got, err := IsFormRequest(req, tt.negotiated)
			if err != nil {
				t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
			}
			if got != tt.want {
				t.Fatalf("\nwanted:\n%v\ngot:\n%v", tt.want, got)
			}

			body, _ := io.ReadAll(req.Body)
			if string(body) != tt.body {
				t.Fatalf("\nwanted:\nbody left readable %q\ngot:\n%q", tt.body, body)
			}
		})
	}
}

func TestReadRawBody(t *testing.T) {
	t.Run("should return the body and keep it readable", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/articles", strings.NewReader("title: hello"))

		body, err := ReadRawBody(req, 0)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if string(body) != "title: hello" {
			t.Fatalf("\nwanted:\ntitle: hello\ngot:\n%s", body)
		}
		again, _ := io.ReadAll(req.Body)
		if string(again) != "title: hello" {
			t.Fatalf("\nwanted:\ntitle: hello\ngot:\n%s", again)
		}
	})

	t.Run("should decode brotli bodies", func(t *testing.T) {
		var buf bytes.Buffer
		writer := brotli.NewWriter(&buf)
		writer.Write([]byte(`<article/>`))
		writer.Close()

		req := httptest.NewRequest(http.MethodPost, "/articles", &buf)
		req.Header.Set("Content-Encoding", "br")

		body, err := ReadRawBody(req, 1024)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if string(body) != `<article/>` {
			t.Fatalf("\nwanted:\n<article/>\ngot:\n%s", body)
		}
	})

	t.Run("should accept a body exactly at the limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/articles", strings.NewReader("1234"))

		body, err := ReadRawBody(req, 4)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if string(body) != "1234" {
			t.Fatalf("\nwanted:\n1234\ngot:\n%s", body)
		}
	})

	t.Run("should reject a body over the limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/articles", strings.NewReader("12345"))

		_, err := ReadRawBody(req, 4)
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrBodyTooLarge, err)
		}
	})

	t.Run("should reject unknown encodings", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/articles", strings.NewReader("x"))
		req.Header.Set("Content-Encoding", "compress")

		_, err := ReadRawBody(req, 0)
		if !errors.Is(err, ErrUnsupportedEncoding) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrUnsupportedEncoding, err)
		}
	})

	t.Run("should report corrupt gzip bodies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/articles", strings.NewReader("not gzip"))
		req.Header.Set("Content-Encoding", "gzip")

		_, err := ReadRawBody(req, 0)
		if !errors.Is(err, ErrReadBody) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrReadBody, err)
		}
	})

	t.Run("should return an empty body for requests without one", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/articles", nil)

		body, err := ReadRawBody(req, 0)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if len(body) != 0 {
			t.Fatalf("\nwanted:\nempty body\ngot:\n%q", body)
		}
	})
}

// countingReader serves size bytes of x and counts the bytes handed out.
type countingReader struct {
	size int64
	read int64
}

func (reader *countingReader) Read(p []byte) (int, error) {
	if reader.read >= reader.size {
		return 0, io.EOF
	}
	if remaining := reader.size - reader.read; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	for i := range p {
		p[i] = 'x'
	}
	reader.read += int64(len(p))
	return len(p), nil
}

func TestBodyReadsAreBounded(t *testing.T) {
	t.Run("should stop reading once the limit is exceeded", func(t *testing.T) {
		client := &countingReader{size: 8 << 20}
		req := httptest.NewRequest(http.MethodPost, "/articles", nil)
		req.Body = io.NopCloser(client)

		_, err := ReadRawBody(req, 1024)
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrBodyTooLarge, err)
		}
		if client.read > 1025 {
			t.Fatalf("\nwanted:\nat most 1025 bytes read\ngot:\n%d", client.read)
		}
	})

	t.Run("should cap the encoded body too", func(t *testing.T) {
		var buf bytes.Buffer
		writer := brotli.NewWriter(&buf)
		writer.Write(bytes.Repeat([]byte("0123456789abcdef"), 256))
		writer.Close()
		encoded := buf.Len()

		req := httptest.NewRequest(http.MethodPost, "/articles", &buf)
		req.Header.Set("Content-Encoding", "br")

		_, err := ReadRawBody(req, int64(encoded-1))
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrBodyTooLarge, err)
		}
	})

	t.Run("should sniff a bounded prefix and keep the whole body readable", func(t *testing.T) {
		client := &countingReader{size: 1 << 20}
		req := httptest.NewRequest(http.MethodPost, "/articles", nil)
		req.Body = io.NopCloser(client)

		if _, err := IsFormRequest(req, FormatJSON); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if client.read > sniffLen {
			t.Fatalf("\nwanted:\nat most %d bytes read\ngot:\n%d", sniffLen, client.read)
		}

		body, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if len(body) != 1<<20 {
			t.Fatalf("\nwanted:\n%d\ngot:\n%d", 1<<20, len(body))
		}
	})
}
