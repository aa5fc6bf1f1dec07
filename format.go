package conduit

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/munnerz/goautoneg"
)

// Format is a response format known to the responder.
type Format string

const (
	FormatHTML Format = "html"
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
	FormatYAML Format = "yaml"
)

var (
	// ErrNotAcceptable is returned when the request asks for a format the responder cannot produce
	ErrNotAcceptable = errors.New("requested format is not acceptable")
)

// mediaTypes maps every accepted media type to its format. The first entry per format is canonical.
var mediaTypes = []struct {
	mediaType string
	format    Format
}{
	{"text/html", FormatHTML},
	{"application/xhtml+xml", FormatHTML},
	{"application/json", FormatJSON},
	{"text/json", FormatJSON},
	{"application/xml", FormatXML},
	{"text/xml", FormatXML},
	{"application/yaml", FormatYAML},
	{"application/x-yaml", FormatYAML},
	{"text/yaml", FormatYAML},
}

// ContentType returns the canonical Content-Type header value for the format.
func (f Format) ContentType() string {
	for _, entry := range mediaTypes {
		if entry.format == f {
			if f == FormatHTML {
				return entry.mediaType + "; charset=utf-8"
			}
			return entry.mediaType
		}
	}
	return "application/octet-stream"
}

// IsAPI reports whether the format is a serialized document format rather than HTML.
func (f Format) IsAPI() bool {
	return f != FormatHTML
}

// ParseFormat returns the Format named by a short name ("json") or a media type ("application/json").
func ParseFormat(name string) (Format, bool) {
	name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, ".")))
	switch Format(name) {
	case FormatHTML, FormatJSON, FormatXML, FormatYAML:
		return Format(name), true
	case "htm":
		return FormatHTML, true
	case "yml":
		return FormatYAML, true
	}

	mediaType, _, err := mime.ParseMediaType(name)
	if err != nil {
		return "", false
	}
	for _, entry := range mediaTypes {
		if entry.mediaType == mediaType {
			return entry.format, true
		}
	}
	return "", false
}

// NegotiateFormat determines the response format of a request.
// The path extension wins, then the "format" query parameter, then the Accept header, then fallback.
func NegotiateFormat(req *http.Request, fallback Format) (Format, error) {
	if ext := path.Ext(req.URL.Path); ext != "" {
		if format, ok := ParseFormat(ext); ok {
			return format, nil
		}
	}

	if name := req.URL.Query().Get("format"); name != "" {
		format, ok := ParseFormat(name)
		if !ok {
			return "", fmt.Errorf("format parameter %q : %w", name, ErrNotAcceptable)
		}
		return format, nil
	}

	accept := strings.TrimSpace(req.Header.Get("Accept"))
	if accept == "" {
		return fallback, nil
	}

	// the fallback goes first so that wildcards resolve to it
	alternatives := []string{}
	for _, entry := range mediaTypes {
		if entry.format == fallback {
			alternatives = append(alternatives, entry.mediaType)
		}
	}
	for _, entry := range mediaTypes {
		if entry.format != fallback {
			alternatives = append(alternatives, entry.mediaType)
		}
	}

	negotiated := goautoneg.Negotiate(accept, alternatives)
	if negotiated == "" {
		return "", fmt.Errorf("accept header %q : %w", accept, ErrNotAcceptable)
	}
	format, _ := ParseFormat(negotiated)
	return format, nil
}

// TrimFormatExtension removes a known format extension from a path segment, so "42.json" becomes "42".
func TrimFormatExtension(segment string) string {
	ext := path.Ext(segment)
	if ext == "" {
		return segment
	}
	if _, ok := ParseFormat(ext); !ok {
		return segment
	}
	return strings.TrimSuffix(segment, ext)
}
