package conduit

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// maxMultipartMemory is the amount of a multipart body kept in memory while parsing form fields.
const maxMultipartMemory = 32 << 20

var (
	// ErrMalformedParams is returned when the request input cannot be parsed into Params
	ErrMalformedParams = errors.New("malformed request params")
)

// Params is the request input handed to operations.
//
// Values are strings, []string for repeated keys or keys ending in "[]",
// and map[string]any for bracketed keys such as "article[title]".
type Params map[string]any

// ParamsProcessor normalizes params before an operation is invoked.
// It may mutate params in place or return a replacement; the returned mapping is what the operation receives.
type ParamsProcessor func(req *http.Request, params Params) (Params, error)

// IdentityProcessor returns params unchanged. It is the default ParamsProcessor.
func IdentityProcessor(_ *http.Request, params Params) (Params, error) {
	return params, nil
}

// ChainProcessors runs processors in order, each receiving the mapping returned by the previous one.
func ChainProcessors(processors ...ParamsProcessor) ParamsProcessor {
	return func(req *http.Request, params Params) (Params, error) {
		var err error
		for _, processor := range processors {
			if processor == nil {
				continue
			}
			params, err = processor(req, params)
			if err != nil {
				return nil, err
			}
			if params == nil {
				params = make(Params)
			}
		}
		return params, nil
	}
}

// PathParams copies the named path wildcards of the matched http.ServeMux pattern into params.
// Empty wildcards are skipped.
func PathParams(names ...string) ParamsProcessor {
	return func(req *http.Request, params Params) (Params, error) {
		for _, name := range names {
			if value := req.PathValue(name); value != "" {
				params[name] = value
			}
		}
		return params, nil
	}
}

// ParamsFromRequest builds Params from the URL query and, for urlencoded or multipart bodies, the form fields.
// Body fields override query fields with the same key.
func ParamsFromRequest(req *http.Request) (Params, error) {
	params := make(Params)
	params.merge(req.URL.Query())

	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := req.ParseForm(); err != nil {
			return nil, fmt.Errorf("parsing form body : %w: %w", ErrMalformedParams, err)
		}
		params.merge(req.PostForm)
	case "multipart/form-data":
		if err := req.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, fmt.Errorf("parsing multipart body : %w: %w", ErrMalformedParams, err)
		}
		params.merge(url.Values(req.MultipartForm.Value))
	}

	return params, nil
}

// Get returns the value stored under a nested key path.
func (p Params) Get(keys ...string) (any, bool) {
	var current any = map[string]any(p)
	for _, key := range keys {
		node, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// String returns the value under a nested key path when it is a string.
// The first element is returned for []string values.
func (p Params) String(keys ...string) string {
	value, ok := p.Get(keys...)
	if !ok {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// Map returns the nested mapping under a key path.
func (p Params) Map(keys ...string) (map[string]any, bool) {
	value, ok := p.Get(keys...)
	if !ok {
		return nil, false
	}
	return asMap(value)
}

func asMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case Params:
		return map[string]any(v), true
	case map[string]any:
		return v, true
	}
	return nil, false
}

func (p Params) merge(values url.Values) {
	for key, list := range values {
		p.assign(key, list)
	}
}

// assign stores values under key, expanding bracket notation into nested maps.
// "tags[]" always stores a []string; other keys store a string unless repeated.
func (p Params) assign(key string, values []string) {
	path := splitKey(key)
	node := map[string]any(p)

	for i, segment := range path {
		last := i == len(path)-1
		if !last && path[i+1] == "" {
			node[segment] = append([]string(nil), values...)
			return
		}
		if last {
			if len(values) == 1 {
				node[segment] = values[0]
			} else {
				node[segment] = append([]string(nil), values...)
			}
			return
		}

		child, ok := asMap(node[segment])
		if !ok {
			child = make(map[string]any)
			node[segment] = child
		}
		node = child
	}
}

// splitKey splits "a[b][c]" into [a b c] and "a[]" into [a ""].
// Keys that are not well formed bracket expressions are returned whole.
func splitKey(key string) []string {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return []string{key}
	}

	path := []string{key[:open]}
	rest := key[open:]
	for rest != "" {
		if rest[0] != '[' {
			return []string{key}
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return []string{key}
		}
		path = append(path, rest[1:end])
		rest = rest[end+1:]
	}

	// an empty segment is only meaningful as the final array marker
	for i, segment := range path[:len(path)-1] {
		if segment == "" && i > 0 {
			return []string{key}
		}
	}
	return path
}
