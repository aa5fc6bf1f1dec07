package luaparams

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Shopify/go-lua"
	"github.com/Shopify/goluago/util"
	"github.com/google/uuid"
	"github.com/tfkr-ae/conduit"
)

const requestType = "request"

var nonSlugCharacters = regexp.MustCompile(`[^a-z0-9]+`)

// registerConduitLibrary installs the global conduit table and its sub-libraries.
// Library functions are called with the colon syntax, so arguments start at index 2.
func registerConduitLibrary(l *lua.State, logger *slog.Logger, scriptName string) {
	lua.NewLibrary(l, []lua.RegistryFunction{
		// conduit:log(message, level) writes to the controller logger; level defaults to "info"
		{Name: "log", Function: func(l *lua.State) int {
			message := lua.CheckString(l, 2)
			level := lua.OptString(l, 3, "info")

			var lvl slog.Level
			if err := lvl.UnmarshalText([]byte(level)); err != nil {
				lua.ArgumentError(l, 3, "unknown log level")
				return 0
			}
			logger.Log(context.Background(), lvl, message, "script", scriptName)
			return 0
		}},
	})

	register := func(name string, funcs []lua.RegistryFunction) {
		lua.NewLibrary(l, funcs)
		l.SetField(-2, name)
	}
	register("strings", stringsLibrary())
	register("crypto", cryptoLibrary())
	register("utils", utilsLibrary())

	l.NewTable()
	register("base64", base64Library())
	register("url", urlLibrary())
	register("html", htmlLibrary())
	register("json", jsonLibrary())
	l.SetField(-2, "encoding")

	l.SetGlobal("conduit")
}

func stringsLibrary() []lua.RegistryFunction {
	return []lua.RegistryFunction{
		{Name: "upper", Function: func(l *lua.State) int {
			l.PushString(strings.ToUpper(lua.CheckString(l, 2)))
			return 1
		}},
		{Name: "lower", Function: func(l *lua.State) int {
			l.PushString(strings.ToLower(lua.CheckString(l, 2)))
			return 1
		}},
		{Name: "trim", Function: func(l *lua.State) int {
			l.PushString(strings.TrimSpace(lua.CheckString(l, 2)))
			return 1
		}},
		{Name: "contains", Function: func(l *lua.State) int {
			l.PushBoolean(strings.Contains(lua.CheckString(l, 2), lua.CheckString(l, 3)))
			return 1
		}},
		{Name: "has_prefix", Function: func(l *lua.State) int {
			l.PushBoolean(strings.HasPrefix(lua.CheckString(l, 2), lua.CheckString(l, 3)))
			return 1
		}},
		// replace(input, target, replacement, n) replaces every occurrence unless n is given
		{Name: "replace", Function: func(l *lua.State) int {
			input := lua.CheckString(l, 2)
			target := lua.CheckString(l, 3)
			replacement := lua.OptString(l, 4, "")
			n := lua.OptInteger(l, 5, -1)

			l.PushString(strings.Replace(input, target, replacement, n))
			return 1
		}},
		// split(input, separator) returns a list, dropping blank items after trimming them
		{Name: "split", Function: func(l *lua.State) int {
			input := lua.CheckString(l, 2)
			separator := lua.OptString(l, 3, ",")

			parts := []any{}
			for _, part := range strings.Split(input, separator) {
				if part = strings.TrimSpace(part); part != "" {
					parts = append(parts, part)
				}
			}
			util.DeepPush(l, parts)
			return 1
		}},
		// slug("Hello, World") returns "hello-world"
		{Name: "slug", Function: func(l *lua.State) int {
			input := strings.ToLower(lua.CheckString(l, 2))
			l.PushString(strings.Trim(nonSlugCharacters.ReplaceAllString(input, "-"), "-"))
			return 1
		}},
	}
}

func cryptoLibrary() []lua.RegistryFunction {
	return []lua.RegistryFunction{
		{Name: "sha256", Function: func(l *lua.State) int {
			sum := sha256.Sum256([]byte(lua.CheckString(l, 2)))
			l.PushString(hex.EncodeToString(sum[:]))
			return 1
		}},
		// hmac_sha256(secret, message) returns the hex encoded MAC
		{Name: "hmac_sha256", Function: func(l *lua.State) int {
			mac := hmac.New(sha256.New, []byte(lua.CheckString(l, 2)))
			mac.Write([]byte(lua.CheckString(l, 3)))
			l.PushString(hex.EncodeToString(mac.Sum(nil)))
			return 1
		}},
	}
}

func utilsLibrary() []lua.RegistryFunction {
	return []lua.RegistryFunction{
		{Name: "uuid", Function: func(l *lua.State) int {
			id, err := uuid.NewV7()
			if err != nil {
				lua.Errorf(l, "generating uuid: %s", err.Error())
				return 0
			}
			l.PushString(id.String())
			return 1
		}},
		// now returns the current UTC time formatted as RFC 3339
		{Name: "now", Function: func(l *lua.State) int {
			l.PushString(time.Now().UTC().Format(time.RFC3339))
			return 1
		}},
	}
}

func base64Library() []lua.RegistryFunction {
	return []lua.RegistryFunction{
		{Name: "encode", Function: func(l *lua.State) int {
			l.PushString(base64.StdEncoding.EncodeToString([]byte(lua.CheckString(l, 2))))
			return 1
		}},
		{Name: "decode", Function: func(l *lua.State) int {
			input := lua.CheckString(l, 2)
			decoded, err := base64.StdEncoding.DecodeString(input)
			if err != nil {
				lua.Errorf(l, "decoding base64 %s: %s", input, err.Error())
				return 0
			}
			l.PushString(string(decoded))
			return 1
		}},
	}
}

func urlLibrary() []lua.RegistryFunction {
	return []lua.RegistryFunction{
		{Name: "encode", Function: func(l *lua.State) int {
			l.PushString(url.QueryEscape(lua.CheckString(l, 2)))
			return 1
		}},
		{Name: "decode", Function: func(l *lua.State) int {
			input := lua.CheckString(l, 2)
			decoded, err := url.QueryUnescape(input)
			if err != nil {
				lua.Errorf(l, "decoding url %s: %s", input, err.Error())
				return 0
			}
			l.PushString(decoded)
			return 1
		}},
	}
}

func htmlLibrary() []lua.RegistryFunction {
	return []lua.RegistryFunction{
		{Name: "escape", Function: func(l *lua.State) int {
			l.PushString(html.EscapeString(lua.CheckString(l, 2)))
			return 1
		}},
		{Name: "unescape", Function: func(l *lua.State) int {
			l.PushString(html.UnescapeString(lua.CheckString(l, 2)))
			return 1
		}},
	}
}

func jsonLibrary() []lua.RegistryFunction {
	return []lua.RegistryFunction{
		// encode(table) returns the JSON document of a table
		{Name: "encode", Function: func(l *lua.State) int {
			lua.CheckType(l, 2, lua.TypeTable)
			value, err := util.PullTable(l, 2)
			if err != nil {
				lua.Errorf(l, "reading table: %s", err.Error())
				return 0
			}
			output, err := json.Marshal(value)
			if err != nil {
				lua.Errorf(l, "marshalling json: %s", err.Error())
				return 0
			}
			l.PushString(string(output))
			return 1
		}},
		// decode(document) returns the decoded value; raw bodies handed over by Respond are decoded this way
		{Name: "decode", Function: func(l *lua.State) int {
			input := lua.CheckString(l, 2)
			var decoded any
			if err := json.Unmarshal([]byte(input), &decoded); err != nil {
				lua.Errorf(l, "unmarshalling json: %s", err.Error())
				return 0
			}
			util.DeepPush(l, decoded)
			return 1
		}},
	}
}

// registerRequestType exposes a read-only view of the *http.Request as the "request" type.
func registerRequestType(l *lua.State) {
	check := func(l *lua.State) *http.Request {
		req, ok := l.ToUserData(1).(*http.Request)
		if !ok {
			lua.ArgumentError(l, 1, "expected request")
		}
		return req
	}

	funcs := map[string]lua.Function{
		"method": func(l *lua.State) int {
			l.PushString(check(l).Method)
			return 1
		},
		"path": func(l *lua.State) int {
			l.PushString(check(l).URL.Path)
			return 1
		},
		"header": func(l *lua.State) int {
			l.PushString(check(l).Header.Get(lua.CheckString(l, 2)))
			return 1
		},
		"query": func(l *lua.State) int {
			l.PushString(check(l).URL.Query().Get(lua.CheckString(l, 2)))
			return 1
		},
		"path_value": func(l *lua.State) int {
			l.PushString(check(l).PathValue(lua.CheckString(l, 2)))
			return 1
		},
		"headers": func(l *lua.State) int {
			header := check(l).Header
			names := []any{}
			for _, name := range sortedKeys(header) {
				names = append(names, name)
			}
			util.DeepPush(l, names)
			return 1
		},
		"request_id": func(l *lua.State) int {
			id, ok := conduit.RequestIDFromContext(check(l).Context())
			if !ok {
				l.PushNil()
				return 1
			}
			l.PushString(id.String())
			return 1
		},
	}

	lua.NewMetaTable(l, requestType)
	l.PushGoFunction(func(l *lua.State) int {
		if function, ok := funcs[lua.CheckString(l, 2)]; ok {
			l.PushGoFunction(function)
			return 1
		}
		l.PushNil()
		return 1
	})
	l.SetField(-2, "__index")
	l.PushGoFunction(func(l *lua.State) int {
		req := check(l)
		l.PushString(req.Method + " " + req.URL.Path)
		return 1
	})
	l.SetField(-2, "__tostring")
	l.Pop(1)
}
