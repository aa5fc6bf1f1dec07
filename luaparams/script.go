package luaparams

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/Shopify/go-lua"
	"github.com/Shopify/goluago"
	"github.com/Shopify/goluago/util"
	"github.com/tfkr-ae/conduit"
)

// processFunction is the global every script must define.
const processFunction = "process_params"

var (
	// ErrMissingFunction is returned when a script does not define process_params
	ErrMissingFunction = errors.New("script does not define process_params")

	// ErrInvalidReturn is returned when process_params returns something other than a table or nil
	ErrInvalidReturn = errors.New("process_params must return a table or nil")

	// ErrScript is returned when a script fails to load or raises an error
	ErrScript = errors.New("lua script error")
)

// restrictedGlobals are removed from every state before a script runs.
var restrictedGlobals = []string{
	"os",
	"io",
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"debug",
	"collectgarbage",
}

// Script is a compiled params processor script.
// A fresh Lua state is created for every call, so a Script may be shared between goroutines.
type Script struct {
	Name   string
	source string
	logger *slog.Logger
}

// WithLogger sets the logger used by conduit:log. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) func(*Script) error {
	return func(script *Script) error {
		if logger == nil {
			logger = slog.Default()
		}
		script.logger = logger
		return nil
	}
}

// Compile checks that source loads and defines process_params.
func Compile(name, source string, options ...func(*Script) error) (*Script, error) {
	script := &Script{
		Name:   name,
		source: source,
		logger: slog.Default(),
	}
	for _, option := range options {
		if err := option(script); err != nil {
			return nil, fmt.Errorf("applying option on script %s : %w", name, err)
		}
	}

	l, err := script.state()
	if err != nil {
		return nil, err
	}
	l.Global(processFunction)
	if !l.IsFunction(-1) {
		return nil, fmt.Errorf("compiling %s : %w", name, ErrMissingFunction)
	}
	return script, nil
}

// Load reads and compiles the script at path.
func Load(path string, options ...func(*Script) error) (*Script, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s : %w", path, err)
	}
	return Compile(filepath.Base(path), string(source), options...)
}

// Processor returns the script as a conduit.ParamsProcessor.
func (script *Script) Processor() conduit.ParamsProcessor {
	return script.Process
}

// Process calls process_params with params and req and returns the resulting params.
func (script *Script) Process(req *http.Request, params conduit.Params) (conduit.Params, error) {
	l, err := script.state()
	if err != nil {
		return nil, err
	}
	registerRequestType(l)

	util.DeepPush(l, toLua(params))
	l.Global(processFunction)
	if !l.IsFunction(-1) {
		return nil, fmt.Errorf("running %s : %w", script.Name, ErrMissingFunction)
	}
	l.PushValue(1)
	l.PushUserData(req)
	lua.SetMetaTableNamed(l, requestType)

	if err := l.ProtectedCall(2, 1, 0); err != nil {
		return nil, fmt.Errorf("running %s : %w: %w", script.Name, ErrScript, err)
	}

	index := -1
	switch {
	case l.IsNil(-1):
		index = 1
	case !l.IsTable(-1):
		return nil, fmt.Errorf("running %s : got %s : %w", script.Name, lua.TypeNameOf(l, -1), ErrInvalidReturn)
	}

	table, err := util.PullTable(l, index)
	if err != nil {
		return nil, fmt.Errorf("reading %s result : %w: %w", script.Name, ErrInvalidReturn, err)
	}
	return fromLuaParams(table), nil
}

// state creates a sandboxed state with the libraries loaded and the script chunk executed.
func (script *Script) state() (*lua.State, error) {
	l := lua.NewState()
	lua.OpenLibraries(l)
	goluago.Open(l)

	for _, global := range restrictedGlobals {
		l.PushNil()
		l.SetGlobal(global)
	}
	registerConduitLibrary(l, script.logger, script.Name)

	if err := lua.LoadBuffer(l, script.source, script.Name, "t"); err != nil {
		return nil, fmt.Errorf("loading %s : %w: %w", script.Name, ErrScript, err)
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return nil, fmt.Errorf("executing %s : %w: %w", script.Name, ErrScript, err)
	}
	return l, nil
}

// toLua converts params into plain maps and slices for util.DeepPush.
func toLua(value any) any {
	switch v := value.(type) {
	case conduit.Params:
		return toLua(map[string]any(v))
	case map[string]any:
		table := make(map[string]any, len(v))
		for key, item := range v {
			table[key] = toLua(item)
		}
		return table
	case []string:
		list := make([]any, len(v))
		for i, item := range v {
			list[i] = item
		}
		return list
	case []any:
		list := make([]any, len(v))
		for i, item := range v {
			list[i] = toLua(item)
		}
		return list
	}
	return value
}

func fromLuaParams(value any) conduit.Params {
	switch v := value.(type) {
	case map[string]any:
		params := make(conduit.Params, len(v))
		for key, item := range v {
			params[key] = fromLua(item)
		}
		return params
	case []any:
		// a table with only integer keys comes back as a list; keep its items under their positions
		params := make(conduit.Params, len(v))
		for i, item := range v {
			params[strconv.Itoa(i+1)] = fromLua(item)
		}
		return params
	}
	return make(conduit.Params)
}

// fromLua converts a value pulled from Lua back into the params value shapes:
// strings, []string and nested maps. Numbers and booleans become strings.
func fromLua(value any) any {
	switch v := value.(type) {
	case map[string]any:
		nested := make(map[string]any, len(v))
		for key, item := range v {
			nested[key] = fromLua(item)
		}
		return nested
	case []any:
		strs := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := fromLua(item).(string)
			if !ok {
				return listOf(v)
			}
			strs = append(strs, str)
		}
		return strs
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	}
	return value
}

func listOf(items []any) []any {
	list := make([]any, len(items))
	for i, item := range items {
		list[i] = fromLua(item)
	}
	return list
}

// sortedKeys returns the keys of m in order, for deterministic iteration in Lua-facing helpers.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
