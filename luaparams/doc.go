// Package luaparams runs Lua scripts as conduit params processors.
//
// A script defines a global function process_params(params, request) that receives the
// request params as a table and returns the table handed to the operation. Returning nil
// keeps the (possibly mutated) input table. Scripts may use the conduit library
// (conduit.strings, conduit.encoding, conduit.crypto, conduit.utils, conduit:log) and the
// goluago modules, loaded with require("goluago/...").
package luaparams
