// Package commands implements the conduit command line: the demo article server,
// the dispatch journal viewer and the configuration helpers.
package commands
