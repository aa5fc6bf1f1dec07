// Package domain defines the persistent records used around conduit dispatches.
// It contains the dispatch journal entry and the article model served by the demo
// application, together with the repository interfaces that describe how they are stored.
//
// The interfaces keep the conduit package and the demo operations independent of the
// storage technology; the db package provides the sqlite implementation.
package domain
