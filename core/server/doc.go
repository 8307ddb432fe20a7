// Package server holds the HTTP server configuration.
//
// The serve command exposes comparison runs over HTTP. This package defines
// the listen port, the API key guarding the endpoints and how many runs may
// execute at once.
package server
