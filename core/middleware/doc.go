// Package middleware contains HTTP middleware for the Fiber application.
//
// It provides cross-cutting concerns that sit between the request and the handler.
//
// # Components
//
//   - auth: API key validation protecting the comparison endpoints, with
//     public path prefixes such as /metrics.
//   - rayid: a unique request id (RayID) for every incoming request,
//     injected into the context and the response headers for tracing.
//
// RayID must be registered first so that every later log line carries it.
package middleware
