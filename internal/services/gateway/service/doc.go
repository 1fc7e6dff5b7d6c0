// Package service bridges MCP clients to a wrapped protocol server over SSE.
//
// It is the transport adapter layer: the package owns the mapping between
// long-lived event streams and the short-lived POST requests that feed them,
// and delegates protocol meaning to the MCP server it wraps.
package service
