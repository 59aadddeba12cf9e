// Package server hosts the Fiber HTTP service: the recover and request-ID
// middleware chain, the static informational routes, and the route table that
// maps /<repo>/..., /simple/<repo>/... and /cached/<repo>/... onto a proxy
// handler in direct or cached mode. Keep exports narrow and accept explicit
// dependencies so tests can inject fake handlers.
package server
