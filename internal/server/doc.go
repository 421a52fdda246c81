// Package server hosts the Fiber HTTP service and the request middleware
// chain that wires host canonicalization into two fixed routes: /releases for
// archive files and the profile redirect for everything else. It bootstraps
// Fiber, attaches recovery and request-ID middlewares, and exposes router
// constructors that other packages (main, release) can reuse. The release
// responder itself lives in internal/release, so keep exports here narrow and
// accept explicit dependencies.
package server
