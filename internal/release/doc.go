// Package release defines the disk-backed store and HTTP responder for the
// archive files published under the releases directory. The store translates
// URL paths into read-only files rooted at the release root and rejects any
// traversal outside it; the responder streams file bytes in bounded chunks
// with conditional and range request support. The router depends on this
// package to serve /releases/* without duplicating filesystem logic.
package release
