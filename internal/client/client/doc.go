// Package client talks to the auth service over gRPC.
//
// GRPCClient keeps the current session in memory, attaches the access
// token to every call, and when a protected call fails with an expired
// access token it rotates the session through RefreshToken once and retries.
//
// gRPC status codes are mapped back to the sentinel errors in
// internal/common, plus ErrUnavailable and ErrUnauthorized from this
// package, so callers can match them with errors.Is.
package client
