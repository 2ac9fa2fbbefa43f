package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// RequestIDHeaderName carries the request id assigned by the server
// interceptors and middleware.
const RequestIDHeaderName = "x-request-id"
