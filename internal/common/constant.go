// Package common contains shared constants, the error taxonomy and small
// helpers used across Gideon components.
package common

// AccessTokenHeaderName is the gRPC metadata key used by internal callers
// to carry the session token without the Bearer prefix.
const AccessTokenHeaderName = "access_token"

// AuthorizationHeaderName carries "Bearer <token>" over HTTP and gRPC.
const AuthorizationHeaderName = "authorization"

// TokenTypeBearer is reported to clients alongside issued session tokens.
const TokenTypeBearer = "bearer"
