// Package auth verifies and issues the signed bearer credentials that clients
// present when opening a chat connection.
//
// Credentials are HS256 JSON Web Tokens carrying an "id" claim. A Verifier
// turns a token into an Identity or rejects it with ErrMissingToken or
// ErrInvalidToken; the underlying reason for an invalid token is never
// exposed beyond that single category.
package auth
