// Package repository implements the durable stores behind the auth service:
// accounts (credential store) and identity links. Sentinel errors defined
// here let handlers map storage outcomes onto the HTTP error taxonomy
// without inspecting driver-specific failures.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row. Handlers translate
// it into 404 or, on authentication paths, a uniform 401.
var ErrNotFound = errors.New("not found")

// ErrDuplicateAccount is returned when creating a local account whose email
// is already taken under the local auth method. Provider accounts sharing
// the email are not a conflict.
var ErrDuplicateAccount = errors.New("account already exists")

// ErrAlreadyLinked is returned when an identity link insert collides with an
// existing (provider, subject) pair. Callers racing on a first-time provider
// sign-in catch this and re-resolve the existing link.
var ErrAlreadyLinked = errors.New("provider identity already linked")

// ErrUnsupportedAuthMethod is returned when a password operation is invoked
// on a provider-backed account.
var ErrUnsupportedAuthMethod = errors.New("operation requires local auth method")

// ErrAlreadyVerified is returned when confirming or re-requesting
// verification for an address that has already been confirmed.
var ErrAlreadyVerified = errors.New("email already verified")

// ErrInvalidVerification is returned when a verification token does not
// match the account's current pending token.
var ErrInvalidVerification = errors.New("invalid verification token")
