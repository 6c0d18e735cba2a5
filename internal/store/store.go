// Package store persists account and message records in BadgerDB. It is the
// collaborator side of the chat core: the router calls it to make messages
// durable before delivery, and the auth handlers call it for account lookups.
// Nothing in this package participates in realtime routing decisions.
package store

import "errors"

var (
	// ErrUserExists is returned when signup reuses a taken username.
	ErrUserExists = errors.New("username already exists")
	// ErrUserNotFound is returned when no account matches a username.
	ErrUserNotFound = errors.New("user not found")
)
