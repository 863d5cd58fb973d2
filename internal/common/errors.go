// Package common defines shared constants and sentinel errors used across
// the store, the sync engine and the command dispatcher. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Storage errors.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrWriteFailed        = errors.New("write failed")
	ErrNotFound           = errors.New("not found")

	// Transport errors.
	ErrTransportSendFailed = errors.New("transport send failed")
	ErrPeerOffline         = errors.New("peer offline")

	// Protocol errors.
	ErrUnauthorized     = errors.New("unauthorized")
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownCommand   = errors.New("unknown command")

	ErrNotImplemented      = errors.New("not implemented")
	ErrAttachmentsDisabled = errors.New("attachments disabled")
)
