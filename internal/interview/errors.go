// Package interview runs spoken mock interviews over a duplex channel.
package interview

import "errors"

var (
	// ErrContextNotFound means the session, its analysis or the resume document is missing.
	ErrContextNotFound = errors.New("interview context not found")

	// ErrGeneration wraps text generation and speech synthesis failures.
	ErrGeneration = errors.New("generation failed")

	// ErrPeerDisconnected is returned by a Channel once the client has gone away.
	ErrPeerDisconnected = errors.New("peer disconnected")
)
