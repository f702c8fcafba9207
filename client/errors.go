// Package client is the session-side engine: who is signed in, the paged
// issue feed, and reconciling mutations against the server's copy.
package client

import (
	"errors"

	"civicsync/apperr"
)

var (
	// ErrStale means a response arrived after the state it was meant for
	// was superseded (a newer feed reset, or a logout). It was dropped.
	ErrStale = errors.New("response superseded")
	// ErrInFlight means a mutation for the same issue is still running.
	ErrInFlight = apperr.E(apperr.Conflict, "A request for this issue is already in progress")
	// ErrNoMorePages means the server reported the last page already.
	ErrNoMorePages = errors.New("no more pages")
	// ErrLoadInProgress means an append for the current feed is already running.
	ErrLoadInProgress = errors.New("a page is already loading")
)
