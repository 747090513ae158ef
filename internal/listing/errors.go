package listing

import "errors"

var (
	// ErrBusy is returned when a user-triggered load arrives while another
	// load for the same view is still in flight.
	ErrBusy = errors.New("listing: load already in flight")
	// ErrSuperseded is returned to the caller of a load whose result was
	// discarded because a newer load was issued.
	ErrSuperseded = errors.New("listing: load superseded")
	// ErrDisposed is returned by every operation after Dispose.
	ErrDisposed = errors.New("listing: controller disposed")
	// ErrViewNotFound is returned by the registry for unknown or foreign views.
	ErrViewNotFound = errors.New("listing: view not found")
)
