package store

import "errors"

// Error taxonomy for store access. Every failure is local: one bad folder,
// message, or subscriber never takes down its siblings. Only
// ErrStoreUnavailable is fatal, and only at startup.
var (
	// ErrStoreUnavailable means the store root is missing or unreadable.
	ErrStoreUnavailable = errors.New("mail store unavailable")

	// ErrFolderScan means one folder could not be enumerated. The subtree is
	// skipped and the rest of the tree stays usable.
	ErrFolderScan = errors.New("folder scan failed")

	// ErrMalformedMessage means message bytes would not parse. Listings carry
	// a placeholder summary instead of failing.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrMessageVanished means an identifier no longer resolves to a file,
	// typically because it was removed externally after listing.
	ErrMessageVanished = errors.New("message vanished")
)
