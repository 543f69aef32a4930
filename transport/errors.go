package transport

import "errors"

// ErrNotFound is returned by Recv when no payload has been stored at the
// requested link, distinct from other transport failures per spec.md §6.
var ErrNotFound = errors.New("transport: not found")
