// Package pagination parses limit/offset query parameters.
package pagination

import (
	"strconv"
)

// Constants
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Params represents parsed pagination parameters.
type Params struct {
	Limit  int
	Offset int
}

// Parse reads limit and offset strings, clamping out-of-range values to the
// defaults rather than rejecting the request.
func Parse(limitStr, offsetStr string) Params {
	limit := DefaultLimit
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= MaxLimit {
			limit = l
		}
	}

	offset := 0
	if offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o > 0 {
			offset = o
		}
	}

	return Params{Limit: limit, Offset: offset}
}
