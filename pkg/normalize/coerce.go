package normalize

import (
	"strconv"
	"strings"
)

// Coerce converts a numeric-looking cell to an int and passes anything else
// through unchanged, including the empty string. It never fails.
func Coerce(s string) any {
	if s == "" {
		return s
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return s
	}
	return n
}
