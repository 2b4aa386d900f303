// Package statusrange parses comma separated status code ranges such as
// "400-599" or "2,4,12-15".
package statusrange

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is an inclusive interval of status codes.
type Range struct {
	Low, High int
}

// Set is a union of ranges. The zero value contains nothing.
type Set []Range

// Parse reads a comma separated list of N or N-M tokens. Whitespace is
// ignored and reversed bounds are swapped. An empty string is an error.
func Parse(s string) (Set, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty status range")
	}

	var set Set
	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, fmt.Errorf("empty token in status range %q", s)
		}

		low, high, isRange := strings.Cut(token, "-")
		lo, err := strconv.Atoi(strings.TrimSpace(low))
		if err != nil {
			return nil, fmt.Errorf("invalid status %q in range %q: %w", low, s, err)
		}
		hi := lo
		if isRange {
			hi, err = strconv.Atoi(strings.TrimSpace(high))
			if err != nil {
				return nil, fmt.Errorf("invalid status %q in range %q: %w", high, s, err)
			}
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		set = append(set, Range{Low: lo, High: hi})
	}
	return set, nil
}

// MustParse is Parse for package level defaults.
func MustParse(s string) Set {
	set, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return set
}

// Contains reports whether code falls in any range.
func (s Set) Contains(code int) bool {
	for _, r := range s {
		if code >= r.Low && code <= r.High {
			return true
		}
	}
	return false
}

func (s Set) String() string {
	parts := make([]string, len(s))
	for i, r := range s {
		if r.Low == r.High {
			parts[i] = strconv.Itoa(r.Low)
		} else {
			parts[i] = fmt.Sprintf("%d-%d", r.Low, r.High)
		}
	}
	return strings.Join(parts, ",")
}
