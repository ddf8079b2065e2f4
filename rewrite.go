package sqlpos

import (
	"fmt"
	"strconv"
	"strings"
)

// rewrite walks the input SQL and substitutes every :name whose name is a key
// of pos with $n, n being pos[name].
//
// A candidate ':' must not be preceded by another ':' (so the second colon
// of a '::' cast is never taken), and the name is the maximal run of
// [A-Za-z0-9_] after it, so :name never matches inside :namespace. Text is
// copied verbatim otherwise; quotes and comments are not interpreted.
func rewrite(q string, pos map[string]int) string {
	if len(pos) == 0 || len(q) == 0 {
		return q
	}

	var buf strings.Builder
	// Small oversizing to reduce reallocations; "$nn" is usually no longer than ":name".
	buf.Grow(len(q) + 8)

	for i := 0; i < len(q); {
		c := q[i]
		if c == ':' && !(i > 0 && q[i-1] == ':') {
			k := scanName(q, i+1)
			if k > i+1 {
				if n, ok := pos[q[i+1:k]]; ok {
					writePlaceholder(&buf, n)
					i = k
					continue
				}
				// Unknown name: copy it whole so its tail is never re-examined.
				buf.WriteString(q[i:k])
				i = k
				continue
			}
		}
		buf.WriteByte(c)
		i++
	}

	return buf.String()
}

// detectNames returns the distinct :name tokens of q in order of first
// appearance, using the same match context as rewrite.
func detectNames(q string) []string {
	var names []string
	seen := make(map[string]struct{})
	for i := 0; i < len(q); i++ {
		if q[i] != ':' || (i > 0 && q[i-1] == ':') {
			continue
		}
		k := scanName(q, i+1)
		if k == i+1 {
			continue
		}
		name := q[i+1 : k]
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
		i = k - 1
	}
	return names
}

// scanName returns the index just past the [A-Za-z0-9_] run starting at j.
func scanName(q string, j int) int {
	for j < len(q) && isAlphaNumUnderscore(q[j]) {
		j++
	}
	return j
}

// positions maps each name to its 1-based marker number.
func positions(names []string) map[string]int {
	pos := make(map[string]int, len(names))
	for i, name := range names {
		pos[name] = i + 1
	}
	return pos
}

// validateName reports whether name is usable as a parameter name.
func validateName(name string, maxLen int) error {
	if name == "" {
		return &ParamError{Name: name, Err: ErrInvalidParamName}
	}
	for i := 0; i < len(name); i++ {
		if !isAlphaNumUnderscore(name[i]) {
			return &ParamError{Name: name, Err: ErrInvalidParamName}
		}
	}
	if maxLen > 0 && len(name) > maxLen {
		return fmt.Errorf("%w: %q (%d > %d)", ErrParamNameTooLong, name, len(name), maxLen)
	}
	return nil
}

// writePlaceholder emits the positional marker for argument idx.
func writePlaceholder(b *strings.Builder, idx int) {
	b.WriteByte('$')
	var tmp [20]byte
	n := strconv.AppendInt(tmp[:0], int64(idx), 10)
	b.Write(n)
}

// isAlphaNumUnderscore reports whether b is [A-Za-z0-9_] .
func isAlphaNumUnderscore(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9') || b == '_'
}
