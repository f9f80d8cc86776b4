// Package whitelist decides which recipients may receive mail while the
// emailer is not in full-send mode.
//
// Entries are either exact addresses or regular expressions written between
// delimiters, e.g. "/^qa-.*@example\.com$/i". Patterns are compiled once by
// Compile; an entry that is not a valid delimited pattern only takes part in
// exact matching.
package whitelist

import (
	"fmt"
	"regexp"
	"strings"
)

// Whitelist is an immutable, compiled set of entries. It is safe for
// concurrent use.
type Whitelist struct {
	exact    map[string]struct{}
	patterns []*regexp.Regexp
}

// PatternError describes a delimited entry that could not be compiled.
type PatternError struct {
	Entry string
	Err   error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("whitelist pattern %q: %v", e.Entry, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// Compile builds a Whitelist from configured entries. Every entry is an
// exact-match candidate; delimited entries are also compiled as patterns.
// Entries that look delimited but fail to compile are skipped as patterns
// and reported in the returned slice.
func Compile(entries []string) (*Whitelist, []error) {
	w := &Whitelist{exact: make(map[string]struct{}, len(entries))}
	var errs []error

	for _, entry := range entries {
		w.exact[entry] = struct{}{}

		expr, ok, err := translate(entry)
		if !ok {
			continue
		}
		if err == nil {
			var re *regexp.Regexp
			re, err = regexp.Compile(expr)
			if err == nil {
				w.patterns = append(w.patterns, re)
				continue
			}
		}
		errs = append(errs, &PatternError{Entry: entry, Err: err})
	}

	return w, errs
}

// Allows reports whether a single address is whitelisted: exact membership
// first, then the first matching pattern.
func (w *Whitelist) Allows(addr string) bool {
	if w == nil {
		return false
	}
	if _, ok := w.exact[addr]; ok {
		return true
	}
	for _, re := range w.patterns {
		if re.MatchString(addr) {
			return true
		}
	}
	return false
}

// AllowsAll reports whether every address is whitelisted. It stops at the
// first address that is not.
func (w *Whitelist) AllowsAll(addrs []string) bool {
	for _, addr := range addrs {
		if !w.Allows(addr) {
			return false
		}
	}
	return true
}

// Len returns the number of compiled patterns.
func (w *Whitelist) Len() int {
	if w == nil {
		return 0
	}
	return len(w.patterns)
}

// closing maps bracket-style opening delimiters to their closing pair.
var closing = map[byte]byte{'(': ')', '{': '}', '[': ']', '<': '>'}

// translate converts a delimited entry into a Go regular expression.
// ok is false when the entry is not delimited at all.
func translate(entry string) (expr string, ok bool, err error) {
	s := strings.TrimLeft(entry, " \t\r\n")
	if len(s) < 2 {
		return "", false, nil
	}

	open := s[0]
	if isAlnum(open) || open == '\\' {
		return "", false, nil
	}
	end := open
	if c, found := closing[open]; found {
		end = c
	}

	idx := strings.LastIndexByte(s[1:], end)
	if idx < 0 {
		return "", true, fmt.Errorf("no ending delimiter %q", end)
	}
	body, mods := s[1:idx+1], s[idx+2:]

	var flags strings.Builder
	for i := 0; i < len(mods); i++ {
		switch m := mods[i]; m {
		case 'i', 'm', 's':
			flags.WriteByte(m)
		case 'U':
			flags.WriteByte('U')
		case 'u', 'D', '\n', '\r', ' ':
			// UTF-8 and dollar-end-only are already Go's semantics.
		default:
			return "", true, fmt.Errorf("unsupported modifier %q", m)
		}
	}

	if flags.Len() > 0 {
		return "(?" + flags.String() + ")" + body, true, nil
	}
	return body, true, nil
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
