package aggregate

import "strings"

// locator finds where each record's address occurs in the source text. The
// n-th lookup of a needle returns its n-th occurrence. Matching ignores ASCII
// case so hex digits in IPv6 addresses match either way; offsets are byte
// offsets into the original text.
type locator struct {
	text   string
	cursor map[string]int
}

func newLocator(text string) *locator {
	return &locator{text: asciiLower(text), cursor: make(map[string]int)}
}

// find returns the offset of the next unconsumed occurrence of any needle,
// trying them in order.
func (l *locator) find(needles ...string) (int, bool) {
	for _, n := range needles {
		if n == "" {
			continue
		}
		n = asciiLower(n)
		if off, ok := l.next(n); ok {
			return off, true
		}
	}
	return 0, false
}

func (l *locator) next(needle string) (int, bool) {
	from := l.cursor[needle]
	v6 := strings.Contains(needle, ":")
	for from <= len(l.text) {
		idx := strings.Index(l.text[from:], needle)
		if idx < 0 {
			return 0, false
		}
		start := from + idx
		end := start + len(needle)
		if boundaryBefore(l.text, start, v6) && boundaryAfter(l.text, end, v6) {
			l.cursor[needle] = end
			return start, true
		}
		from = start + 1
	}
	return 0, false
}

// Colons belong to an IPv6 address but delimit an IPv4 one, as in
// "src=9.9.9.9:5353" or "IP:8.8.8.8".
func boundaryBefore(s string, i int, v6 bool) bool {
	if i == 0 {
		return true
	}
	c := s[i-1]
	return !isAddrChar(c, v6) && c != '.'
}

func boundaryAfter(s string, j int, v6 bool) bool {
	if j >= len(s) {
		return true
	}
	c := s[j]
	if c == '.' {
		return j+1 >= len(s) || !isDigit(s[j+1])
	}
	return !isAddrChar(c, v6)
}

func isAddrChar(c byte, v6 bool) bool {
	if c == ':' {
		return v6
	}
	return isDigit(c) || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
