package domain

import "unicode/utf8"

// FragmentAssembler reassembles valid UTF-8 text from engine byte fragments.
// A single token's piece can end mid-rune, so bytes that do not decode yet
// are held back until a later fragment completes them. Text already emitted
// is never revised.
type FragmentAssembler struct {
	pending []byte
}

// Push appends a fragment and returns the longest prefix that became
// decodable. Only the start of a still-completable rune is held back; bytes
// that can never complete are dropped so a corrupt fragment cannot stall the
// stream.
func (a *FragmentAssembler) Push(fragment []byte) string {
	a.pending = append(a.pending, fragment...)

	var out []byte
	for {
		n := validPrefixLen(a.pending)
		out = append(out, a.pending[:n]...)
		a.pending = append(a.pending[:0], a.pending[n:]...)
		if len(a.pending) == 0 || completable(a.pending) {
			break
		}
		a.pending = append(a.pending[:0], a.pending[1:]...)
	}
	return string(out)
}

// Flush returns whatever still decodes and discards bytes that never
// completed into a rune.
func (a *FragmentAssembler) Flush() string {
	s := string(a.pending[:validPrefixLen(a.pending)])
	a.pending = a.pending[:0]
	return s
}

func (a *FragmentAssembler) PendingBytes() int {
	return len(a.pending)
}

func validPrefixLen(b []byte) int {
	n := 0
	for n < len(b) {
		r, size := utf8.DecodeRune(b[n:])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		n += size
	}
	return n
}

// completable reports whether b is the valid start of one multi-byte UTF-8
// sequence that is still missing continuation bytes.
func completable(b []byte) bool {
	var want int
	switch lead := b[0]; {
	case lead&0xE0 == 0xC0:
		want = 2
	case lead&0xF0 == 0xE0:
		want = 3
	case lead&0xF8 == 0xF0:
		want = 4
	default:
		return false
	}
	if len(b) >= want {
		// Enough bytes arrived and the sequence still failed to decode.
		return false
	}
	for _, c := range b[1:] {
		if c&0xC0 != 0x80 {
			return false
		}
	}
	return true
}
