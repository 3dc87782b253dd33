package buffer

import (
	"strconv"
	"sync"

	"golang.org/x/exp/constraints"
)

// DefaultMaxDigits bounds the digits of a parameter when none is given.
const DefaultMaxDigits = 8

// Guard enters a critical section against the interrupt context sharing
// a buffer and returns the func leaving it.
type Guard func() (restore func())

// NoGuard is the Guard for buffers without an interrupt counterpart.
func NoGuard() func() {
	return func() {}
}

// Serial is the foreground view of a Ring with ASCII helpers for command
// parsing. Its methods serialize foreground callers among themselves and
// use the Guard against the interrupt context, which works on the Ring
// directly.
//
// A one-shot gate suppresses repeated matches: after a successful match
// nothing is reported again until a new byte has been consumed.
type Serial struct {
	*Ring

	guard Guard
	lock  sync.Mutex
	gate  int
	// seen counts the bytes consumed since Reset, up to Cap. Older slots
	// hold stale content.
	seen int
}

// NewSerial creates a Serial over a new Ring.
func NewSerial(capacity int, guard Guard) *Serial {
	if guard == nil {
		guard = NoGuard
	}
	return &Serial{Ring: NewRing(capacity), guard: guard, gate: 1}
}

// Reset discards all content and re-arms the gate.
func (s *Serial) Reset() {
	s.lock.Lock()
	defer s.lock.Unlock()
	defer s.guard()()
	s.Ring.Reset()
	s.gate, s.seen = 1, 0
}

// Get consumes one byte.
func (s *Serial) Get() (byte, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.get()
}

// WritePacket writes all of data or nothing.
func (s *Serial) WritePacket(data []byte) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	defer s.guard()()
	if s.Free() < len(data) {
		return false
	}
	for _, b := range data {
		s.Ring.Write(b)
	}
	return true
}

func (s *Serial) get() (byte, bool) {
	b, ok := s.Ring.Read()
	if ok {
		if s.gate > 0 {
			s.gate--
		}
		if s.seen < s.Cap() {
			s.seen++
		}
	}
	return b, ok
}

// MatchSuffix drains the pending bytes and reports whether str was
// received ending shift bytes before the last one. With movePointer the
// trailing shift bytes are made readable again, so a parameter after a
// command prefix can be parsed.
func (s *Serial) MatchSuffix(str string, shift int, movePointer bool) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.matchSuffix(str, shift, movePointer)
}

func (s *Serial) matchSuffix(str string, shift int, movePointer bool) bool {
	for {
		if _, ok := s.get(); !ok {
			break
		}
	}
	if s.gate > 0 || len(str) == 0 || shift < 0 || len(str)+shift > s.seen {
		return false
	}
	restore := s.guard()
	defer restore()
	for i := 0; i < len(str); i++ {
		if s.Behind(shift+1+i) != str[len(str)-1-i] {
			return false
		}
	}
	s.gate = 1
	if movePointer && shift > 0 {
		n := s.Unread(shift)
		s.gate += n
		s.seen -= n
	}
	return true
}

// ParseUint consumes leading ASCII digits and returns their value.
func (s *Serial) ParseUint() (uint32, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	v, n := s.parseUint()
	return v, n > 0
}

// Param looks for prefix followed by 1 to maxDigits digits and, when
// delimiter is non-zero, the delimiter. A reported parameter is not
// reported again.
func (s *Serial) Param(prefix string, delimiter byte, maxDigits int) (uint32, bool) {
	if maxDigits <= 0 {
		maxDigits = DefaultMaxDigits
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	shift := 1
	for ; shift <= maxDigits; shift++ {
		if s.matchSuffix(prefix, shift, true) {
			break
		}
	}
	if shift > maxDigits {
		return 0, false
	}
	v, consumed := s.parseUint()
	if consumed == 0 {
		return 0, false
	}
	if delimiter != 0 {
		d, ok := s.get()
		if !ok || d != delimiter {
			return 0, false
		}
		consumed++
	}
	restore := s.guard()
	s.Scrub(consumed + 1)
	restore()
	return v, true
}

func (s *Serial) parseUint() (v uint32, n int) {
	for {
		b, ok := s.Peek()
		if !ok || b < '0' || b > '9' {
			return
		}
		s.get()
		v = v*10 + uint32(b-'0')
		n++
	}
}

// AppendUint appends the decimal ASCII form of v.
func AppendUint[T constraints.Unsigned](dst []byte, v T) []byte {
	return strconv.AppendUint(dst, uint64(v), 10)
}
