package buffer

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func feed(s *Serial, str string) {
	for i := 0; i < len(str); i++ {
		s.Write(str[i])
	}
}

func TestSerialMatchSuffix(t *testing.T) {
	s := NewSerial(16, nil)
	require.False(t, s.MatchSuffix("on", 0, true))

	feed(s, "on")
	require.True(t, s.MatchSuffix("on", 0, true))
	require.False(t, s.MatchSuffix("on", 0, true), "reported twice")

	feed(s, "xx")
	require.False(t, s.MatchSuffix("on", 0, true))
	feed(s, "turn on")
	require.True(t, s.MatchSuffix("on", 0, true))
}

func TestSerialMatchSuffixShift(t *testing.T) {
	s := NewSerial(16, nil)
	feed(s, "c_25")
	require.True(t, s.MatchSuffix("c_", 2, true))
	v, ok := s.ParseUint()
	require.True(t, ok)
	require.Equal(t, uint32(25), v)

	feed(s, "c_7")
	require.True(t, s.MatchSuffix("c_", 1, false))
	require.True(t, s.Empty())
}

func TestSerialParam(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		prefix    string
		delimiter byte
		maxDigits int
		value     uint32
		ok        bool
	}{
		{"plain", "c_12", "c_", 0, 0, 12, true},
		{"delimited", "c_25;", "c_", ';', 8, 25, true},
		{"wrong delimiter", "c_25!", "c_", ';', 8, 0, false},
		{"missing prefix", "d_25", "c_", 0, 8, 0, false},
		{"too many digits", "c_12345", "c_", 0, 3, 0, false},
		{"no digits", "c_x", "c_", 0, 8, 0, false},
		{"long prefix", "integer_4096", "integer_", 0, 8, 4096, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSerial(32, nil)
			feed(s, tc.input)
			v, ok := s.Param(tc.prefix, tc.delimiter, tc.maxDigits)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.value, v)
		})
	}
}

func TestSerialParamOnce(t *testing.T) {
	s := NewSerial(32, nil)
	feed(s, "c_25;")
	v, ok := s.Param("c_", ';', 0)
	require.True(t, ok)
	require.Equal(t, uint32(25), v)

	_, ok = s.Param("c_", ';', 0)
	require.False(t, ok)
	feed(s, "z")
	_, ok = s.Param("c_", ';', 0)
	require.False(t, ok)

	feed(s, "c_3;")
	v, ok = s.Param("c_", ';', 0)
	require.True(t, ok)
	require.Equal(t, uint32(3), v)
}

func TestSerialParseUint(t *testing.T) {
	s := NewSerial(8, nil)
	_, ok := s.ParseUint()
	require.False(t, ok)

	feed(s, "407x")
	v, ok := s.ParseUint()
	require.True(t, ok)
	require.Equal(t, uint32(407), v)
	b, _ := s.Get()
	require.Equal(t, byte('x'), b)
}

func TestSerialGuard(t *testing.T) {
	var entered, left int
	s := NewSerial(8, func() func() {
		entered++
		return func() { left++ }
	})
	feed(s, "ab")
	s.Reset()
	require.Equal(t, 1, entered)
	require.Equal(t, 1, left)
	require.True(t, s.Empty())
}

func TestSerialMatchSuffixAfterReset(t *testing.T) {
	s := NewSerial(4, nil)
	feed(s, "xxxo")
	for !s.Empty() {
		s.Get()
	}
	s.Reset()
	feed(s, "n")
	require.False(t, s.MatchSuffix("on", 0, false), "matched stale content")
	feed(s, "on")
	require.True(t, s.MatchSuffix("on", 0, false))
}

func TestSerialResetWhileReading(t *testing.T) {
	var irq sync.Mutex
	s := NewSerial(4, func() func() {
		irq.Lock()
		return irq.Unlock
	})
	var stop atomic.Bool
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; !stop.Load(); i++ {
			irq.Lock()
			s.Ring.Write(byte(i))
			irq.Unlock()
		}
	}()
	go func() {
		defer wg.Done()
		for !stop.Load() {
			s.Reset()
		}
	}()
	for i := 0; i < 200000; i++ {
		s.Get()
		s.lock.Lock()
		n := s.Len()
		s.lock.Unlock()
		if n > s.Cap() {
			stop.Store(true)
			wg.Wait()
			t.Fatalf("length %d exceeds capacity", n)
		}
	}
	stop.Store(true)
	wg.Wait()

	s.Reset()
	require.True(t, s.Empty())
	feed(s, "abcd")
	require.True(t, s.Full())
	require.False(t, s.Overflowed())
	for _, want := range []byte("abcd") {
		b, ok := s.Get()
		require.True(t, ok)
		require.Equal(t, want, b)
	}
}

func TestSerialWritePacket(t *testing.T) {
	s := NewSerial(3, nil)
	require.False(t, s.WritePacket([]byte("abcd")))
	require.True(t, s.Empty())
	require.True(t, s.WritePacket([]byte("ab")))
	require.False(t, s.WritePacket([]byte("cd")))
	require.Equal(t, 2, s.Len())
	require.False(t, s.Overflowed())
}

func TestAppendUint(t *testing.T) {
	require.Equal(t, "0", string(AppendUint(nil, uint8(0))))
	require.Equal(t, "4294967295", string(AppendUint(nil, ^uint32(0))))
	require.Equal(t, "x=42", string(AppendUint([]byte("x="), uint(42))))
}
