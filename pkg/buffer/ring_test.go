package buffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingFIFO(t *testing.T) {
	r := NewRing(5)
	for round := 0; round < 7; round++ {
		for i := 0; i < 5; i++ {
			require.True(t, r.Write(byte(round*10+i)))
		}
		require.Equal(t, Full, r.State())
		for i := 0; i < 5; i++ {
			b, ok := r.Read()
			require.True(t, ok)
			require.Equal(t, byte(round*10+i), b)
		}
		require.True(t, r.Empty())
	}
	_, ok := r.Read()
	require.False(t, ok)
}

func TestRingOverflow(t *testing.T) {
	r := NewRing(4)
	for _, b := range []byte{0x41, 0x42, 0x43, 0x44} {
		require.True(t, r.Write(b))
	}
	require.False(t, r.Overflowed())
	require.False(t, r.Write(0x45))
	require.True(t, r.Overflowed())
	require.Equal(t, 4, r.Len())

	var got []byte
	for {
		b, ok := r.Read()
		if !ok {
			break
		}
		got = append(got, b)
	}
	require.Equal(t, []byte{0x41, 0x42, 0x43, 0x44}, got)
	require.True(t, r.Overflowed())
	r.ClearOverflow()
	require.False(t, r.Overflowed())
}

func TestRingReset(t *testing.T) {
	testCases := []struct {
		name   string
		writes int
		reads  int
	}{
		{"empty", 0, 0},
		{"partial", 3, 1},
		{"full", 8, 0},
		{"overflowed", 9, 0},
		{"wrapped", 8, 6},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, other := NewRing(8), NewRing(8)
			other.Write('x')
			for i := 0; i < tc.writes; i++ {
				r.Write(byte(i))
			}
			for i := 0; i < tc.reads; i++ {
				r.Read()
			}
			r.Reset()
			require.True(t, r.Empty())
			require.Equal(t, Empty, r.State())
			require.False(t, r.Overflowed())
			require.Equal(t, 8, r.Free())
			require.Equal(t, 1, other.Len())
		})
	}
}

func TestRingStates(t *testing.T) {
	r := NewRing(2)
	require.Equal(t, Empty, r.State())
	r.Write(1)
	require.Equal(t, Partial, r.State())
	r.Write(2)
	require.Equal(t, Full, r.State())
	require.True(t, r.Full())
	require.Equal(t, "full", r.State().String())
}

func TestRingUnreadBehind(t *testing.T) {
	r := NewRing(4)
	for _, b := range []byte("abcdef") {
		r.Write(b)
		r.Read()
	}
	require.Equal(t, byte('f'), r.Behind(1))
	require.Equal(t, byte('c'), r.Behind(4))
	require.Equal(t, 2, r.Unread(2))
	b, _ := r.Read()
	require.Equal(t, byte('e'), b)
	b, _ = r.Read()
	require.Equal(t, byte('f'), b)

	r.Write('g')
	r.Write('h')
	r.Write('i')
	require.Equal(t, 1, r.Unread(3))
	b, _ = r.Peek()
	require.Equal(t, byte('f'), b)

	for !r.Empty() {
		r.Read()
	}
	require.Equal(t, byte('i'), r.Behind(1))
	r.Scrub(1)
	require.Equal(t, byte(0), r.Behind(1))
}

func TestRingConcurrentSPSC(t *testing.T) {
	const total = 20000
	r := NewRing(7)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if r.Write(byte(i)) {
				i++
			}
		}
	}()
	for i := 0; i < total; {
		if b, ok := r.Read(); ok {
			require.Equal(t, byte(i), b)
			i++
		}
	}
	wg.Wait()
	require.True(t, r.Empty())
}
