package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type light uint8

const (
	red light = iota
	green
	yellow
	broken
	powered
)

func TestExecuteAction(t *testing.T) {
	fault := false
	super := func() light {
		if fault {
			return broken
		}
		return powered
	}
	sub := func(next light) Action[light] {
		return func() light {
			cur := next
			ProcessSuperState(&cur, powered, super)
			return cur
		}
	}
	m := New(red, map[light]Action[light]{
		red:    sub(green),
		green:  sub(yellow),
		yellow: sub(red),
	})
	require.Equal(t, green, m.ExecuteAction())
	require.Equal(t, yellow, m.ExecuteAction())
	require.Equal(t, red, m.ExecuteAction())

	fault = true
	require.Equal(t, broken, m.ExecuteAction())
	require.Equal(t, broken, m.ExecuteAction(), "no action keeps the state")
	require.Equal(t, "fsm(3)", m.String())
}

func TestProcessSuperState(t *testing.T) {
	testCases := []struct {
		name  string
		super light
		ret   light
		want  light
	}{
		{"stays in sub state", powered, powered, green},
		{"super transitions", powered, broken, broken},
		{"super returns sub state", powered, red, red},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cur := green
			ProcessSuperState(&cur, tc.super, func() light { return tc.ret })
			require.Equal(t, tc.want, cur)
		})
	}
}

func TestStepFunc(t *testing.T) {
	m := &Machine[int]{Current: 1, Step: func(s int) int { return s * 2 }}
	m.ExecuteAction()
	m.ExecuteAction()
	require.Equal(t, 4, m.Current)
}
