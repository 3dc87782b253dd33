// Package fsm runs table driven state machines with super states.
//
// Each state has an action returning the state to move to. A sub state
// defers to its super state by calling ProcessSuperState before it
// returns, so a transition out of the super state wins over the sub
// state's own choice.
package fsm

import (
	"fmt"

	"github.com/golang/glog"
)

// Action performs the work of a state and returns the next state.
type Action[S comparable] func() S

// Machine holds the current state and the step from one state to the
// next.
type Machine[S comparable] struct {
	Current S
	Step    func(S) S
}

// New creates a Machine starting at initial and stepping with the
// actions of table.
func New[S comparable](initial S, table map[S]Action[S]) *Machine[S] {
	return &Machine[S]{Current: initial, Step: Table(table)}
}

// Table builds a step function from an action per state. A state without
// action stays where it is.
func Table[S comparable](table map[S]Action[S]) func(S) S {
	return func(s S) S {
		if action, ok := table[s]; ok {
			return action()
		}
		glog.Warningf("fsm: no action for state %v", s)
		return s
	}
}

// ExecuteAction runs the action of the current state and moves to the
// state it returns.
func (m *Machine[S]) ExecuteAction() S {
	m.Current = m.Step(m.Current)
	return m.Current
}

func (m *Machine[S]) String() string {
	return fmt.Sprintf("fsm(%v)", m.Current)
}

// ProcessSuperState runs the super state action and overrides current
// with its result unless it returned super itself.
func ProcessSuperState[S comparable](current *S, super S, fn Action[S]) {
	if next := fn(); next != super {
		*current = next
	}
}
