package paymentsync

import (
	"context"
	"fmt"
)

// InverseAction undoes one target mutation using the data captured before it
type InverseAction struct {
	Target   Target
	Action   string
	TargetID string
	Captured any
	Undo     func(ctx context.Context) error
}

// UnwindResult reports the outcome of one inverse action
type UnwindResult struct {
	Action InverseAction
	Err    error
}

// RollbackStack holds the inverse actions of a single attempt. It lives only
// in memory and is meaningless outside the transaction that produced it.
type RollbackStack struct {
	actions []InverseAction
}

// Push records an inverse action
func (s *RollbackStack) Push(a InverseAction) {
	s.actions = append(s.actions, a)
}

// Len returns the number of pending inverse actions
func (s *RollbackStack) Len() int {
	return len(s.actions)
}

// Reset discards every pending inverse action
func (s *RollbackStack) Reset() {
	s.actions = nil
}

// Unwind pops and runs every inverse action, last pushed first. A failing
// inverse does not stop the drain. ok is false if any inverse failed.
func (s *RollbackStack) Unwind(ctx context.Context) (results []UnwindResult, ok bool) {
	ok = true
	for len(s.actions) > 0 {
		last := len(s.actions) - 1
		a := s.actions[last]
		s.actions = s.actions[:last]

		var err error
		if a.Undo != nil {
			err = runInverse(ctx, a)
		}
		if err != nil {
			ok = false
		}
		results = append(results, UnwindResult{Action: a, Err: err})
	}
	return results, ok
}

func runInverse(ctx context.Context, a InverseAction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("inverse %s panicked: %v", a.Action, r)
		}
	}()
	return a.Undo(ctx)
}
