package journal

import (
	"reflect"
	"testing"
)

func TestRevertToSnapshot(t *testing.T) {
	j := New()
	state := []int{}

	push := func(v int) {
		state = append(state, v)
		j.Append(func() { state = state[:len(state)-1] })
	}

	push(1)
	snap := j.Snapshot()
	push(2)
	push(3)

	j.RevertToSnapshot(snap)
	if !reflect.DeepEqual(state, []int{1}) {
		t.Fatalf("state after revert: %v", state)
	}
	if j.Len() != 1 {
		t.Fatalf("journal len after revert: %d", j.Len())
	}

	j.Reset()
	j.RevertToSnapshot(0)
	if !reflect.DeepEqual(state, []int{1}) {
		t.Fatalf("reset must commit: %v", state)
	}
}

func TestRevertOrder(t *testing.T) {
	j := New()
	var order []int
	j.Append(func() { order = append(order, 1) })
	j.Append(func() { order = append(order, 2) })
	j.Append(func() { order = append(order, 3) })

	j.RevertToSnapshot(0)
	if !reflect.DeepEqual(order, []int{3, 2, 1}) {
		t.Fatalf("undo order: %v", order)
	}
}

func TestNilJournal(t *testing.T) {
	var j *Journal
	j.Append(func() { t.Fatalf("nil journal must not run undo") })
	j.RevertToSnapshot(j.Snapshot())
	j.Reset()
}
