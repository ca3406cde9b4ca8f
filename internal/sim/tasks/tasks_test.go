package tasks

import "testing"

func seq(loop bool, n int) *Sequence {
	s := &Sequence{ID: "s", Loop: loop}
	for i := 0; i < n; i++ {
		s.Steps = append(s.Steps, Step{Kind: StepWork})
	}
	return s
}

func TestAdvance_NonLoopParksOnePastEnd(t *testing.T) {
	s := seq(false, 3)
	cur := 0
	for i := 0; i < 2; i++ {
		next, ok := s.Advance(cur)
		if !ok {
			t.Fatalf("advance %d: unexpected completion", i)
		}
		cur = next
	}
	next, ok := s.Advance(cur)
	if ok {
		t.Fatalf("expected completion after last step")
	}
	if next != len(s.Steps) {
		t.Fatalf("cursor = %d, want parked at %d", next, len(s.Steps))
	}
	if !s.Completed(next) {
		t.Fatalf("parked cursor not reported completed")
	}
	if s.StepAt(next) != nil {
		t.Fatalf("parked cursor yielded a step")
	}
}

func TestAdvance_LoopWrapsModuloLength(t *testing.T) {
	s := seq(true, 3)
	cur := 0
	advanced := 0
	for i := 0; i < 10; i++ {
		next, ok := s.Advance(cur)
		if !ok {
			t.Fatalf("looping sequence signaled completion")
		}
		cur = next
		advanced++
		if want := advanced % len(s.Steps); cur != want {
			t.Fatalf("after %d advances cursor = %d, want %d", advanced, cur, want)
		}
	}
}

func TestAdvance_EmptySequenceCompletesImmediately(t *testing.T) {
	for _, loop := range []bool{false, true} {
		s := seq(loop, 0)
		next, ok := s.Advance(0)
		if ok {
			t.Fatalf("loop=%v: empty sequence advanced", loop)
		}
		if next != 0 {
			t.Fatalf("loop=%v: cursor = %d, want 0", loop, next)
		}
		if !s.Completed(0) {
			t.Fatalf("loop=%v: empty sequence not completed at cursor 0", loop)
		}
	}
}

func TestTravelProgress_ZeroTotalIsDone(t *testing.T) {
	tr := &TravelState{Total: 0, Covered: 0}
	if p := tr.Progress(); p != 1 {
		t.Fatalf("progress = %v, want 1", p)
	}
	tr = &TravelState{Total: 10, Covered: 4}
	if p := tr.Progress(); p != 0.4 {
		t.Fatalf("progress = %v, want 0.4", p)
	}
}
