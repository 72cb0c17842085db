package regfile

import "testing"

func TestSPAndFPAreReservedNotHandedOutAsTemps(t *testing.T) {
	rf := New(false)
	seen := map[int]bool{}
	for i := 0; i < rf.NumGPR(); i++ {
		r, ok := rf.NextTempGPR(nil)
		if !ok {
			t.Fatalf("expected %d free GPRs, ran out after %d", rf.NumGPR(), i)
		}
		if r.ID() == rf.SP().ID() || r.ID() == rf.FP().ID() {
			t.Fatalf("rsp/rbp must never be handed out as a temporary, got %v", r)
		}
		seen[r.ID()] = true
	}
	if _, ok := rf.NextTempGPR(nil); ok {
		t.Fatalf("expected no more free GPRs once all non-reserved ones are taken")
	}
}

func TestWin64CalleeSavedIncludesRsiRdi(t *testing.T) {
	rf := New(true)
	rsi := rf.GetGPR(6)
	rdi := rf.GetGPR(7)
	if !rsi.CalleeSaved() || !rdi.CalleeSaved() {
		t.Fatalf("Win64 must mark rsi/rdi callee-saved, got rsi=%v rdi=%v", rsi.CalleeSaved(), rdi.CalleeSaved())
	}
}

func TestSysVDoesNotMarkRsiRdiCalleeSaved(t *testing.T) {
	rf := New(false)
	rsi := rf.GetGPR(6)
	if rsi.CalleeSaved() {
		t.Fatalf("SysV must not mark rsi callee-saved")
	}
}

func TestResetFreesAllTemps(t *testing.T) {
	rf := New(false)
	rf.NextTempGPR(nil)
	rf.NextTempGPR(nil)
	rf.Reset()
	count := 0
	for {
		if _, ok := rf.NextTempGPR(nil); !ok {
			break
		}
		count++
	}
	if count != rf.NumGPR() {
		t.Fatalf("expected %d free GPRs after Reset, got %d", rf.NumGPR(), count)
	}
}
