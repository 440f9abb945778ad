package cdp

import "testing"

func TestIsIgnorableEvent(t *testing.T) {
	if !IsIgnorableEvent("Debugger.scriptParsed") {
		t.Fatal("expected Debugger.scriptParsed to be ignorable")
	}
	if IsIgnorableEvent("Debugger.paused") {
		t.Fatal("did not expect Debugger.paused to be ignorable")
	}
}

func TestIsQuiescencePoint(t *testing.T) {
	cases := []struct {
		method string
		want   bool
	}{
		{"Debugger.paused", true},
		{"Inspector.detached", true},
		{"Runtime.executionContextDestroyed", true},
		{"Debugger.resumed", false},
		{"Debugger.scriptParsed", false},
		{"Network.requestWillBeSent", false},
	}
	for _, c := range cases {
		if got := IsQuiescencePoint(c.method); got != c.want {
			t.Errorf("IsQuiescencePoint(%q) = %v, want %v", c.method, got, c.want)
		}
	}
}

func TestTriggersQuiescenceWait(t *testing.T) {
	for _, m := range []string{"Debugger.resume", "Debugger.stepOver", "Debugger.stepInto", "Debugger.stepOut", "Runtime.runIfWaitingForDebugger", "Debugger.setSkipAllPauses"} {
		if !TriggersQuiescenceWait(m) {
			t.Errorf("expected %s to trigger a quiescence wait", m)
		}
	}
	for _, m := range []string{"Runtime.evaluate", "Debugger.pause", "Debugger.getStackTrace"} {
		if TriggersQuiescenceWait(m) {
			t.Errorf("did not expect %s to trigger a quiescence wait", m)
		}
	}
}

func TestIsAllowedCommand(t *testing.T) {
	if !IsAllowedCommand("Runtime.evaluate") {
		t.Fatal("expected Runtime.evaluate to be allowed")
	}
	if IsAllowedCommand("Page.navigate") {
		t.Fatal("did not expect Page.navigate to be allowed")
	}
}
