package cdp

import (
	"errors"
	"testing"
)

func TestIsFatal(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unknown command", &UnknownCommandError{Method: "Page.navigate"}, false},
		{"protocol error", &ProtocolError{Method: "Runtime.evaluate", Code: -1, Message: "bad"}, false},
		{"session closed", ErrSessionClosed, true},
		{"timeout", ErrTimeout, true},
		{"transport error", &TransportError{Op: "read", Err: errors.New("eof")}, true},
	}
	for _, c := range cases {
		if got := IsFatal(c.err); got != c.want {
			t.Errorf("IsFatal(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
