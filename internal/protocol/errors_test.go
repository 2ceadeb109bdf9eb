package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrBadRequest,
		ErrUnknownCommand,
		ErrWorldBusy,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestErrorfFormatsMessage(t *testing.T) {
	err := Errorf(ErrUnknownCommand, "unknown command %q", "nuke")
	if err.Code != ErrUnknownCommand || err.Error() != `E_UNKNOWN_COMMAND: unknown command "nuke"` {
		t.Fatalf("unexpected error %#v", err)
	}
}
