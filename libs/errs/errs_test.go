package errs

import (
	"errors"
	"testing"
)

var errSentinel = errors.New("sentinel")

func TestMarkKeepsCauseAndClassifies(t *testing.T) {
	cause := errors.New("connection refused")
	err := Mark(Wrap(cause, "load slot"), errSentinel)

	if !Is(err, errSentinel) {
		t.Fatal("expected marked error to match sentinel")
	}
	if !Is(err, cause) {
		t.Fatal("expected marked error to keep its cause")
	}
	if got := err.Error(); got != "load slot: connection refused" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestMarkNil(t *testing.T) {
	if err := Mark(nil, errSentinel); err != errSentinel {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if err := Wrap(nil, "noop"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
